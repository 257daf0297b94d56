package fastq

import (
	"context"
	"io"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
)

func openRead(ctx context.Context, path string) (file.File, io.Reader, error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, nil, errors.E(err, "open", path)
	}
	var r io.Reader = in.Reader(ctx)
	if u, _ := compress.NewReaderPath(r, in.Name()); u != nil {
		r = u
	}
	return in, r, nil
}

// Count returns the number of reads in the FASTQ file at r1Path, or the
// number of mate pairs if r2Path is not empty. Malformed or discordant input
// is an errors.Invalid error.
func Count(ctx context.Context, r1Path, r2Path string) (n int64, err error) {
	in1, r1, err := openRead(ctx, r1Path)
	if err != nil {
		return 0, err
	}
	defer file.CloseAndReport(ctx, in1, &err)
	if r2Path == "" {
		sc := NewScanner(r1)
		var read Read
		for sc.Scan(&read) {
		}
		if e := sc.Err(); e != nil {
			return 0, errors.E(errors.Invalid, e, r1Path)
		}
		return sc.N(), nil
	}
	in2, r2, err := openRead(ctx, r2Path)
	if err != nil {
		return 0, err
	}
	defer file.CloseAndReport(ctx, in2, &err)
	sc := NewPairScanner(r1, r2)
	var read1, read2 Read
	for sc.Scan(&read1, &read2) {
	}
	if e := sc.Err(); e != nil {
		return 0, errors.E(errors.Invalid, e, r1Path, r2Path)
	}
	return sc.N(), nil
}

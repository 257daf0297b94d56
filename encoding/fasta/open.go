package fasta

import (
	"context"
	"io"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/klauspost/compress/gzip"
)

// File is a Fasta backed by an open file.
type File struct {
	Fasta
	in file.File // nil when the sequences were loaded eagerly.
}

// Open opens the FASTA file at path. When path+".fai" exists, bases are read
// on demand through the index. Otherwise the whole file is loaded into
// memory, gunzipping it first if path ends in ".gz".
func Open(ctx context.Context, path string) (*File, error) {
	if !strings.HasSuffix(path, ".gz") {
		f, err := openIndexed(ctx, path, path+".fai")
		if err != nil || f != nil {
			return f, err
		}
	}
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E(err, "open genome", path)
	}
	var r io.Reader = in.Reader(ctx)
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(r)
		if err != nil {
			_ = in.Close(ctx)
			return nil, errors.E(errors.Invalid, err, "gunzip", path)
		}
		defer gz.Close() // nolint: errcheck
		r = gz
	}
	fa, err := New(r)
	if e := in.Close(ctx); e != nil && err == nil {
		err = e
	}
	if err != nil {
		return nil, errors.E(errors.Invalid, err, path)
	}
	log.Printf("genome %s: loaded %d sequences", path, len(fa.SeqNames()))
	return &File{Fasta: fa}, nil
}

// openIndexed returns nil, nil if the index can't be opened.
func openIndexed(ctx context.Context, path, indexPath string) (*File, error) {
	idx, err := file.Open(ctx, indexPath)
	if err != nil {
		log.Debug.Printf("genome %s: no usable index: %v", path, err)
		return nil, nil
	}
	defer idx.Close(ctx) // nolint: errcheck
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E(errors.Invalid, err, "index without genome", path)
	}
	fa, err := NewIndexed(in.Reader(ctx), idx.Reader(ctx))
	if err != nil {
		_ = in.Close(ctx)
		return nil, errors.E(errors.Invalid, err, indexPath)
	}
	log.Printf("genome %s: using index %s (%d sequences)", path, indexPath, len(fa.SeqNames()))
	return &File{Fasta: fa, in: in}, nil
}

// EnsureIndex writes path+".fai" unless an index can already be opened there,
// so that later Opens read bases on demand. Gzipped files can't be indexed
// this way and are left alone. It reports whether an index was written.
func EnsureIndex(ctx context.Context, path string) (written bool, err error) {
	indexPath := path + ".fai"
	if strings.HasSuffix(path, ".gz") {
		return false, nil
	}
	if idx, err := file.Open(ctx, indexPath); err == nil {
		return false, idx.Close(ctx)
	}
	in, err := file.Open(ctx, path)
	if err != nil {
		return false, errors.E(err, "open genome", path)
	}
	defer file.CloseAndReport(ctx, in, &err)
	out, err := file.Create(ctx, indexPath)
	if err != nil {
		return false, errors.E(err, "create", indexPath)
	}
	if err = GenerateIndex(out.Writer(ctx), in.Reader(ctx)); err != nil {
		_ = out.Close(ctx)
		_ = file.Remove(ctx, indexPath)
		return false, errors.E(errors.Invalid, err, "index", path)
	}
	if err = out.Close(ctx); err != nil {
		return false, errors.E(err, "write", indexPath)
	}
	log.Printf("genome %s: wrote index %s", path, indexPath)
	return true, nil
}

// Close releases the underlying file, if any.
func (f *File) Close(ctx context.Context) error {
	if f.in == nil {
		return nil
	}
	return f.in.Close(ctx)
}

package annotation

import (
	"context"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/tsv"
)

// WriteBED writes one "chrom\tstart\tend\tname" row per record, in record
// order. This is the repnames.bed file.
func WriteBED(ctx context.Context, path string, records []Record) (err error) {
	out, err := file.Create(ctx, path)
	if err != nil {
		return errors.E(err, "create", path)
	}
	defer file.CloseAndReport(ctx, out, &err)
	w := tsv.NewWriter(out.Writer(ctx))
	for _, rec := range records {
		w.WriteString(rec.Chrom)
		w.WriteInt64(int64(rec.Start))
		w.WriteInt64(int64(rec.End))
		w.WriteString(rec.Name)
		if err = w.EndLine(); err != nil {
			return errors.E(err, "write", path)
		}
	}
	if err = w.Flush(); err != nil {
		return errors.E(err, "write", path)
	}
	return nil
}

// WriteRepeatIDs writes "name\tindex" rows for the sorted element names. This
// is the repeatIDs.txt file.
func WriteRepeatIDs(ctx context.Context, path string, t *ElementTable) (err error) {
	out, err := file.Create(ctx, path)
	if err != nil {
		return errors.E(err, "create", path)
	}
	defer file.CloseAndReport(ctx, out, &err)
	w := tsv.NewWriter(out.Writer(ctx))
	for i, name := range t.Names() {
		w.WriteString(name)
		w.WriteInt64(int64(i))
		if err = w.EndLine(); err != nil {
			return errors.E(err, "write", path)
		}
	}
	if err = w.Flush(); err != nil {
		return errors.E(err, "write", path)
	}
	return nil
}

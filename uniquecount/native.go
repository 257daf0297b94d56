package uniquecount

import (
	"context"
	"io"

	"github.com/biogo/store/interval"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/hts/bam"
	"github.com/grailbio/hts/sam"
	"github.com/grailbio/repenrich/annotation"
)

// Native counts overlaps in process. It matches the Bedtools backend: every
// mapped record contributes its reference span, and a row counts a record
// when the two share at least one base.
type Native struct{}

type copyInterval struct {
	idx        int
	start, end int
}

func (c copyInterval) Overlap(b interval.IntRange) bool { return c.end > b.Start && c.start < b.End }
func (c copyInterval) ID() uintptr                      { return uintptr(c.idx) }
func (c copyInterval) Range() interval.IntRange {
	return interval.IntRange{Start: c.start, End: c.end}
}

type span struct{ start, end int }

func (s span) Overlap(b interval.IntRange) bool { return s.end > b.Start && s.start < b.End }

// copyIndex maps chromosome names to trees of annotation rows.
type copyIndex map[string]*interval.IntTree

func newCopyIndex(records []annotation.Record) (copyIndex, error) {
	idx := copyIndex{}
	for i, r := range records {
		if r.End <= r.Start {
			continue
		}
		t, ok := idx[r.Chrom]
		if !ok {
			t = &interval.IntTree{}
			idx[r.Chrom] = t
		}
		if err := t.Insert(copyInterval{idx: i, start: r.Start, end: r.End}, true); err != nil {
			return nil, errors.E(errors.Invalid, err, "index", r.Name, r.Chrom)
		}
	}
	for _, t := range idx {
		t.AdjustRanges()
	}
	return idx, nil
}

// hits calls fn with the index of every row overlapping [start, end) on chrom.
func (idx copyIndex) hits(chrom string, start, end int, fn func(row int)) {
	t, ok := idx[chrom]
	if !ok || end <= start {
		return
	}
	t.DoMatching(func(e interval.IntInterface) bool {
		fn(e.(copyInterval).idx)
		return false
	}, span{start, end})
}

// Count implements Counter. bedPath is unused.
func (Native) Count(ctx context.Context, bedPath, bamPath string, records []annotation.Record) (c Counts, err error) {
	idx, err := newCopyIndex(records)
	if err != nil {
		return Counts{}, err
	}
	in, err := file.Open(ctx, bamPath)
	if err != nil {
		return Counts{}, errors.E(err, "open", bamPath)
	}
	defer file.CloseAndReport(ctx, in, &err)
	br, err := bam.NewReader(in.Reader(ctx), 1)
	if err != nil {
		return Counts{}, errors.E(errors.Invalid, err, "read BAM header of", bamPath)
	}
	defer func() {
		if e := br.Close(); e != nil && err == nil {
			err = e
		}
	}()

	counts := make([]int64, len(records))
	var nRecords, nMapped int64
	for {
		rec, err := br.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Counts{}, errors.E(errors.Invalid, err, "read", bamPath)
		}
		nRecords++
		if rec.Flags&sam.Unmapped != 0 || rec.Ref == nil {
			continue
		}
		nMapped++
		idx.hits(rec.Ref.Name(), rec.Pos, rec.End(), func(row int) { counts[row]++ })
	}
	log.Debug.Printf("%s: %d records, %d mapped", bamPath, nRecords, nMapped)

	rows := make([]Row, len(records))
	for i, r := range records {
		rows[i] = Row{Chrom: r.Chrom, Start: r.Start, End: r.End, Name: r.Name, Count: counts[i]}
	}
	return Sum(rows), nil
}

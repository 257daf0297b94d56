// Package uniquecount counts uniquely mapped reads that overlap repeat
// copies, summed per repeat element.
//
// Two backends produce the same numbers: Bedtools pipes "bedtools bamtobed"
// into "bedtools coverage -counts", and Native reads the BAM directly and
// queries per-chromosome interval trees. A read overlapping several copies
// is counted once for each of them.
package uniquecount

import (
	"context"

	"github.com/grailbio/repenrich/annotation"
)

// Counts holds unique-mapper counts.
type Counts struct {
	// ByElement has one entry per annotated element name, zero included.
	ByElement map[string]int64
	// Total is the sum over all annotation rows.
	Total int64
}

// Counter computes unique-mapper counts.
type Counter interface {
	// Count counts reads in bamPath against records. bedPath holds the same
	// records as written by annotation.WriteBED.
	Count(ctx context.Context, bedPath, bamPath string, records []annotation.Record) (Counts, error)
}

// Row is one annotation row with its overlap count.
type Row struct {
	Chrom      string
	Start, End int
	Name       string
	Count      int64
}

// Sum adds up row counts by element name.
func Sum(rows []Row) Counts {
	c := Counts{ByElement: make(map[string]int64)}
	for _, r := range rows {
		c.ByElement[r.Name] += r.Count
		c.Total += r.Count
	}
	return c
}

package uniquecount

import (
	"context"
	"fmt"
	"io"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/base/tsv"
	"github.com/grailbio/repenrich/annotation"
	"github.com/grailbio/repenrich/toolexec"
)

var errAborted = errors.E("aborted: a downstream stage failed")

// pipeReader records the first non-EOF read error.
type pipeReader struct {
	r   io.Reader
	err error
}

func (p *pipeReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if err != nil && err != io.EOF && p.err == nil {
		p.err = err
	}
	return n, err
}

// Bedtools counts overlaps with
//
//   bedtools bamtobed -i <bam> | bedtools coverage -counts -a <bed> -b stdin
type Bedtools struct {
	Runner toolexec.Runner
}

// ParseCoverage reads "bedtools coverage -counts" output for a BED4 -a file.
func ParseCoverage(r io.Reader, path string) ([]Row, error) {
	tr := tsv.NewReader(r)
	var rows []Row
	for {
		var row Row
		if err := tr.Read(&row); err != nil {
			if err == io.EOF {
				break
			}
			return nil, errors.E(errors.Invalid, err, fmt.Sprintf("parse coverage of %s, row %d", path, len(rows)+1))
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Count implements Counter.
func (b Bedtools) Count(ctx context.Context, bedPath, bamPath string, records []annotation.Record) (Counts, error) {
	bamtobedR, bamtobedW := io.Pipe()
	coverageR, coverageW := io.Pipe()
	var (
		rows []Row
		errs [3]error
	)
	_ = traverse.Limit(3).Each(3, func(i int) error {
		switch i {
		case 0:
			errs[0] = b.Runner.Run(ctx, toolexec.Cmd{
				Name:   "bedtools",
				Args:   []string{"bamtobed", "-i", bamPath},
				Stdout: bamtobedW,
			})
			bamtobedW.CloseWithError(errs[0])
		case 1:
			errs[1] = b.Runner.Run(ctx, toolexec.Cmd{
				Name:   "bedtools",
				Args:   []string{"coverage", "-counts", "-a", bedPath, "-b", "stdin"},
				Stdin:  bamtobedR,
				Stdout: coverageW,
			})
			bamtobedR.CloseWithError(errAborted)
			coverageW.CloseWithError(errs[1])
		case 2:
			r := &pipeReader{r: coverageR}
			rows, errs[2] = ParseCoverage(r, bedPath)
			if r.err != nil {
				// The failure is upstream's, reported by stage 1 or 0.
				errs[2] = nil
			}
			coverageR.CloseWithError(errAborted)
		}
		return errs[i]
	})
	// A failing stage breaks the pipes of its neighbors, so the most
	// downstream failure is the cause.
	for i := len(errs) - 1; i >= 0; i-- {
		if errs[i] == nil {
			continue
		}
		for _, other := range errs[:i] {
			if other != nil {
				log.Error.Printf("unique-mapper counting: %v", other)
			}
		}
		return Counts{}, errors.E(errs[i], "count unique mappers in", bamPath)
	}
	if len(rows) != len(records) {
		return Counts{}, errors.E(errors.Invalid, fmt.Sprintf(
			"bedtools coverage reported %d rows for %d annotation rows in %s", len(rows), len(records), bedPath))
	}
	return Sum(rows), nil
}

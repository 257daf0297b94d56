package multimap

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
)

// Resolve aligns the ambiguous reads against every element, at most
// parallelism elements at a time, and accumulates the per-read element sets.
// The first alignment failure cancels the alignments still running and
// aborts the whole resolution.
func Resolve(ctx context.Context, elements []string, aligner Aligner, parallelism int) (*Accumulator, error) {
	if parallelism < 1 {
		parallelism = 1
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	var (
		once     sync.Once
		firstErr error
	)
	fail := func(err error) error {
		once.Do(func() {
			firstErr = err
			cancel()
		})
		return err
	}

	hits := make([][]string, len(elements))
	var nDone int64
	err := traverse.Limit(parallelism).Each(len(elements), func(i int) error {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		ids, err := aligner.Align(ctx, elements[i])
		if err != nil {
			return fail(errors.E(err, "align reads to element", elements[i]))
		}
		hits[i] = ids
		n := atomic.AddInt64(&nDone, 1)
		log.Debug.Printf("%s: %d reads aligned (%d/%d elements)", elements[i], len(ids), n, len(elements))
		return nil
	})
	if firstErr != nil {
		return nil, firstErr
	}
	if err != nil {
		return nil, err
	}
	acc := NewAccumulator()
	var nHits int
	for i, e := range elements {
		acc.Add(e, hits[i])
		nHits += len(hits[i])
	}
	log.Printf("aligned ambiguous reads to %d elements: %d alignments, %d distinct reads",
		len(elements), nHits, acc.Len())
	return acc, nil
}

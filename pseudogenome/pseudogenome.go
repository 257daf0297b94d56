// Package pseudogenome builds the alignment targets for repeat elements.
//
// The pseudogenome of an element is the concatenation of all its genomic
// copies, each extended by a flank on both sides and clamped to its
// chromosome, separated by runs of 'N':
//
//   copy1 [start-F, end+F) + N*G + copy2 [start-F, end+F) + N*G + ...
//
// Copies are joined in annotation order. Spacer offsets are not recorded
// anywhere else, so keeping the order is what makes rebuilds byte-identical.
package pseudogenome

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/repenrich/annotation"
	"github.com/grailbio/repenrich/encoding/fasta"
)

// Opts controls pseudogenome layout.
type Opts struct {
	// Flank is the number of bases added on each side of a copy. It should be
	// about half the read length.
	Flank int
	// Gap is the length of the 'N' spacer between copies.
	Gap int
}

// DefaultOpts suits 50nt reads.
var DefaultOpts = Opts{
	Flank: 25,
	Gap:   200,
}

// Slice returns the genomic interval [start, end) taken for rec: the record
// extended by flank on both sides, clamped to [0, chromLen).
func Slice(rec annotation.Record, flank int, chromLen uint64) (start, end uint64) {
	s := int64(rec.Start) - int64(flank)
	if s < 0 {
		s = 0
	}
	e := int64(rec.End) + int64(flank)
	if e > int64(chromLen) {
		e = int64(chromLen)
	}
	if s > e {
		// The record lies past the chromosome end.
		s = e
	}
	return uint64(s), uint64(e)
}

// Build returns the pseudogenome sequence of group.
func Build(genome fasta.Fasta, group annotation.Group, opts Opts) (string, error) {
	if opts.Flank < 0 || opts.Gap < 0 {
		return "", errors.E(errors.Invalid, fmt.Sprintf("negative flank (%d) or gap (%d)", opts.Flank, opts.Gap))
	}
	spacer := strings.Repeat("N", opts.Gap)
	var b strings.Builder
	for i, rec := range group.Records {
		chromLen, err := genome.Len(rec.Chrom)
		if err != nil {
			return "", errors.E(errors.Invalid, err, "repeat", group.Name)
		}
		start, end := Slice(rec, opts.Flank, chromLen)
		seq, err := genome.Get(rec.Chrom, start, end)
		if err != nil {
			return "", errors.E(err, "repeat", group.Name)
		}
		if i > 0 {
			b.WriteString(spacer)
		}
		b.WriteString(seq)
	}
	return b.String(), nil
}

// FASTAPath is where the pseudogenome of the named element is written.
func FASTAPath(dir, name string) string { return filepath.Join(dir, name+".fa") }

// IndexPrefix is the aligner index basename of the named element.
func IndexPrefix(dir, name string) string { return filepath.Join(dir, name) }

// Indexer builds an aligner index from a pseudogenome FASTA file.
type Indexer interface {
	BuildIndex(ctx context.Context, fastaPath, prefix string) error
}

// Builder writes pseudogenomes, and optionally their aligner indexes, one
// element per task.
type Builder struct {
	Genome fasta.Fasta
	// Dir receives <name>.fa and the index files.
	Dir  string
	Opts Opts
	// Indexer, if non-nil, indexes each FASTA file right after it is written.
	Indexer Indexer
}

func (b *Builder) buildOne(ctx context.Context, group annotation.Group) (err error) {
	seq, err := Build(b.Genome, group, b.Opts)
	if err != nil {
		return err
	}
	path := FASTAPath(b.Dir, group.Name)
	out, err := file.Create(ctx, path)
	if err != nil {
		return errors.E(err, "create", path)
	}
	w := fasta.NewWriter(out.Writer(ctx), fasta.DefaultLineWidth)
	if err = w.Write(group.Name, seq); err == nil {
		err = w.Flush()
	}
	if e := out.Close(ctx); e != nil && err == nil {
		err = e
	}
	if err != nil {
		return errors.E(err, "write", path)
	}
	log.Debug.Printf("pseudogenome %s: %d copies, %d bases", group.Name, len(group.Records), len(seq))
	if b.Indexer == nil {
		return nil
	}
	if err = b.Indexer.BuildIndex(ctx, path, IndexPrefix(b.Dir, group.Name)); err != nil {
		return errors.E(err, "index pseudogenome", group.Name)
	}
	return nil
}

// BuildAll builds every group on at most parallelism concurrent tasks. The
// first failure cancels the tasks still running and fails the whole build.
func (b *Builder) BuildAll(ctx context.Context, groups []annotation.Group, parallelism int) error {
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
	var nDone int64
	err := traverse.Limit(parallelism).Each(len(groups), func(i int) error {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		if err := b.buildOne(ctx, groups[i]); err != nil {
			return fail(err)
		}
		if n := atomic.AddInt64(&nDone, 1); n%1000 == 0 {
			log.Printf("built %d/%d pseudogenomes", n, len(groups))
		}
		return nil
	})
	if firstErr != nil {
		return firstErr
	}
	if err != nil {
		return err
	}
	log.Printf("built %d pseudogenomes in %s", len(groups), b.Dir)
	return nil
}

package pipeline

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/repenrich/annotation"
	"github.com/grailbio/repenrich/encoding/fastq"
	"github.com/grailbio/repenrich/multimap"
	"github.com/grailbio/repenrich/report"
	"github.com/grailbio/repenrich/toolexec"
	"github.com/grailbio/repenrich/uniquecount"
)

// CountOpts configures Count.
type CountOpts struct {
	// AnnotationPath is the RepeatMasker table given to Setup.
	AnnotationPath string
	// SetupDir is Setup's OutDir.
	SetupDir string
	// AlignmentBAM holds the uniquely mapped reads, aligned to the genome.
	AlignmentBAM string
	// FASTQ holds the ambiguous reads. FASTQ2, if set, holds their mates.
	FASTQ, FASTQ2 string
	// CPUs is the number of elements aligned concurrently.
	CPUs int
	// AlignerThreads is the thread count of each aligner process.
	AlignerThreads int
	// OutDir receives the count tables.
	OutDir string
	// UniqueCounter is CounterBedtools or CounterNative.
	UniqueCounter    string
	StrictAnnotation bool
	// CountInputReads counts the ambiguous reads, to log how many of them
	// aligned to no element.
	CountInputReads bool
	Separator       string

	// Runner runs external tools. Nil means local subprocesses, after
	// checking that the tools are installed.
	Runner toolexec.Runner
}

// DefaultCountOpts is the default Count configuration.
var DefaultCountOpts = CountOpts{
	SetupDir:        ".",
	CPUs:            1,
	AlignerThreads:  2,
	OutDir:          ".",
	UniqueCounter:   CounterBedtools,
	CountInputReads: true,
}

func (o *CountOpts) validate() error {
	for _, f := range []struct{ name, value string }{
		{"annotation", o.AnnotationPath},
		{"setup-dir", o.SetupDir},
		{"alignment-bam", o.AlignmentBAM},
		{"fastq", o.FASTQ},
	} {
		if err := requireFlag(f.name, f.value); err != nil {
			return err
		}
	}
	if o.UniqueCounter != CounterBedtools && o.UniqueCounter != CounterNative {
		return errors.E(errors.Invalid, fmt.Sprintf("-unique-counter must be %s or %s, not %q",
			CounterBedtools, CounterNative, o.UniqueCounter))
	}
	return nil
}

// Count counts one sample against the elements built by Setup. The tables
// are written only after counting and alignment have succeeded, so those
// failures leave no output; a failure while writing may leave earlier
// tables behind.
func Count(ctx context.Context, opts *CountOpts) error {
	if err := opts.validate(); err != nil {
		return err
	}
	if opts.Runner == nil {
		tools := []string{"bowtie2"}
		if opts.UniqueCounter == CounterBedtools {
			tools = append(tools, "bedtools")
		}
		if err := toolexec.Check(tools...); err != nil {
			return err
		}
	}
	run := runner(opts.Runner)

	records, err := annotation.Load(ctx, opts.AnnotationPath, annotation.Opts{Separator: opts.Separator})
	if err != nil {
		return err
	}
	table, err := annotation.NewElementTable(records, opts.StrictAnnotation)
	if err != nil {
		return errors.E(err, opts.AnnotationPath)
	}

	var counter uniquecount.Counter = uniquecount.Bedtools{Runner: run}
	if opts.UniqueCounter == CounterNative {
		counter = uniquecount.Native{}
	}
	unique, err := counter.Count(ctx, filepath.Join(opts.SetupDir, RepnamesFile), opts.AlignmentBAM, records)
	if err != nil {
		return err
	}
	log.Printf("unique mappers: %d read overlaps with %d annotation rows", unique.Total, len(records))

	var nInput int64 = -1
	if opts.CountInputReads {
		if nInput, err = fastq.Count(ctx, opts.FASTQ, opts.FASTQ2); err != nil {
			return err
		}
	}

	aligner := multimap.Bowtie2{
		Runner:   run,
		IndexDir: opts.SetupDir,
		FASTQ:    opts.FASTQ,
		FASTQ2:   opts.FASTQ2,
		Threads:  opts.AlignerThreads,
	}
	acc, err := multimap.Resolve(ctx, table.Names(), aligner, opts.CPUs)
	if err != nil {
		return err
	}
	result, err := multimap.Apportion(acc)
	if err != nil {
		return err
	}
	classes, families, err := multimap.Rollup(result.Fractions, table)
	if err != nil {
		return err
	}
	if nInput >= 0 {
		log.Printf("multimappers: %d of %d input reads aligned to at least one element, %d groups",
			result.Reads, nInput, len(result.Groups))
	} else {
		log.Printf("multimappers: %d reads aligned to at least one element, %d groups",
			result.Reads, len(result.Groups))
	}

	if err := mkdir(opts.OutDir); err != nil {
		return err
	}
	return report.WriteAll(ctx, opts.OutDir, report.Tables{
		Elements:  table,
		Unique:    unique.ByElement,
		Fractions: result.Fractions,
		Classes:   classes,
		Families:  families,
		Groups:    result.Groups,
	})
}

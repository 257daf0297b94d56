package pipeline

import (
	"context"
	"path/filepath"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/repenrich/annotation"
	"github.com/grailbio/repenrich/encoding/fasta"
	"github.com/grailbio/repenrich/pseudogenome"
	"github.com/grailbio/repenrich/toolexec"
)

// SetupOpts configures Setup.
type SetupOpts struct {
	// AnnotationPath is the RepeatMasker table.
	AnnotationPath string
	// GenomePath is the genome FASTA, optionally gzipped. <GenomePath>.fai is
	// used when present.
	GenomePath string
	// OutDir receives all setup files.
	OutDir string
	Flank  int
	Gap    int
	// CPUs is the number of elements built concurrently.
	CPUs int
	// StrictAnnotation makes class/family conflicts between rows of the same
	// element an error.
	StrictAnnotation bool
	// BuildIndex runs bowtie2-build on every pseudogenome.
	BuildIndex bool
	// IndexGenome writes <GenomePath>.fai when it is missing, so that the
	// genome is read through the index instead of loaded into memory.
	IndexGenome bool
	// Separator is the annotation field separator. Empty means whitespace.
	Separator string

	// Runner runs external tools. Nil means local subprocesses, after
	// checking that the tools are installed.
	Runner toolexec.Runner
}

// DefaultSetupOpts is the default Setup configuration.
var DefaultSetupOpts = SetupOpts{
	OutDir:     ".",
	Flank:      pseudogenome.DefaultOpts.Flank,
	Gap:        pseudogenome.DefaultOpts.Gap,
	CPUs:       1,
	BuildIndex: true,
}

// Setup builds the per-element alignment targets.
func Setup(ctx context.Context, opts *SetupOpts) (err error) {
	if err = requireFlag("annotation", opts.AnnotationPath); err != nil {
		return err
	}
	if err = requireFlag("genome", opts.GenomePath); err != nil {
		return err
	}
	if opts.Flank < 0 || opts.Gap < 0 {
		return errors.E(errors.Invalid, "-flank and -gap must not be negative")
	}
	if opts.Runner == nil && opts.BuildIndex {
		if err = toolexec.Check("bowtie2-build"); err != nil {
			return err
		}
	}

	records, err := annotation.Load(ctx, opts.AnnotationPath, annotation.Opts{Separator: opts.Separator})
	if err != nil {
		return err
	}
	table, err := annotation.NewElementTable(records, opts.StrictAnnotation)
	if err != nil {
		return errors.E(err, opts.AnnotationPath)
	}
	if err = mkdir(opts.OutDir); err != nil {
		return err
	}
	if err = annotation.WriteBED(ctx, filepath.Join(opts.OutDir, RepnamesFile), records); err != nil {
		return err
	}
	if err = annotation.WriteRepeatIDs(ctx, filepath.Join(opts.OutDir, RepeatIDsFile), table); err != nil {
		return err
	}

	if opts.IndexGenome {
		if _, err = fasta.EnsureIndex(ctx, opts.GenomePath); err != nil {
			return err
		}
	}
	genome, err := fasta.Open(ctx, opts.GenomePath)
	if err != nil {
		return err
	}
	defer func() {
		if e := genome.Close(ctx); e != nil && err == nil {
			err = e
		}
	}()

	builder := pseudogenome.Builder{
		Genome: genome,
		Dir:    opts.OutDir,
		Opts:   pseudogenome.Opts{Flank: opts.Flank, Gap: opts.Gap},
	}
	if opts.BuildIndex {
		builder.Indexer = pseudogenome.Bowtie2Indexer{Runner: runner(opts.Runner)}
	}
	groups := annotation.GroupByName(records)
	log.Printf("setup: %d annotation rows, %d elements, flank %d, gap %d",
		len(records), len(groups), opts.Flank, opts.Gap)
	return builder.BuildAll(ctx, groups, opts.CPUs)
}

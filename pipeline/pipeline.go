// Package pipeline runs the two stages of a repeat-element enrichment
// analysis.
//
// Setup, run once per genome and annotation, writes the annotation BED file,
// the element ID list, and one pseudogenome FASTA file plus aligner index
// per repeat element.
//
// Count, run once per sample, counts uniquely mapped reads overlapping each
// element, apportions ambiguous reads across the elements they align to, and
// writes the count tables described in package report.
package pipeline

import (
	"os"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/repenrich/toolexec"
)

// Files written by Setup.
const (
	RepnamesFile  = "repnames.bed"
	RepeatIDsFile = "repeatIDs.txt"
)

// Unique-mapper counter backends.
const (
	CounterBedtools = "bedtools"
	CounterNative   = "native"
)

func runner(r toolexec.Runner) toolexec.Runner {
	if r == nil {
		return toolexec.ExecRunner{}
	}
	return r
}

func requireFlag(name, value string) error {
	if value == "" {
		return errors.E(errors.Invalid, "-"+name+" is required")
	}
	return nil
}

func mkdir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.E(err, "create directory", dir)
	}
	return nil
}

// Process exit codes.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitInvalid     = 2
	ExitToolFailure = 3
)

// ExitCode maps a stage error to a process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case toolexec.IsToolError(err):
		return ExitToolFailure
	case errors.Is(errors.Invalid, err):
		return ExitInvalid
	default:
		return ExitFailure
	}
}

package multimap

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/repenrich/encoding/fastq"
	"github.com/grailbio/repenrich/pseudogenome"
	"github.com/grailbio/repenrich/toolexec"
)

// Aligner aligns the sample's ambiguous reads against one element's
// pseudogenome and returns the distinct IDs of the reads that aligned.
type Aligner interface {
	Align(ctx context.Context, element string) ([]string, error)
}

// Bowtie2 aligns with bowtie2, reporting at most one alignment per read.
type Bowtie2 struct {
	Runner toolexec.Runner
	// IndexDir holds the per-element indexes written by setup.
	IndexDir string
	// FASTQ holds the ambiguous reads. When FASTQ2 is set the reads are
	// paired and FASTQ2 holds the second mates.
	FASTQ, FASTQ2 string
	// Threads is passed to bowtie2 -p.
	Threads int
}

// Args returns the bowtie2 arguments for element.
func (b Bowtie2) Args(element string) []string {
	threads := b.Threads
	if threads < 1 {
		threads = 1
	}
	args := []string{"-k", "1", "-p", strconv.Itoa(threads), "--quiet", "--no-hd", "--no-unal",
		"-x", pseudogenome.IndexPrefix(b.IndexDir, element)}
	if b.FASTQ2 != "" {
		return append(args, "-1", b.FASTQ, "-2", b.FASTQ2)
	}
	return append(args, "-U", b.FASTQ)
}

// Align implements Aligner.
func (b Bowtie2) Align(ctx context.Context, element string) ([]string, error) {
	var ids []string
	cmd := toolexec.Cmd{Name: "bowtie2", Args: b.Args(element)}
	err := toolexec.Stream(ctx, b.Runner, cmd, func(r io.Reader) error {
		var err error
		ids, err = AlignedReadIDs(r, element)
		return err
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

const (
	maxSAMLine   = 64 << 20
	flagUnmapped = 0x4
)

// AlignedReadIDs reads headerless SAM and returns the distinct read IDs of
// mapped records, mate suffixes removed, in order of first appearance. name
// identifies the stream in errors.
func AlignedReadIDs(r io.Reader, name string) ([]string, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), maxSAMLine)
	seen := map[string]struct{}{}
	var ids []string
	for line := 1; sc.Scan(); line++ {
		b := sc.Bytes()
		if len(b) == 0 || b[0] == '@' {
			continue
		}
		fields := bytes.SplitN(b, []byte{'\t'}, 3)
		if len(fields) < 3 {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("%s: SAM line %d: too few fields", name, line))
		}
		flags, err := strconv.Atoi(string(fields[1]))
		if err != nil {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("%s: SAM line %d: bad flag %q", name, line, fields[1]))
		}
		if flags&flagUnmapped != 0 {
			continue
		}
		id := fastq.ReadID(string(fields[0]))
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

// Package fasta reads genome sequences from FASTA files and writes
// pseudogenome FASTA files. See http://www.htslib.org/doc/faidx.html for the
// index format.  A FASTA file consists of named sequences that may be broken
// into lines:
//
// >chr7
// ACGTAC
// GAGGAC
// >chr8
// ACGT
//
// A sequence name is the text after '>' up to the first whitespace, so
// '>chr1 A viral sequence' is named 'chr1'.
package fasta

import (
	"bufio"
	"bytes"
	"io"

	"github.com/pkg/errors"
)

const maxLineLen = 1 << 30

// Fasta is a set of named sequences.
type Fasta interface {
	// Get returns the bases of seqName in the 0-based half-open interval
	// [start, end). An empty interval yields "". Get is thread-safe.
	Get(seqName string, start, end uint64) (string, error)

	// Len returns the length of the sequence.
	Len(seqName string) (uint64, error)

	// SeqNames returns the sequence names in file order.
	SeqNames() []string
}

type memFasta struct {
	seqs     map[string][]byte
	seqNames []string
}

// parseName extracts the sequence name from a header line (without '>').
func parseName(header []byte) ([]byte, bool) {
	fields := bytes.Fields(header)
	if len(fields) == 0 {
		return nil, false
	}
	return fields[0], true
}

// New reads all sequences from r into memory.
func New(r io.Reader) (Fasta, error) {
	f := &memFasta{seqs: make(map[string][]byte)}
	sc := bufio.NewScanner(r)
	sc.Buffer(nil, maxLineLen)
	var (
		name []byte
		seq  []byte
		seen bool
	)
	add := func() error {
		key := string(name)
		if _, ok := f.seqs[key]; ok {
			return errors.Errorf("duplicate sequence name %s", key)
		}
		f.seqs[key] = seq
		f.seqNames = append(f.seqNames, key)
		return nil
	}
	for sc.Scan() {
		line := bytes.TrimRight(sc.Bytes(), "\r")
		if len(line) == 0 {
			continue
		}
		if line[0] == '>' {
			if seen {
				if err := add(); err != nil {
					return nil, err
				}
			}
			n, ok := parseName(line[1:])
			if !ok {
				return nil, errors.Errorf("malformed FASTA header %q", line)
			}
			name, seq, seen = append([]byte(nil), n...), nil, true
			continue
		}
		if !seen {
			return nil, errors.New("malformed FASTA file: sequence data before the first header")
		}
		seq = append(seq, line...)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "couldn't read FASTA data")
	}
	if seen {
		if err := add(); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func checkRange(seqName string, start, end, length uint64) error {
	if end < start {
		return errors.Errorf("invalid query range %d - %d for sequence %s", start, end, seqName)
	}
	if end > length {
		return errors.Errorf("end %d is past end of sequence %s: %d", end, seqName, length)
	}
	return nil
}

// Get implements Fasta.Get().
func (f *memFasta) Get(seqName string, start, end uint64) (string, error) {
	s, ok := f.seqs[seqName]
	if !ok {
		return "", errors.Errorf("sequence not found: %s", seqName)
	}
	if err := checkRange(seqName, start, end, uint64(len(s))); err != nil {
		return "", err
	}
	return string(s[start:end]), nil
}

// Len implements Fasta.Len().
func (f *memFasta) Len(seqName string) (uint64, error) {
	s, ok := f.seqs[seqName]
	if !ok {
		return 0, errors.Errorf("sequence not found: %s", seqName)
	}
	return uint64(len(s)), nil
}

// SeqNames implements Fasta.SeqNames().
func (f *memFasta) SeqNames() []string { return f.seqNames }

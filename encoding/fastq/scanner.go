// Package fastq scans FASTQ read files. It only keeps what the multimapper
// stage needs: read identifiers and a count of records, with structural
// validation of each 4-line record.
package fastq

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

var (
	// ErrShort is returned when a truncated FASTQ file is encountered.
	ErrShort = errors.New("short FASTQ file")
	// ErrInvalid is returned when an invalid FASTQ file is encountered.
	ErrInvalid = errors.New("invalid FASTQ file")
	// ErrDiscordant is returned when two paired FASTQ files disagree on the
	// number or the names of their reads.
	ErrDiscordant = errors.New("discordant FASTQ pairs")
)

const maxLineLen = 16 << 20

// Read is a FASTQ record. Line 3 is validated but not kept.
type Read struct {
	// ID is the normalized read identifier. See ReadID.
	ID   string
	Seq  string
	Qual string
}

// ReadID normalizes a read name from a FASTQ header or a SAM QNAME: a
// leading '@' is dropped, and so is anything from the first whitespace on,
// and a trailing "/1" or "/2" mate suffix. Both mates of a pair map to the
// same ID.
func ReadID(name string) string {
	name = strings.TrimPrefix(name, "@")
	if i := strings.IndexAny(name, " \t"); i >= 0 {
		name = name[:i]
	}
	if n := len(name); n > 2 && name[n-2] == '/' && (name[n-1] == '1' || name[n-1] == '2') {
		name = name[:n-2]
	}
	return name
}

// Scanner reads FASTQ records. Scanners are not threadsafe.
type Scanner struct {
	b   *bufio.Scanner
	err error
	n   int64
}

// NewScanner creates a Scanner reading from r.
func NewScanner(r io.Reader) *Scanner {
	b := bufio.NewScanner(r)
	b.Buffer(nil, maxLineLen)
	return &Scanner{b: b}
}

// line scans the next line. At EOF it reports ErrShort unless eofOK.
func (s *Scanner) line(eofOK bool) ([]byte, bool) {
	if s.b.Scan() {
		return s.b.Bytes(), true
	}
	if s.err = s.b.Err(); s.err == nil {
		if eofOK {
			s.err = io.EOF
		} else {
			s.err = ErrShort
		}
	}
	return nil, false
}

// Scan reads the next record into read. Once Scan returns false, it never
// returns true again; check Err to tell EOF from failure.
func (s *Scanner) Scan(read *Read) bool {
	if s.err != nil {
		return false
	}
	id, ok := s.line(true)
	if !ok {
		return false
	}
	if len(id) == 0 || id[0] != '@' {
		s.err = ErrInvalid
		return false
	}
	read.ID = ReadID(string(id))
	seq, ok := s.line(false)
	if !ok {
		return false
	}
	read.Seq = string(seq)
	plus, ok := s.line(false)
	if !ok {
		return false
	}
	if len(plus) == 0 || plus[0] != '+' {
		s.err = ErrInvalid
		return false
	}
	qual, ok := s.line(false)
	if !ok {
		return false
	}
	read.Qual = string(qual)
	s.n++
	return true
}

// N returns the number of records scanned so far.
func (s *Scanner) N() int64 { return s.n }

// Err returns the scanning error, or nil at a clean EOF.
func (s *Scanner) Err() error {
	if s.err == io.EOF {
		return nil
	}
	return s.err
}

// PairScanner reads mate pairs from two FASTQ streams.
type PairScanner struct {
	r1, r2 *Scanner
	err    error
}

// NewPairScanner creates a PairScanner over the R1 and R2 readers.
func NewPairScanner(r1, r2 io.Reader) *PairScanner {
	return &PairScanner{r1: NewScanner(r1), r2: NewScanner(r2)}
}

// Scan reads the next pair. The two mates must have the same ReadID.
func (p *PairScanner) Scan(r1, r2 *Read) bool {
	if p.err != nil {
		return false
	}
	ok1 := p.r1.Scan(r1)
	ok2 := p.r2.Scan(r2)
	if ok1 != ok2 || (ok1 && r1.ID != r2.ID) {
		p.err = ErrDiscordant
		return false
	}
	return ok1
}

// N returns the number of pairs scanned so far.
func (p *PairScanner) N() int64 { return p.r1.N() }

// Err returns the scanning error, if any.
func (p *PairScanner) Err() error {
	if err := p.r1.Err(); err != nil {
		return err
	}
	if err := p.r2.Err(); err != nil {
		return err
	}
	return p.err
}

package fasta

import (
	"bufio"
	"bytes"
	"io"
	"sync"

	"github.com/grailbio/base/tsv"
	"github.com/pkg/errors"
)

// IndexEntry is one row of a .fai index.
type IndexEntry struct {
	Name string
	// Length is the number of bases in the sequence.
	Length uint64
	// Offset is the byte offset of the first base.
	Offset uint64
	// LineBases is the number of bases per full line.
	LineBases uint64
	// LineWidth is the number of bytes per full line, newline included.
	LineWidth uint64
}

type indexedFasta struct {
	entries  map[string]IndexEntry
	seqNames []string

	mu  sync.Mutex
	r   io.ReadSeeker
	buf []byte
}

// ReadIndex parses a .fai index.
func ReadIndex(index io.Reader) ([]IndexEntry, error) {
	r := tsv.NewReader(index)
	var entries []IndexEntry
	for {
		var e IndexEntry
		if err := r.Read(&e); err != nil {
			if err == io.EOF {
				break
			}
			return nil, errors.Wrap(err, "invalid FASTA index")
		}
		if (e.LineBases == 0 && e.Length != 0) || e.LineWidth < e.LineBases {
			return nil, errors.Errorf("invalid FASTA index line for %s", e.Name)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// NewIndexed creates a Fasta that reads bases from r on demand, using the
// given .fai index. Sequences are not loaded into memory.
func NewIndexed(r io.ReadSeeker, index io.Reader) (Fasta, error) {
	entries, err := ReadIndex(index)
	if err != nil {
		return nil, err
	}
	f := &indexedFasta{entries: make(map[string]IndexEntry, len(entries)), r: r}
	for _, e := range entries {
		f.entries[e.Name] = e
		f.seqNames = append(f.seqNames, e.Name)
	}
	return f, nil
}

// Len implements Fasta.Len().
func (f *indexedFasta) Len(seqName string) (uint64, error) {
	e, ok := f.entries[seqName]
	if !ok {
		return 0, errors.Errorf("sequence not found in index: %s", seqName)
	}
	return e.Length, nil
}

// SeqNames implements Fasta.SeqNames().
func (f *indexedFasta) SeqNames() []string { return f.seqNames }

// byteOffset returns the file offset of base pos of e.
func byteOffset(e IndexEntry, pos uint64) uint64 {
	return e.Offset + (pos/e.LineBases)*e.LineWidth + pos%e.LineBases
}

// Get implements Fasta.Get().
func (f *indexedFasta) Get(seqName string, start, end uint64) (string, error) {
	e, ok := f.entries[seqName]
	if !ok {
		return "", errors.Errorf("sequence not found in index: %s", seqName)
	}
	if err := checkRange(seqName, start, end, e.Length); err != nil {
		return "", err
	}
	if start == end {
		return "", nil
	}
	off := byteOffset(e, start)
	n := byteOffset(e, end-1) + 1 - off

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := f.r.Seek(int64(off), io.SeekStart); err != nil {
		return "", errors.Wrapf(err, "seek %s:%d", seqName, start)
	}
	if uint64(cap(f.buf)) < n {
		f.buf = make([]byte, n)
	}
	f.buf = f.buf[:n]
	if _, err := io.ReadFull(f.r, f.buf); err != nil {
		return "", errors.Wrapf(err, "read %s:%d-%d (bad index?)", seqName, start, end)
	}
	result := make([]byte, 0, end-start)
	for _, b := range f.buf {
		if b != '\n' && b != '\r' {
			result = append(result, b)
		}
	}
	if uint64(len(result)) != end-start {
		return "", errors.Errorf("%s:%d-%d: read %d bases, expect %d (bad index?)",
			seqName, start, end, len(result), end-start)
	}
	return string(result), nil
}

// GenerateIndex writes a .fai index for the FASTA data in "in". The output is
// the format produced by "samtools faidx".
func GenerateIndex(out io.Writer, in io.Reader) error {
	w := tsv.NewWriter(out)
	r := bufio.NewReader(in)
	var (
		cur     IndexEntry
		started bool
		// lastShort is set after a line shorter than LineBases; another
		// sequence line after it breaks the fixed-width layout.
		lastShort bool
		off       uint64
		nSeq      int
	)
	flush := func() error {
		w.WriteString(cur.Name)
		w.WriteInt64(int64(cur.Length))
		w.WriteInt64(int64(cur.Offset))
		w.WriteInt64(int64(cur.LineBases))
		w.WriteInt64(int64(cur.LineWidth))
		return w.EndLine()
	}
	for {
		line, err := r.ReadBytes('\n')
		if err != nil && err != io.EOF {
			return err
		}
		if len(line) == 0 && err == io.EOF {
			break
		}
		lineOff := off
		off += uint64(len(line))
		bases := bytes.TrimRight(line, "\r\n")
		switch {
		case len(bases) > 0 && bases[0] == '>':
			if started {
				if e := flush(); e != nil {
					return e
				}
			}
			name, ok := parseName(bases[1:])
			if !ok {
				return errors.Errorf("malformed FASTA header at byte %d", lineOff)
			}
			cur = IndexEntry{Name: string(name), Offset: off}
			started, lastShort = true, false
			nSeq++
		case len(bases) == 0:
			// Blank lines are only tolerated at sequence ends.
			lastShort = true
		case !started:
			return errors.New("malformed FASTA file: sequence data before the first header")
		default:
			if lastShort {
				return errors.Errorf("%s: irregular line length at byte %d", cur.Name, lineOff)
			}
			if cur.LineBases == 0 {
				cur.LineBases = uint64(len(bases))
				cur.LineWidth = uint64(len(line))
			} else if uint64(len(bases)) > cur.LineBases {
				return errors.Errorf("%s: irregular line length at byte %d", cur.Name, lineOff)
			} else if uint64(len(bases)) < cur.LineBases {
				lastShort = true
			}
			cur.Length += uint64(len(bases))
		}
		if err == io.EOF {
			break
		}
	}
	if nSeq == 0 {
		return errors.New("empty FASTA file")
	}
	if err := flush(); err != nil {
		return err
	}
	return w.Flush()
}

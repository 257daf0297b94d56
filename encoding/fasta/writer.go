package fasta

import (
	"bufio"
	"io"
)

// DefaultLineWidth is the number of bases per line written by Writer.
const DefaultLineWidth = 60

// Writer writes FASTA records with fixed-width sequence lines.
type Writer struct {
	w     *bufio.Writer
	width int
	err   error
}

// NewWriter creates a Writer that wraps sequences at width bases. A
// non-positive width means DefaultLineWidth.
func NewWriter(w io.Writer, width int) *Writer {
	if width <= 0 {
		width = DefaultLineWidth
	}
	return &Writer{w: bufio.NewWriter(w), width: width}
}

// Write appends one record.
func (w *Writer) Write(name, seq string) error {
	w.writeString(">")
	w.writeString(name)
	w.writeString("\n")
	for len(seq) > 0 {
		n := w.width
		if n > len(seq) {
			n = len(seq)
		}
		w.writeString(seq[:n])
		w.writeString("\n")
		seq = seq[n:]
	}
	return w.err
}

func (w *Writer) writeString(s string) {
	if w.err != nil {
		return
	}
	_, w.err = w.w.WriteString(s)
}

// Flush writes buffered data to the underlying writer.
func (w *Writer) Flush() error {
	if w.err != nil {
		return w.err
	}
	return w.w.Flush()
}

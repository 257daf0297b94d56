package annotation

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
)

// Column indexes (0-based) in a RepeatMasker row.
const (
	colChrom       = 4
	colStart       = 5
	colEnd         = 6
	colName        = 9
	colClassFamily = 10
	nCols          = colClassFamily + 1
)

const maxLineLen = 64 << 20

// Record is one genomic copy of a repeat element. Many records share a Name.
type Record struct {
	// Name is the normalized repeat name. See NormalizeName.
	Name  string
	Chrom string
	// Start and End are copied verbatim from the annotation.
	Start, End int
	Class      string
	Family     string
}

// Opts controls annotation parsing.
type Opts struct {
	// Separator delimits fields. Empty splits on runs of whitespace, which is
	// what RepeatMasker tables need. Empty fields produced by repeated
	// separators are dropped.
	Separator string
}

// ParseError reports a malformed record row.
type ParseError struct {
	Path string
	// Line is 1-based.
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, e.Msg)
}

var nameReplacer = strings.NewReplacer("(", "_", ")", "_", "/", "_")

// NormalizeName replaces '(', ')' and '/' in a repeat name with '_'.
func NormalizeName(name string) string {
	return nameReplacer.Replace(name)
}

// ParseClassFamily splits a "class/family" field. A field without '/' is used
// as both the class and the family.
func ParseClassFamily(field string) (class, family string) {
	parts := strings.Split(field, "/")
	if len(parts) < 2 {
		return field, field
	}
	return parts[0], parts[1]
}

func splitFields(line, sep string) []string {
	if sep == "" {
		return strings.Fields(line)
	}
	raw := strings.Split(line, sep)
	fields := raw[:0]
	for _, f := range raw {
		if f = strings.TrimSpace(f); f != "" {
			fields = append(fields, f)
		}
	}
	return fields
}

// isRecordRow reports whether the row's first field is an integer.
func isRecordRow(fields []string) bool {
	if len(fields) == 0 {
		return false
	}
	_, err := strconv.Atoi(fields[0])
	return err == nil
}

// Load reads the annotation table at path. Gzip or other compressed inputs
// are detected by file extension.
func Load(ctx context.Context, path string, opts Opts) (records []Record, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E(err, "open annotation", path)
	}
	defer file.CloseAndReport(ctx, in, &err)
	var r io.Reader = in.Reader(ctx)
	if u, _ := compress.NewReaderPath(r, in.Name()); u != nil {
		r = u
	}
	if records, err = Parse(r, path, opts); err != nil {
		return nil, err
	}
	log.Printf("annotation %s: loaded %d repeat records", path, len(records))
	return records, nil
}

// Parse reads annotation rows from r, in file order. Path is only used in
// error messages.
func Parse(r io.Reader, path string, opts Opts) ([]Record, error) {
	var records []Record
	sc := bufio.NewScanner(r)
	sc.Buffer(nil, maxLineLen)
	lineno := 0
	for sc.Scan() {
		lineno++
		fields := splitFields(sc.Text(), opts.Separator)
		if !isRecordRow(fields) {
			continue
		}
		rec, err := parseRecord(fields)
		if err != nil {
			return nil, errors.E(errors.Invalid, &ParseError{Path: path, Line: lineno, Msg: err.Error()})
		}
		records = append(records, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.E(errors.Invalid, err, "read annotation", path)
	}
	return records, nil
}

func parseRecord(fields []string) (Record, error) {
	if len(fields) < nCols {
		return Record{}, fmt.Errorf("expect at least %d fields, found %d", nCols, len(fields))
	}
	start, err := strconv.Atoi(fields[colStart])
	if err != nil {
		return Record{}, fmt.Errorf("start: %v", err)
	}
	end, err := strconv.Atoi(fields[colEnd])
	if err != nil {
		return Record{}, fmt.Errorf("end: %v", err)
	}
	if start < 0 || end < start {
		return Record{}, fmt.Errorf("invalid interval [%d, %d)", start, end)
	}
	class, family := ParseClassFamily(fields[colClassFamily])
	return Record{
		Name:   NormalizeName(fields[colName]),
		Chrom:  fields[colChrom],
		Start:  start,
		End:    end,
		Class:  class,
		Family: family,
	}, nil
}

// Group is the records of one repeat element, in annotation order.
type Group struct {
	Name    string
	Records []Record
}

// GroupByName groups records by Name. Groups appear in the order their first
// record appears, and records keep their relative annotation order.
func GroupByName(records []Record) []Group {
	index := map[string]int{}
	var groups []Group
	for _, rec := range records {
		i, ok := index[rec.Name]
		if !ok {
			i = len(groups)
			index[rec.Name] = i
			groups = append(groups, Group{Name: rec.Name})
		}
		groups[i].Records = append(groups[i].Records, rec)
	}
	return groups
}

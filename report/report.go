// Package report writes the count tables of a run. Unique-mapper counts and
// fractional multimapper counts are kept in separate tables. Every table is
// sorted by its key, and fractional counts are rounded to two decimals.
package report

import (
	"context"
	"io"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/tsv"
	"github.com/grailbio/repenrich/annotation"
)

// Output file names.
const (
	UniqueFile   = "unique_mapper_counts.tsv"
	FractionFile = "fraction_counts.tsv"
	ClassFile    = "class_fraction_counts.tsv"
	FamilyFile   = "family_fraction_counts.tsv"
	GroupFile    = "multimapper_group_counts.tsv"
)

// Tables holds everything a run reports.
type Tables struct {
	Elements *annotation.ElementTable
	// Unique maps element to unique-mapper count.
	Unique map[string]int64
	// Fractions maps element to fractional multimapper count.
	Fractions map[string]float64
	Classes   map[string]float64
	Families  map[string]float64
	// Groups maps a multimapper group key to its read count.
	Groups map[string]int64
}

// FormatFraction rounds v to two decimals.
func FormatFraction(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }

type uniqueRow struct {
	Element string `tsv:"#element"`
	Count   int64  `tsv:"count"`
}

// elementNames returns the names in table and extra, sorted.
func elementNames(table *annotation.ElementTable, extra []string) []string {
	names := append([]string(nil), table.Names()...)
	for _, k := range extra {
		if _, ok := table.Lookup(k); !ok {
			names = append(names, k)
		}
	}
	sort.Strings(names)
	return names
}

func writeFile(ctx context.Context, path string, fn func(w io.Writer) error) (err error) {
	out, err := file.Create(ctx, path)
	if err != nil {
		return errors.E(err, "create", path)
	}
	defer file.CloseAndReport(ctx, out, &err)
	if err = fn(out.Writer(ctx)); err != nil {
		return errors.E(err, "write", path)
	}
	return nil
}

// WriteUnique writes unique-mapper counts for every annotated element, with
// a "#element\tcount" header.
func WriteUnique(ctx context.Context, path string, table *annotation.ElementTable, counts map[string]int64) error {
	extra := make([]string, 0)
	for k := range counts {
		extra = append(extra, k)
	}
	return writeFile(ctx, path, func(w io.Writer) error {
		rw := tsv.NewRowWriter(w)
		for _, name := range elementNames(table, extra) {
			if err := rw.Write(&uniqueRow{Element: name, Count: counts[name]}); err != nil {
				return err
			}
		}
		return rw.Flush()
	})
}

// WriteFractions writes element, class, family and fractional count for
// every annotated element.
func WriteFractions(ctx context.Context, path string, table *annotation.ElementTable, fractions map[string]float64) error {
	for k := range fractions {
		if _, ok := table.Lookup(k); !ok {
			return errors.E(errors.Invalid, "element", k, "is not in the annotation")
		}
	}
	return writeFile(ctx, path, func(w io.Writer) error {
		tw := tsv.NewWriter(w)
		for _, name := range table.Names() {
			e, _ := table.Lookup(name)
			tw.WriteString(name)
			tw.WriteString(e.Class)
			tw.WriteString(e.Family)
			tw.WriteString(FormatFraction(fractions[name]))
			if err := tw.EndLine(); err != nil {
				return err
			}
		}
		return tw.Flush()
	})
}

// WriteRollup writes key and fractional count, sorted by key.
func WriteRollup(ctx context.Context, path string, m map[string]float64) error {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return writeFile(ctx, path, func(w io.Writer) error {
		tw := tsv.NewWriter(w)
		for _, k := range keys {
			tw.WriteString(k)
			tw.WriteString(FormatFraction(m[k]))
			if err := tw.EndLine(); err != nil {
				return err
			}
		}
		return tw.Flush()
	})
}

// WriteGroups writes multimapper group keys and read counts, sorted by key.
func WriteGroups(ctx context.Context, path string, groups map[string]int64) error {
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return writeFile(ctx, path, func(w io.Writer) error {
		tw := tsv.NewWriter(w)
		for _, k := range keys {
			tw.WriteString(k)
			tw.WriteInt64(groups[k])
			if err := tw.EndLine(); err != nil {
				return err
			}
		}
		return tw.Flush()
	})
}

// WriteAll writes every table into dir.
func WriteAll(ctx context.Context, dir string, t Tables) error {
	if err := WriteUnique(ctx, filepath.Join(dir, UniqueFile), t.Elements, t.Unique); err != nil {
		return err
	}
	if err := WriteFractions(ctx, filepath.Join(dir, FractionFile), t.Elements, t.Fractions); err != nil {
		return err
	}
	if err := WriteRollup(ctx, filepath.Join(dir, ClassFile), t.Classes); err != nil {
		return err
	}
	if err := WriteRollup(ctx, filepath.Join(dir, FamilyFile), t.Families); err != nil {
		return err
	}
	if err := WriteGroups(ctx, filepath.Join(dir, GroupFile), t.Groups); err != nil {
		return err
	}
	log.Printf("wrote count tables to %s", dir)
	return nil
}

package multimap

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/repenrich/annotation"
)

// Result is the apportionment of accumulated reads.
type Result struct {
	// Fractions maps each element to its fractional read count.
	Fractions map[string]float64
	// Groups maps a GroupKey to the number of reads that aligned to exactly
	// that set of elements. Sets whose keys coincide, possible only when
	// names contain commas, share an entry; apportionment keeps them apart.
	Groups map[string]int64
	// Reads is the number of distinct reads that aligned to at least one
	// element.
	Reads int64
}

type group struct {
	members []string // sorted
	n       int64
}

// setKey identifies an element set by its sorted element indexes. Unlike
// GroupKey it cannot collide when names contain commas.
func setKey(set []int) string {
	sorted := append([]int(nil), set...)
	sort.Ints(sorted)
	b := make([]byte, 0, 4*len(sorted))
	for i, e := range sorted {
		if i > 0 {
			b = append(b, ' ')
		}
		b = strconv.AppendInt(b, int64(e), 10)
	}
	return string(b)
}

// lessMembers orders sorted name lists lexicographically, element by element.
func lessMembers(a, b []string) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}

// massTolerance bounds the relative floating-point error of the summed
// fractions.
const massTolerance = 1e-9

// Apportion distributes each read's unit weight evenly over the elements it
// aligned to. The result does not depend on the order in which alignments
// were added.
func Apportion(a *Accumulator) (Result, error) {
	bySet := map[string]*group{}
	for id, set := range a.reads {
		k := setKey(set)
		g, ok := bySet[k]
		if !ok {
			g = &group{members: a.Elements(id)}
			bySet[k] = g
		}
		g.n++
	}
	groups := make([]*group, 0, len(bySet))
	for _, g := range bySet {
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool { return lessMembers(groups[i].members, groups[j].members) })

	r := Result{
		Fractions: make(map[string]float64, len(a.names)),
		Groups:    make(map[string]int64, len(groups)),
	}
	for _, name := range a.names {
		r.Fractions[name] = 0
	}
	// Summing per group in a fixed order keeps the floating-point result stable.
	for _, g := range groups {
		r.Groups[GroupKey(g.members)] += g.n
		r.Reads += g.n
		w := float64(g.n) / float64(len(g.members))
		for _, m := range g.members {
			r.Fractions[m] += w
		}
	}
	if err := checkMass(r); err != nil {
		return Result{}, err
	}
	return r, nil
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func checkMass(r Result) error {
	var total float64
	for _, k := range sortedKeys(r.Fractions) {
		total += r.Fractions[k]
	}
	want := float64(r.Reads)
	if math.Abs(total-want) > massTolerance*math.Max(1, want) {
		return errors.E(errors.Integrity, fmt.Sprintf(
			"fractional mass %g does not match %d aligned reads", total, r.Reads))
	}
	return nil
}

// Rollup sums element fractions by class and by family.
func Rollup(fractions map[string]float64, table *annotation.ElementTable) (classes, families map[string]float64, err error) {
	classes = map[string]float64{}
	families = map[string]float64{}
	for _, name := range sortedKeys(fractions) {
		e, ok := table.Lookup(name)
		if !ok {
			return nil, nil, errors.E(errors.Invalid, "element", name, "is not in the annotation")
		}
		classes[e.Class] += fractions[name]
		families[e.Family] += fractions[name]
	}
	return classes, families, nil
}

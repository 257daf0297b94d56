package multimap

import (
	"sort"
	"strings"
)

// Accumulator maps each read ID to the set of elements it aligned to. It is
// not safe for concurrent use.
type Accumulator struct {
	names []string
	index map[string]int
	reads map[string][]int
}

// NewAccumulator returns an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{index: map[string]int{}, reads: map[string][]int{}}
}

// Add records that each of readIDs aligned to element. Repeated calls are
// idempotent.
func (a *Accumulator) Add(element string, readIDs []string) {
	e, ok := a.index[element]
	if !ok {
		e = len(a.names)
		a.names = append(a.names, element)
		a.index[element] = e
	}
	for _, id := range readIDs {
		set := a.reads[id]
		if !containsInt(set, e) {
			a.reads[id] = append(set, e)
		}
	}
}

func containsInt(s []int, v int) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

// Len returns the number of distinct reads.
func (a *Accumulator) Len() int { return len(a.reads) }

// Elements returns the sorted set of elements read ID aligned to, or nil.
func (a *Accumulator) Elements(readID string) []string {
	set := a.reads[readID]
	if len(set) == 0 {
		return nil
	}
	names := make([]string, len(set))
	for i, e := range set {
		names[i] = a.names[e]
	}
	sort.Strings(names)
	return names
}

// GroupKey returns the canonical key of an element set: the names sorted and
// joined by commas.
func GroupKey(elements []string) string {
	sorted := append([]string(nil), elements...)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}

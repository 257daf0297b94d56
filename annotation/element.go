package annotation

import (
	"fmt"
	"sort"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
)

// Element is a repeat element and the class and family it belongs to.
type Element struct {
	Name, Class, Family string
}

// ElementTable maps repeat element names to their class and family.
type ElementTable struct {
	elems map[string]Element
	names []string // sorted
}

// NewElementTable builds the element table from records.
//
// Records of the same name should agree on class and family. When they don't,
// the last record wins and the conflict is logged; if strict is set, a
// conflict is an errors.Invalid error instead.
func NewElementTable(records []Record, strict bool) (*ElementTable, error) {
	t := &ElementTable{elems: make(map[string]Element)}
	nConflict := 0
	for _, rec := range records {
		e := Element{Name: rec.Name, Class: rec.Class, Family: rec.Family}
		if old, ok := t.elems[rec.Name]; ok {
			if old != e {
				if strict {
					return nil, errors.E(errors.Invalid, fmt.Sprintf(
						"repeat %s: conflicting class/family %s/%s and %s/%s",
						rec.Name, old.Class, old.Family, e.Class, e.Family))
				}
				nConflict++
				log.Debug.Printf("repeat %s: class/family %s/%s replaced by %s/%s",
					rec.Name, old.Class, old.Family, e.Class, e.Family)
			}
		} else {
			t.names = append(t.names, rec.Name)
		}
		t.elems[rec.Name] = e
	}
	sort.Strings(t.names)
	if nConflict > 0 {
		log.Error.Printf("%d annotation rows changed the class/family of an already-seen repeat; the last row wins", nConflict)
	}
	return t, nil
}

// Lookup returns the element with the given name.
func (t *ElementTable) Lookup(name string) (Element, bool) {
	e, ok := t.elems[name]
	return e, ok
}

// Names returns the element names in lexicographic order. The caller must not
// modify the result.
func (t *ElementTable) Names() []string { return t.names }

// Len returns the number of distinct elements.
func (t *ElementTable) Len() int { return len(t.names) }

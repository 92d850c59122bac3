// Package phase provides the phase set type used to identify assemblages.
//
// A Set is kept sorted and free of duplicates so that two sets holding the
// same phases compare equal and render to the same key.
package phase

import (
	"sort"
	"strings"
)

// Set is a sorted, duplicate-free list of phase names.
type Set []string

// NewSet builds a set from the given names, ignoring empty names.
func NewSet(names ...string) Set {
	seen := make(map[string]struct{}, len(names))
	s := make(Set, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		s = append(s, n)
	}
	sort.Strings(s)
	return s
}

// Parse splits a whitespace or comma separated list into a set.
func Parse(s string) Set {
	return NewSet(strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})...)
}

// FromKey is the inverse of Key.
func FromKey(key string) Set {
	return NewSet(strings.Fields(key)...)
}

// Key renders the set as a space separated string usable as a map key.
func (s Set) Key() string {
	return strings.Join(s, " ")
}

func (s Set) String() string {
	return s.Key()
}

// Len returns the number of phases.
func (s Set) Len() int { return len(s) }

// Contains reports whether name is in the set.
func (s Set) Contains(name string) bool {
	i := sort.SearchStrings(s, name)
	return i < len(s) && s[i] == name
}

// Equal reports whether both sets hold the same phases.
func (s Set) Equal(o Set) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if s[i] != o[i] {
			return false
		}
	}
	return true
}

// IsSubset reports whether every phase of s is in o.
func (s Set) IsSubset(o Set) bool {
	for _, n := range s {
		if !o.Contains(n) {
			return false
		}
	}
	return true
}

// Union returns s ∪ o.
func (s Set) Union(o Set) Set {
	all := make([]string, 0, len(s)+len(o))
	all = append(all, s...)
	all = append(all, o...)
	return NewSet(all...)
}

// Minus returns s \ o.
func (s Set) Minus(o Set) Set {
	out := make(Set, 0, len(s))
	for _, n := range s {
		if !o.Contains(n) {
			out = append(out, n)
		}
	}
	return out
}

// Intersect returns s ∩ o.
func (s Set) Intersect(o Set) Set {
	out := make(Set, 0, len(s))
	for _, n := range s {
		if o.Contains(n) {
			out = append(out, n)
		}
	}
	return out
}

// Polymorphs lists phase pairs whose shared topology is degenerate.
var Polymorphs = []Set{
	NewSet("sill", "and"), NewSet("ky", "and"), NewSet("sill", "ky"),
	NewSet("q", "coe"), NewSet("diam", "gph"), NewSet("dio", "o"),
	NewSet("gl", "act"), NewSet("gl", "hb"), NewSet("act", "hb"),
}

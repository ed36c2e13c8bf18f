package stix

import "sort"

// AttackTypes lists the STIX object types present in MITRE ATT&CK bundles.
var AttackTypes = []string{
	"attack-pattern",
	"campaign",
	"course-of-action",
	"identity",
	"intrusion-set",
	"malware",
	"marking-definition",
	"relationship",
	"tool",
	"x-mitre-asset",
	"x-mitre-collection",
	"x-mitre-data-component",
	"x-mitre-data-source",
	"x-mitre-matrix",
	"x-mitre-tactic",
}

// TypeSet is a set of recognized object types.
type TypeSet map[string]struct{}

// NewTypeSet builds a TypeSet from names.
func NewTypeSet(names ...string) TypeSet {
	s := make(TypeSet, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

// Contains reports whether name is in the set.
func (s TypeSet) Contains(name string) bool {
	_, ok := s[name]
	return ok
}

// Sorted returns the members in lexical order.
func (s TypeSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

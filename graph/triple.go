package graph

import (
	"fmt"
	"sort"
	"strings"
)

// Triple is the (source type, relationship type, target type) signature of a
// relationship.
type Triple struct {
	SourceType       string `json:"source_type" yaml:"source_type"`
	RelationshipType string `json:"relationship_type" yaml:"relationship_type"`
	TargetType       string `json:"target_type" yaml:"target_type"`
}

// tripleSep cannot occur in STIX type names or relationship types.
const tripleSep = "|"

// Key returns a stable single-string encoding of the triple.
func (t Triple) Key() string {
	return t.SourceType + tripleSep + t.RelationshipType + tripleSep + t.TargetType
}

// String renders the triple as "source -[relationship]-> target".
func (t Triple) String() string {
	return fmt.Sprintf("%s -[%s]-> %s", t.SourceType, t.RelationshipType, t.TargetType)
}

// Less orders triples by source type, then relationship type, then target type.
func (t Triple) Less(other Triple) bool {
	if t.SourceType != other.SourceType {
		return t.SourceType < other.SourceType
	}
	if t.RelationshipType != other.RelationshipType {
		return t.RelationshipType < other.RelationshipType
	}
	return t.TargetType < other.TargetType
}

// ParseTripleKey decodes a value produced by Triple.Key.
func ParseTripleKey(key string) (Triple, error) {
	parts := strings.Split(key, tripleSep)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return Triple{}, fmt.Errorf("invalid triple key %q", key)
	}
	return Triple{SourceType: parts[0], RelationshipType: parts[1], TargetType: parts[2]}, nil
}

// SortTriples sorts triples in place using Triple.Less.
func SortTriples(triples []Triple) {
	sort.Slice(triples, func(i, j int) bool { return triples[i].Less(triples[j]) })
}

// TripleSet is an immutable set of triples. The zero value is an empty set.
// Operations that "modify" a set return a new one, so a set can be shared
// between concurrent runs without locking.
type TripleSet struct {
	members map[Triple]struct{}
	version string
}

// NewTripleSet builds a set from the given triples.
func NewTripleSet(triples ...Triple) TripleSet {
	members := make(map[Triple]struct{}, len(triples))
	for _, t := range triples {
		members[t] = struct{}{}
	}
	return TripleSet{members: members}
}

// WithVersion returns a copy of the set labelled with a version string, used
// for reporting which allow-list a run used.
func (s TripleSet) WithVersion(version string) TripleSet {
	return TripleSet{members: s.members, version: version}
}

// Version returns the label set by WithVersion.
func (s TripleSet) Version() string {
	return s.version
}

// Len returns the number of triples in the set.
func (s TripleSet) Len() int {
	return len(s.members)
}

// IsEmpty reports whether the set has no members.
func (s TripleSet) IsEmpty() bool {
	return len(s.members) == 0
}

// Contains reports whether t is in the set.
func (s TripleSet) Contains(t Triple) bool {
	_, ok := s.members[t]
	return ok
}

// Sorted returns the members in Triple.Less order.
func (s TripleSet) Sorted() []Triple {
	out := make([]Triple, 0, len(s.members))
	for t := range s.members {
		out = append(out, t)
	}
	SortTriples(out)
	return out
}

// Union returns a new set holding the members of s and the given triples.
// The version label of s is kept.
func (s TripleSet) Union(triples ...Triple) TripleSet {
	members := make(map[Triple]struct{}, len(s.members)+len(triples))
	for t := range s.members {
		members[t] = struct{}{}
	}
	for _, t := range triples {
		members[t] = struct{}{}
	}
	return TripleSet{members: members, version: s.version}
}

// Missing returns, in sorted order and without duplicates, the given triples
// that are not in s.
func (s TripleSet) Missing(triples []Triple) []Triple {
	seen := make(map[Triple]struct{})
	var out []Triple
	for _, t := range triples {
		if s.Contains(t) {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	SortTriples(out)
	return out
}

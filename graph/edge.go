package graph

import "fmt"

// Edge represents a directed, typed relationship between two nodes.
type Edge struct {
	// ID is the relationship's own identifier, if the format has one.
	ID string `json:"id,omitempty"`

	// SourceRef is the id of the source node.
	SourceRef string `json:"source_ref"`

	// TargetRef is the id of the target node.
	TargetRef string `json:"target_ref"`

	// RelationshipType describes the relationship (e.g., "uses", "mitigates").
	RelationshipType string `json:"relationship_type"`

	// Properties holds every attribute of the source object.
	Properties Object `json:"properties,omitempty"`
}

// NewEdge creates a new edge with the specified source, target, and type.
func NewEdge(sourceRef, targetRef, relType string) *Edge {
	return &Edge{
		SourceRef:        sourceRef,
		TargetRef:        targetRef,
		RelationshipType: relType,
		Properties:       make(Object),
	}
}

// EdgeFromObject builds an edge from a normalized object without validating it.
func EdgeFromObject(obj Object) *Edge {
	return &Edge{
		ID:               obj.Str(AttrID),
		SourceRef:        obj.Str(AttrSourceRef),
		TargetRef:        obj.Str(AttrTargetRef),
		RelationshipType: obj.Str(AttrRelationshipType),
		Properties:       obj.Clone(),
	}
}

// WithID sets the edge id and returns the edge for chaining.
func (e *Edge) WithID(id string) *Edge {
	e.ID = id
	return e
}

// IsSelfLoop reports whether the edge points back at its own source.
func (e *Edge) IsSelfLoop() bool {
	return e.SourceRef != "" && e.SourceRef == e.TargetRef
}

// Validate checks that the edge has all required fields and is not a self-loop.
func (e *Edge) Validate() error {
	if e.SourceRef == "" {
		return fmt.Errorf("edge source_ref cannot be empty")
	}
	if e.TargetRef == "" {
		return fmt.Errorf("edge target_ref cannot be empty")
	}
	if e.RelationshipType == "" {
		return fmt.Errorf("edge relationship_type cannot be empty")
	}
	if e.IsSelfLoop() {
		return fmt.Errorf("self-referential edge not allowed: %s", e.SourceRef)
	}
	return nil
}

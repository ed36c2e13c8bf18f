package graph

import "errors"

// Node represents an entity in the knowledge graph.
type Node struct {
	// ID is unique within a batch.
	ID string `json:"id"`

	// Type is drawn from the recognized type set of the source profile.
	Type string `json:"type"`

	// Created, Modified and SpecVersion are the STIX common properties.
	// Empty for formats that do not define them.
	Created     string `json:"created,omitempty"`
	Modified    string `json:"modified,omitempty"`
	SpecVersion string `json:"spec_version,omitempty"`

	// Properties holds every attribute of the source object.
	Properties Object `json:"properties,omitempty"`
}

// NewNode creates a node with the given id and type and an empty property map.
func NewNode(id, nodeType string) *Node {
	return &Node{
		ID:         id,
		Type:       nodeType,
		Properties: make(Object),
	}
}

// NodeFromObject builds a node from a normalized object without validating it.
func NodeFromObject(obj Object) *Node {
	return &Node{
		ID:          obj.Str(AttrID),
		Type:        obj.Str(AttrType),
		Created:     obj.Str(AttrCreated),
		Modified:    obj.Str(AttrModified),
		SpecVersion: obj.Str(AttrSpecVersion),
		Properties:  obj.Clone(),
	}
}

// WithProperty sets a single property and returns the node for method chaining.
func (n *Node) WithProperty(key string, value any) *Node {
	if n.Properties == nil {
		n.Properties = make(Object)
	}
	n.Properties[key] = value
	return n
}

// Validate checks the structural minimum of a node: non-empty id and type.
func (n *Node) Validate() error {
	if n.ID == "" {
		return errors.New("node id cannot be empty")
	}
	if n.Type == "" {
		return errors.New("node type cannot be empty")
	}
	return nil
}

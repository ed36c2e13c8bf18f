package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectAccessors(t *testing.T) {
	obj := Object{"id": "tool--1", "count": 3.0}

	assert.True(t, obj.Has("id"))
	assert.False(t, obj.Has("type"))

	v, ok := obj.Lookup("id")
	assert.True(t, ok)
	assert.Equal(t, "tool--1", v)

	_, ok = obj.Lookup("count")
	assert.False(t, ok, "non-string values are not strings")
	assert.Equal(t, "", obj.Str("missing"))

	clone := obj.Clone()
	clone["id"] = "changed"
	assert.Equal(t, "tool--1", obj["id"])
	assert.Nil(t, Object(nil).Clone())
}

func TestNodeFromObject(t *testing.T) {
	obj := Object{
		"id":           "attack-pattern--12345678-1234-1234-1234-123456789abc",
		"type":         "attack-pattern",
		"created":      "2023-01-01T00:00:00.000Z",
		"spec_version": "2.1",
		"name":         "Phishing",
	}

	node := NodeFromObject(obj)
	assert.Equal(t, obj["id"], node.ID)
	assert.Equal(t, "attack-pattern", node.Type)
	assert.Equal(t, "2023-01-01T00:00:00.000Z", node.Created)
	assert.Equal(t, "2.1", node.SpecVersion)
	assert.Equal(t, "Phishing", node.Properties["name"])
	require.NoError(t, node.Validate())

	assert.EqualError(t, NewNode("", "tool").Validate(), "node id cannot be empty")
	assert.EqualError(t, NewNode("x", "").Validate(), "node type cannot be empty")
}

func TestEdgeValidate(t *testing.T) {
	tests := []struct {
		name    string
		edge    *Edge
		wantErr string
	}{
		{"valid", NewEdge("src-001", "tgt-001", "uses"), ""},
		{"empty source", NewEdge("", "tgt-001", "uses"), "edge source_ref cannot be empty"},
		{"empty target", NewEdge("src-001", "", "uses"), "edge target_ref cannot be empty"},
		{"empty type", NewEdge("src-001", "tgt-001", ""), "edge relationship_type cannot be empty"},
		{"self loop", NewEdge("node-001", "node-001", "uses"), "self-referential edge not allowed: node-001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.edge.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.EqualError(t, err, tt.wantErr)
		})
	}
}

func TestEdgeFromObject(t *testing.T) {
	edge := EdgeFromObject(Object{
		"id":                "relationship--1",
		"type":              "relationship",
		"source_ref":        "a",
		"target_ref":        "b",
		"relationship_type": "uses",
	})

	assert.Equal(t, "relationship--1", edge.ID)
	assert.Equal(t, "a", edge.SourceRef)
	assert.Equal(t, "b", edge.TargetRef)
	assert.Equal(t, "uses", edge.RelationshipType)
	assert.False(t, edge.IsSelfLoop())
	assert.False(t, NewEdge("", "", "uses").IsSelfLoop(), "empty refs are not a self-loop")
}

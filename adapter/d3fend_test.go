package adapter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/njsecure/orbit"
	"github.com/njsecure/orbit/graph"
	"github.com/njsecure/orbit/schema"
)

const testOntology = `{
  "@context": {
    "d3f": "http://d3fend.mitre.org/ontologies/d3fend.owl#",
    "rdfs": "http://www.w3.org/2000/01/rdf-schema#",
    "owl": "http://www.w3.org/2002/07/owl#"
  },
  "@graph": [
    {"@id": "d3f:Detect", "@type": "owl:Class", "rdfs:label": "Detect"},
    {"@id": "d3f:Harden", "@type": "owl:Class", "rdfs:label": "Harden"},
    {"@id": "d3f:DigitalArtifact", "@type": "owl:Class", "rdfs:label": "Digital Artifact"},
    {"@id": "d3f:File", "rdfs:subClassOf": {"@id": "d3f:DigitalArtifact"}, "rdfs:label": "File"},
    {"@id": "d3f:ExecutableFile", "rdfs:subClassOf": [{"@id": "d3f:File"}], "rdfs:label": "Executable File"},
    {
      "@id": "d3f:FileAnalysis",
      "d3f:d3fend-id": "D3-FA",
      "rdfs:label": "File Analysis",
      "d3f:definition": {"@value": "Analyzing files."},
      "d3f:enables": {"@id": "d3f:Detect"},
      "rdfs:subClassOf": [
        {"@id": "d3f:DefensiveTechnique"},
        {"@type": "owl:Restriction", "owl:onProperty": {"@id": "d3f:detects"}, "owl:someValuesFrom": {"@id": "d3f:File"}}
      ]
    },
    {
      "@id": "d3f:ExecutableDenylisting",
      "d3f:d3fend-id": "D3-EDL",
      "d3f:enables": [{"@id": "d3f:Harden"}, {"@id": "d3f:Harden"}],
      "d3f:deprives": "d3f:ExecutableFile"
    },
    {"@id": "d3f:DefensiveTechnique", "@type": "owl:Class"},
    {"@id": "http://example.org/other#Thing", "rdfs:subClassOf": {"@id": "d3f:DigitalArtifact"}}
  ]
}`

func TestD3FENDNormalize(t *testing.T) {
	d := NewD3FEND()

	batch, err := d.Normalize(Raw{Data: []byte(testOntology)})
	require.NoError(t, err)

	var nodes, edges []graph.Object
	for _, obj := range batch {
		if obj.Has(graph.AttrSourceRef) {
			edges = append(edges, obj)
		} else {
			nodes = append(nodes, obj)
		}
	}

	var ids []string
	for _, n := range nodes {
		ids = append(ids, n.Str(graph.AttrID)+"="+n.Str(graph.AttrType))
	}
	assert.Equal(t, []string{
		"d3f:Detect=d3fend-tactic",
		"d3f:Harden=d3fend-tactic",
		"d3f:DigitalArtifact=d3fend-artifact",
		"d3f:File=d3fend-artifact",
		"d3f:ExecutableFile=d3fend-artifact",
		"d3f:FileAnalysis=d3fend-technique",
		"d3f:ExecutableDenylisting=d3fend-technique",
	}, ids)

	fa := nodes[5]
	assert.Equal(t, "File Analysis", fa.Str("name"))
	assert.Equal(t, "D3-FA", fa.Str("d3fend_id"))
	assert.Equal(t, "Analyzing files.", fa.Str("definition"))
	assert.Equal(t, "http://d3fend.mitre.org/ontologies/d3fend.owl#FileAnalysis", fa.Str("iri"))

	var rels []string
	for _, e := range edges {
		rels = append(rels, e.Str(graph.AttrSourceRef)+" "+e.Str(graph.AttrRelationshipType)+" "+e.Str(graph.AttrTargetRef))
	}
	assert.Equal(t, []string{
		"d3f:FileAnalysis enables d3f:Detect",
		"d3f:FileAnalysis detects d3f:File",
		"d3f:ExecutableDenylisting enables d3f:Harden",
		"d3f:ExecutableDenylisting deprives d3f:ExecutableFile",
	}, rels)
}

func TestD3FENDOutputMatchesProfile(t *testing.T) {
	d := NewD3FEND()
	batch, err := d.Normalize(Raw{Data: []byte(testOntology)})
	require.NoError(t, err)

	v := schema.NewValidator(d.Profile())
	for _, obj := range batch {
		out := v.Validate(obj)
		assert.True(t, out.IsValid(), "%v: %v", obj, out.Messages())
	}
}

func TestD3FENDCustomTactics(t *testing.T) {
	d := NewD3FEND(WithD3FENDTactics("Detect"), WithD3FENDRelations("enables"))
	batch, err := d.Normalize(Raw{Data: []byte(testOntology)})
	require.NoError(t, err)

	var tactics, edges int
	for _, obj := range batch {
		if obj.Str(graph.AttrType) == D3FENDTactic {
			tactics++
		}
		if obj.Has(graph.AttrRelationshipType) {
			edges++
			assert.Equal(t, "enables", obj.Str(graph.AttrRelationshipType))
		}
	}
	assert.Equal(t, 1, tactics)
	assert.Equal(t, 2, edges, "Harden is no longer a node but edges still point at it")
}

func TestD3FENDFullIRIs(t *testing.T) {
	doc := `{"@graph": [
	  {"@id": "http://d3fend.mitre.org/ontologies/d3fend.owl#Isolate"},
	  {
	    "@id": "http://d3fend.mitre.org/ontologies/d3fend.owl#NetworkIsolation",
	    "http://d3fend.mitre.org/ontologies/d3fend.owl#d3fend-id": "D3-NI",
	    "http://d3fend.mitre.org/ontologies/d3fend.owl#enables": {"@id": "http://d3fend.mitre.org/ontologies/d3fend.owl#Isolate"}
	  }
	]}`

	batch, err := NewD3FEND().Normalize(Raw{Data: []byte(doc)})
	require.NoError(t, err)
	require.Len(t, batch, 3)
	assert.Equal(t, "d3f:Isolate", batch[0].Str(graph.AttrID))
	assert.Equal(t, "d3f:NetworkIsolation", batch[2].Str(graph.AttrSourceRef))
}

func TestD3FENDNormalizeErrors(t *testing.T) {
	tests := []struct {
		name, data string
	}{
		{"not json", "nope"},
		{"missing graph", `{"@context": {}}`},
		{"graph not array", `{"@graph": "x"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewD3FEND().Normalize(Raw{Data: []byte(tt.data)})
			assert.ErrorIs(t, err, orbit.ErrMalformedSource)
		})
	}
}

func TestD3FENDFetch(t *testing.T) {
	path := writeFile(t, "d3fend.json", testOntology)
	d := NewD3FEND()

	raw, err := d.Fetch(context.Background(), path)
	require.NoError(t, err)

	batch, err := d.Normalize(raw)
	require.NoError(t, err)
	assert.NotEmpty(t, batch)
}

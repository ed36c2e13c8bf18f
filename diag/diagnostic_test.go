package diag

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRefString(t *testing.T) {
	tests := []struct {
		name string
		ref  Ref
		want string
	}{
		{"node", NodeRef(0, "malware--22222222-2222-4222-8222-222222222222"), "malware--22222222-2222-4222-8222-222222222222"},
		{"edge with id", EdgeRef(3, "relationship--1", "a", "b"), "relationship--1 a -> b"},
		{"edge without id", EdgeRef(3, "", "a", ""), "a -> <unset>"},
		{"anonymous object", NodeRef(7, ""), "object[7]"},
		{"run", RunRef(), "run"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.ref.String())
		})
	}
}

func TestKind_IsFatal(t *testing.T) {
	fatal := map[Kind]bool{
		KindConfigurationError: true,
		KindSourceUnavailable:  true,
		KindMalformedSource:    true,
	}
	for _, k := range AllKinds() {
		assert.True(t, k.IsValid(), k)
		assert.Equal(t, fatal[k], k.IsFatal(), k)
	}
	assert.False(t, Kind("Other").IsValid())
}

func TestListCounts(t *testing.T) {
	list := List{
		Errorf(KindSchemaViolation, NodeRef(0, "x"), "bad id"),
		Warnf(KindUnrecognizedTriple, EdgeRef(1, "", "a", "b"), "unknown triple"),
		Errorf(KindDanglingReference, EdgeRef(2, "", "a", "c"), "missing target"),
	}

	assert.True(t, list.HasErrors())
	assert.Equal(t, map[Severity]int{SeverityError: 2, SeverityWarning: 1, SeverityInfo: 0}, list.CountBySeverity())
	assert.Equal(t, map[Kind]int{
		KindSchemaViolation:    1,
		KindUnrecognizedTriple: 1,
		KindDanglingReference:  1,
	}, list.CountByKind())
	assert.Len(t, list.Filter(KindDanglingReference), 1)

	assert.False(t, List{list[1]}.HasErrors())
}

func TestWithConfidenceCopies(t *testing.T) {
	d := Warnf(KindUnrecognizedTriple, EdgeRef(0, "", "a", "b"), "unknown triple")
	annotated := d.WithConfidence(0.8, "plausible")

	assert.Nil(t, d.Confidence, "original must stay unannotated")
	if assert.NotNil(t, annotated.Confidence) {
		assert.InDelta(t, 0.8, *annotated.Confidence, 1e-9)
	}
	assert.Equal(t, "plausible", annotated.Note)
	assert.Contains(t, annotated.String(), "[warning] UnrecognizedTriple a -> b: unknown triple")
}

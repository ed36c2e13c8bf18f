package semantic

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/njsecure/orbit/diag"
	"github.com/njsecure/orbit/graph"
)

func unrecognized(index int, t graph.Triple) diag.Diagnostic {
	return diag.Warnf(diag.KindUnrecognizedTriple, diag.EdgeRef(index, "relationship--x", "a", "b"),
		"unrecognized triple %s", t).WithTriple(t)
}

func TestAnnotator_Annotate(t *testing.T) {
	ctx := context.Background()
	odd := graph.Triple{SourceType: "malware", RelationshipType: "uses", TargetType: "identity"}

	var calls atomic.Int32
	checker := CheckerFunc(func(_ context.Context, tr graph.Triple, source string) (Judgment, error) {
		calls.Add(1)
		assert.Equal(t, "attack", source)
		if tr == odd {
			return Judgment{Plausible: false, Confidence: 0.15, Rationale: "malware does not use identities"}, nil
		}
		return Judgment{Plausible: true, Confidence: 0.9}, nil
	})

	input := diag.List{
		diag.Errorf(diag.KindDanglingReference, diag.EdgeRef(0, "relationship--a", "x", "y"), "unresolved"),
		unrecognized(1, usesMalware),
		unrecognized(2, odd),
		unrecognized(3, usesMalware),
		diag.Warnf(diag.KindUnrecognizedTriple, diag.EdgeRef(4, "relationship--b", "x", "y"), "no triple attached"),
	}

	out := NewAnnotator(checker, WithRateLimit(0, 0)).Annotate(ctx, "attack", input)
	require.Len(t, out, len(input))

	assert.Nil(t, out[0].Confidence)
	require.NotNil(t, out[1].Confidence)
	assert.InDelta(t, 0.9, *out[1].Confidence, 1e-9)
	assert.Equal(t, "plausible", out[1].Note)
	require.NotNil(t, out[2].Confidence)
	assert.InDelta(t, 0.15, *out[2].Confidence, 1e-9)
	assert.Equal(t, "implausible: malware does not use identities", out[2].Note)
	require.NotNil(t, out[3].Confidence)
	assert.Nil(t, out[4].Confidence)

	assert.Equal(t, int32(2), calls.Load(), "each distinct triple is judged once")
	assert.Nil(t, input[1].Confidence, "input is not modified")

	for i := range out {
		assert.Equal(t, input[i].Severity, out[i].Severity)
		assert.Equal(t, input[i].Message, out[i].Message)
	}
}

func TestAnnotator_CheckerFailureIsNonBlocking(t *testing.T) {
	checker := CheckerFunc(func(context.Context, graph.Triple, string) (Judgment, error) {
		return Judgment{}, errors.New("model unavailable")
	})

	input := diag.List{unrecognized(0, usesMalware)}
	out := NewAnnotator(checker).Annotate(context.Background(), "attack", input)

	require.Len(t, out, 1)
	assert.Nil(t, out[0].Confidence)
	assert.Empty(t, out[0].Note)
}

func TestAnnotator_CancelledContext(t *testing.T) {
	var calls atomic.Int32
	checker := CheckerFunc(func(context.Context, graph.Triple, string) (Judgment, error) {
		calls.Add(1)
		return Judgment{Plausible: true, Confidence: 1}, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	input := diag.List{unrecognized(0, usesMalware)}
	out := NewAnnotator(checker, WithRateLimit(1, 1)).Annotate(ctx, "attack", input)

	require.Len(t, out, 1)
	assert.Nil(t, out[0].Confidence)
	assert.Zero(t, calls.Load())
}

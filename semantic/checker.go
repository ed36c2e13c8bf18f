package semantic

import (
	"context"
	"fmt"

	"github.com/njsecure/orbit/graph"
)

// Judgment is a checker's opinion of one triple.
type Judgment struct {
	// Plausible reports whether the relationship makes sense between the two
	// types.
	Plausible bool `json:"plausible"`

	// Confidence is in [0,1].
	Confidence float64 `json:"confidence"`

	// Rationale is a short human-readable explanation.
	Rationale string `json:"rationale"`
}

// Validate checks the confidence range.
func (j Judgment) Validate() error {
	if j.Confidence < 0 || j.Confidence > 1 {
		return fmt.Errorf("confidence %v outside [0,1]", j.Confidence)
	}
	return nil
}

// Note renders the judgment for a diagnostic note.
func (j Judgment) Note() string {
	verdict := "implausible"
	if j.Plausible {
		verdict = "plausible"
	}
	if j.Rationale == "" {
		return verdict
	}
	return verdict + ": " + j.Rationale
}

// Checker judges whether a triple is semantically plausible. context names
// the source the triple was observed in.
type Checker interface {
	Judge(ctx context.Context, triple graph.Triple, context string) (Judgment, error)
}

// CheckerFunc adapts a function to the Checker interface.
type CheckerFunc func(ctx context.Context, triple graph.Triple, context string) (Judgment, error)

// Judge calls f.
func (f CheckerFunc) Judge(ctx context.Context, triple graph.Triple, context string) (Judgment, error) {
	return f(ctx, triple, context)
}

package diag

import (
	"fmt"
	"strings"

	"github.com/njsecure/orbit/graph"
)

// Ref names the entity a diagnostic concerns. Nodes are referenced by id;
// edges by id (when they have one) and their source/target pair.
type Ref struct {
	ID        string `json:"id,omitempty"`
	SourceRef string `json:"source_ref,omitempty"`
	TargetRef string `json:"target_ref,omitempty"`

	// Index is the position of the object in its batch, or -1 when the
	// diagnostic concerns the whole run.
	Index int `json:"index"`
}

// NodeRef references a node by id and batch position.
func NodeRef(index int, id string) Ref {
	return Ref{ID: id, Index: index}
}

// EdgeRef references an edge by id, endpoints and batch position.
func EdgeRef(index int, id, sourceRef, targetRef string) Ref {
	return Ref{ID: id, SourceRef: sourceRef, TargetRef: targetRef, Index: index}
}

// RunRef references the run as a whole.
func RunRef() Ref {
	return Ref{Index: -1}
}

// String renders the reference for humans: the id, the endpoint pair, or both.
func (r Ref) String() string {
	var parts []string
	if r.ID != "" {
		parts = append(parts, r.ID)
	}
	if r.SourceRef != "" || r.TargetRef != "" {
		parts = append(parts, fmt.Sprintf("%s -> %s", orUnset(r.SourceRef), orUnset(r.TargetRef)))
	}
	if len(parts) == 0 {
		if r.Index >= 0 {
			return fmt.Sprintf("object[%d]", r.Index)
		}
		return "run"
	}
	return strings.Join(parts, " ")
}

func orUnset(s string) string {
	if s == "" {
		return "<unset>"
	}
	return s
}

// Diagnostic is an immutable record of one problem found during ingestion.
type Diagnostic struct {
	Severity Severity `json:"severity"`
	Kind     Kind     `json:"kind"`
	Ref      Ref      `json:"ref"`
	Message  string   `json:"message"`

	// Confidence is a supplementary plausibility score in [0,1] attached by
	// the semantic checker to UnrecognizedTriple diagnostics. Nil when absent.
	Confidence *float64 `json:"confidence,omitempty"`

	// Note carries the semantic checker's rationale, if any.
	Note string `json:"note,omitempty"`

	// Triple is the type signature an UnrecognizedTriple diagnostic is about.
	Triple *graph.Triple `json:"triple,omitempty"`
}

// New creates a diagnostic.
func New(severity Severity, kind Kind, ref Ref, message string) Diagnostic {
	return Diagnostic{Severity: severity, Kind: kind, Ref: ref, Message: message}
}

// Errorf creates an error-severity diagnostic with a formatted message.
func Errorf(kind Kind, ref Ref, format string, args ...any) Diagnostic {
	return New(SeverityError, kind, ref, fmt.Sprintf(format, args...))
}

// Warnf creates a warning-severity diagnostic with a formatted message.
func Warnf(kind Kind, ref Ref, format string, args ...any) Diagnostic {
	return New(SeverityWarning, kind, ref, fmt.Sprintf(format, args...))
}

// WithConfidence returns a copy carrying a plausibility score and note.
func (d Diagnostic) WithConfidence(confidence float64, note string) Diagnostic {
	c := confidence
	d.Confidence = &c
	d.Note = note
	return d
}

// WithTriple returns a copy naming the triple it concerns.
func (d Diagnostic) WithTriple(t graph.Triple) Diagnostic {
	d.Triple = &t
	return d
}

// String renders the diagnostic on one line.
func (d Diagnostic) String() string {
	return fmt.Sprintf("[%s] %s %s: %s", d.Severity, d.Kind, d.Ref, d.Message)
}

// List is an ordered collection of diagnostics.
type List []Diagnostic

// HasErrors reports whether any diagnostic has error severity.
func (l List) HasErrors() bool {
	for _, d := range l {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// CountBySeverity returns the number of diagnostics per severity. Every
// severity is present in the map, with zero counts included.
func (l List) CountBySeverity() map[Severity]int {
	counts := make(map[Severity]int, len(severityRanks))
	for _, s := range AllSeverities() {
		counts[s] = 0
	}
	for _, d := range l {
		counts[d.Severity]++
	}
	return counts
}

// CountByKind returns the number of diagnostics per kind, omitting kinds
// that never occurred.
func (l List) CountByKind() map[Kind]int {
	counts := make(map[Kind]int)
	for _, d := range l {
		counts[d.Kind]++
	}
	return counts
}

// Filter returns the diagnostics of the given kind, in order.
func (l List) Filter(kind Kind) List {
	var out List
	for _, d := range l {
		if d.Kind == kind {
			out = append(out, d)
		}
	}
	return out
}

package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/njsecure/orbit/diag"
	"github.com/njsecure/orbit/graph"
)

// runNamespace seeds the UUIDv5 run ids.
var runNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/njsecure/orbit/run"))

// StageTiming is the wall time one stage took.
type StageTiming struct {
	Stage    State         `json:"stage"`
	Duration time.Duration `json:"duration"`
}

// Summary is the metadata of a run.
type Summary struct {
	Source   string `json:"source"`
	Location string `json:"location"`

	// Input is the number of objects the adapter normalized.
	Input int `json:"input"`

	// Rejected is the number of objects the schema validator rejected.
	Rejected int `json:"rejected"`

	// ObjectCounts counts accepted objects per type. Edges without a type
	// property are counted as "relationship".
	ObjectCounts   map[string]int        `json:"object_counts"`
	SeverityCounts map[diag.Severity]int `json:"severity_counts"`
	KindCounts     map[diag.Kind]int     `json:"kind_counts"`

	// AllowListVersion identifies the snapshot the run checked against.
	AllowListVersion string `json:"allow_list_version"`

	// Timings and Learned vary between otherwise identical runs and are left
	// out of the canonical form.
	Timings []StageTiming  `json:"timings"`
	Learned []graph.Triple `json:"learned,omitempty"`
}

// Elapsed sums the stage timings.
func (s Summary) Elapsed() time.Duration {
	var total time.Duration
	for _, t := range s.Timings {
		total += t.Duration
	}
	return total
}

// Result is the output of one run. It is never modified after Run returns.
type Result struct {
	// RunID is a UUIDv5 over the canonical content, so identical runs share
	// an id.
	RunID string `json:"run_id"`

	Source   string `json:"source"`
	Location string `json:"location"`
	State    State  `json:"state"`

	Nodes       []*graph.Node `json:"nodes"`
	Edges       []*graph.Edge `json:"edges"`
	Diagnostics diag.List     `json:"diagnostics"`
	Summary     Summary       `json:"summary"`
}

// IsValid reports whether the run produced no error-severity diagnostics.
func (r *Result) IsValid() bool {
	return !r.Diagnostics.HasErrors()
}

// ObjectCount returns the number of accepted nodes and edges.
func (r *Result) ObjectCount() int {
	return len(r.Nodes) + len(r.Edges)
}

// Aborted reports whether the run ended in the Aborted state.
func (r *Result) Aborted() bool {
	return r.State == StateAborted
}

type canonicalResult struct {
	Source           string                `json:"source"`
	Location         string                `json:"location"`
	State            State                 `json:"state"`
	Nodes            []*graph.Node         `json:"nodes"`
	Edges            []*graph.Edge         `json:"edges"`
	Diagnostics      []canonicalDiagnostic `json:"diagnostics"`
	Input            int                   `json:"input"`
	Rejected         int                   `json:"rejected"`
	ObjectCounts     map[string]int        `json:"object_counts"`
	SeverityCounts   map[diag.Severity]int `json:"severity_counts"`
	KindCounts       map[diag.Kind]int     `json:"kind_counts"`
	AllowListVersion string                `json:"allow_list_version"`
}

// canonicalDiagnostic is a diagnostic without the semantic checker's
// confidence and note, which depend on a model rather than the input.
type canonicalDiagnostic struct {
	Severity diag.Severity `json:"severity"`
	Kind     diag.Kind     `json:"kind"`
	Ref      diag.Ref      `json:"ref"`
	Message  string        `json:"message"`
	Triple   *graph.Triple `json:"triple,omitempty"`
}

// Canonical renders the content of the result as JSON with sorted map keys,
// excluding the run id, timings, learned triples and semantic judgments.
func (r *Result) Canonical() ([]byte, error) {
	nodes, edges := r.Nodes, r.Edges
	if nodes == nil {
		nodes = []*graph.Node{}
	}
	if edges == nil {
		edges = []*graph.Edge{}
	}
	diags := make([]canonicalDiagnostic, len(r.Diagnostics))
	for i, d := range r.Diagnostics {
		diags[i] = canonicalDiagnostic{
			Severity: d.Severity,
			Kind:     d.Kind,
			Ref:      d.Ref,
			Message:  d.Message,
			Triple:   d.Triple,
		}
	}

	return json.Marshal(canonicalResult{
		Source:           r.Source,
		Location:         r.Location,
		State:            r.State,
		Nodes:            nodes,
		Edges:            edges,
		Diagnostics:      diags,
		Input:            r.Summary.Input,
		Rejected:         r.Summary.Rejected,
		ObjectCounts:     r.Summary.ObjectCounts,
		SeverityCounts:   r.Summary.SeverityCounts,
		KindCounts:       r.Summary.KindCounts,
		AllowListVersion: r.Summary.AllowListVersion,
	})
}

// Digest returns the hex SHA-256 of Canonical.
func (r *Result) Digest() (string, error) {
	data, err := r.Canonical()
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// seal fills the counts and the run id.
func (r *Result) seal() error {
	r.Summary.ObjectCounts = make(map[string]int)
	for _, n := range r.Nodes {
		r.Summary.ObjectCounts[n.Type]++
	}
	for _, e := range r.Edges {
		t := e.Properties.Str(graph.AttrType)
		if t == "" {
			t = "relationship"
		}
		r.Summary.ObjectCounts[t]++
	}
	r.Summary.SeverityCounts = r.Diagnostics.CountBySeverity()
	r.Summary.KindCounts = r.Diagnostics.CountByKind()

	data, err := r.Canonical()
	if err != nil {
		return err
	}
	r.RunID = uuid.NewSHA1(runNamespace, data).String()
	return nil
}

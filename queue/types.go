package queue

import (
	"fmt"
	"time"

	"github.com/njsecure/orbit/diag"
	"github.com/njsecure/orbit/ingest"
)

// WorkItem is one ingestion job in a batch.
type WorkItem struct {
	// JobID correlates all work items in a batch.
	JobID string `json:"job_id"`

	// Index is the position of this item in the batch (0-based).
	Index int `json:"index"`

	// Total is the number of items in the batch.
	Total int `json:"total"`

	Source   string         `json:"source"`
	Location string         `json:"location"`
	Options  ingest.Options `json:"options"`

	// TraceID and SpanID link the worker's run to the submitter's trace.
	TraceID string `json:"trace_id,omitempty"`
	SpanID  string `json:"span_id,omitempty"`

	// SubmittedAt is the Unix time in milliseconds when the item was pushed.
	SubmittedAt int64 `json:"submitted_at"`
}

// Result is the outcome of one WorkItem, published on the batch channel.
type Result struct {
	JobID    string `json:"job_id"`
	Index    int    `json:"index"`
	Source   string `json:"source"`
	Location string `json:"location"`

	// RunID, State and the counts summarize the ingest.Result. They are
	// empty when Error is set.
	RunID       string       `json:"run_id,omitempty"`
	State       ingest.State `json:"state,omitempty"`
	Objects     int          `json:"objects"`
	Rejected    int          `json:"rejected"`
	Errors      int          `json:"errors"`
	Warnings    int          `json:"warnings"`
	Digest      string       `json:"digest,omitempty"`
	ResultKey   string       `json:"result_key,omitempty"`
	Error       string       `json:"error,omitempty"`
	WorkerID    string       `json:"worker_id"`
	StartedAt   int64        `json:"started_at"`
	CompletedAt int64        `json:"completed_at"`
}

// IsValid checks that the WorkItem can be executed.
func (w *WorkItem) IsValid() error {
	if w.JobID == "" {
		return fmt.Errorf("job_id is required")
	}
	if w.Index < 0 {
		return fmt.Errorf("index must be non-negative, got %d", w.Index)
	}
	if w.Total <= 0 {
		return fmt.Errorf("total must be positive, got %d", w.Total)
	}
	if w.Index >= w.Total {
		return fmt.Errorf("index %d is out of bounds for total %d", w.Index, w.Total)
	}
	if w.Source == "" {
		return fmt.Errorf("source is required")
	}
	if w.Location == "" {
		return fmt.Errorf("location is required")
	}
	if w.SubmittedAt <= 0 {
		return fmt.Errorf("submitted_at must be positive, got %d", w.SubmittedAt)
	}
	return nil
}

// Age returns the time since the item was submitted.
func (w *WorkItem) Age() time.Duration {
	if w.SubmittedAt <= 0 {
		return 0
	}
	return time.Duration(time.Now().UnixMilli()-w.SubmittedAt) * time.Millisecond
}

// Job returns the ingest job the item describes.
func (w *WorkItem) Job() ingest.Job {
	return ingest.Job{Source: w.Source, Location: w.Location, Options: w.Options}
}

// HasError reports whether the run could not produce a result.
func (r *Result) HasError() bool {
	return r.Error != ""
}

// Aborted reports whether the run ended in the aborted state.
func (r *Result) Aborted() bool {
	return r.State == ingest.StateAborted
}

// Duration returns the time the worker spent on the item.
func (r *Result) Duration() time.Duration {
	if r.StartedAt <= 0 || r.CompletedAt <= 0 {
		return 0
	}
	return time.Duration(r.CompletedAt-r.StartedAt) * time.Millisecond
}

// IsValid checks that the Result is complete.
func (r *Result) IsValid() error {
	if r.JobID == "" {
		return fmt.Errorf("job_id is required")
	}
	if r.Index < 0 {
		return fmt.Errorf("index must be non-negative, got %d", r.Index)
	}
	if r.WorkerID == "" {
		return fmt.Errorf("worker_id is required")
	}
	if r.StartedAt <= 0 {
		return fmt.Errorf("started_at must be positive, got %d", r.StartedAt)
	}
	if r.CompletedAt < r.StartedAt {
		return fmt.Errorf("completed_at (%d) cannot be before started_at (%d)", r.CompletedAt, r.StartedAt)
	}
	if !r.HasError() && r.RunID == "" {
		return fmt.Errorf("run_id is required when error is empty")
	}
	return nil
}

// summarize copies the counts of res into r.
func (r *Result) summarize(res *ingest.Result) error {
	digest, err := res.Digest()
	if err != nil {
		return err
	}
	counts := res.Diagnostics.CountBySeverity()

	r.RunID = res.RunID
	r.State = res.State
	r.Objects = res.ObjectCount()
	r.Rejected = res.Summary.Rejected
	r.Errors = counts[diag.SeverityError]
	r.Warnings = counts[diag.SeverityWarning]
	r.Digest = digest
	return nil
}

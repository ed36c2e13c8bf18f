package queue

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/njsecure/orbit/ingest"
)

// Submit pushes jobs as one batch and returns its job id. Results are
// published on ResultsChannel(jobID); subscribe before submitting to see
// them all, or use Dispatch.
func Submit(ctx context.Context, client Client, queue string, jobs []ingest.Job) (string, error) {
	return submit(ctx, client, queue, uuid.NewString(), jobs)
}

func submit(ctx context.Context, client Client, queue, jobID string, jobs []ingest.Job) (string, error) {
	if len(jobs) == 0 {
		return "", fmt.Errorf("no jobs to submit")
	}

	sc := trace.SpanContextFromContext(ctx)
	now := time.Now().UnixMilli()
	for i, job := range jobs {
		item := WorkItem{
			JobID:       jobID,
			Index:       i,
			Total:       len(jobs),
			Source:      job.Source,
			Location:    job.Location,
			Options:     job.Options,
			SubmittedAt: now,
		}
		if sc.IsValid() {
			item.TraceID = sc.TraceID().String()
			item.SpanID = sc.SpanID().String()
		}
		if err := client.Push(ctx, queue, item); err != nil {
			return "", err
		}
	}
	return jobID, nil
}

// Dispatch submits jobs and waits for all of their results, returned in
// job order. Cancelling ctx stops the wait; items already queued stay queued.
func Dispatch(ctx context.Context, client Client, queue string, jobs []ingest.Job) ([]Result, error) {
	jobID := uuid.NewString()

	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results, err := client.Subscribe(subCtx, ResultsChannel(jobID))
	if err != nil {
		return nil, err
	}
	if _, err := submit(ctx, client, queue, jobID, jobs); err != nil {
		return nil, err
	}
	return Collect(ctx, results, len(jobs))
}

// Collect reads results until total distinct items have arrived, and
// returns them sorted by index.
func Collect(ctx context.Context, results <-chan Result, total int) ([]Result, error) {
	seen := make(map[int]Result, total)
	for len(seen) < total {
		select {
		case <-ctx.Done():
			return sortedResults(seen), fmt.Errorf("waiting for results: %d of %d received: %w", len(seen), total, ctx.Err())
		case r, ok := <-results:
			if !ok {
				return sortedResults(seen), fmt.Errorf("result subscription closed: %d of %d received", len(seen), total)
			}
			seen[r.Index] = r
		}
	}
	return sortedResults(seen), nil
}

func sortedResults(seen map[int]Result) []Result {
	out := make([]Result, 0, len(seen))
	for _, r := range seen {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

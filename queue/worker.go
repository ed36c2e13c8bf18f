package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/njsecure/orbit/ingest"
)

// Runner runs one ingestion. *ingest.Pipeline implements it.
type Runner interface {
	Run(ctx context.Context, source, location string, opts ingest.Options) (*ingest.Result, error)
}

// Defaults for workers.
const (
	DefaultResultTTL         = 24 * time.Hour
	DefaultHeartbeatInterval = 10 * time.Second
)

// Worker pops work items and runs them.
type Worker struct {
	client Client
	runner Runner
	logger *slog.Logger

	id          string
	queue       string
	concurrency int
	resultTTL   time.Duration
	heartbeat   time.Duration
	retryDelay  time.Duration
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithWorkerID sets the id reported in results and heartbeats. The default
// is a random UUID.
func WithWorkerID(id string) WorkerOption {
	return func(w *Worker) {
		if id != "" {
			w.id = id
		}
	}
}

// WithQueue sets the list to pop from.
func WithQueue(name string) WorkerOption {
	return func(w *Worker) {
		if name != "" {
			w.queue = name
		}
	}
}

// WithConcurrency sets how many items are processed at once.
func WithConcurrency(n int) WorkerOption {
	return func(w *Worker) {
		if n > 0 {
			w.concurrency = n
		}
	}
}

// WithResultTTL sets how long full results are kept. Zero keeps them forever.
func WithResultTTL(ttl time.Duration) WorkerOption {
	return func(w *Worker) {
		if ttl >= 0 {
			w.resultTTL = ttl
		}
	}
}

// WithHeartbeatInterval sets how often the worker refreshes its heartbeat.
// The heartbeat expires after three intervals.
func WithHeartbeatInterval(d time.Duration) WorkerOption {
	return func(w *Worker) {
		if d > 0 {
			w.heartbeat = d
		}
	}
}

// WithWorkerLogger sets the logger.
func WithWorkerLogger(logger *slog.Logger) WorkerOption {
	return func(w *Worker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// NewWorker creates a worker that runs items through runner.
func NewWorker(client Client, runner Runner, opts ...WorkerOption) *Worker {
	w := &Worker{
		client:      client,
		runner:      runner,
		logger:      slog.Default(),
		id:          uuid.NewString(),
		queue:       DefaultQueue,
		concurrency: 1,
		resultTTL:   DefaultResultTTL,
		heartbeat:   DefaultHeartbeatInterval,
		retryDelay:  time.Second,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With("worker_id", w.id)
	return w
}

// ID returns the worker id.
func (w *Worker) ID() string { return w.id }

// Run processes items until ctx is cancelled. It returns nil on
// cancellation.
func (w *Worker) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		w.beat(ctx)
		return nil
	})
	for i := 0; i < w.concurrency; i++ {
		g.Go(func() error {
			w.loop(ctx)
			return nil
		})
	}

	w.logger.Info("worker started", "queue", w.queue, "concurrency", w.concurrency)
	err := g.Wait()
	w.logger.Info("worker stopped")
	return err
}

func (w *Worker) beat(ctx context.Context) {
	ticker := time.NewTicker(w.heartbeat)
	defer ticker.Stop()

	for {
		if err := w.client.Heartbeat(ctx, w.id, 3*w.heartbeat); err != nil && ctx.Err() == nil {
			w.logger.Warn("heartbeat failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w *Worker) loop(ctx context.Context) {
	for ctx.Err() == nil {
		item, err := w.client.Pop(ctx, w.queue)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Warn("failed to pop work item", "queue", w.queue, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.retryDelay):
			}
			continue
		}
		if item == nil {
			continue
		}
		w.Process(ctx, *item)
	}
}

// Process runs one item and publishes its result.
func (w *Worker) Process(ctx context.Context, item WorkItem) Result {
	logger := w.logger.With("job_id", item.JobID, "index", item.Index, "source", item.Source)
	started := time.Now()

	result := Result{
		JobID:     item.JobID,
		Index:     item.Index,
		Source:    item.Source,
		Location:  item.Location,
		WorkerID:  w.id,
		StartedAt: started.UnixMilli(),
	}

	if err := w.execute(linkTrace(ctx, item), item, &result); err != nil {
		result.Error = err.Error()
		logger.Warn("work item failed", "error", err)
	} else {
		logger.Info("work item done",
			"state", result.State,
			"objects", result.Objects,
			"errors", result.Errors,
			"queued", time.Duration(result.StartedAt-item.SubmittedAt)*time.Millisecond)
	}
	result.CompletedAt = time.Now().UnixMilli()

	// The item is already popped, so publish even during shutdown.
	if err := w.client.Publish(context.WithoutCancel(ctx), ResultsChannel(item.JobID), result); err != nil {
		logger.Warn("failed to publish result", "error", err)
	}
	return result
}

func (w *Worker) execute(ctx context.Context, item WorkItem, result *Result) error {
	if err := item.IsValid(); err != nil {
		return fmt.Errorf("invalid work item: %w", err)
	}

	res, err := w.runner.Run(ctx, item.Source, item.Location, item.Options)
	if err != nil {
		return err
	}
	if res == nil {
		return errors.New("runner returned no result")
	}

	if err := result.summarize(res); err != nil {
		return fmt.Errorf("summarize result: %w", err)
	}

	key := ResultKey(item.JobID, item.Index)
	if err := w.client.StoreResult(ctx, key, res, w.resultTTL); err != nil {
		// Keep the summary; ResultKey stays empty.
		w.logger.Warn("failed to store result", "key", key, "error", err)
		return nil
	}
	result.ResultKey = key
	return nil
}

// linkTrace makes the submitter's span the remote parent of the run.
func linkTrace(ctx context.Context, item WorkItem) context.Context {
	traceID, err := trace.TraceIDFromHex(item.TraceID)
	if err != nil {
		return ctx
	}
	spanID, err := trace.SpanIDFromHex(item.SpanID)
	if err != nil {
		return ctx
	}
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	})
	return trace.ContextWithRemoteSpanContext(ctx, sc)
}

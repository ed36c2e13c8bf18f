package ingest

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/njsecure/orbit/diag"
)

const instrumentationName = "github.com/njsecure/orbit/ingest"

// telemetry holds the metric instruments. A nil *telemetry records nothing.
type telemetry struct {
	objects     metric.Int64Counter
	diagnostics metric.Int64Counter
	stage       metric.Float64Histogram
}

func newTelemetry(meter metric.Meter) (*telemetry, error) {
	if meter == nil {
		return nil, nil
	}

	t := &telemetry{}
	var err error

	t.objects, err = meter.Int64Counter(
		"orbit.objects",
		metric.WithDescription("Objects processed per run, by outcome"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create objects counter: %w", err)
	}

	t.diagnostics, err = meter.Int64Counter(
		"orbit.diagnostics",
		metric.WithDescription("Diagnostics emitted, by kind and severity"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create diagnostics counter: %w", err)
	}

	t.stage, err = meter.Float64Histogram(
		"orbit.stage.duration",
		metric.WithDescription("Pipeline stage duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("create stage histogram: %w", err)
	}

	return t, nil
}

func (t *telemetry) recordStage(ctx context.Context, source string, state State, d time.Duration) {
	if t == nil {
		return
	}
	t.stage.Record(ctx, float64(d.Microseconds())/1000, metric.WithAttributes(
		attribute.String("source", source),
		attribute.String("stage", state.String()),
	))
}

func (t *telemetry) recordResult(ctx context.Context, res *Result) {
	if t == nil {
		return
	}

	t.objects.Add(ctx, int64(res.ObjectCount()), metric.WithAttributes(
		attribute.String("source", res.Source),
		attribute.String("outcome", "accepted"),
	))
	if res.Summary.Rejected > 0 {
		t.objects.Add(ctx, int64(res.Summary.Rejected), metric.WithAttributes(
			attribute.String("source", res.Source),
			attribute.String("outcome", "rejected"),
		))
	}

	for _, d := range res.Diagnostics {
		t.diagnostics.Add(ctx, 1, metric.WithAttributes(
			attribute.String("source", res.Source),
			attribute.String("kind", d.Kind.String()),
			attribute.String("severity", d.Severity.String()),
		))
	}
}

// annotateRunSpan sets the summary attributes on the run span.
func annotateRunSpan(span trace.Span, res *Result) {
	span.SetAttributes(
		attribute.String("orbit.run_id", res.RunID),
		attribute.String("orbit.state", res.State.String()),
		attribute.Int("orbit.nodes", len(res.Nodes)),
		attribute.Int("orbit.edges", len(res.Edges)),
		attribute.Int("orbit.diagnostics", len(res.Diagnostics)),
		attribute.Int("orbit.errors", res.Summary.SeverityCounts[diag.SeverityError]),
	)
}

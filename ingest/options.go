package ingest

import (
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/njsecure/orbit"
	"github.com/njsecure/orbit/adapter"
	"github.com/njsecure/orbit/graph"
	"github.com/njsecure/orbit/semantic"
	"github.com/njsecure/orbit/triples"
)

// DefaultFetchTimeout bounds the fetch stage.
const DefaultFetchTimeout = 60 * time.Second

// Options are the per-run switches.
type Options struct {
	// Validate runs every object through the schema validator. When off,
	// objects are converted without checks.
	Validate bool `json:"validate" yaml:"validate"`

	// FailOnInvalid aborts the run with an empty accepted set when any
	// object is rejected by the schema validator.
	FailOnInvalid bool `json:"fail_on_invalid" yaml:"fail_on_invalid"`

	// StrictTriples rejects edges whose triple is not in the allow-list.
	StrictTriples bool `json:"strict_triples" yaml:"strict_triples"`

	// Learn proposes the run's unrecognized triples to the allow-list.
	Learn bool `json:"learn" yaml:"learn"`

	// FetchTimeout bounds the fetch stage. Zero disables the bound.
	FetchTimeout time.Duration `json:"fetch_timeout" yaml:"fetch_timeout"`
}

// DefaultOptions returns validate and fail-on-invalid on, strict triples and
// learning off, and a 60s fetch timeout.
func DefaultOptions() Options {
	return Options{
		Validate:      true,
		FailOnInvalid: true,
		FetchTimeout:  DefaultFetchTimeout,
	}
}

// Check reports options that cannot run.
func (o Options) Check() error {
	if o.FetchTimeout < 0 {
		return orbit.NewConfigurationError("Options.Check",
			fmt.Errorf("%w: fetch timeout must not be negative, got %s", orbit.ErrInvalidConfig, o.FetchTimeout))
	}
	return nil
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithRegistry sets the adapter registry. The default is
// adapter.DefaultRegistry().
func WithRegistry(r *adapter.Registry) Option {
	return func(p *Pipeline) {
		if r != nil {
			p.registry = r
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithLearner reads allow-list snapshots from, and proposes learned triples
// to, a shared learner. It takes precedence over WithAllowList.
func WithLearner(l *triples.Learner) Option {
	return func(p *Pipeline) {
		p.learner = l
	}
}

// WithAllowList uses a fixed allow-list snapshot for every run.
func WithAllowList(set graph.TripleSet) Option {
	return func(p *Pipeline) {
		p.allowList = set
	}
}

// WithAnnotator attaches semantic judgments to unrecognized-triple
// diagnostics.
func WithAnnotator(a *semantic.Annotator) Option {
	return func(p *Pipeline) {
		p.annotator = a
	}
}

// WithConcurrency bounds how many jobs RunAll executes at once.
func WithConcurrency(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithTracerProvider enables run and stage spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(p *Pipeline) {
		if tp != nil {
			p.tracer = tp.Tracer(instrumentationName)
		}
	}
}

// WithMeterProvider enables run metrics.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(p *Pipeline) {
		if mp != nil {
			p.meter = mp.Meter(instrumentationName)
		}
	}
}

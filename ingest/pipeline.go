package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"

	"github.com/njsecure/orbit"
	"github.com/njsecure/orbit/adapter"
	"github.com/njsecure/orbit/diag"
	"github.com/njsecure/orbit/graph"
	"github.com/njsecure/orbit/integrity"
	"github.com/njsecure/orbit/schema"
	"github.com/njsecure/orbit/semantic"
	"github.com/njsecure/orbit/triples"
)

// DefaultConcurrency is the number of jobs RunAll executes at once.
const DefaultConcurrency = 4

// Pipeline runs ingestion jobs. It is safe for concurrent use; runs share
// only the allow-list learner, which synchronizes itself.
type Pipeline struct {
	registry    *adapter.Registry
	logger      *slog.Logger
	learner     *triples.Learner
	allowList   graph.TripleSet
	annotator   *semantic.Annotator
	concurrency int
	tracer      trace.Tracer
	meter       metric.Meter
	telemetry   *telemetry
	now         func() time.Time
}

// NewPipeline creates a Pipeline.
func NewPipeline(opts ...Option) *Pipeline {
	p := &Pipeline{
		logger:      slog.Default(),
		concurrency: DefaultConcurrency,
		tracer:      tracenoop.NewTracerProvider().Tracer(instrumentationName),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.registry == nil {
		p.registry = adapter.DefaultRegistry(adapter.WithLogger(p.logger))
	}

	tel, err := newTelemetry(p.meter)
	if err != nil {
		p.logger.Warn("run metrics disabled", "error", err)
	}
	p.telemetry = tel
	return p
}

// Registry returns the adapter registry.
func (p *Pipeline) Registry() *adapter.Registry {
	return p.registry
}

// Run ingests the data at location through the adapter registered as source.
//
// A Go error is returned only for configuration problems (unknown source,
// invalid options, an unreadable allow-list) and for cancellation. Fetch and
// normalize failures produce an Aborted Result with a single diagnostic.
func (p *Pipeline) Run(ctx context.Context, source, location string, opts Options) (*Result, error) {
	if err := opts.Check(); err != nil {
		return nil, err
	}
	ad, err := p.registry.Get(source)
	if err != nil {
		return nil, err
	}
	if ad.Profile() == nil {
		return nil, orbit.NewConfigurationError("Pipeline.Run",
			fmt.Errorf("%w: adapter %s has no schema profile", orbit.ErrInvalidConfig, source))
	}
	if opts.Learn && p.learner == nil {
		return nil, orbit.NewConfigurationError("Pipeline.Run",
			fmt.Errorf("%w: learning requires a triple store", orbit.ErrInvalidConfig))
	}

	ctx, span := p.tracer.Start(ctx, "orbit.ingest", trace.WithAttributes(
		attribute.String("orbit.source", source),
		attribute.String("orbit.location", location),
	))
	defer span.End()

	res, err := p.execute(ctx, ad, location, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	annotateRunSpan(span, res)
	if res.Aborted() {
		span.SetStatus(codes.Error, "run aborted")
	} else {
		span.SetStatus(codes.Ok, "")
	}
	p.telemetry.recordResult(ctx, res)

	p.logger.Info("ingestion run finished",
		"source", res.Source,
		"run_id", res.RunID,
		"state", res.State,
		"nodes", len(res.Nodes),
		"edges", len(res.Edges),
		"errors", res.Summary.SeverityCounts[diag.SeverityError],
		"warnings", res.Summary.SeverityCounts[diag.SeverityWarning],
		"elapsed", res.Summary.Elapsed())
	return res, nil
}

// run tracks the state of one execution.
type run struct {
	p      *Pipeline
	logger *slog.Logger
	res    *Result
	state  State
	since  time.Time
}

// enter moves the run to next and records the time spent in the current
// stage.
func (r *run) enter(ctx context.Context, next State) {
	if !r.state.CanTransition(next) {
		panic(fmt.Sprintf("ingest: invalid state transition %s -> %s", r.state, next))
	}

	now := r.p.now()
	if r.state != StateIdle {
		d := now.Sub(r.since)
		r.res.Summary.Timings = append(r.res.Summary.Timings, StageTiming{Stage: r.state, Duration: d})
		r.p.telemetry.recordStage(ctx, r.res.Source, r.state, d)
	}

	r.logger.Debug("stage transition", "from", r.state, "to", next)
	r.state = next
	r.since = now
	r.res.State = next
}

// checkpoint enters the next stage unless the context is done.
func (r *run) checkpoint(ctx context.Context, next State) error {
	if err := ctx.Err(); err != nil {
		r.logger.Warn("run cancelled", "before", next, "error", err)
		return fmt.Errorf("ingest %s: cancelled before %s: %w", r.res.Source, next, err)
	}
	r.enter(ctx, next)
	return nil
}

// abort ends the run with an empty accepted set.
func (r *run) abort(ctx context.Context, diags ...diag.Diagnostic) (*Result, error) {
	r.res.Diagnostics = append(r.res.Diagnostics, diags...)
	r.enter(ctx, StateAborted)
	r.logger.Warn("run aborted", "diagnostics", len(r.res.Diagnostics))
	return r.finish()
}

func (r *run) finish() (*Result, error) {
	if r.res.Nodes == nil {
		r.res.Nodes = []*graph.Node{}
	}
	if r.res.Edges == nil {
		r.res.Edges = []*graph.Edge{}
	}
	if r.res.Diagnostics == nil {
		r.res.Diagnostics = diag.List{}
	}
	if err := r.res.seal(); err != nil {
		return nil, &orbit.Error{Op: "Pipeline.Run", Kind: orbit.KindInternal, Err: err}
	}
	return r.res, nil
}

func (p *Pipeline) execute(ctx context.Context, ad adapter.Adapter, location string, opts Options) (*Result, error) {
	source := ad.SourceName()
	r := &run{
		p:      p,
		logger: p.logger.With("source", source, "location", location),
		state:  StateIdle,
		res: &Result{
			Source:   source,
			Location: location,
			State:    StateIdle,
			Summary:  Summary{Source: source, Location: location},
		},
	}

	allowList, err := p.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	r.res.Summary.AllowListVersion = allowList.Version()

	if err := r.checkpoint(ctx, StateFetching); err != nil {
		return nil, err
	}
	raw, err := p.fetch(ctx, ad, location, opts.FetchTimeout)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("ingest %s: cancelled during fetch: %w", source, ctxErr)
		}
		return r.abort(ctx, diag.Errorf(diag.KindSourceUnavailable, diag.RunRef(), "%s", fetchMessage(err, opts.FetchTimeout)))
	}

	if err := r.checkpoint(ctx, StateNormalizing); err != nil {
		return nil, err
	}
	batch, err := p.normalize(ctx, ad, raw)
	if err != nil {
		return r.abort(ctx, diag.Errorf(diag.KindMalformedSource, diag.RunRef(), "%s", err))
	}
	r.res.Summary.Input = len(batch)

	if err := r.checkpoint(ctx, StateValidating); err != nil {
		return nil, err
	}
	part := p.partition(ctx, ad.Profile(), batch, opts.Validate)
	r.res.Summary.Rejected = part.rejected
	if opts.FailOnInvalid && part.rejected > 0 {
		return r.abort(ctx, part.diags...)
	}

	if err := r.checkpoint(ctx, StateCheckingIntegrity); err != nil {
		return nil, err
	}
	out := p.checkIntegrity(ctx, r.logger, part, allowList, opts.StrictTriples)
	integrityDiags := out.Diagnostics
	if p.annotator != nil && len(out.Unrecognized) > 0 {
		integrityDiags = p.annotator.Annotate(ctx, source, integrityDiags)
		// A partly annotated run is not reported as done.
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("ingest %s: cancelled during semantic annotation: %w", source, err)
		}
	}
	if opts.Learn {
		r.res.Summary.Learned = p.learn(ctx, r.logger, allowList, out)
	}

	r.res.Nodes = out.Nodes
	r.res.Edges = out.Edges
	r.res.Diagnostics = append(part.diags, integrityDiags...)
	r.enter(ctx, StateDone)
	return r.finish()
}

// snapshot returns the allow-list for one run.
func (p *Pipeline) snapshot(ctx context.Context) (graph.TripleSet, error) {
	set := p.allowList
	if p.learner != nil {
		var err error
		set, err = p.learner.Snapshot(ctx)
		if err != nil {
			return graph.TripleSet{}, err
		}
	}
	if set.Version() == "" {
		set = set.WithVersion(triples.Version(set.Sorted()))
	}
	return set, nil
}

func (p *Pipeline) fetch(ctx context.Context, ad adapter.Adapter, location string, timeout time.Duration) (adapter.Raw, error) {
	ctx, span := p.tracer.Start(ctx, "orbit.fetch")
	defer span.End()

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	raw, err := ad.Fetch(ctx, location)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return adapter.Raw{}, err
	}
	span.SetAttributes(
		attribute.Int("orbit.bytes", len(raw.Data)),
		attribute.Bool("orbit.cached", raw.Cached),
	)
	return raw, nil
}

func fetchMessage(err error, timeout time.Duration) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Sprintf("fetch timed out after %s: %v", timeout, err)
	}
	return err.Error()
}

func (p *Pipeline) normalize(ctx context.Context, ad adapter.Adapter, raw adapter.Raw) (graph.Batch, error) {
	_, span := p.tracer.Start(ctx, "orbit.normalize")
	defer span.End()

	batch, err := ad.Normalize(raw)
	if err != nil {
		if !errors.Is(err, orbit.ErrMalformedSource) {
			err = orbit.NewMalformedSourceError(ad.SourceName()+".Normalize", err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "normalize failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("orbit.objects", len(batch)))
	return batch, nil
}

// partition is the output of the validating stage.
type partition struct {
	nodes    []integrity.NodeEntry
	edges    []integrity.EdgeEntry
	diags    diag.List
	rejected int
}

func (p *Pipeline) partition(ctx context.Context, profile *schema.Profile, batch graph.Batch, validate bool) partition {
	_, span := p.tracer.Start(ctx, "orbit.validate", trace.WithAttributes(attribute.Bool("orbit.validate", validate)))
	defer span.End()

	v := schema.NewValidator(profile)
	var part partition
	for i, obj := range batch {
		if !validate {
			part.convert(i, obj, v.Classify(obj))
			continue
		}

		out := v.Validate(obj)
		if out.IsValid() {
			part.add(i, out.Node, out.Edge)
			continue
		}
		part.rejected++
		ref := objectRef(i, obj, out.Kind)
		for _, reason := range out.Reasons {
			part.diags = append(part.diags, diag.Errorf(diag.KindSchemaViolation, ref, "%s", reason.Message))
		}
	}

	span.SetAttributes(
		attribute.Int("orbit.accepted", len(part.nodes)+len(part.edges)),
		attribute.Int("orbit.rejected", part.rejected),
	)
	return part
}

func (part *partition) add(i int, n *graph.Node, e *graph.Edge) {
	if n != nil {
		part.nodes = append(part.nodes, integrity.NodeEntry{Index: i, Node: n})
	}
	if e != nil {
		part.edges = append(part.edges, integrity.EdgeEntry{Index: i, Edge: e})
	}
}

// convert trusts the adapter, skipping only objects that cannot form a node
// or edge at all.
func (part *partition) convert(i int, obj graph.Object, kind schema.EntityKind) {
	ref := objectRef(i, obj, kind)
	if kind == schema.KindEdge {
		e := graph.EdgeFromObject(obj)
		if e.SourceRef == "" || e.TargetRef == "" || e.RelationshipType == "" {
			part.diags = append(part.diags, diag.Warnf(diag.KindSchemaViolation, ref,
				"skipped unconvertible relationship: source_ref, target_ref and relationship_type are required"))
			return
		}
		part.add(i, nil, e)
		return
	}

	n := graph.NodeFromObject(obj)
	if err := n.Validate(); err != nil {
		part.diags = append(part.diags, diag.Warnf(diag.KindSchemaViolation, ref, "skipped unconvertible object: %v", err))
		return
	}
	part.add(i, n, nil)
}

func objectRef(i int, obj graph.Object, kind schema.EntityKind) diag.Ref {
	if kind == schema.KindEdge {
		return diag.EdgeRef(i, obj.Str(graph.AttrID), obj.Str(graph.AttrSourceRef), obj.Str(graph.AttrTargetRef))
	}
	return diag.NodeRef(i, obj.Str(graph.AttrID))
}

func (p *Pipeline) checkIntegrity(ctx context.Context, logger *slog.Logger, part partition, allowList graph.TripleSet, strict bool) integrity.Outcome {
	_, span := p.tracer.Start(ctx, "orbit.integrity", trace.WithAttributes(
		attribute.Bool("orbit.strict_triples", strict),
		attribute.Int("orbit.allow_list_size", allowList.Len()),
	))
	defer span.End()

	checker := integrity.NewChecker(
		integrity.WithAllowList(allowList),
		integrity.WithStrict(strict),
		integrity.WithLogger(logger),
	)
	out := checker.CheckEntries(part.nodes, part.edges)

	span.SetAttributes(
		attribute.Int("orbit.edges_kept", len(out.Edges)),
		attribute.Int("orbit.unrecognized", len(out.Unrecognized)),
	)
	return out
}

// learn proposes the run's unrecognized triples. With an empty allow-list
// every observed triple is proposed, seeding the store. Failures are logged
// and do not affect the run.
func (p *Pipeline) learn(ctx context.Context, logger *slog.Logger, allowList graph.TripleSet, out integrity.Outcome) []graph.Triple {
	proposal := out.Unrecognized
	if allowList.IsEmpty() {
		proposal = out.Observed
	}

	added, err := p.learner.Propose(ctx, proposal)
	if err != nil {
		logger.Warn("failed to learn triples", "proposed", len(proposal), "error", err)
		return nil
	}
	return added
}

// Job is one unit of work for RunAll.
type Job struct {
	Source   string  `json:"source" yaml:"source"`
	Location string  `json:"location" yaml:"location"`
	Options  Options `json:"options" yaml:"options"`
}

// JobResult pairs a job with its outcome.
type JobResult struct {
	Job    Job
	Result *Result
	Err    error
}

// RunAll runs jobs concurrently, at most the configured concurrency at a
// time, and returns their outcomes in job order. One job failing does not
// stop the others.
func (p *Pipeline) RunAll(ctx context.Context, jobs []Job) []JobResult {
	results := make([]JobResult, len(jobs))

	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for i, job := range jobs {
		g.Go(func() error {
			res, err := p.Run(ctx, job.Source, job.Location, job.Options)
			results[i] = JobResult{Job: job, Result: res, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

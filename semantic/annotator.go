package semantic

import (
	"context"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/njsecure/orbit/diag"
	"github.com/njsecure/orbit/graph"
)

// Annotator attaches judgments to UnrecognizedTriple diagnostics.
type Annotator struct {
	checker Checker
	limiter *rate.Limiter
	logger  *slog.Logger
}

// AnnotatorOption configures an Annotator.
type AnnotatorOption func(*Annotator)

// WithRateLimit limits checker calls to perSecond with the given burst.
// Non-positive perSecond removes the limit.
func WithRateLimit(perSecond float64, burst int) AnnotatorOption {
	return func(a *Annotator) {
		if perSecond <= 0 {
			a.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		a.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithAnnotatorLogger sets the logger.
func WithAnnotatorLogger(logger *slog.Logger) AnnotatorOption {
	return func(a *Annotator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// NewAnnotator creates an Annotator. The default rate is 5 calls per second.
func NewAnnotator(checker Checker, opts ...AnnotatorOption) *Annotator {
	a := &Annotator{
		checker: checker,
		limiter: rate.NewLimiter(5, 1),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Annotate returns a copy of diags in which every UnrecognizedTriple
// diagnostic carrying a triple has a confidence and note. Each distinct
// triple is judged once. Checker failures leave diagnostics unannotated, and
// a cancelled context stops annotation early.
func (a *Annotator) Annotate(ctx context.Context, source string, diags diag.List) diag.List {
	out := make(diag.List, len(diags))
	copy(out, diags)

	judged := make(map[graph.Triple]*Judgment)
	for i, d := range out {
		if d.Kind != diag.KindUnrecognizedTriple || d.Triple == nil {
			continue
		}
		t := *d.Triple

		j, seen := judged[t]
		if !seen {
			j = a.judge(ctx, t, source)
			if ctx.Err() != nil {
				return out
			}
			judged[t] = j
		}
		if j != nil {
			out[i] = d.WithConfidence(j.Confidence, j.Note())
		}
	}
	return out
}

func (a *Annotator) judge(ctx context.Context, t graph.Triple, source string) *Judgment {
	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			return nil
		}
	}

	j, err := a.checker.Judge(ctx, t, source)
	if err != nil {
		a.logger.Warn("semantic check failed", "triple", t.String(), "error", err)
		return nil
	}

	a.logger.Debug("semantic check",
		"triple", t.String(),
		"plausible", j.Plausible,
		"confidence", j.Confidence)
	return &j
}

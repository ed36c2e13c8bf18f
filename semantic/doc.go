// Package semantic annotates unrecognized-triple diagnostics with a
// plausibility judgment from a language model.
//
// The judgment is advisory. It never changes whether an edge is accepted and
// a failing checker never blocks a run: errors are logged and the diagnostic
// is left as it was. Judgments are cached by triple signature, in memory or
// in Redis, and calls are rate limited.
//
//	model, err := semantic.NewModel(semantic.ModelConfig{Provider: "openai", Model: "gpt-4o-mini", APIKey: key})
//	checker := semantic.NewCachedChecker(semantic.NewLLMChecker(model), semantic.NewMemoryCache())
//	annotator := semantic.NewAnnotator(checker, semantic.WithRateLimit(2, 1))
//	diags = annotator.Annotate(ctx, "attack", diags)
package semantic

package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/njsecure/orbit"
	"github.com/njsecure/orbit/adapter"
	"github.com/njsecure/orbit/ingest"
	"github.com/njsecure/orbit/semantic"
	"github.com/njsecure/orbit/triples"
)

// openStore opens the configured allow-list store.
func (a *app) openStore(ctx context.Context) (triples.Store, error) {
	store, err := triples.Open(ctx, a.cfg.StoreConfig())
	if err != nil {
		return nil, err
	}
	a.logger.Debug("allow-list store opened", "backend", a.cfg.Triples.Backend)
	return store, nil
}

// newAnnotator builds the semantic annotator from the configuration. The
// returned cleanup releases the judgment cache connection.
func (a *app) newAnnotator(ctx context.Context) (*semantic.Annotator, func(), error) {
	sc := a.cfg.Semantic

	model, err := semantic.NewModel(a.cfg.ModelConfig())
	if err != nil {
		return nil, nil, err
	}
	var checker semantic.Checker = semantic.NewLLMChecker(model, semantic.WithMaxRetries(sc.MaxRetries))
	cleanup := func() {}

	if sc.CacheEnabled && !sc.SkipCache {
		var cache semantic.Cache = semantic.NewMemoryCache()
		if sc.CacheRedisURL != "" {
			opts, err := redis.ParseURL(sc.CacheRedisURL)
			if err != nil {
				return nil, nil, orbit.NewConfigurationError("semantic cache",
					fmt.Errorf("%w: parse Redis URL: %w", orbit.ErrInvalidConfig, err))
			}
			client := redis.NewClient(opts)
			if err := client.Ping(ctx).Err(); err != nil {
				_ = client.Close()
				return nil, nil, orbit.NewStorageError("semantic cache", err)
			}
			cache = semantic.NewRedisCache(client, "", sc.CacheTTL)
			cleanup = func() { orbit.CloseWithLog(client, a.logger, "judgment cache") }
		}
		checker = semantic.NewCachedChecker(checker, cache)
	}

	annotator := semantic.NewAnnotator(checker,
		semantic.WithRateLimit(sc.RateLimit, sc.Burst),
		semantic.WithAnnotatorLogger(a.logger),
	)
	a.logger.Debug("semantic checker enabled", "provider", sc.Provider, "model", sc.Model)
	return annotator, cleanup, nil
}

// newPipeline wires a pipeline over the configured adapters.
func (a *app) newPipeline(opts ...ingest.Option) *ingest.Pipeline {
	adapterOpts := append(a.cfg.AdapterOptions(), adapter.WithLogger(a.logger))
	base := []ingest.Option{
		ingest.WithRegistry(adapter.DefaultRegistry(adapterOpts...)),
		ingest.WithLogger(a.logger),
		ingest.WithConcurrency(a.cfg.Pipeline.Concurrency),
	}
	if a.tp != nil {
		base = append(base, ingest.WithTracerProvider(a.tp))
	}
	return ingest.NewPipeline(append(base, opts...)...)
}

// parseJobs turns "source" and "source=location" arguments into jobs. A
// bare source uses its configured location.
func (a *app) parseJobs(args []string, opts ingest.Options) ([]ingest.Job, error) {
	jobs := make([]ingest.Job, 0, len(args))
	for _, arg := range args {
		source, location, _ := strings.Cut(arg, "=")
		source = strings.TrimSpace(source)
		if source == "" {
			return nil, newCLIError(exitConfigError, fmt.Sprintf("invalid source argument %q", arg))
		}
		if location == "" {
			location = a.cfg.Location(source)
		}
		if location == "" {
			return nil, newCLIError(exitConfigError,
				fmt.Sprintf("no location configured for source %q, use %s=<path or URL>", source, source))
		}
		jobs = append(jobs, ingest.Job{Source: source, Location: location, Options: opts})
	}
	return jobs, nil
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/njsecure/orbit"
	"github.com/njsecure/orbit/graphstore"
	"github.com/njsecure/orbit/ingest"
	"github.com/njsecure/orbit/triples"
)

type ingestFlags struct {
	strict       bool
	learn        bool
	noValidate   bool
	keepInvalid  bool
	semantic     bool
	timeout      time.Duration
	outDir       string
	loadNeo4j    bool
	maxDiags     int
	allowAborted bool
	enqueue      bool
	wait         bool
}

func newIngestCmd(a *app) *cobra.Command {
	var f ingestFlags

	cmd := &cobra.Command{
		Use:   "ingest SOURCE[=LOCATION]...",
		Short: "Run sources through validation and integrity checking",
		Long: `Fetch, normalize, validate and integrity-check one or more sources. A bare
source name uses the location from the configuration; SOURCE=LOCATION
overrides it with a file path or http(s) URL. Several sources run
concurrently.

Examples:
  orbit ingest attack
  orbit ingest attack=./enterprise-attack.json --strict
  orbit ingest attack d3fend --learn --out-dir results/
  orbit ingest attack --load-neo4j
  orbit ingest attack d3fend --enqueue --wait`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.wait && !f.enqueue {
				return newCLIError(exitConfigError, "--wait requires --enqueue")
			}
			return a.runIngest(cmd, args, f)
		},
	}

	fl := cmd.Flags()
	fl.BoolVar(&f.strict, "strict", false, "Reject edges whose triple is not in the allow-list")
	fl.BoolVar(&f.learn, "learn", false, "Add unrecognized triples to the allow-list")
	fl.BoolVar(&f.noValidate, "no-validate", false, "Skip schema validation")
	fl.BoolVar(&f.keepInvalid, "keep-invalid", false, "Keep valid objects when some are rejected instead of aborting")
	fl.BoolVar(&f.semantic, "semantic", false, "Score unrecognized triples with the configured language model")
	fl.DurationVar(&f.timeout, "timeout", 0, "Fetch timeout (default from config)")
	fl.StringVar(&f.outDir, "out-dir", "", "Write each result as <source>.json into this directory")
	fl.BoolVar(&f.loadNeo4j, "load-neo4j", false, "Load accepted graphs into Neo4j")
	fl.IntVar(&f.maxDiags, "max-diagnostics", 20, "Diagnostics listed per source in text output (-1 for all)")
	fl.BoolVar(&f.allowAborted, "allow-aborted", false, "Exit successfully even when a run aborts")
	fl.BoolVar(&f.enqueue, "enqueue", false, "Submit the jobs to the work queue instead of running them here")
	fl.BoolVar(&f.wait, "wait", false, "With --enqueue, wait for the workers' results")
	return cmd
}

func (a *app) ingestOptions(cmd *cobra.Command, f ingestFlags) ingest.Options {
	opts := a.cfg.IngestOptions()
	if cmd.Flags().Changed("strict") {
		opts.StrictTriples = f.strict
	}
	if cmd.Flags().Changed("learn") {
		opts.Learn = f.learn
	}
	if f.noValidate {
		opts.Validate = false
	}
	if f.keepInvalid {
		opts.FailOnInvalid = false
	}
	if f.timeout > 0 {
		opts.FetchTimeout = f.timeout
	}
	return opts
}

func (a *app) runIngest(cmd *cobra.Command, args []string, f ingestFlags) error {
	ctx := cmd.Context()

	jobs, err := a.parseJobs(args, a.ingestOptions(cmd, f))
	if err != nil {
		return err
	}

	var results []ingest.JobResult
	if f.enqueue {
		results, err = a.enqueue(cmd, jobs, f.wait)
		if err != nil || !f.wait {
			return err
		}
	} else {
		results, err = a.runLocal(ctx, jobs, f.semantic)
		if err != nil {
			return err
		}
	}

	if f.loadNeo4j {
		if err := a.loadResults(ctx, results); err != nil {
			return err
		}
	}
	if f.outDir != "" {
		if err := writeResults(f.outDir, results); err != nil {
			return err
		}
	}

	p := a.printer(cmd)
	if p.isJSON() {
		if err := p.json(jsonResults(results)); err != nil {
			return err
		}
	} else {
		for _, jr := range results {
			if jr.Err != nil {
				p.warning("%s: %v", jr.Job.Source, jr.Err)
				continue
			}
			if err := p.printResult(jr.Result, f.maxDiags); err != nil {
				return err
			}
		}
	}

	return ingestOutcome(results, f.allowAborted)
}

func (a *app) runLocal(ctx context.Context, jobs []ingest.Job, semantic bool) ([]ingest.JobResult, error) {
	store, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	defer orbit.CloseWithLog(store, a.logger, "allow-list store")

	pipeOpts := []ingest.Option{ingest.WithLearner(triples.NewLearner(store, a.logger))}
	if semantic || a.cfg.Semantic.Enabled {
		annotator, cleanup, err := a.newAnnotator(ctx)
		if err != nil {
			return nil, err
		}
		defer cleanup()
		pipeOpts = append(pipeOpts, ingest.WithAnnotator(annotator))
	}

	results := a.newPipeline(pipeOpts...).RunAll(ctx, jobs)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// ingestOutcome returns the first run error, or an abort error unless
// aborted runs are allowed.
func ingestOutcome(results []ingest.JobResult, allowAborted bool) error {
	var aborted []string
	for _, jr := range results {
		if jr.Err != nil {
			return jr.Err
		}
		if jr.Result.Aborted() {
			aborted = append(aborted, jr.Job.Source)
		}
	}
	if len(aborted) > 0 && !allowAborted {
		return newCLIError(exitRunAborted, fmt.Sprintf("%d run(s) aborted: %v", len(aborted), aborted))
	}
	return nil
}

type jobOutput struct {
	Source   string         `json:"source"`
	Location string         `json:"location"`
	Error    string         `json:"error,omitempty"`
	Result   *ingest.Result `json:"result,omitempty"`
}

func jsonResults(results []ingest.JobResult) []jobOutput {
	out := make([]jobOutput, 0, len(results))
	for _, jr := range results {
		o := jobOutput{Source: jr.Job.Source, Location: jr.Job.Location, Result: jr.Result}
		if jr.Err != nil {
			o.Error = jr.Err.Error()
		}
		out = append(out, o)
	}
	return out
}

func writeResults(dir string, results []ingest.JobResult) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	for _, jr := range results {
		if jr.Result == nil {
			continue
		}
		data, err := json.MarshalIndent(jr.Result, "", "  ")
		if err != nil {
			return fmt.Errorf("encode %s result: %w", jr.Job.Source, err)
		}
		path := filepath.Join(dir, jr.Job.Source+".json")
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	return nil
}

// loadResults loads every completed run into Neo4j.
func (a *app) loadResults(ctx context.Context, results []ingest.JobResult) error {
	loader, err := graphstore.NewNeo4jLoader(ctx, a.cfg.GraphStoreConfig(), a.logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := loader.Close(context.WithoutCancel(ctx)); err != nil {
			a.logger.Warn("failed to close neo4j driver", "error", err)
		}
	}()

	if err := loader.EnsureSchema(ctx); err != nil {
		return err
	}
	for _, jr := range results {
		if jr.Err != nil || jr.Result.Aborted() {
			continue
		}
		stats, err := loader.Load(ctx, jr.Result)
		if err != nil {
			return err
		}
		a.logger.Info("loaded into neo4j",
			"source", jr.Job.Source,
			"nodes_created", stats.NodesCreated,
			"relationships_created", stats.RelationshipsCreated)
	}
	return nil
}

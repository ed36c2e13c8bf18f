package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/njsecure/orbit"
	"github.com/njsecure/orbit/ingest"
	"github.com/njsecure/orbit/queue"
	"github.com/njsecure/orbit/triples"
)

func newWorkerCmd(a *app) *cobra.Command {
	var (
		id          string
		concurrency int
		semantic    bool
	)

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Process queued ingestion jobs",
		Long: `Pop jobs submitted with "orbit ingest --enqueue" from the Redis work queue,
run them, and publish their results. Runs until interrupted.

Examples:
  orbit worker
  orbit worker --concurrency 4 --id ingest-1`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			client, err := a.newQueueClient()
			if err != nil {
				return err
			}
			defer orbit.CloseWithLog(client, a.logger, "work queue")

			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer orbit.CloseWithLog(store, a.logger, "allow-list store")

			pipeOpts := []ingest.Option{ingest.WithLearner(triples.NewLearner(store, a.logger))}
			if semantic || a.cfg.Semantic.Enabled {
				annotator, cleanup, err := a.newAnnotator(ctx)
				if err != nil {
					return err
				}
				defer cleanup()
				pipeOpts = append(pipeOpts, ingest.WithAnnotator(annotator))
			}

			if concurrency <= 0 {
				concurrency = a.cfg.Queue.Workers
			}
			w := queue.NewWorker(client, a.newPipeline(pipeOpts...),
				queue.WithWorkerID(id),
				queue.WithQueue(a.cfg.Queue.Name),
				queue.WithConcurrency(concurrency),
				queue.WithResultTTL(a.cfg.Queue.ResultTTL),
				queue.WithHeartbeatInterval(a.cfg.Queue.Heartbeat),
				queue.WithWorkerLogger(a.logger),
			)
			if p := a.printer(cmd); !p.isJSON() {
				p.info("worker %s listening on %s", w.ID(), a.cfg.Queue.Name)
			}
			return w.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "Worker id (default random)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Jobs processed at once (default from config)")
	cmd.Flags().BoolVar(&semantic, "semantic", false, "Score unrecognized triples with the configured language model")
	return cmd
}

func (a *app) newQueueClient() (*queue.RedisClient, error) {
	client, err := queue.NewRedisClient(a.cfg.QueueOptions())
	if err != nil {
		return nil, err
	}
	a.logger.Debug("work queue connected", "queue", a.cfg.Queue.Name)
	return client, nil
}

// enqueue submits jobs to the work queue. Without wait it prints the job id
// and returns no results.
func (a *app) enqueue(cmd *cobra.Command, jobs []ingest.Job, wait bool) ([]ingest.JobResult, error) {
	ctx := cmd.Context()

	client, err := a.newQueueClient()
	if err != nil {
		return nil, err
	}
	defer orbit.CloseWithLog(client, a.logger, "work queue")

	for i := range jobs {
		jobs[i].Location = absLocation(jobs[i].Location)
	}

	if !wait {
		jobID, err := queue.Submit(ctx, client, a.cfg.Queue.Name, jobs)
		if err != nil {
			return nil, err
		}
		p := a.printer(cmd)
		if p.isJSON() {
			return nil, p.json(map[string]any{"job_id": jobID, "queued": len(jobs)})
		}
		p.success("queued %d job(s) as %s", len(jobs), jobID)
		return nil, nil
	}

	results, err := queue.Dispatch(ctx, client, a.cfg.Queue.Name, jobs)
	if err != nil {
		return nil, err
	}
	return a.fetchResults(ctx, client, jobs, results)
}

// fetchResults loads the full result of each queued job.
func (a *app) fetchResults(ctx context.Context, client queue.Client, jobs []ingest.Job, results []queue.Result) ([]ingest.JobResult, error) {
	out := make([]ingest.JobResult, 0, len(results))
	for _, r := range results {
		jr := ingest.JobResult{Job: jobs[r.Index]}
		switch {
		case r.HasError():
			jr.Err = fmt.Errorf("worker %s: %w", r.WorkerID, errors.New(r.Error))
		case r.ResultKey == "":
			jr.Err = orbit.NewStorageError("ingest.enqueue", fmt.Errorf("worker %s kept no result for %s", r.WorkerID, r.Source))
		default:
			res, err := client.LoadResult(ctx, r.ResultKey)
			if err != nil {
				return nil, err
			}
			jr.Result = res
		}
		a.logger.Debug("queued job finished", "source", r.Source, "worker_id", r.WorkerID, "duration", r.Duration())
		out = append(out, jr)
	}
	return out, nil
}

// absLocation makes relative file paths absolute so workers started
// elsewhere on the same host resolve them.
func absLocation(location string) string {
	if strings.Contains(location, "://") || filepath.IsAbs(location) {
		return location
	}
	abs, err := filepath.Abs(location)
	if err != nil {
		return location
	}
	return abs
}

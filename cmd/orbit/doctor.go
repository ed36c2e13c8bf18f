package main

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/njsecure/orbit"
	"github.com/njsecure/orbit/graphstore"
	"github.com/njsecure/orbit/health"
	"github.com/njsecure/orbit/triples"
)

func newDoctorCmd(a *app) *cobra.Command {
	var checkNeo4j, checkQueue bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check source locations, stores and services",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			report := health.Run(cmd.Context(), a.doctorChecks(checkNeo4j, checkQueue))

			p := a.printer(cmd)
			if p.isJSON() {
				if err := p.json(report); err != nil {
					return err
				}
			} else {
				rows := make([][]string, 0, len(report.Results))
				for _, r := range report.Results {
					rows = append(rows, []string{r.Name, r.Status.Status, r.Status.Message})
				}
				if err := p.table([]string{"Check", "Status", "Message"}, rows); err != nil {
					return err
				}
				switch {
				case report.Overall.IsHealthy():
					p.success("%s", report.Overall.Message)
				default:
					p.warning("%s", report.Overall.Message)
				}
			}

			if report.Overall.IsUnhealthy() {
				return newCLIError(exitUnhealthy, report.Overall.Message)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&checkNeo4j, "neo4j", false, "Also verify the Neo4j connection")
	cmd.Flags().BoolVar(&checkQueue, "queue", false, "Also verify the work queue and list live workers")
	return cmd
}

func (a *app) doctorChecks(checkNeo4j, checkQueue bool) []health.Check {
	var checks []health.Check

	if dir := a.cfg.Sources.CacheDir; dir != "" {
		checks = append(checks, health.Check{
			Name: "cache directory",
			Run:  func(context.Context) health.Status { return health.WritableDirCheck(dir) },
		})
	}

	client := &http.Client{Timeout: 10 * time.Second}
	for _, source := range a.newPipeline().Registry().Names() {
		location := a.cfg.Location(source)
		if location == "" {
			continue
		}
		checks = append(checks, health.Check{
			Name: "source " + source,
			Run: func(ctx context.Context) health.Status {
				if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
					return health.URLCheck(ctx, client, location)
				}
				return health.FileCheck(location)
			},
		})
	}

	checks = append(checks, health.Check{Name: "allow-list store", Run: a.storeCheck})

	if a.cfg.Semantic.Enabled {
		checks = append(checks, health.Check{
			Name: "semantic checker",
			Run: func(ctx context.Context) health.Status {
				if a.cfg.Semantic.Endpoint != "" {
					return health.URLCheck(ctx, client, a.cfg.Semantic.Endpoint)
				}
				return health.Healthy(fmt.Sprintf("%s/%s configured", a.cfg.Semantic.Provider, a.cfg.Semantic.Model))
			},
		})
	}

	if checkNeo4j {
		checks = append(checks, health.Check{Name: "neo4j", Run: a.neo4jCheck})
	}
	if checkQueue {
		checks = append(checks, health.Check{Name: "work queue", Run: a.queueCheck})
	}
	return checks
}

func (a *app) storeCheck(ctx context.Context) health.Status {
	store, err := a.openStore(ctx)
	if err != nil {
		return health.Unhealthy("cannot open allow-list store", map[string]any{"error": err.Error()})
	}
	defer orbit.CloseWithLog(store, a.logger, "allow-list store")

	if p, ok := store.(health.Pinger); ok {
		return health.PingCheck(ctx, a.cfg.Triples.Backend+" store", p)
	}
	if fs, ok := store.(*triples.FileStore); ok {
		return health.WritableDirCheck(filepath.Dir(fs.Path()))
	}
	return health.Healthy(a.cfg.Triples.Backend + " store ready")
}

func (a *app) neo4jCheck(ctx context.Context) health.Status {
	loader, err := graphstore.NewNeo4jLoader(ctx, a.cfg.GraphStoreConfig(), a.logger)
	if err != nil {
		return health.Unhealthy("cannot connect to neo4j", map[string]any{"error": err.Error()})
	}
	defer func() {
		if err := loader.Close(context.WithoutCancel(ctx)); err != nil {
			a.logger.Warn("failed to close neo4j driver", "error", err)
		}
	}()
	return health.PingCheck(ctx, "neo4j", loader)
}

// queueCheck is degraded when the queue is reachable but no worker is alive.
func (a *app) queueCheck(ctx context.Context) health.Status {
	client, err := a.newQueueClient()
	if err != nil {
		return health.Unhealthy("cannot connect to work queue", map[string]any{"error": err.Error()})
	}
	defer orbit.CloseWithLog(client, a.logger, "work queue")

	workers, err := client.Workers(ctx)
	if err != nil {
		return health.Unhealthy("cannot list workers", map[string]any{"error": err.Error()})
	}
	pending, err := client.Len(ctx, a.cfg.Queue.Name)
	if err != nil {
		return health.Unhealthy("cannot read queue length", map[string]any{"error": err.Error()})
	}

	details := map[string]any{"workers": workers, "pending": pending}
	if len(workers) == 0 {
		return health.Degraded(fmt.Sprintf("no live workers, %d job(s) pending", pending), details)
	}
	return health.Status{
		Status:  health.StatusHealthy,
		Message: fmt.Sprintf("%d worker(s), %d job(s) pending", len(workers), pending),
		Details: details,
	}
}

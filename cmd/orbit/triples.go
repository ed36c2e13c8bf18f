package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/njsecure/orbit"
	"github.com/njsecure/orbit/graph"
	"github.com/njsecure/orbit/ingest"
	"github.com/njsecure/orbit/integrity"
	"github.com/njsecure/orbit/triples"
)

func newTriplesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "triples",
		Short: "Manage the relationship allow-list",
	}
	cmd.AddCommand(newTriplesLearnCmd(a), newTriplesListCmd(a))
	return cmd
}

func newTriplesLearnCmd(a *app) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "learn SOURCE[=LOCATION]...",
		Short: "Derive allow-list triples from trusted sources",
		Long: `Ingest trusted sources with schema validation, then add the triple of
every accepted edge whose endpoints resolve to the allow-list.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			opts := a.cfg.IngestOptions()
			opts.Validate = true
			opts.FailOnInvalid = false
			opts.StrictTriples = false
			opts.Learn = false

			jobs, err := a.parseJobs(args, opts)
			if err != nil {
				return err
			}

			// No allow-list: the trusted corpus must not be checked against
			// the list it is about to extend.
			pipeline := a.newPipeline(ingest.WithAllowList(graph.TripleSet{}))

			var learned []graph.Triple
			for _, jr := range pipeline.RunAll(ctx, jobs) {
				if jr.Err != nil {
					return jr.Err
				}
				if jr.Result.Aborted() {
					return newCLIError(exitRunAborted, fmt.Sprintf("%s: run aborted, nothing learned", jr.Job.Source))
				}
				set := integrity.LearnTriples(jr.Result.Nodes, jr.Result.Edges)
				a.logger.Info("derived triples", "source", jr.Job.Source, "triples", set.Len())
				learned = append(learned, set.Sorted()...)
			}
			learned = graph.NewTripleSet(learned...).Sorted()

			p := a.printer(cmd)
			if dryRun {
				return printTriples(p, graph.NewTripleSet(learned...).WithVersion(triples.Version(learned)))
			}

			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer orbit.CloseWithLog(store, a.logger, "allow-list store")

			added, err := triples.NewLearner(store, a.logger).Propose(ctx, learned)
			if err != nil {
				return err
			}

			if p.isJSON() {
				return p.json(map[string]any{"derived": len(learned), "added": added})
			}
			p.success("derived %d triple(s), %d new", len(learned), len(added))
			if len(added) > 0 {
				return p.table([]string{"Source type", "Relationship", "Target type"}, tripleRows(added))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the derived triples without storing them")
	return cmd
}

func newTriplesListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the allow-list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer orbit.CloseWithLog(store, a.logger, "allow-list store")

			set, err := store.Load(ctx)
			if err != nil {
				return err
			}
			return printTriples(a.printer(cmd), set)
		},
	}
}

func printTriples(p printer, set graph.TripleSet) error {
	sorted := set.Sorted()
	if p.isJSON() {
		return p.json(map[string]any{"version": set.Version(), "triples": sorted})
	}
	p.info("allow-list %s: %d triple(s)", set.Version(), len(sorted))
	if len(sorted) == 0 {
		return nil
	}
	return p.table([]string{"Source type", "Relationship", "Target type"}, tripleRows(sorted))
}

func tripleRows(ts []graph.Triple) [][]string {
	rows := make([][]string, 0, len(ts))
	for _, t := range ts {
		rows = append(rows, []string{t.SourceType, t.RelationshipType, t.TargetType})
	}
	return rows
}

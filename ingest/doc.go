// Package ingest runs a source through fetch, normalize, schema validation
// and referential integrity checking, and assembles an immutable Result.
//
// A Pipeline holds the adapter registry and the shared collaborators (the
// allow-list learner, the semantic annotator, telemetry). Each call to Run is
// independent: it reads an allow-list snapshot at the start, executes the
// stages sequentially and proposes learned triples at the end.
//
//	p := ingest.NewPipeline(
//		ingest.WithRegistry(adapter.DefaultRegistry()),
//		ingest.WithLearner(triples.NewLearner(store, logger)),
//	)
//	res, err := p.Run(ctx, "attack", "enterprise-attack.json", ingest.DefaultOptions())
//	if err != nil {
//		return err // configuration error or cancellation
//	}
//	if !res.IsValid() {
//		for _, d := range res.Diagnostics {
//			fmt.Println(d)
//		}
//	}
//
// Fatal source problems (unreachable or malformed data) do not return a Go
// error. They produce an Aborted Result carrying only diagnostics.
package ingest

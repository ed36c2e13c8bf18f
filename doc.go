// Package orbit ingests threat-intelligence sources into validated,
// referentially-sound knowledge-graph entities.
//
// Sources such as MITRE ATT&CK STIX bundles and the D3FEND ontology are
// fetched and normalized by adapters, checked object by object by the schema
// validator, and checked as a batch by the referential integrity checker. The
// pipeline orchestrator sequences these stages and returns one immutable,
// deterministic Result per run.
//
// # Packages
//
//   - adapter: source adapters (attack, d3fend) and their registry
//   - schema: per-object validation with swappable source profiles
//   - integrity: batch-wide referential integrity and triple allow-listing
//   - ingest: the pipeline orchestrator and its Result
//   - triples: persisted allow-list stores and the proposal channel
//   - semantic: optional plausibility annotations for unrecognized triples
//   - graphstore: bulk loading of a Result into Neo4j
//   - config, health: runtime configuration and collaborator health checks
//
// # Errors
//
// Fatal run conditions are reported as *Error values that match the sentinel
// errors in this package:
//
//	res, err := pipeline.Run(ctx, "attack", "enterprise-attack.json", ingest.DefaultOptions())
//	if errors.Is(err, orbit.ErrUnknownSource) {
//		// configuration problem, nothing was fetched
//	}
//
// Recoverable problems never surface as Go errors; they are diagnostics on
// the Result.
package orbit

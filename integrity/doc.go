// Package integrity checks a batch of schema-valid nodes and edges against
// each other.
//
// The checker builds an id-to-type index over the nodes once, then resolves
// every edge through it. Edges whose endpoints do not resolve are dropped
// with exactly one DanglingReference diagnostic; self-loops that slipped past
// schema validation are dropped with a SchemaViolation; and, when an
// allow-list snapshot is configured, each edge's (source type, relationship
// type, target type) triple is looked up in it. Unknown triples are advisory
// by default and fatal for the edge in strict mode.
//
// The checker never aborts a batch. Edges and diagnostics keep input order.
//
//	checker := integrity.NewChecker(
//		integrity.WithAllowList(snapshot),
//		integrity.WithStrict(false),
//	)
//	out := checker.Check(nodes, edges)
//	for _, d := range out.Diagnostics {
//		log.Println(d)
//	}
package integrity

package integrity

import "github.com/njsecure/orbit/graph"

// LearnTriples derives an allow-list from a trusted corpus: the triple of
// every edge whose endpoints both resolve. Self-loops and dangling edges are
// ignored. The corpus is indexed once, so the cost is linear in its size.
func LearnTriples(nodes []*graph.Node, edges []*graph.Edge) graph.TripleSet {
	index := make(map[string]string, len(nodes))
	for _, n := range nodes {
		if n == nil {
			continue
		}
		if _, dup := index[n.ID]; !dup {
			index[n.ID] = n.Type
		}
	}

	var learned []graph.Triple
	for _, e := range edges {
		if e == nil || e.IsSelfLoop() {
			continue
		}
		src, ok1 := index[e.SourceRef]
		tgt, ok2 := index[e.TargetRef]
		if !ok1 || !ok2 {
			continue
		}
		learned = append(learned, graph.Triple{SourceType: src, RelationshipType: e.RelationshipType, TargetType: tgt})
	}

	return graph.NewTripleSet(learned...)
}

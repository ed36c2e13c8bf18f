package integrity

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/njsecure/orbit/diag"
	"github.com/njsecure/orbit/graph"
)

// NodeEntry is a node together with its position in the source batch.
type NodeEntry struct {
	Index int
	Node  *graph.Node
}

// EdgeEntry is an edge together with its position in the source batch.
type EdgeEntry struct {
	Index int
	Edge  *graph.Edge
}

// Outcome is the result of checking one batch.
type Outcome struct {
	// Nodes are the accepted nodes, duplicates removed, in input order.
	Nodes []*graph.Node

	// Edges are the accepted edges in input order.
	Edges []*graph.Edge

	// Diagnostics are ordered by batch position.
	Diagnostics diag.List

	// Observed holds the triple of every resolved edge, sorted and deduplicated.
	Observed []graph.Triple

	// Unrecognized is the subset of Observed missing from the allow-list.
	// Always empty when no allow-list is configured.
	Unrecognized []graph.Triple
}

// Checker validates cross-object references. A Checker holds only immutable
// configuration and is safe for concurrent use.
type Checker struct {
	allowList graph.TripleSet
	strict    bool
	logger    *slog.Logger
}

// NewChecker creates a Checker.
func NewChecker(opts ...Option) *Checker {
	c := &Checker{logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AllowList returns the configured snapshot.
func (c *Checker) AllowList() graph.TripleSet {
	return c.allowList
}

// Strict reports whether unrecognized triples are fatal for their edge.
func (c *Checker) Strict() bool {
	return c.strict
}

// Check validates nodes and edges, using slice positions as batch indices.
func (c *Checker) Check(nodes []*graph.Node, edges []*graph.Edge) Outcome {
	ne := make([]NodeEntry, len(nodes))
	for i, n := range nodes {
		ne[i] = NodeEntry{Index: i, Node: n}
	}
	ee := make([]EdgeEntry, len(edges))
	for i, e := range edges {
		ee[i] = EdgeEntry{Index: len(nodes) + i, Edge: e}
	}
	return c.CheckEntries(ne, ee)
}

// CheckEntries validates positioned nodes and edges.
func (c *Checker) CheckEntries(nodes []NodeEntry, edges []EdgeEntry) Outcome {
	var out Outcome

	index := make(map[string]string, len(nodes))
	for _, entry := range nodes {
		n := entry.Node
		if n == nil {
			continue
		}
		if first, dup := index[n.ID]; dup {
			out.Diagnostics = append(out.Diagnostics, diag.Errorf(
				diag.KindDuplicateNode, diag.NodeRef(entry.Index, n.ID),
				"duplicate node id %s (type %s); first occurrence has type %s", n.ID, n.Type, first))
			continue
		}
		index[n.ID] = n.Type
		out.Nodes = append(out.Nodes, n)
	}

	checkTriples := !c.allowList.IsEmpty()
	observed := make(map[graph.Triple]struct{})

	for _, entry := range edges {
		e := entry.Edge
		if e == nil {
			continue
		}
		ref := diag.EdgeRef(entry.Index, e.ID, e.SourceRef, e.TargetRef)

		srcType, srcOK := index[e.SourceRef]
		tgtType, tgtOK := index[e.TargetRef]
		if !srcOK || !tgtOK {
			out.Diagnostics = append(out.Diagnostics, diag.Errorf(
				diag.KindDanglingReference, ref, "%s", danglingMessage(e, srcOK, tgtOK)))
			continue
		}

		if e.IsSelfLoop() {
			out.Diagnostics = append(out.Diagnostics, diag.Errorf(
				diag.KindSchemaViolation, ref, "self-referential edge not allowed: %s", e.SourceRef))
			continue
		}

		t := graph.Triple{SourceType: srcType, RelationshipType: e.RelationshipType, TargetType: tgtType}
		observed[t] = struct{}{}

		if checkTriples && !c.allowList.Contains(t) {
			if c.strict {
				out.Diagnostics = append(out.Diagnostics, diag.Errorf(
					diag.KindUnrecognizedTriple, ref, "unrecognized triple %s", t).WithTriple(t))
				continue
			}
			out.Diagnostics = append(out.Diagnostics, diag.Warnf(
				diag.KindUnrecognizedTriple, ref, "unrecognized triple %s", t).WithTriple(t))
		}

		out.Edges = append(out.Edges, e)
	}

	out.Observed = make([]graph.Triple, 0, len(observed))
	for t := range observed {
		out.Observed = append(out.Observed, t)
	}
	graph.SortTriples(out.Observed)
	if checkTriples {
		out.Unrecognized = c.allowList.Missing(out.Observed)
	}

	sort.SliceStable(out.Diagnostics, func(i, j int) bool {
		return out.Diagnostics[i].Ref.Index < out.Diagnostics[j].Ref.Index
	})

	c.logger.Debug("integrity check complete",
		"nodes", len(out.Nodes),
		"edges_in", len(edges),
		"edges_out", len(out.Edges),
		"diagnostics", len(out.Diagnostics),
		"unrecognized_triples", len(out.Unrecognized))

	return out
}

func danglingMessage(e *graph.Edge, srcOK, tgtOK bool) string {
	var missing []string
	if !srcOK {
		missing = append(missing, fmt.Sprintf("source_ref %s", e.SourceRef))
	}
	if !tgtOK {
		missing = append(missing, fmt.Sprintf("target_ref %s", e.TargetRef))
	}
	return "unresolved reference: " + strings.Join(missing, ", ")
}

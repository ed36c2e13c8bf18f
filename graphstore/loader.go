package graphstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/njsecure/orbit/graph"
	"github.com/njsecure/orbit/ingest"
)

// Loader writes a Result's accepted nodes and edges to a graph store.
type Loader interface {
	Load(ctx context.Context, res *ingest.Result) (LoadStats, error)
}

// LoadStats summarizes the effect of one load.
type LoadStats struct {
	Statements           int `json:"statements"`
	Nodes                int `json:"nodes"`
	Edges                int `json:"edges"`
	NodesCreated         int `json:"nodes_created"`
	RelationshipsCreated int `json:"relationships_created"`
	PropertiesSet        int `json:"properties_set"`
}

// Statement is one parameterized Cypher statement.
type Statement struct {
	Cypher string
	Params map[string]any
}

// NodeLabel is carried by every loaded node and backs the id constraint.
const NodeLabel = "orbit_node"

// DefaultBatchSize is the number of rows per UNWIND statement.
const DefaultBatchSize = 500

// Plan builds the statements that load res: one MERGE batch per node type,
// then per relationship type, then the run record. Types are visited in
// sorted order and rows keep result order, so the plan is deterministic.
func Plan(res *ingest.Result, batchSize int) []Statement {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	var stmts []Statement

	nodesByLabel := make(map[string][]any)
	for _, n := range res.Nodes {
		label := sanitizeLabel(n.Type)
		nodesByLabel[label] = append(nodesByLabel[label], map[string]any{
			"id":         n.ID,
			"properties": nodeProperties(n),
		})
	}
	for _, label := range sortedKeys(nodesByLabel) {
		cypher := fmt.Sprintf("UNWIND $rows AS row\n"+
			"MERGE (n:%s {id: row.id})\n"+
			"SET n:%s, n += row.properties", NodeLabel, label)
		stmts = appendBatches(stmts, cypher, nodesByLabel[label], batchSize)
	}

	edgesByType := make(map[string][]any)
	for _, e := range res.Edges {
		relType := sanitizeRelationType(e.RelationshipType)
		edgesByType[relType] = append(edgesByType[relType], map[string]any{
			"from_id":    e.SourceRef,
			"to_id":      e.TargetRef,
			"key":        edgeKey(e),
			"properties": normalizeProperties(e.Properties),
		})
	}
	for _, relType := range sortedKeys(edgesByType) {
		cypher := fmt.Sprintf("UNWIND $rows AS row\n"+
			"MATCH (a:%s {id: row.from_id})\n"+
			"MATCH (b:%s {id: row.to_id})\n"+
			"MERGE (a)-[r:%s {key: row.key}]->(b)\n"+
			"SET r += row.properties", NodeLabel, NodeLabel, relType)
		stmts = appendBatches(stmts, cypher, edgesByType[relType], batchSize)
	}

	stmts = append(stmts, Statement{
		Cypher: "MERGE (r:orbit_run {id: $run_id})\n" +
			"SET r.source = $source, r.location = $location, r.nodes = $nodes, r.edges = $edges, r.allow_list_version = $allow_list_version",
		Params: map[string]any{
			"run_id":             res.RunID,
			"source":             res.Source,
			"location":           res.Location,
			"nodes":              int64(len(res.Nodes)),
			"edges":              int64(len(res.Edges)),
			"allow_list_version": res.Summary.AllowListVersion,
		},
	})
	return stmts
}

func appendBatches(stmts []Statement, cypher string, rows []any, size int) []Statement {
	for start := 0; start < len(rows); start += size {
		end := min(start+size, len(rows))
		stmts = append(stmts, Statement{Cypher: cypher, Params: map[string]any{"rows": rows[start:end]}})
	}
	return stmts
}

func sortedKeys(m map[string][]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// edgeKey identifies a relationship for MERGE.
func edgeKey(e *graph.Edge) string {
	if e.ID != "" {
		return e.ID
	}
	return e.SourceRef + "|" + e.RelationshipType + "|" + e.TargetRef
}

func nodeProperties(n *graph.Node) map[string]any {
	props := normalizeProperties(n.Properties)
	props["type"] = n.Type
	return props
}

// normalizeProperties converts decoded JSON values to Neo4j property values.
// Nulls are dropped; maps and mixed lists are stored as JSON strings.
func normalizeProperties(obj graph.Object) map[string]any {
	props := make(map[string]any, len(obj))
	for key, value := range obj {
		if v, ok := normalizeValue(value); ok {
			props[sanitizeProperty(key)] = v
		}
	}
	return props
}

func normalizeValue(value any) (any, bool) {
	switch v := value.(type) {
	case nil:
		return nil, false
	case string, bool, float64, int64, int:
		return v, true
	case []any:
		if homogeneous(v) {
			return v, true
		}
		return marshal(v)
	default:
		return marshal(v)
	}
}

// homogeneous reports whether a list holds primitives of a single type.
func homogeneous(list []any) bool {
	var kind string
	for _, item := range list {
		var k string
		switch item.(type) {
		case string:
			k = "string"
		case bool:
			k = "bool"
		case float64:
			k = "float"
		default:
			return false
		}
		if kind != "" && k != kind {
			return false
		}
		kind = k
	}
	return true
}

func marshal(v any) (any, bool) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, false
	}
	return string(data), true
}

// sanitizeLabel lowercases a node type and replaces characters Cypher
// cannot take in an unquoted label.
func sanitizeLabel(label string) string {
	return sanitize(strings.ToLower(label), func(r rune) bool {
		return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_'
	}, "unknown")
}

// sanitizeRelationType uppercases a relationship type, e.g.
// "subtechnique-of" becomes SUBTECHNIQUE_OF.
func sanitizeRelationType(relType string) string {
	return sanitize(strings.ToUpper(relType), func(r rune) bool {
		return (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_'
	}, "RELATED_TO")
}

func sanitizeProperty(prop string) string {
	return sanitize(strings.ToLower(prop), func(r rune) bool {
		return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_'
	}, "property")
}

func sanitize(s string, allowed func(rune) bool, fallback string) string {
	if s == "" {
		return fallback
	}
	var b strings.Builder
	for _, r := range s {
		if allowed(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	out := b.String()
	if out[0] >= '0' && out[0] <= '9' {
		out = "_" + out
	}
	return out
}

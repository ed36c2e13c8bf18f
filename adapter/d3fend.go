package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/njsecure/orbit"
	"github.com/njsecure/orbit/graph"
	"github.com/njsecure/orbit/schema"
	"github.com/njsecure/orbit/stix"
)

// D3FENDSource is the source name of the D3FEND adapter.
const D3FENDSource = "d3fend"

// D3FEND node types.
const (
	D3FENDTechnique = "d3fend-technique"
	D3FENDTactic    = "d3fend-tactic"
	D3FENDArtifact  = "d3fend-artifact"
)

// D3FEND node ids use this compact prefix.
const d3fendPrefix = "d3f:"

const (
	rdfsNS = "http://www.w3.org/2000/01/rdf-schema#"
	owlNS  = "http://www.w3.org/2002/07/owl#"
)

// D3FEND reads the D3FEND ontology serialized as JSON-LD.
type D3FEND struct {
	fetcher   *fetcher
	profile   *schema.Profile
	namespace string
	tactics   stix.TypeSet
	relations []string
}

// NewD3FEND creates the D3FEND adapter.
func NewD3FEND(opts ...Option) *D3FEND {
	s := newSettings(opts)
	return &D3FEND{
		fetcher:   newFetcher(s.fetch),
		profile:   schema.D3FENDProfile(),
		namespace: s.namespace,
		tactics:   stix.NewTypeSet(s.tactics...),
		relations: s.relations,
	}
}

// SourceName returns "d3fend".
func (d *D3FEND) SourceName() string { return D3FENDSource }

// Profile returns the generic D3FEND profile.
func (d *D3FEND) Profile() *schema.Profile { return d.profile }

// Fetch reads a JSON-LD document from a file path or an http(s) URL.
func (d *D3FEND) Fetch(ctx context.Context, location string) (Raw, error) {
	return d.fetcher.fetch(ctx, "d3fend.Fetch", location)
}

// Normalize flattens "@graph" into nodes followed by their outgoing edges.
//
// A class in the D3FEND namespace becomes a node when it is a configured
// tactic, carries a d3fend-id (a technique), or is DigitalArtifact or one of
// its transitive subclasses. Each configured relation property of a node,
// whether asserted directly or as an owl:someValuesFrom restriction, becomes
// an edge to the referenced class. Edges are emitted once per distinct
// (source, relation, target) in document order.
func (d *D3FEND) Normalize(raw Raw) (graph.Batch, error) {
	const op = "d3fend.Normalize"

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw.Data, &doc); err != nil {
		return nil, orbit.NewMalformedSourceError(op, fmt.Errorf("invalid JSON-LD document: %w", err))
	}
	rawGraph, ok := doc["@graph"]
	if !ok || string(rawGraph) == "null" {
		return nil, orbit.NewMalformedSourceError(op, errors.New("invalid JSON-LD document: missing '@graph' field"))
	}

	var entries []map[string]any
	if err := json.Unmarshal(rawGraph, &entries); err != nil {
		return nil, orbit.NewMalformedSourceError(op, fmt.Errorf("invalid JSON-LD document: '@graph' is not an array of objects: %w", err))
	}

	ctx := newLDContext(doc["@context"])
	g := d.index(ctx, entries)

	var batch graph.Batch
	for _, e := range g.order {
		if nodeType := g.classify(d, e); nodeType != "" {
			batch = append(batch, d.node(e, nodeType))
		}
	}

	for _, e := range g.order {
		if g.classify(d, e) == "" {
			continue
		}
		seen := make(map[string]bool)
		for _, rel := range d.relations {
			for _, target := range e.relationTargets(d.namespace + rel) {
				if !strings.HasPrefix(target, d.namespace) || target == e.iri {
					continue
				}
				tgt := d.compact(target)
				key := rel + "|" + tgt
				if seen[key] {
					continue
				}
				seen[key] = true
				batch = append(batch, graph.Object{
					graph.AttrSourceRef:        d.compact(e.iri),
					graph.AttrTargetRef:        tgt,
					graph.AttrRelationshipType: rel,
				})
			}
		}
	}

	return batch, nil
}

func (d *D3FEND) compact(iri string) string {
	return d3fendPrefix + strings.TrimPrefix(iri, d.namespace)
}

func (d *D3FEND) node(e *ldEntry, nodeType string) graph.Object {
	obj := graph.Object{
		graph.AttrID:   d.compact(e.iri),
		graph.AttrType: nodeType,
		"iri":          e.iri,
	}
	if label := e.literal(rdfsNS + "label"); label != "" {
		obj["name"] = label
	}
	if id := e.literal(d.namespace + "d3fend-id"); id != "" {
		obj["d3fend_id"] = id
	}
	if def := e.literal(d.namespace + "definition"); def != "" {
		obj["definition"] = def
	}
	return obj
}

// ldGraph indexes the namespace's classes for classification.
type ldGraph struct {
	order    []*ldEntry
	byIRI    map[string]*ldEntry
	artifact map[string]bool
}

func (d *D3FEND) index(ctx ldContext, entries []map[string]any) *ldGraph {
	g := &ldGraph{byIRI: make(map[string]*ldEntry), artifact: make(map[string]bool)}
	for _, raw := range entries {
		e := ctx.entry(raw)
		if e.iri == "" || !strings.HasPrefix(e.iri, d.namespace) {
			continue
		}
		if _, dup := g.byIRI[e.iri]; dup {
			continue
		}
		g.byIRI[e.iri] = e
		g.order = append(g.order, e)
	}

	root := d.namespace + "DigitalArtifact"
	var visit func(iri string, path map[string]bool) bool
	visit = func(iri string, path map[string]bool) bool {
		if iri == root {
			return true
		}
		if v, done := g.artifact[iri]; done {
			return v
		}
		e, ok := g.byIRI[iri]
		if !ok || path[iri] {
			return false
		}
		path[iri] = true
		result := false
		for _, parent := range e.parents() {
			if visit(parent, path) {
				result = true
				break
			}
		}
		delete(path, iri)
		g.artifact[iri] = result
		return result
	}
	for _, e := range g.order {
		visit(e.iri, make(map[string]bool))
	}
	return g
}

func (g *ldGraph) classify(d *D3FEND, e *ldEntry) string {
	local := strings.TrimPrefix(e.iri, d.namespace)
	switch {
	case d.tactics.Contains(local):
		return D3FENDTactic
	case e.literal(d.namespace+"d3fend-id") != "":
		return D3FENDTechnique
	case e.iri == d.namespace+"DigitalArtifact" || g.artifact[e.iri]:
		return D3FENDArtifact
	default:
		return ""
	}
}

// ldContext expands compact IRIs ("prefix:local") using the document's
// @context prefix definitions.
type ldContext map[string]string

func newLDContext(raw json.RawMessage) ldContext {
	ctx := ldContext{"rdfs": rdfsNS, "owl": owlNS}
	var defs map[string]any
	if len(raw) == 0 || json.Unmarshal(raw, &defs) != nil {
		return ctx
	}
	for prefix, v := range defs {
		if s, ok := v.(string); ok {
			ctx[prefix] = s
		}
	}
	return ctx
}

func (c ldContext) expand(term string) string {
	if strings.Contains(term, "://") {
		return term
	}
	prefix, local, ok := strings.Cut(term, ":")
	if !ok {
		return term
	}
	if ns, known := c[prefix]; known {
		return ns + local
	}
	return term
}

// ldEntry is one @graph element with keys and IRI values expanded.
type ldEntry struct {
	iri   string
	props map[string][]any
	ctx   ldContext
}

func (c ldContext) entry(raw map[string]any) *ldEntry {
	e := &ldEntry{props: make(map[string][]any), ctx: c}
	if id, ok := raw["@id"].(string); ok {
		e.iri = c.expand(id)
	}
	for k, v := range raw {
		if k == "@id" {
			continue
		}
		key := k
		if !strings.HasPrefix(k, "@") {
			key = c.expand(k)
		}
		e.props[key] = asList(v)
	}
	return e
}

func asList(v any) []any {
	if list, ok := v.([]any); ok {
		return list
	}
	return []any{v}
}

// literal returns the first string value of a property.
func (e *ldEntry) literal(key string) string {
	for _, v := range e.props[key] {
		switch val := v.(type) {
		case string:
			return val
		case map[string]any:
			if s, ok := val["@value"].(string); ok {
				return s
			}
		}
	}
	return ""
}

// refs returns the expanded IRIs a property points at.
func (e *ldEntry) refs(key string) []string {
	var out []string
	for _, v := range e.props[key] {
		if iri := e.ref(v); iri != "" {
			out = append(out, iri)
		}
	}
	return out
}

func (e *ldEntry) ref(v any) string {
	switch val := v.(type) {
	case string:
		return e.ctx.expand(val)
	case map[string]any:
		if id, ok := val["@id"].(string); ok {
			return e.ctx.expand(id)
		}
	}
	return ""
}

// parents returns the named superclasses. Restrictions are skipped.
func (e *ldEntry) parents() []string {
	return e.refs(rdfsNS + "subClassOf")
}

// relationTargets returns the classes related through property, directly or
// through an owl:someValuesFrom restriction in rdfs:subClassOf.
func (e *ldEntry) relationTargets(property string) []string {
	targets := e.refs(property)
	for _, v := range e.props[rdfsNS+"subClassOf"] {
		restriction, ok := v.(map[string]any)
		if !ok {
			continue
		}
		r := e.ctx.entry(restriction)
		onProperty := r.refs(owlNS + "onProperty")
		if len(onProperty) != 1 || onProperty[0] != property {
			continue
		}
		targets = append(targets, r.refs(owlNS+"someValuesFrom")...)
	}
	return targets
}

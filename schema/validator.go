package schema

import (
	"github.com/njsecure/orbit/graph"
	"github.com/njsecure/orbit/stix"
)

// Variant validates objects of one kind under one profile.
type Variant struct {
	name    string
	kind    EntityKind
	profile *Profile
	rules   ruleSet
}

// GenericNode returns the generic node variant.
func GenericNode(p *Profile) *Variant {
	return &Variant{name: "generic-node", kind: KindNode, profile: p, rules: genericNodeRules()}
}

// GenericEdge returns the generic edge variant.
func GenericEdge(p *Profile) *Variant {
	return &Variant{name: "generic-edge", kind: KindEdge, profile: p, rules: genericEdgeRules()}
}

// STIXNode returns the STIX node variant.
func STIXNode(p *Profile) *Variant {
	return &Variant{name: "stix-node", kind: KindNode, profile: p, rules: stixNodeRules()}
}

// STIXRelationship returns the STIX relationship variant.
func STIXRelationship(p *Profile) *Variant {
	return &Variant{name: "stix-relationship", kind: KindEdge, profile: p, rules: stixRelationshipRules()}
}

// Name returns the variant name, e.g. "stix-node".
func (v *Variant) Name() string { return v.name }

// Kind returns whether the variant validates nodes or edges.
func (v *Variant) Kind() EntityKind { return v.kind }

// Validate applies every rule family to obj.
func (v *Variant) Validate(obj graph.Object) Outcome {
	c := newCheck(obj, v.kind, v.profile)
	v.rules.run(c)

	out := Outcome{Kind: v.kind, Reasons: c.reasons}
	if !out.IsValid() {
		return out
	}
	switch v.kind {
	case KindNode:
		out.Node = graph.NodeFromObject(obj)
	case KindEdge:
		out.Edge = graph.EdgeFromObject(obj)
	}
	return out
}

// Validator dispatches objects to the node or edge variant of a profile.
type Validator struct {
	profile *Profile
	node    *Variant
	edge    *Variant
}

// NewValidator builds a validator for a profile. STIX profiles use the STIX
// variants, every other profile the generic ones.
func NewValidator(p *Profile) *Validator {
	v := &Validator{profile: p}
	if p.Format() == FormatSTIX {
		v.node, v.edge = STIXNode(p), STIXRelationship(p)
	} else {
		v.node, v.edge = GenericNode(p), GenericEdge(p)
	}
	return v
}

// Profile returns the active profile.
func (v *Validator) Profile() *Profile { return v.profile }

// Classify reports whether obj is a node or an edge under the active profile.
// Objects carrying any relationship attribute are edges. STIX objects typed
// "relationship" are edges even without them.
func (v *Validator) Classify(obj graph.Object) EntityKind {
	if obj.Has(graph.AttrSourceRef) || obj.Has(graph.AttrTargetRef) || obj.Has(graph.AttrRelationshipType) {
		return KindEdge
	}
	if v.profile.Format() == FormatSTIX && obj.Str(graph.AttrType) == stix.RelationshipType {
		return KindEdge
	}
	return KindNode
}

// Validate classifies obj and applies the matching variant.
func (v *Validator) Validate(obj graph.Object) Outcome {
	if v.Classify(obj) == KindEdge {
		return v.edge.Validate(obj)
	}
	return v.node.Validate(obj)
}

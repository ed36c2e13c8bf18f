package schema

import (
	"fmt"
	"sort"
	"strings"

	"github.com/njsecure/orbit/graph"
	"github.com/njsecure/orbit/stix"
)

// check accumulates reasons for one object. bad records fields that already
// failed so later families do not report them again.
type check struct {
	obj     graph.Object
	kind    EntityKind
	profile *Profile
	bad     map[string]bool
	reasons []Reason
}

func newCheck(obj graph.Object, kind EntityKind, profile *Profile) *check {
	return &check{obj: obj, kind: kind, profile: profile, bad: make(map[string]bool)}
}

func (c *check) fail(family Family, code, field, format string, args ...any) {
	c.reasons = append(c.reasons, Reason{
		Family:  family,
		Code:    code,
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	})
}

// failField records a reason and marks the field unusable for later rules.
func (c *check) failField(family Family, code, field, format string, args ...any) {
	c.bad[field] = true
	c.fail(family, code, field, format, args...)
}

// usable returns the string value of a field that has passed the presence and
// non-empty families.
func (c *check) usable(field string) (string, bool) {
	if c.bad[field] {
		return "", false
	}
	return c.obj.Lookup(field)
}

// rule is one check within a family.
type rule func(c *check)

type family struct {
	id    Family
	rules []rule
}

// ruleSet is an ordered list of families making up one variant.
type ruleSet []family

func (rs ruleSet) run(c *check) {
	for _, f := range rs {
		for _, r := range f.rules {
			r(c)
		}
	}
}

// Family 1.
func requirePresent(fields ...string) rule {
	return func(c *check) {
		for _, f := range fields {
			if !c.obj.Has(f) {
				c.failField(FamilyPresence, CodeMissingField, f, "missing required field %q", f)
			}
		}
	}
}

// Family 2. A present field that is not a string is reported here too.
func requireNonEmpty(fields ...string) rule {
	return func(c *check) {
		for _, f := range fields {
			if c.bad[f] {
				continue
			}
			s, ok := c.obj.Lookup(f)
			if !ok {
				c.failField(FamilyNonEmpty, CodeNotString, f, "field %q must be a string, got %T", f, c.obj[f])
				continue
			}
			if strings.TrimSpace(s) == "" {
				c.failField(FamilyNonEmpty, CodeEmptyField, f, "field %q cannot be empty", f)
			}
		}
	}
}

// Family 3.
func rejectSelfLoop(c *check) {
	src, ok1 := c.usable(graph.AttrSourceRef)
	tgt, ok2 := c.usable(graph.AttrTargetRef)
	if ok1 && ok2 && src == tgt {
		c.fail(FamilySelfLoop, CodeSelfLoop, graph.AttrTargetRef, "self-referential edge not allowed: %s", src)
	}
}

// Family 4, STIX: id grammar, then prefix/type agreement, then membership.
func stixIDGrammar(c *check) {
	id, ok := c.usable(graph.AttrID)
	if !ok {
		return
	}
	if !stix.Valid(id) {
		c.failField(FamilyNodeFormat, CodeInvalidID, graph.AttrID, "invalid STIX ID format: %s, expected pattern <type>--<uuid>", id)
	}
}

func stixTypeMatchesID(c *check) {
	id, ok := c.usable(graph.AttrID)
	if !ok {
		return
	}
	declared, ok := c.usable(graph.AttrType)
	if !ok {
		return
	}
	prefix := stix.TypeOf(id)
	if prefix != declared {
		c.fail(FamilyNodeFormat, CodeTypeMismatch, graph.AttrType,
			"STIX ID type mismatch: ID has '%s', but type field is '%s'", prefix, declared)
	}
}

// Family 4, any format: recognized node type.
func recognizedNodeType(c *check) {
	t, ok := c.usable(graph.AttrType)
	if !ok {
		return
	}
	if !c.profile.RecognizesNodeType(t) {
		c.fail(FamilyNodeFormat, CodeUnknownType, graph.AttrType,
			"unknown %s type: %s. Known types: %s", c.profile.Name(), t, strings.Join(c.profile.NodeTypes(), ", "))
	}
}

// Family 5, STIX: literal type and ref grammar.
func stixRelationshipLiteral(c *check) {
	if t := c.obj.Str(graph.AttrType); t != stix.RelationshipType {
		c.fail(FamilyRelationshipFormat, CodeNotRelationship, graph.AttrType,
			"STIX relationship type must be '%s', got '%s'", stix.RelationshipType, t)
	}
}

func stixRefGrammar(field string) rule {
	return func(c *check) {
		ref, ok := c.usable(field)
		if !ok {
			return
		}
		if !stix.Valid(ref) {
			c.failField(FamilyRelationshipFormat, CodeInvalidRef, field, "invalid %s STIX ID: %s", field, ref)
		}
	}
}

// Family 5, any format: recognized relationship type.
func recognizedRelationshipType(c *check) {
	t, ok := c.usable(graph.AttrRelationshipType)
	if !ok {
		return
	}
	if !c.profile.RecognizesRelationshipType(t) {
		c.fail(FamilyRelationshipFormat, CodeUnknownRelType, graph.AttrRelationshipType,
			"unknown %s relationship type: %s", c.profile.Name(), t)
	}
}

// Family 6: compiled CEL rules of the profile, in declaration order.
func profileRules(c *check) {
	for _, r := range c.profile.rules {
		if r.def.AppliesTo != "" && r.def.AppliesTo != c.kind {
			continue
		}
		if len(r.types) > 0 && !r.types.Contains(c.obj.Str(graph.AttrType)) {
			continue
		}

		out, _, err := r.program.Eval(map[string]any{"obj": map[string]any(c.obj)})
		if err != nil {
			c.fail(FamilyProfileRules, CodeRuleError, "", "rule %s could not be evaluated: %v", r.def.Name, err)
			continue
		}
		passed, isBool := out.Value().(bool)
		if !isBool {
			c.fail(FamilyProfileRules, CodeRuleError, "", "rule %s returned %T, want bool", r.def.Name, out.Value())
			continue
		}
		if !passed {
			msg := r.def.Message
			if msg == "" {
				msg = "expression " + r.def.Expr + " is false"
			}
			c.fail(FamilyProfileRules, CodeRuleFailed, "", "rule %s failed: %s", r.def.Name, msg)
		}
	}
}

var (
	nodeFields = []string{graph.AttrID, graph.AttrType}
	edgeFields = []string{graph.AttrSourceRef, graph.AttrTargetRef, graph.AttrRelationshipType}
)

func genericNodeRules() ruleSet {
	return ruleSet{
		{FamilyPresence, []rule{requirePresent(nodeFields...)}},
		{FamilyNonEmpty, []rule{requireNonEmpty(nodeFields...)}},
		{FamilyNodeFormat, []rule{recognizedNodeType}},
		{FamilyProfileRules, []rule{profileRules}},
	}
}

func genericEdgeRules() ruleSet {
	return ruleSet{
		{FamilyPresence, []rule{requirePresent(edgeFields...)}},
		{FamilyNonEmpty, []rule{requireNonEmpty(edgeFields...)}},
		{FamilySelfLoop, []rule{rejectSelfLoop}},
		{FamilyRelationshipFormat, []rule{recognizedRelationshipType}},
		{FamilyProfileRules, []rule{profileRules}},
	}
}

func stixNodeRules() ruleSet {
	return ruleSet{
		{FamilyPresence, []rule{requirePresent(nodeFields...)}},
		{FamilyNonEmpty, []rule{requireNonEmpty(nodeFields...)}},
		{FamilyNodeFormat, []rule{stixIDGrammar, stixTypeMatchesID, recognizedNodeType}},
		{FamilyProfileRules, []rule{profileRules}},
	}
}

func stixRelationshipRules() ruleSet {
	return ruleSet{
		{FamilyPresence, []rule{requirePresent(edgeFields...)}},
		{FamilyNonEmpty, []rule{requireNonEmpty(edgeFields...)}},
		{FamilySelfLoop, []rule{rejectSelfLoop}},
		{FamilyRelationshipFormat, []rule{
			stixRelationshipLiteral,
			stixRefGrammar(graph.AttrSourceRef),
			stixRefGrammar(graph.AttrTargetRef),
		}},
		{FamilyProfileRules, []rule{profileRules}},
	}
}

// sortedFamilies reports whether a rule set is in ascending family order.
func (rs ruleSet) sortedFamilies() bool {
	return sort.SliceIsSorted(rs, func(i, j int) bool { return rs[i].id < rs[j].id })
}

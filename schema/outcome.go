package schema

import "github.com/njsecure/orbit/graph"

// EntityKind distinguishes nodes from edges.
type EntityKind string

const (
	KindNode EntityKind = "node"
	KindEdge EntityKind = "edge"
)

// Family identifies a rule family. Families are evaluated in ascending order.
type Family int

const (
	FamilyPresence Family = iota + 1
	FamilyNonEmpty
	FamilySelfLoop
	FamilyNodeFormat
	FamilyRelationshipFormat
	FamilyProfileRules
)

var familyNames = map[Family]string{
	FamilyPresence:           "presence",
	FamilyNonEmpty:           "non-empty",
	FamilySelfLoop:           "self-loop",
	FamilyNodeFormat:         "node-format",
	FamilyRelationshipFormat: "relationship-format",
	FamilyProfileRules:       "profile-rules",
}

// String returns the family name.
func (f Family) String() string {
	if name, ok := familyNames[f]; ok {
		return name
	}
	return "unknown"
}

// Reason codes let callers match on a violation without parsing messages.
const (
	CodeMissingField    = "missing_field"
	CodeEmptyField      = "empty_field"
	CodeNotString       = "not_string"
	CodeSelfLoop        = "self_loop"
	CodeInvalidID       = "invalid_id"
	CodeTypeMismatch    = "type_mismatch"
	CodeUnknownType     = "unknown_type"
	CodeUnknownRelType  = "unknown_relationship_type"
	CodeNotRelationship = "not_relationship"
	CodeInvalidRef      = "invalid_ref"
	CodeRuleFailed      = "rule_failed"
	CodeRuleError       = "rule_error"
)

// Reason describes one violated rule.
type Reason struct {
	Family  Family `json:"family"`
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// Outcome is the result of validating one object. Exactly one of Node and
// Edge is set when the outcome is valid; both are nil otherwise.
type Outcome struct {
	Kind    EntityKind
	Node    *graph.Node
	Edge    *graph.Edge
	Reasons []Reason
}

// IsValid reports whether no rule was violated.
func (o Outcome) IsValid() bool {
	return len(o.Reasons) == 0
}

// Messages returns the reason messages in evaluation order.
func (o Outcome) Messages() []string {
	out := make([]string, len(o.Reasons))
	for i, r := range o.Reasons {
		out[i] = r.Message
	}
	return out
}

// HasCode reports whether any reason carries the given code.
func (o Outcome) HasCode(code string) bool {
	for _, r := range o.Reasons {
		if r.Code == code {
			return true
		}
	}
	return false
}

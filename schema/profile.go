package schema

import (
	"fmt"
	"os"

	"github.com/google/cel-go/cel"
	"gopkg.in/yaml.v3"

	"github.com/njsecure/orbit/stix"
)

// Format selects which rule set a profile applies.
type Format string

const (
	// FormatSTIX applies STIX node and relationship rules.
	FormatSTIX Format = "stix"

	// FormatGeneric applies only the generic node and edge rules.
	FormatGeneric Format = "generic"
)

// RuleDefinition is a profile-supplied CEL rule. The expression sees the raw
// object as the map variable obj and must evaluate to a bool; false is a
// violation reported with Message.
type RuleDefinition struct {
	Name      string     `yaml:"name"`
	AppliesTo EntityKind `yaml:"applies_to,omitempty"`
	Types     []string   `yaml:"types,omitempty"`
	Expr      string     `yaml:"expr"`
	Message   string     `yaml:"message,omitempty"`
}

// ProfileDefinition is the serializable form of a Profile.
type ProfileDefinition struct {
	Name              string           `yaml:"name"`
	Format            Format           `yaml:"format"`
	NodeTypes         []string         `yaml:"node_types"`
	RelationshipTypes []string         `yaml:"relationship_types,omitempty"`
	Rules             []RuleDefinition `yaml:"rules,omitempty"`
}

// Profile is a compiled, immutable source profile.
type Profile struct {
	name      string
	format    Format
	nodeTypes stix.TypeSet
	relTypes  stix.TypeSet
	rules     []compiledRule
}

type compiledRule struct {
	def     RuleDefinition
	types   stix.TypeSet
	program cel.Program
}

// NewProfile compiles a definition. CEL compile errors, non-bool rule
// expressions and unknown formats are reported as errors.
func NewProfile(def ProfileDefinition) (*Profile, error) {
	if def.Name == "" {
		return nil, fmt.Errorf("profile name is required")
	}

	format := def.Format
	if format == "" {
		format = FormatGeneric
	}
	if format != FormatSTIX && format != FormatGeneric {
		return nil, fmt.Errorf("profile %s: unknown format %q", def.Name, def.Format)
	}

	p := &Profile{
		name:      def.Name,
		format:    format,
		nodeTypes: stix.NewTypeSet(def.NodeTypes...),
		relTypes:  stix.NewTypeSet(def.RelationshipTypes...),
	}

	if len(def.Rules) == 0 {
		return p, nil
	}

	env, err := cel.NewEnv(cel.Variable("obj", cel.MapType(cel.StringType, cel.DynType)))
	if err != nil {
		return nil, fmt.Errorf("profile %s: create CEL environment: %w", def.Name, err)
	}

	for i, rd := range def.Rules {
		if rd.Name == "" {
			rd.Name = fmt.Sprintf("rule-%d", i+1)
		}
		switch rd.AppliesTo {
		case "", KindNode, KindEdge:
		default:
			return nil, fmt.Errorf("profile %s: rule %s: applies_to must be node or edge, got %q", def.Name, rd.Name, rd.AppliesTo)
		}

		ast, iss := env.Compile(rd.Expr)
		if iss != nil && iss.Err() != nil {
			return nil, fmt.Errorf("profile %s: rule %s: %w", def.Name, rd.Name, iss.Err())
		}
		if !ast.OutputType().IsExactType(cel.BoolType) {
			return nil, fmt.Errorf("profile %s: rule %s: expression must be bool, got %s", def.Name, rd.Name, ast.OutputType())
		}
		prg, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("profile %s: rule %s: %w", def.Name, rd.Name, err)
		}

		p.rules = append(p.rules, compiledRule{
			def:     rd,
			types:   stix.NewTypeSet(rd.Types...),
			program: prg,
		})
	}

	return p, nil
}

// MustProfile is NewProfile for definitions known to be valid.
func MustProfile(def ProfileDefinition) *Profile {
	p, err := NewProfile(def)
	if err != nil {
		panic(err)
	}
	return p
}

// ParseProfile decodes a YAML profile definition and compiles it.
func ParseProfile(data []byte) (*Profile, error) {
	var def ProfileDefinition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	return NewProfile(def)
}

// LoadProfile reads and compiles a YAML profile file.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}
	return ParseProfile(data)
}

// Name returns the profile name.
func (p *Profile) Name() string { return p.name }

// Format returns the rule format.
func (p *Profile) Format() Format { return p.format }

// NodeTypes returns the recognized node types in lexical order.
func (p *Profile) NodeTypes() []string { return p.nodeTypes.Sorted() }

// RecognizesNodeType reports whether t is a recognized node type. A
// profile without node types accepts any.
func (p *Profile) RecognizesNodeType(t string) bool {
	return len(p.nodeTypes) == 0 || p.nodeTypes.Contains(t)
}

// RecognizesRelationshipType reports whether t is an accepted relationship
// type. A profile without relationship types accepts any.
func (p *Profile) RecognizesRelationshipType(t string) bool {
	return len(p.relTypes) == 0 || p.relTypes.Contains(t)
}

// AttackProfile returns the MITRE ATT&CK STIX profile.
func AttackProfile() *Profile {
	return MustProfile(ProfileDefinition{
		Name:      "attack",
		Format:    FormatSTIX,
		NodeTypes: stix.AttackTypes,
	})
}

// D3FEND node and relationship types emitted by the d3fend adapter.
var (
	D3FENDNodeTypes = []string{
		"d3fend-artifact",
		"d3fend-tactic",
		"d3fend-technique",
	}
	D3FENDRelationshipTypes = []string{
		"deprives",
		"detects",
		"enables",
		"implements",
		"may-access",
		"produces",
		"related",
	}
)

// D3FENDProfile returns the generic profile for D3FEND ontology data.
func D3FENDProfile() *Profile {
	return MustProfile(ProfileDefinition{
		Name:              "d3fend",
		Format:            FormatGeneric,
		NodeTypes:         D3FENDNodeTypes,
		RelationshipTypes: D3FENDRelationshipTypes,
	})
}

// BuiltinProfile returns the built-in profile with the given name.
func BuiltinProfile(name string) (*Profile, bool) {
	switch name {
	case "attack":
		return AttackProfile(), true
	case "d3fend":
		return D3FENDProfile(), true
	default:
		return nil, false
	}
}

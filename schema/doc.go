// Package schema validates single normalized objects against the structural
// rules of their declared kind.
//
// Four variants exist: generic node, generic edge, STIX node and STIX
// relationship. Each is an ordered list of rule families:
//
//  1. required-field presence
//  2. non-emptiness of required fields
//  3. self-loop rejection (edges)
//  4. node format: STIX id grammar, id prefix equals type, recognized type
//  5. relationship format: type literal and STIX grammar of both refs
//  6. profile rules: CEL expressions supplied by the active Profile
//
// Every family runs; a failed field is not re-reported by later families, so
// a missing id yields one reason rather than three. Validation never panics
// and never returns a Go error: malformed input produces an invalid Outcome
// whose Reasons list every violated rule.
//
// # Profiles
//
// A Profile names the recognized type sets of a source taxonomy and whether
// its objects follow STIX rules. Profiles are swappable:
//
//	v := schema.NewValidator(schema.AttackProfile())
//	out := v.Validate(graph.Object{"id": "tool--...", "type": "tool"})
//	if !out.IsValid() {
//		for _, r := range out.Reasons {
//			fmt.Println(r.Message)
//		}
//	}
package schema

// Package stix implements the STIX identifier grammar and the object type
// sets of the taxonomies orbit ingests.
package stix

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// RelationshipType is the STIX object type of relationship objects.
const RelationshipType = "relationship"

// idSeparator separates the type prefix from the UUID in a STIX id.
const idSeparator = "--"

// idPattern is the authoritative STIX id grammar: a lowercase
// alnum-hyphen prefix starting with a letter, "--", then a canonical
// lowercase 8-4-4-4-12 hexadecimal UUID.
var idPattern = regexp.MustCompile(`^[a-z][a-z0-9-]+--[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// ErrInvalidID is returned by Parse for strings outside the grammar.
var ErrInvalidID = errors.New("invalid STIX id")

// ID is a parsed STIX identifier.
type ID struct {
	Type string
	UUID uuid.UUID
}

// String renders the id in canonical form.
func (id ID) String() string {
	return id.Type + idSeparator + id.UUID.String()
}

// Valid reports whether s satisfies the STIX id grammar.
func Valid(s string) bool {
	return idPattern.MatchString(s)
}

// Parse splits a STIX id into its type prefix and UUID.
func Parse(s string) (ID, error) {
	if !Valid(s) {
		return ID{}, fmt.Errorf("%w: %q, expected <type>--<uuid>", ErrInvalidID, s)
	}

	// The UUID never contains "--", so the last separator splits the id.
	i := strings.LastIndex(s, idSeparator)
	u, err := uuid.Parse(s[i+len(idSeparator):])
	if err != nil {
		return ID{}, fmt.Errorf("%w: %q: %v", ErrInvalidID, s, err)
	}

	return ID{Type: s[:i], UUID: u}, nil
}

// TypeOf returns the type prefix of a valid STIX id, or "" if s is invalid.
func TypeOf(s string) string {
	id, err := Parse(s)
	if err != nil {
		return ""
	}
	return id.Type
}

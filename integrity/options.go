package integrity

import (
	"log/slog"

	"github.com/njsecure/orbit/graph"
)

// Option configures a Checker.
type Option func(*Checker)

// WithAllowList sets the triple allow-list snapshot. An empty set disables
// the triple check.
func WithAllowList(set graph.TripleSet) Option {
	return func(c *Checker) {
		c.allowList = set
	}
}

// WithStrict makes unrecognized triples error-severity and drops their edges.
func WithStrict(strict bool) Option {
	return func(c *Checker) {
		c.strict = strict
	}
}

// WithLogger sets the logger used for debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Checker) {
		if logger != nil {
			c.logger = logger
		}
	}
}

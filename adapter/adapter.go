package adapter

import (
	"context"

	"github.com/njsecure/orbit/graph"
	"github.com/njsecure/orbit/schema"
)

// Raw is the undecoded payload returned by Fetch.
type Raw struct {
	// Location is where the data was read from, after any URL rewriting.
	Location string

	// Data is the payload.
	Data []byte

	// Cached reports whether Data came from the on-disk cache.
	Cached bool
}

// Adapter fetches and normalizes one kind of source.
//
// Fetch failures, including context deadline expiry, must match
// orbit.ErrSourceUnavailable. Normalize failures must match
// orbit.ErrMalformedSource.
type Adapter interface {
	// SourceName is the canonical source identifier (e.g. "attack").
	SourceName() string

	// Profile returns the schema profile objects of this source follow.
	Profile() *schema.Profile

	// Fetch reads raw data from location.
	Fetch(ctx context.Context, location string) (Raw, error)

	// Normalize converts raw data to an ordered batch of objects.
	Normalize(raw Raw) (graph.Batch, error)
}

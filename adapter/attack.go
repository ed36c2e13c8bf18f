package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/njsecure/orbit"
	"github.com/njsecure/orbit/graph"
	"github.com/njsecure/orbit/schema"
)

// AttackSource is the source name of the ATT&CK adapter.
const AttackSource = "attack"

// Attack reads MITRE ATT&CK STIX bundles.
type Attack struct {
	fetcher *fetcher
	profile *schema.Profile
}

// NewAttack creates the ATT&CK adapter.
func NewAttack(opts ...Option) *Attack {
	s := newSettings(opts)
	return &Attack{
		fetcher: newFetcher(s.fetch),
		profile: schema.AttackProfile(),
	}
}

// SourceName returns "attack".
func (a *Attack) SourceName() string { return AttackSource }

// Profile returns the ATT&CK STIX profile.
func (a *Attack) Profile() *schema.Profile { return a.profile }

// Fetch reads a bundle from a file path or an http(s) URL.
func (a *Attack) Fetch(ctx context.Context, location string) (Raw, error) {
	return a.fetcher.fetch(ctx, "attack.Fetch", location)
}

// Normalize returns the bundle's objects as-is, in bundle order.
func (a *Attack) Normalize(raw Raw) (graph.Batch, error) {
	const op = "attack.Normalize"

	var bundle map[string]json.RawMessage
	if err := json.Unmarshal(raw.Data, &bundle); err != nil {
		return nil, orbit.NewMalformedSourceError(op, fmt.Errorf("invalid STIX bundle: %w", err))
	}

	rawObjects, ok := bundle["objects"]
	if !ok || string(rawObjects) == "null" {
		return nil, orbit.NewMalformedSourceError(op, errors.New("invalid STIX bundle: missing 'objects' field"))
	}

	var elements []json.RawMessage
	if err := json.Unmarshal(rawObjects, &elements); err != nil {
		return nil, orbit.NewMalformedSourceError(op, fmt.Errorf("invalid STIX bundle: 'objects' is not an array: %w", err))
	}

	batch := make(graph.Batch, 0, len(elements))
	for i, el := range elements {
		var obj graph.Object
		if err := json.Unmarshal(el, &obj); err != nil || obj == nil {
			return nil, orbit.NewMalformedSourceError(op, fmt.Errorf("invalid STIX bundle: objects[%d] is not a JSON object", i))
		}
		batch = append(batch, obj)
	}
	return batch, nil
}

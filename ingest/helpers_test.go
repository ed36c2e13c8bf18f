package ingest

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/njsecure/orbit"
	"github.com/njsecure/orbit/adapter"
	"github.com/njsecure/orbit/graph"
	"github.com/njsecure/orbit/schema"
)

const (
	patternID  = "attack-pattern--12345678-1234-1234-1234-123456789abc"
	malwareID  = "malware--87654321-4321-4321-4321-cba987654321"
	groupID    = "intrusion-set--11111111-2222-3333-4444-555555555555"
	relationID = "relationship--aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee"
	missingID  = "malware--00000000-0000-0000-0000-000000000000"
)

func node(id, typ string) graph.Object {
	return graph.Object{"id": id, "type": typ, "name": id}
}

func rel(id, src, relType, tgt string) graph.Object {
	return graph.Object{
		"id":                id,
		"type":              "relationship",
		"source_ref":        src,
		"relationship_type": relType,
		"target_ref":        tgt,
	}
}

// writeBundle writes a STIX bundle holding objects and returns its path.
func writeBundle(t *testing.T, objects ...graph.Object) string {
	t.Helper()

	if objects == nil {
		objects = []graph.Object{}
	}
	data, err := json.Marshal(map[string]any{"type": "bundle", "id": "bundle--1", "objects": objects})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "bundle.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

// blockingAdapter never finishes fetching until its context is done.
type blockingAdapter struct{}

func (blockingAdapter) SourceName() string       { return "blocking" }
func (blockingAdapter) Profile() *schema.Profile { return schema.AttackProfile() }

func (blockingAdapter) Fetch(ctx context.Context, _ string) (adapter.Raw, error) {
	<-ctx.Done()
	return adapter.Raw{}, orbit.NewSourceUnavailableError("blocking.Fetch", ctx.Err())
}

func (blockingAdapter) Normalize(adapter.Raw) (graph.Batch, error) {
	return nil, nil
}

// staticAdapter returns a fixed batch and errors nothing unless told to.
type staticAdapter struct {
	batch   graph.Batch
	normErr error
}

func (staticAdapter) SourceName() string       { return "static" }
func (staticAdapter) Profile() *schema.Profile { return schema.AttackProfile() }

func (staticAdapter) Fetch(_ context.Context, location string) (adapter.Raw, error) {
	return adapter.Raw{Location: location}, nil
}

func (a staticAdapter) Normalize(adapter.Raw) (graph.Batch, error) {
	if a.normErr != nil {
		return nil, a.normErr
	}
	return a.batch, nil
}

func newTestPipeline(t *testing.T, opts ...Option) *Pipeline {
	t.Helper()

	registry := adapter.NewRegistry(adapter.NewAttack(), blockingAdapter{})
	return NewPipeline(append([]Option{WithRegistry(registry)}, opts...)...)
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}

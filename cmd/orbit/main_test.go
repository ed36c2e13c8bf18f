package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/pterm/pterm"
	"github.com/stretchr/testify/require"
)

const (
	patternID  = "attack-pattern--12345678-1234-1234-1234-123456789abc"
	malwareID  = "malware--87654321-4321-4321-4321-cba987654321"
	groupID    = "intrusion-set--11111111-2222-3333-4444-555555555555"
	relationID = "relationship--aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee"
)

func TestMain(m *testing.M) {
	pterm.DisableStyling()
	os.Exit(m.Run())
}

// env is a scratch workspace with a config file pointing into it.
type env struct {
	dir    string
	config string
}

func newEnv(t *testing.T, extra string) env {
	t.Helper()
	dir := t.TempDir()

	d3fend := filepath.Join(dir, "d3fend.json")
	require.NoError(t, os.WriteFile(d3fend, []byte(`{"@graph": []}`), 0o644))

	cfg := fmt.Sprintf(`
sources:
  attack:
    location: %s
  d3fend:
    location: %s
  cache_dir: %s
triples:
  backend: file
  path: %s
logging:
  level: warn
%s`,
		filepath.Join(dir, "missing-attack.json"),
		d3fend,
		filepath.Join(dir, "cache"),
		filepath.Join(dir, "triples.yaml"),
		extra,
	)
	path := filepath.Join(dir, "orbit.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))
	return env{dir: dir, config: path}
}

func (e env) bundle(t *testing.T, name string, objects ...map[string]any) string {
	t.Helper()
	data, err := json.Marshal(map[string]any{"type": "bundle", "id": "bundle--1", "objects": objects})
	require.NoError(t, err)
	path := filepath.Join(e.dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

// run executes the CLI and returns stdout, stderr and the exit code.
func (e env) run(t *testing.T, args ...string) (string, string, int) {
	t.Helper()
	return e.runContext(t, context.Background(), args...)
}

func (e env) runContext(t *testing.T, ctx context.Context, args ...string) (string, string, int) {
	t.Helper()

	root := newRootCmd()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(append([]string{"--config", e.config}, args...))

	err := root.ExecuteContext(ctx)
	code := exitSuccess
	if err != nil {
		code = handleError(root, err)
	}
	return stdout.String(), stderr.String(), code
}

func node(id, typ string) map[string]any {
	return map[string]any{"id": id, "type": typ, "name": id}
}

func rel(src, relType, tgt string) map[string]any {
	return map[string]any{
		"id":                relationID,
		"type":              "relationship",
		"source_ref":        src,
		"relationship_type": relType,
		"target_ref":        tgt,
	}
}

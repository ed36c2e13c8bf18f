package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSources(t *testing.T) {
	e := newEnv(t, "")

	stdout, _, code := e.run(t, "sources", "-o", "json")
	require.Equal(t, exitSuccess, code)

	var infos []struct {
		Name     string `json:"name"`
		Format   string `json:"format"`
		Location string `json:"location"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &infos))

	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Name)
	}
	assert.ElementsMatch(t, []string{"attack", "d3fend"}, names)
}

func TestIngest_Text(t *testing.T) {
	e := newEnv(t, "")
	bundle := e.bundle(t, "bundle.json",
		node(patternID, "attack-pattern"),
		node(malwareID, "malware"),
		rel(malwareID, "uses", patternID),
	)

	stdout, _, code := e.run(t, "ingest", "attack="+bundle)
	require.Equal(t, exitSuccess, code, stdout)

	assert.Contains(t, stdout, "accepted 3 of 3 object(s)")
	assert.Contains(t, stdout, "attack-pattern")
	assert.Contains(t, stdout, "malware")
}

func TestIngest_JSONAndOutDir(t *testing.T) {
	e := newEnv(t, "")
	bundle := e.bundle(t, "bundle.json",
		node(patternID, "attack-pattern"),
		rel(patternID, "uses", malwareID),
	)
	outDir := filepath.Join(e.dir, "results")

	stdout, _, code := e.run(t, "ingest", "attack="+bundle, "-o", "json", "--out-dir", outDir)
	require.Equal(t, exitSuccess, code)

	var out []struct {
		Source string `json:"source"`
		Result struct {
			State       string `json:"state"`
			Diagnostics []struct {
				Kind string `json:"kind"`
			} `json:"diagnostics"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &out))
	require.Len(t, out, 1)
	assert.Equal(t, "attack", out[0].Source)
	assert.Equal(t, "done", out[0].Result.State)
	require.Len(t, out[0].Result.Diagnostics, 1)
	assert.Equal(t, "DanglingReference", out[0].Result.Diagnostics[0].Kind)

	_, err := os.Stat(filepath.Join(outDir, "attack.json"))
	assert.NoError(t, err)
}

func TestIngest_Aborted(t *testing.T) {
	e := newEnv(t, "")

	stdout, _, code := e.run(t, "ingest", "attack")
	assert.Equal(t, exitRunAborted, code)
	assert.Contains(t, stdout, "run aborted")

	_, _, code = e.run(t, "ingest", "attack", "--allow-aborted")
	assert.Equal(t, exitSuccess, code)
}

func TestIngest_UnknownSource(t *testing.T) {
	e := newEnv(t, "")

	_, stderr, code := e.run(t, "ingest", "capec=./capec.json")
	assert.Equal(t, exitConfigError, code)
	assert.Contains(t, stderr, "unknown source")
}

func TestIngest_NoLocation(t *testing.T) {
	e := newEnv(t, "")

	_, stderr, code := e.run(t, "ingest", "capec")
	assert.Equal(t, exitConfigError, code)
	assert.Contains(t, stderr, "no location configured")
}

func TestTriples_LearnListAndIngest(t *testing.T) {
	e := newEnv(t, "")
	trusted := e.bundle(t, "trusted.json",
		node(patternID, "attack-pattern"),
		node(malwareID, "malware"),
		rel(malwareID, "uses", patternID),
	)

	stdout, _, code := e.run(t, "triples", "learn", "attack="+trusted, "--dry-run", "-o", "json")
	require.Equal(t, exitSuccess, code)
	assert.Contains(t, stdout, `"relationship_type": "uses"`)
	_, err := os.Stat(filepath.Join(e.dir, "triples.yaml"))
	assert.True(t, os.IsNotExist(err), "dry run must not write the store")

	stdout, _, code = e.run(t, "triples", "learn", "attack="+trusted)
	require.Equal(t, exitSuccess, code)
	assert.Contains(t, stdout, "derived 1 triple(s), 1 new")

	stdout, _, code = e.run(t, "triples", "list", "-o", "json")
	require.Equal(t, exitSuccess, code)
	var listed struct {
		Version string            `json:"version"`
		Triples []json.RawMessage `json:"triples"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &listed))
	assert.Len(t, listed.Triples, 1)
	assert.NotEqual(t, "empty", listed.Version)

	// A new combination is flagged but kept.
	novel := e.bundle(t, "novel.json",
		node(groupID, "intrusion-set"),
		node(malwareID, "malware"),
		rel(groupID, "uses", malwareID),
	)
	stdout, _, code = e.run(t, "ingest", "attack="+novel)
	require.Equal(t, exitSuccess, code)
	assert.Contains(t, stdout, "UnrecognizedTriple")

	// Strict mode rejects it, and learning adds it.
	stdout, _, code = e.run(t, "ingest", "attack="+novel, "--strict", "--learn")
	require.Equal(t, exitSuccess, code)
	assert.Contains(t, stdout, "learned 1 new triple(s)")

	stdout, _, code = e.run(t, "triples", "list")
	require.Equal(t, exitSuccess, code)
	assert.Contains(t, stdout, "intrusion-set")
}

func TestDoctor(t *testing.T) {
	t.Run("missing source is unhealthy", func(t *testing.T) {
		e := newEnv(t, "")

		stdout, _, code := e.run(t, "doctor")
		assert.Equal(t, exitUnhealthy, code)
		assert.Contains(t, stdout, "source attack")
		assert.Contains(t, stdout, "does not exist")
	})

	t.Run("healthy", func(t *testing.T) {
		e := newEnv(t, "")
		bundle := e.bundle(t, "missing-attack.json", node(patternID, "attack-pattern"))
		require.FileExists(t, bundle)

		stdout, _, code := e.run(t, "doctor", "-o", "json")
		require.Equal(t, exitSuccess, code, stdout)

		var report struct {
			Overall struct {
				Status string `json:"status"`
			} `json:"overall"`
			Results []struct {
				Name string `json:"name"`
			} `json:"results"`
		}
		require.NoError(t, json.Unmarshal([]byte(stdout), &report))
		assert.Equal(t, "healthy", report.Overall.Status)

		names := make([]string, 0, len(report.Results))
		for _, r := range report.Results {
			names = append(names, r.Name)
		}
		assert.Contains(t, names, "cache directory")
		assert.Contains(t, names, "allow-list store")
	})
}

func TestConfigShow_MasksSecrets(t *testing.T) {
	e := newEnv(t, "neo4j:\n  password: hunter2\n")

	stdout, _, code := e.run(t, "config", "show")
	require.Equal(t, exitSuccess, code)
	assert.NotContains(t, stdout, "hunter2")
	assert.Contains(t, stdout, "********")
}

func TestConfigInit(t *testing.T) {
	e := newEnv(t, "")
	path := filepath.Join(e.dir, "new.yaml")

	_, _, code := e.run(t, "config", "init", path)
	require.Equal(t, exitSuccess, code)
	assert.FileExists(t, path)

	_, stderr, code := e.run(t, "config", "init", path)
	assert.Equal(t, exitConfigError, code)
	assert.Contains(t, stderr, "already exists")
}

func TestRoot_InvalidFlags(t *testing.T) {
	e := newEnv(t, "")

	_, _, code := e.run(t, "sources", "-o", "xml")
	assert.Equal(t, exitConfigError, code)

	_, stderr, code := e.run(t, "sources", "--log-level", "loud")
	assert.Equal(t, exitConfigError, code)
	assert.Contains(t, stderr, "logging.level")
}

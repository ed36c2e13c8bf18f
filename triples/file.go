package triples

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/njsecure/orbit"
	"github.com/njsecure/orbit/graph"
)

// fileDocument is the on-disk YAML layout.
type fileDocument struct {
	Version string         `yaml:"version"`
	Triples []graph.Triple `yaml:"triples"`
}

// FileStore keeps the allow-list in a YAML file. A missing file is an empty
// allow-list. Writes go through a temporary file and a rename.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates a store backed by path.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, orbit.NewConfigurationError("triples.NewFileStore",
			fmt.Errorf("%w: allow-list file path is required", orbit.ErrInvalidConfig))
	}
	return &FileStore{path: path}, nil
}

// Path returns the backing file.
func (s *FileStore) Path() string { return s.path }

// Load reads the file.
func (s *FileStore) Load(ctx context.Context) (graph.TripleSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	triples, err := s.read()
	if err != nil {
		return graph.TripleSet{}, err
	}
	return versioned(triples), nil
}

// Add merges triples into the file.
func (s *FileStore) Add(ctx context.Context, triples []graph.Triple) error {
	if err := validate("FileStore.Add", triples); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return orbit.NewStorageError("FileStore.Add", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.read()
	if err != nil {
		return err
	}
	merged := graph.NewTripleSet(current...).Union(triples...).Sorted()
	return s.write(merged)
}

// Close is a no-op.
func (s *FileStore) Close() error { return nil }

func (s *FileStore) read() ([]graph.Triple, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, orbit.NewStorageError("FileStore.Load", err)
	}

	var doc fileDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, orbit.NewStorageError("FileStore.Load", fmt.Errorf("decode %s: %w", s.path, err))
	}
	return doc.Triples, nil
}

func (s *FileStore) write(triples []graph.Triple) error {
	data, err := yaml.Marshal(fileDocument{Version: Version(triples), Triples: triples})
	if err != nil {
		return orbit.NewStorageError("FileStore.Add", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return orbit.NewStorageError("FileStore.Add", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return orbit.NewStorageError("FileStore.Add", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return orbit.NewStorageError("FileStore.Add", err)
	}
	return nil
}

package triples

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/njsecure/orbit"
	"github.com/njsecure/orbit/graph"
)

// Store persists an allow-list.
type Store interface {
	// Load returns the full allow-list. The set's Version identifies its
	// content.
	Load(ctx context.Context) (graph.TripleSet, error)

	// Add persists triples. Triples already present are ignored. Either all
	// triples are added or none are.
	Add(ctx context.Context, triples []graph.Triple) error

	// Close releases the backend's resources.
	Close() error
}

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendEtcd   = "etcd"
	BackendSQLite = "sqlite"
)

// Config selects and configures a backend.
type Config struct {
	Backend string

	// Path is the YAML file (file backend) or database file (sqlite backend).
	Path string

	Redis RedisOptions
	Etcd  EtcdConfig
}

// Open creates the configured store.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Backend {
	case "", BackendMemory:
		return NewMemoryStore(), nil
	case BackendFile:
		return NewFileStore(cfg.Path)
	case BackendRedis:
		return NewRedisStore(ctx, cfg.Redis)
	case BackendEtcd:
		return NewEtcdStore(ctx, cfg.Etcd)
	case BackendSQLite:
		return OpenSQLite(ctx, cfg.Path)
	default:
		return nil, orbit.NewConfigurationError("triples.Open",
			fmt.Errorf("%w: unknown allow-list backend %q", orbit.ErrInvalidConfig, cfg.Backend))
	}
}

// Version returns a content label for a set of triples: a short SHA-256 over
// the sorted keys, or "empty".
func Version(triples []graph.Triple) string {
	if len(triples) == 0 {
		return "empty"
	}
	sorted := append([]graph.Triple(nil), triples...)
	graph.SortTriples(sorted)

	h := sha256.New()
	var last string
	for _, t := range sorted {
		key := t.Key()
		if key == last {
			continue
		}
		last = key
		h.Write([]byte(key))
		h.Write([]byte{'\n'})
	}
	return "sha256:" + hex.EncodeToString(h.Sum(nil))[:16]
}

// versioned builds a set labelled with its content version.
func versioned(triples []graph.Triple) graph.TripleSet {
	return graph.NewTripleSet(triples...).WithVersion(Version(triples))
}

func validate(op string, triples []graph.Triple) error {
	for _, t := range triples {
		if t.SourceType == "" || t.RelationshipType == "" || t.TargetType == "" {
			return orbit.NewStorageError(op, fmt.Errorf("incomplete triple %s", t))
		}
	}
	return nil
}

// MemoryStore keeps the allow-list in memory.
type MemoryStore struct {
	mu  sync.RWMutex
	set graph.TripleSet
}

// NewMemoryStore creates an in-memory store seeded with triples.
func NewMemoryStore(seed ...graph.Triple) *MemoryStore {
	return &MemoryStore{set: graph.NewTripleSet(seed...)}
}

// Load returns the current set.
func (s *MemoryStore) Load(ctx context.Context) (graph.TripleSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return versioned(s.set.Sorted()), nil
}

// Add unions triples into the set.
func (s *MemoryStore) Add(ctx context.Context, triples []graph.Triple) error {
	if err := validate("MemoryStore.Add", triples); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.set = s.set.Union(triples...)
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

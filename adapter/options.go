package adapter

import (
	"log/slog"
	"net/http"
	"time"
)

// DefaultAttackURL is the enterprise ATT&CK bundle in the MITRE CTI repository.
const DefaultAttackURL = "https://github.com/mitre/cti/blob/master/enterprise-attack/enterprise-attack.json"

// DefaultD3FENDNamespace is the D3FEND ontology namespace.
const DefaultD3FENDNamespace = "http://d3fend.mitre.org/ontologies/d3fend.owl#"

// DefaultCacheTTL is how long a downloaded payload stays fresh on disk.
const DefaultCacheTTL = 24 * time.Hour

// DefaultD3FENDTactics are the D3FEND tactic class names.
var DefaultD3FENDTactics = []string{"Harden", "Detect", "Isolate", "Deceive", "Evict"}

// DefaultD3FENDRelations are the object properties turned into edges.
var DefaultD3FENDRelations = []string{"enables", "detects", "deprives", "implements"}

type settings struct {
	fetch fetchSettings

	namespace string
	tactics   []string
	relations []string
}

// Option configures an adapter.
type Option func(*settings)

func newSettings(opts []Option) settings {
	s := settings{
		fetch: fetchSettings{
			client:   http.DefaultClient,
			cacheTTL: DefaultCacheTTL,
			logger:   slog.Default(),
		},
		namespace: DefaultD3FENDNamespace,
		tactics:   DefaultD3FENDTactics,
		relations: DefaultD3FENDRelations,
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// WithHTTPClient sets the client used for http(s) locations.
func WithHTTPClient(client *http.Client) Option {
	return func(s *settings) {
		if client != nil {
			s.fetch.client = client
		}
	}
}

// WithCacheDir enables the on-disk download cache in dir. An empty dir
// disables caching.
func WithCacheDir(dir string) Option {
	return func(s *settings) {
		s.fetch.cacheDir = dir
	}
}

// WithCacheTTL sets how long cached downloads are reused.
func WithCacheTTL(ttl time.Duration) Option {
	return func(s *settings) {
		s.fetch.cacheTTL = ttl
	}
}

// WithForceRefresh ignores cached downloads, still refreshing the cache.
func WithForceRefresh(force bool) Option {
	return func(s *settings) {
		s.fetch.forceRefresh = force
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.fetch.logger = logger
		}
	}
}

// WithD3FENDNamespace sets the ontology namespace IRI. Only the d3fend adapter
// uses it.
func WithD3FENDNamespace(ns string) Option {
	return func(s *settings) {
		if ns != "" {
			s.namespace = ns
		}
	}
}

// WithD3FENDTactics sets the class names treated as tactics.
func WithD3FENDTactics(names ...string) Option {
	return func(s *settings) {
		if len(names) > 0 {
			s.tactics = names
		}
	}
}

// WithD3FENDRelations sets the object property names turned into edges.
func WithD3FENDRelations(names ...string) Option {
	return func(s *settings) {
		if len(names) > 0 {
			s.relations = names
		}
	}
}

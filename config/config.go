package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/njsecure/orbit"
	"github.com/njsecure/orbit/adapter"
	"github.com/njsecure/orbit/graphstore"
	"github.com/njsecure/orbit/ingest"
	"github.com/njsecure/orbit/queue"
	"github.com/njsecure/orbit/semantic"
	"github.com/njsecure/orbit/triples"
)

// Config is the complete orbit configuration.
type Config struct {
	Sources   SourcesConfig   `mapstructure:"sources" yaml:"sources"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline" yaml:"pipeline"`
	Triples   TriplesConfig   `mapstructure:"triples" yaml:"triples"`
	Semantic  SemanticConfig  `mapstructure:"semantic" yaml:"semantic"`
	Neo4j     Neo4jConfig     `mapstructure:"neo4j" yaml:"neo4j"`
	Queue     QueueConfig     `mapstructure:"queue" yaml:"queue"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`
}

// SourcesConfig locates the source data.
type SourcesConfig struct {
	Attack AttackConfig `mapstructure:"attack" yaml:"attack"`
	D3FEND D3FENDConfig `mapstructure:"d3fend" yaml:"d3fend"`

	// CacheDir holds downloaded documents. Empty disables the cache.
	CacheDir string        `mapstructure:"cache_dir" yaml:"cache_dir"`
	CacheTTL time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`

	// ForceRefresh ignores cached downloads.
	ForceRefresh bool `mapstructure:"force_refresh" yaml:"force_refresh"`
}

// AttackConfig locates the ATT&CK bundle.
type AttackConfig struct {
	// Location is a file path or http(s) URL.
	Location string `mapstructure:"location" yaml:"location"`
}

// D3FENDConfig locates and interprets the D3FEND ontology.
type D3FENDConfig struct {
	Location  string   `mapstructure:"location" yaml:"location"`
	Namespace string   `mapstructure:"namespace" yaml:"namespace"`
	Tactics   []string `mapstructure:"tactics" yaml:"tactics"`
}

// PipelineConfig holds the default run switches.
type PipelineConfig struct {
	Validate      bool          `mapstructure:"validate" yaml:"validate"`
	FailOnInvalid bool          `mapstructure:"fail_on_invalid" yaml:"fail_on_invalid"`
	StrictTriples bool          `mapstructure:"strict_triples" yaml:"strict_triples"`
	Learn         bool          `mapstructure:"learn" yaml:"learn"`
	FetchTimeout  time.Duration `mapstructure:"fetch_timeout" yaml:"fetch_timeout"`

	// Concurrency bounds parallel runs.
	Concurrency int `mapstructure:"concurrency" yaml:"concurrency"`
}

// TriplesConfig selects the allow-list store.
type TriplesConfig struct {
	// Backend is one of memory, file, redis, etcd or sqlite.
	Backend string `mapstructure:"backend" yaml:"backend"`

	// Path is the YAML file or SQLite database.
	Path string `mapstructure:"path" yaml:"path"`

	RedisURL string `mapstructure:"redis_url" yaml:"redis_url"`
	RedisKey string `mapstructure:"redis_key" yaml:"redis_key"`

	EtcdEndpoints   []string      `mapstructure:"etcd_endpoints" yaml:"etcd_endpoints"`
	EtcdPrefix      string        `mapstructure:"etcd_prefix" yaml:"etcd_prefix"`
	EtcdDialTimeout time.Duration `mapstructure:"etcd_dial_timeout" yaml:"etcd_dial_timeout"`
}

// SemanticConfig configures the optional plausibility checker.
type SemanticConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Provider string `mapstructure:"provider" yaml:"provider"`
	Model    string `mapstructure:"model" yaml:"model"`
	APIKey   string `mapstructure:"api_key" yaml:"api_key"`

	// Endpoint overrides the provider's base URL.
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	CacheEnabled bool `mapstructure:"cache_enabled" yaml:"cache_enabled"`
	SkipCache    bool `mapstructure:"skip_cache" yaml:"skip_cache"`

	// CacheRedisURL keeps judgments in Redis instead of memory.
	CacheRedisURL string        `mapstructure:"cache_redis_url" yaml:"cache_redis_url"`
	CacheTTL      time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`

	// RateLimit is judgments per second. Zero or less removes the limit.
	RateLimit float64 `mapstructure:"rate_limit" yaml:"rate_limit"`
	Burst     int     `mapstructure:"burst" yaml:"burst"`

	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries"`
}

// Neo4jConfig holds graph store connection settings.
type Neo4jConfig struct {
	URI            string        `mapstructure:"uri" yaml:"uri"`
	Username       string        `mapstructure:"username" yaml:"username"`
	Password       string        `mapstructure:"password" yaml:"password"`
	Database       string        `mapstructure:"database" yaml:"database"`
	BatchSize      int           `mapstructure:"batch_size" yaml:"batch_size"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout" yaml:"connect_timeout"`
}

// QueueConfig configures the distributed work queue used by
// "ingest --enqueue" and "worker".
type QueueConfig struct {
	RedisURL   string        `mapstructure:"redis_url" yaml:"redis_url"`
	Name       string        `mapstructure:"name" yaml:"name"`
	Workers    int           `mapstructure:"workers" yaml:"workers"`
	ResultTTL  time.Duration `mapstructure:"result_ttl" yaml:"result_ttl"`
	PopTimeout time.Duration `mapstructure:"pop_timeout" yaml:"pop_timeout"`

	// Heartbeat is how often a worker announces itself.
	Heartbeat time.Duration `mapstructure:"heartbeat" yaml:"heartbeat"`
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// TelemetryConfig controls tracing.
type TelemetryConfig struct {
	// Tracing records run and stage spans and logs them at debug level.
	Tracing     bool   `mapstructure:"tracing" yaml:"tracing"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
}

var (
	validLevels    = []string{"debug", "info", "warn", "error"}
	validFormats   = []string{"text", "json"}
	validBackends  = []string{triples.BackendMemory, triples.BackendFile, triples.BackendRedis, triples.BackendEtcd, triples.BackendSQLite}
	validProviders = []string{"openai", "anthropic"}
)

// Validate checks the configuration.
func (c *Config) Validate() error {
	var problems []string

	if c.Sources.CacheTTL < 0 {
		problems = append(problems, "sources.cache_ttl must not be negative")
	}
	if c.Pipeline.FetchTimeout < 0 {
		problems = append(problems, "pipeline.fetch_timeout must not be negative")
	}
	if c.Pipeline.Concurrency < 1 {
		problems = append(problems, "pipeline.concurrency must be at least 1")
	}

	if !slices.Contains(validBackends, c.Triples.Backend) {
		problems = append(problems, fmt.Sprintf("triples.backend must be one of %s, got %q",
			strings.Join(validBackends, ", "), c.Triples.Backend))
	}
	switch c.Triples.Backend {
	case triples.BackendFile, triples.BackendSQLite:
		if c.Triples.Path == "" {
			problems = append(problems, "triples.path is required for the "+c.Triples.Backend+" backend")
		}
	case triples.BackendEtcd:
		if len(c.Triples.EtcdEndpoints) == 0 {
			problems = append(problems, "triples.etcd_endpoints is required for the etcd backend")
		}
	}

	if c.Semantic.Enabled {
		if !slices.Contains(validProviders, c.Semantic.Provider) {
			problems = append(problems, fmt.Sprintf("semantic.provider must be one of %s, got %q",
				strings.Join(validProviders, ", "), c.Semantic.Provider))
		}
		if c.Semantic.APIKey == "" {
			problems = append(problems, "semantic.api_key is required when semantic checking is enabled")
		}
	}
	if c.Semantic.MaxRetries < 0 {
		problems = append(problems, "semantic.max_retries must not be negative")
	}

	if c.Neo4j.BatchSize < 0 {
		problems = append(problems, "neo4j.batch_size must not be negative")
	}

	if c.Queue.Name == "" {
		problems = append(problems, "queue.name is required")
	}
	if c.Queue.Workers < 1 {
		problems = append(problems, "queue.workers must be at least 1")
	}
	if c.Queue.ResultTTL < 0 {
		problems = append(problems, "queue.result_ttl must not be negative")
	}
	if c.Queue.PopTimeout < time.Second {
		problems = append(problems, "queue.pop_timeout must be at least 1s")
	}

	if !slices.Contains(validLevels, strings.ToLower(c.Logging.Level)) {
		problems = append(problems, fmt.Sprintf("logging.level must be one of %s, got %q",
			strings.Join(validLevels, ", "), c.Logging.Level))
	}
	if !slices.Contains(validFormats, strings.ToLower(c.Logging.Format)) {
		problems = append(problems, fmt.Sprintf("logging.format must be one of %s, got %q",
			strings.Join(validFormats, ", "), c.Logging.Format))
	}

	if len(problems) > 0 {
		return orbit.NewConfigurationError("Config.Validate",
			fmt.Errorf("%w: %s", orbit.ErrInvalidConfig, strings.Join(problems, "; ")))
	}
	return nil
}

// AdapterOptions returns the adapter settings for the configured sources.
func (c *Config) AdapterOptions() []adapter.Option {
	opts := []adapter.Option{
		adapter.WithCacheDir(c.Sources.CacheDir),
		adapter.WithForceRefresh(c.Sources.ForceRefresh),
	}
	if c.Sources.CacheTTL > 0 {
		opts = append(opts, adapter.WithCacheTTL(c.Sources.CacheTTL))
	}
	if c.Sources.D3FEND.Namespace != "" {
		opts = append(opts, adapter.WithD3FENDNamespace(c.Sources.D3FEND.Namespace))
	}
	if len(c.Sources.D3FEND.Tactics) > 0 {
		opts = append(opts, adapter.WithD3FENDTactics(c.Sources.D3FEND.Tactics...))
	}
	return opts
}

// Location returns the configured location for source, or "" when none is
// configured.
func (c *Config) Location(source string) string {
	switch source {
	case adapter.AttackSource:
		return c.Sources.Attack.Location
	case adapter.D3FENDSource:
		return c.Sources.D3FEND.Location
	default:
		return ""
	}
}

// IngestOptions returns the default run options.
func (c *Config) IngestOptions() ingest.Options {
	return ingest.Options{
		Validate:      c.Pipeline.Validate,
		FailOnInvalid: c.Pipeline.FailOnInvalid,
		StrictTriples: c.Pipeline.StrictTriples,
		Learn:         c.Pipeline.Learn,
		FetchTimeout:  c.Pipeline.FetchTimeout,
	}
}

// StoreConfig returns the allow-list store configuration.
func (c *Config) StoreConfig() triples.Config {
	return triples.Config{
		Backend: c.Triples.Backend,
		Path:    c.Triples.Path,
		Redis: triples.RedisOptions{
			URL: c.Triples.RedisURL,
			Key: c.Triples.RedisKey,
		},
		Etcd: triples.EtcdConfig{
			Endpoints:   c.Triples.EtcdEndpoints,
			Prefix:      c.Triples.EtcdPrefix,
			DialTimeout: c.Triples.EtcdDialTimeout,
		},
	}
}

// ModelConfig returns the language model selection.
func (c *Config) ModelConfig() semantic.ModelConfig {
	return semantic.ModelConfig{
		Provider: c.Semantic.Provider,
		Model:    c.Semantic.Model,
		APIKey:   c.Semantic.APIKey,
		BaseURL:  c.Semantic.Endpoint,
	}
}

// GraphStoreConfig returns the Neo4j connection settings.
func (c *Config) GraphStoreConfig() graphstore.Neo4jConfig {
	return graphstore.Neo4jConfig{
		URI:            c.Neo4j.URI,
		Username:       c.Neo4j.Username,
		Password:       c.Neo4j.Password,
		Database:       c.Neo4j.Database,
		BatchSize:      c.Neo4j.BatchSize,
		ConnectTimeout: c.Neo4j.ConnectTimeout,
	}
}

// QueueOptions returns the Redis settings for the work queue.
func (c *Config) QueueOptions() queue.RedisOptions {
	return queue.RedisOptions{
		URL:        c.Queue.RedisURL,
		PopTimeout: c.Queue.PopTimeout,
	}
}

// Redacted returns a copy with secrets masked, for display.
func (c *Config) Redacted() *Config {
	out := *c
	out.Sources.D3FEND.Tactics = append([]string(nil), c.Sources.D3FEND.Tactics...)
	out.Triples.EtcdEndpoints = append([]string(nil), c.Triples.EtcdEndpoints...)
	out.Semantic.APIKey = mask(c.Semantic.APIKey)
	out.Neo4j.Password = mask(c.Neo4j.Password)
	out.Queue.RedisURL = maskURL(c.Queue.RedisURL)
	out.Triples.RedisURL = maskURL(c.Triples.RedisURL)
	out.Semantic.CacheRedisURL = maskURL(c.Semantic.CacheRedisURL)
	return &out
}

// maskURL hides the password of a connection URL.
func maskURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if _, ok := u.User.Password(); !ok {
		return raw
	}
	u.User = url.UserPassword(u.User.Username(), "xxxxx")
	return u.String()
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "********"
}

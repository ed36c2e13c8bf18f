package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/njsecure/orbit/adapter"
	"github.com/njsecure/orbit/graphstore"
	"github.com/njsecure/orbit/ingest"
	"github.com/njsecure/orbit/queue"
	"github.com/njsecure/orbit/triples"
)

// Default locations.
const (
	DefaultAttackFile   = "attack-graph/stix-data/enterprise-attack.json"
	DefaultD3FENDFile   = "data/d3fend.json"
	DefaultTriplesFile  = "orbit-triples.yaml"
	DefaultNeo4jURI     = "bolt://localhost:7687"
	DefaultNeo4jDB      = "unified"
	DefaultLLMProvider  = "openai"
	DefaultLLMModel     = "gpt-4o-mini"
	DefaultServiceName  = "orbit"
	defaultConcurrency  = 4
	defaultSemanticRate = 5
)

// SetDefaults registers every key's default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("sources.attack.location", adapter.DefaultAttackURL)
	v.SetDefault("sources.d3fend.location", DefaultD3FENDFile)
	v.SetDefault("sources.d3fend.namespace", adapter.DefaultD3FENDNamespace)
	v.SetDefault("sources.d3fend.tactics", adapter.DefaultD3FENDTactics)
	v.SetDefault("sources.cache_dir", defaultCacheDir())
	v.SetDefault("sources.cache_ttl", adapter.DefaultCacheTTL)
	v.SetDefault("sources.force_refresh", false)

	opts := ingest.DefaultOptions()
	v.SetDefault("pipeline.validate", opts.Validate)
	v.SetDefault("pipeline.fail_on_invalid", opts.FailOnInvalid)
	v.SetDefault("pipeline.strict_triples", opts.StrictTriples)
	v.SetDefault("pipeline.learn", opts.Learn)
	v.SetDefault("pipeline.fetch_timeout", opts.FetchTimeout)
	v.SetDefault("pipeline.concurrency", defaultConcurrency)

	v.SetDefault("triples.backend", triples.BackendFile)
	v.SetDefault("triples.path", DefaultTriplesFile)
	v.SetDefault("triples.redis_url", "redis://localhost:6379")
	v.SetDefault("triples.redis_key", triples.DefaultRedisKey)
	v.SetDefault("triples.etcd_endpoints", []string{})
	v.SetDefault("triples.etcd_prefix", triples.DefaultEtcdPrefix)
	v.SetDefault("triples.etcd_dial_timeout", 5*time.Second)

	v.SetDefault("semantic.enabled", false)
	v.SetDefault("semantic.provider", DefaultLLMProvider)
	v.SetDefault("semantic.model", DefaultLLMModel)
	v.SetDefault("semantic.api_key", "")
	v.SetDefault("semantic.endpoint", "")
	v.SetDefault("semantic.cache_enabled", true)
	v.SetDefault("semantic.skip_cache", false)
	v.SetDefault("semantic.cache_redis_url", "")
	v.SetDefault("semantic.cache_ttl", time.Duration(0))
	v.SetDefault("semantic.rate_limit", defaultSemanticRate)
	v.SetDefault("semantic.burst", 1)
	v.SetDefault("semantic.max_retries", 2)

	v.SetDefault("neo4j.uri", DefaultNeo4jURI)
	v.SetDefault("neo4j.username", "neo4j")
	v.SetDefault("neo4j.password", "")
	v.SetDefault("neo4j.database", DefaultNeo4jDB)
	v.SetDefault("neo4j.batch_size", graphstore.DefaultBatchSize)
	v.SetDefault("neo4j.connect_timeout", 30*time.Second)

	v.SetDefault("queue.redis_url", "redis://localhost:6379")
	v.SetDefault("queue.name", queue.DefaultQueue)
	v.SetDefault("queue.workers", 1)
	v.SetDefault("queue.result_ttl", queue.DefaultResultTTL)
	v.SetDefault("queue.pop_timeout", queue.DefaultPopTimeout)
	v.SetDefault("queue.heartbeat", queue.DefaultHeartbeatInterval)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	v.SetDefault("telemetry.tracing", false)
	v.SetDefault("telemetry.service_name", DefaultServiceName)
}

// legacyEnv maps keys to the environment names used by earlier ingest
// tooling, in precedence order after the ORBIT_ name.
var legacyEnv = map[string][]string{
	"sources.attack.location":  {"UNIFIED_INGEST_STIX_FILE", "STIX_FILE"},
	"sources.d3fend.location":  {"UNIFIED_INGEST_D3FEND_JSONLD_PATH", "D3FEND_JSONLD_PATH"},
	"sources.d3fend.namespace": {"UNIFIED_INGEST_D3FEND_NS", "D3FEND_NS"},
	"sources.d3fend.tactics":   {"UNIFIED_INGEST_D3FEND_TACTIC_NAMES", "D3FEND_TACTIC_NAMES"},
	"sources.force_refresh":    {"UNIFIED_INGEST_FORCE_REFRESH_DATA"},
	"neo4j.uri":                {"UNIFIED_INGEST_NEO4J_URI", "NEO4J_URI"},
	"neo4j.username":           {"UNIFIED_INGEST_NEO4J_USER", "NEO4J_USER"},
	"neo4j.password":           {"UNIFIED_INGEST_NEO4J_PASS", "NEO4J_PASS"},
	"neo4j.database":           {"UNIFIED_INGEST_NEO4J_DB", "NEO4J_DB"},
	"semantic.enabled":         {"UNIFIED_INGEST_USE_LLM_VALIDATION"},
	"semantic.provider":        {"UNIFIED_INGEST_LLM_PROVIDER", "LLM_PROVIDER"},
	"semantic.model":           {"UNIFIED_INGEST_LLM_MODEL", "LLM_MODEL"},
	"semantic.api_key":         {"UNIFIED_INGEST_LLM_API_KEY", "LLM_API_KEY"},
	"semantic.cache_enabled":   {"UNIFIED_INGEST_LLM_CACHE_ENABLED"},
	"semantic.skip_cache":      {"UNIFIED_INGEST_SKIP_LLM_CACHE"},
	"queue.redis_url":          {"REDIS_URL"},
}

// BindLegacyEnv binds the ORBIT_ name and the legacy aliases for each key
// in legacyEnv.
func BindLegacyEnv(v *viper.Viper) {
	for key, names := range legacyEnv {
		_ = v.BindEnv(append([]string{key, envName(key)}, names...)...)
	}
}

func defaultCacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "orbit")
}

// envName returns the ORBIT_ variable for key.
func envName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

package semantic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/njsecure/orbit"
	"github.com/njsecure/orbit/graph"
)

// Cache stores judgments by triple signature.
type Cache interface {
	Get(ctx context.Context, triple graph.Triple) (Judgment, bool, error)
	Set(ctx context.Context, triple graph.Triple, j Judgment) error
}

// MemoryCache is a process-local Cache.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[graph.Triple]Judgment
}

// NewMemoryCache creates an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[graph.Triple]Judgment)}
}

// Get returns the cached judgment.
func (c *MemoryCache) Get(_ context.Context, t graph.Triple) (Judgment, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	j, ok := c.entries[t]
	return j, ok, nil
}

// Set stores a judgment.
func (c *MemoryCache) Set(_ context.Context, t graph.Triple, j Judgment) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[t] = j
	return nil
}

// Len returns the number of cached judgments.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// DefaultRedisPrefix prefixes judgment keys.
const DefaultRedisPrefix = "orbit:judgment:"

// RedisCache stores judgments as JSON strings with an optional TTL.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCache wraps a connected client. A zero ttl keeps entries forever.
func NewRedisCache(client *redis.Client, prefix string, ttl time.Duration) *RedisCache {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisCache{client: client, prefix: prefix, ttl: ttl}
}

// Get returns the cached judgment.
func (c *RedisCache) Get(ctx context.Context, t graph.Triple) (Judgment, bool, error) {
	data, err := c.client.Get(ctx, c.prefix+t.Key()).Bytes()
	if errors.Is(err, redis.Nil) {
		return Judgment{}, false, nil
	}
	if err != nil {
		return Judgment{}, false, orbit.NewStorageError("RedisCache.Get", err)
	}

	var j Judgment
	if err := json.Unmarshal(data, &j); err != nil {
		return Judgment{}, false, orbit.NewStorageError("RedisCache.Get", fmt.Errorf("decode judgment: %w", err))
	}
	return j, true, nil
}

// Set stores a judgment.
func (c *RedisCache) Set(ctx context.Context, t graph.Triple, j Judgment) error {
	data, err := json.Marshal(j)
	if err != nil {
		return orbit.NewStorageError("RedisCache.Set", err)
	}
	if err := c.client.Set(ctx, c.prefix+t.Key(), data, c.ttl).Err(); err != nil {
		return orbit.NewStorageError("RedisCache.Set", err)
	}
	return nil
}

// CachedChecker consults a Cache before delegating to another Checker.
type CachedChecker struct {
	checker Checker
	cache   Cache
}

// NewCachedChecker wraps checker with cache.
func NewCachedChecker(checker Checker, cache Cache) *CachedChecker {
	return &CachedChecker{checker: checker, cache: cache}
}

// Judge returns the cached judgment or asks the wrapped checker and caches
// its answer. Cache failures fall through to the checker.
func (c *CachedChecker) Judge(ctx context.Context, t graph.Triple, source string) (Judgment, error) {
	if j, ok, err := c.cache.Get(ctx, t); err == nil && ok {
		return j, nil
	}

	j, err := c.checker.Judge(ctx, t, source)
	if err != nil {
		return Judgment{}, err
	}
	// The judgment is still usable when caching fails.
	_ = c.cache.Set(ctx, t, j)
	return j, nil
}

package triples

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/njsecure/orbit"
	"github.com/njsecure/orbit/graph"
)

// DefaultRedisKey is the set holding the allow-list.
const DefaultRedisKey = "orbit:triples"

// RedisOptions configures the Redis connection.
type RedisOptions struct {
	// URL is the Redis connection string (e.g., "redis://localhost:6379").
	URL string

	// Key is the set key. Defaults to DefaultRedisKey.
	Key string

	// TLS configuration for secure connections.
	TLS *tls.Config

	// ConnectTimeout is the maximum time to wait for connection establishment.
	ConnectTimeout time.Duration
}

// RedisStore keeps the allow-list in a Redis set of triple keys.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	if opts.URL == "" {
		opts.URL = "redis://localhost:6379"
	}
	if opts.Key == "" {
		opts.Key = DefaultRedisKey
	}
	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = 5 * time.Second
	}

	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, orbit.NewConfigurationError("triples.NewRedisStore",
			fmt.Errorf("%w: parse Redis URL: %w", orbit.ErrInvalidConfig, err))
	}
	redisOpts.TLSConfig = opts.TLS
	redisOpts.DialTimeout = opts.ConnectTimeout

	client := redis.NewClient(redisOpts)

	pingCtx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, orbit.NewStorageError("triples.NewRedisStore", fmt.Errorf("connect to Redis: %w", err))
	}

	return &RedisStore{client: client, key: opts.Key}, nil
}

// Load reads every member of the set.
func (s *RedisStore) Load(ctx context.Context) (graph.TripleSet, error) {
	members, err := s.client.SMembers(ctx, s.key).Result()
	if err != nil {
		return graph.TripleSet{}, orbit.NewStorageError("RedisStore.Load", err)
	}

	triples := make([]graph.Triple, 0, len(members))
	for _, m := range members {
		t, err := graph.ParseTripleKey(m)
		if err != nil {
			return graph.TripleSet{}, orbit.NewStorageError("RedisStore.Load", err)
		}
		triples = append(triples, t)
	}
	return versioned(triples), nil
}

// Add adds triples with a single SADD.
func (s *RedisStore) Add(ctx context.Context, triples []graph.Triple) error {
	if len(triples) == 0 {
		return nil
	}
	if err := validate("RedisStore.Add", triples); err != nil {
		return err
	}

	members := make([]any, len(triples))
	for i, t := range triples {
		members[i] = t.Key()
	}
	if err := s.client.SAdd(ctx, s.key, members...).Err(); err != nil {
		return orbit.NewStorageError("RedisStore.Add", err)
	}
	return nil
}

// Ping checks the connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

package queue

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/njsecure/orbit"
	"github.com/njsecure/orbit/ingest"
)

// DefaultQueue is the list ingestion jobs are pushed to.
const DefaultQueue = "orbit:ingest:queue"

// DefaultPopTimeout is how long Pop blocks when RedisOptions leaves it unset.
const DefaultPopTimeout = 2 * time.Second

const (
	resultsPrefix = "orbit:results:"
	resultPrefix  = "orbit:result:"
	workerPrefix  = "orbit:worker:"
	healthSuffix  = ":health"
)

// ResultsChannel returns the pub/sub channel of a batch.
func ResultsChannel(jobID string) string {
	return resultsPrefix + jobID
}

// ResultKey returns the key holding the full result of one item.
func ResultKey(jobID string, index int) string {
	return formatKeyName(strings.TrimSuffix(resultPrefix, ":"), jobID, strconv.Itoa(index))
}

// Client defines the operations on the Redis work queue.
type Client interface {
	// Push adds a work item to the end of a queue (LPUSH).
	Push(ctx context.Context, queue string, item WorkItem) error

	// Pop removes and returns the item at the front of a queue (BRPOP). It
	// returns nil without error when the pop timeout passes with no item.
	Pop(ctx context.Context, queue string) (*WorkItem, error)

	// Publish sends a result to a pub/sub channel.
	Publish(ctx context.Context, channel string, result Result) error

	// Subscribe returns a channel that receives results until ctx is done.
	Subscribe(ctx context.Context, channel string) (<-chan Result, error)

	// StoreResult saves a full ingest result under key.
	StoreResult(ctx context.Context, key string, res *ingest.Result, ttl time.Duration) error

	// LoadResult reads a result saved by StoreResult.
	LoadResult(ctx context.Context, key string) (*ingest.Result, error)

	// Heartbeat marks a worker alive for ttl.
	Heartbeat(ctx context.Context, workerID string, ttl time.Duration) error

	// Workers returns the ids of workers with a live heartbeat, sorted.
	Workers(ctx context.Context) ([]string, error)

	// Len returns the number of pending items in a queue.
	Len(ctx context.Context, queue string) (int64, error)

	// Ping checks the connection.
	Ping(ctx context.Context) error

	// Close closes the Redis connection.
	Close() error
}

// RedisOptions configures the Redis connection.
type RedisOptions struct {
	// URL is the Redis connection string (e.g., "redis://localhost:6379")
	URL string

	// TLS configuration for secure connections
	TLS *tls.Config

	// ConnectTimeout is the maximum time to wait for connection establishment
	ConnectTimeout time.Duration

	// PopTimeout is how long Pop blocks waiting for an item.
	PopTimeout time.Duration

	// WriteTimeout is the maximum time to wait for write operations
	WriteTimeout time.Duration
}

// ErrResultNotFound is returned by LoadResult for a missing or expired key.
var ErrResultNotFound = errors.New("result not found")

// RedisClient implements Client using go-redis/v9.
type RedisClient struct {
	client     *redis.Client
	popTimeout time.Duration
}

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(opts RedisOptions) (*RedisClient, error) {
	if opts.URL == "" {
		opts.URL = "redis://localhost:6379"
	}
	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = 5 * time.Second
	}
	if opts.PopTimeout == 0 {
		opts.PopTimeout = DefaultPopTimeout
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = 5 * time.Second
	}

	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, orbit.NewConfigurationError("queue.NewRedisClient",
			fmt.Errorf("%w: failed to parse Redis URL: %w", orbit.ErrInvalidConfig, err))
	}

	redisOpts.TLSConfig = opts.TLS
	redisOpts.DialTimeout = opts.ConnectTimeout
	// Blocking pops must outlive the read deadline.
	redisOpts.ReadTimeout = opts.PopTimeout + 5*time.Second
	redisOpts.WriteTimeout = opts.WriteTimeout

	client := redis.NewClient(redisOpts)

	ctx, cancel := context.WithTimeout(context.Background(), opts.ConnectTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, orbit.NewStorageError("queue.NewRedisClient", fmt.Errorf("failed to connect to Redis: %w", err))
	}

	return &RedisClient{client: client, popTimeout: opts.PopTimeout}, nil
}

// Push adds a work item to the end of a queue.
func (c *RedisClient) Push(ctx context.Context, queue string, item WorkItem) error {
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to marshal work item: %w", err)
	}

	if err := c.client.LPush(ctx, queue, data).Err(); err != nil {
		return orbit.NewStorageError("queue.Push", fmt.Errorf("failed to push to queue %s: %w", queue, err))
	}
	return nil
}

// Pop removes and returns a work item from the front of a queue.
func (c *RedisClient) Pop(ctx context.Context, queue string) (*WorkItem, error) {
	// BRPOP returns [queue_name, value], or redis.Nil on timeout.
	result, err := c.client.BRPop(ctx, c.popTimeout, queue).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, orbit.NewStorageError("queue.Pop", fmt.Errorf("failed to pop from queue %s: %w", queue, err))
	}

	if len(result) != 2 {
		return nil, fmt.Errorf("unexpected BRPOP result length: %d", len(result))
	}

	var item WorkItem
	if err := json.Unmarshal([]byte(result[1]), &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal work item: %w", err)
	}
	return &item, nil
}

// Publish sends a result to a pub/sub channel.
func (c *RedisClient) Publish(ctx context.Context, channel string, result Result) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	if err := c.client.Publish(ctx, channel, data).Err(); err != nil {
		return orbit.NewStorageError("queue.Publish", fmt.Errorf("failed to publish to channel %s: %w", channel, err))
	}
	return nil
}

// Subscribe creates a subscription to a pub/sub channel.
func (c *RedisClient) Subscribe(ctx context.Context, channel string) (<-chan Result, error) {
	pubsub := c.client.Subscribe(ctx, channel)

	// Wait for subscription confirmation
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, orbit.NewStorageError("queue.Subscribe", fmt.Errorf("failed to subscribe to channel %s: %w", channel, err))
	}

	resultChan := make(chan Result)

	go func() {
		defer close(resultChan)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var result Result
				if err := json.Unmarshal([]byte(msg.Payload), &result); err != nil {
					continue
				}

				select {
				case resultChan <- result:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return resultChan, nil
}

// StoreResult saves res as JSON. A zero ttl keeps it forever.
func (c *RedisClient) StoreResult(ctx context.Context, key string, res *ingest.Result, ttl time.Duration) error {
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return orbit.NewStorageError("queue.StoreResult", fmt.Errorf("failed to store result %s: %w", key, err))
	}
	return nil
}

// LoadResult reads a stored result.
func (c *RedisClient) LoadResult(ctx context.Context, key string) (*ingest.Result, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", ErrResultNotFound, key)
		}
		return nil, orbit.NewStorageError("queue.LoadResult", fmt.Errorf("failed to load result %s: %w", key, err))
	}

	var res ingest.Result
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result %s: %w", key, err)
	}
	return &res, nil
}

// Heartbeat updates the health key of a worker.
func (c *RedisClient) Heartbeat(ctx context.Context, workerID string, ttl time.Duration) error {
	healthKey := workerPrefix + workerID + healthSuffix
	if err := c.client.Set(ctx, healthKey, time.Now().UTC().Format(time.RFC3339), ttl).Err(); err != nil {
		return orbit.NewStorageError("queue.Heartbeat", fmt.Errorf("failed to set heartbeat for worker %s: %w", workerID, err))
	}
	return nil
}

// Workers lists the workers whose heartbeat has not expired.
func (c *RedisClient) Workers(ctx context.Context) ([]string, error) {
	var ids []string
	iter := c.client.Scan(ctx, 0, workerPrefix+"*"+healthSuffix, 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		ids = append(ids, strings.TrimSuffix(strings.TrimPrefix(key, workerPrefix), healthSuffix))
	}
	if err := iter.Err(); err != nil {
		return nil, orbit.NewStorageError("queue.Workers", fmt.Errorf("failed to scan worker heartbeats: %w", err))
	}
	sort.Strings(ids)
	return ids, nil
}

// Len returns the number of pending items.
func (c *RedisClient) Len(ctx context.Context, queue string) (int64, error) {
	n, err := c.client.LLen(ctx, queue).Result()
	if err != nil {
		return 0, orbit.NewStorageError("queue.Len", err)
	}
	return n, nil
}

// Ping checks the connection.
func (c *RedisClient) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return orbit.NewStorageError("queue.Ping", err)
	}
	return nil
}

// Close closes the Redis connection.
func (c *RedisClient) Close() error {
	return c.client.Close()
}

// formatKeyName joins key parts with ':'.
func formatKeyName(parts ...string) string {
	return strings.Join(parts, ":")
}

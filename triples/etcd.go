package triples

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/njsecure/orbit"
	"github.com/njsecure/orbit/graph"
)

// DefaultEtcdPrefix is the key prefix under which triples are stored.
const DefaultEtcdPrefix = "/orbit/triples/"

// EtcdConfig configures the etcd connection.
type EtcdConfig struct {
	Endpoints   []string
	Prefix      string
	DialTimeout time.Duration
}

// EtcdStore keeps one key per triple under a prefix. Adds are a single
// transaction.
type EtcdStore struct {
	client *clientv3.Client
	prefix string
	owned  bool
}

// NewEtcdStore connects to the etcd cluster and verifies connectivity.
func NewEtcdStore(ctx context.Context, cfg EtcdConfig) (*EtcdStore, error) {
	if len(cfg.Endpoints) == 0 {
		return nil, orbit.NewConfigurationError("triples.NewEtcdStore",
			fmt.Errorf("%w: etcd endpoints cannot be empty", orbit.ErrInvalidConfig))
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 5 * time.Second
	}

	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: cfg.DialTimeout,
	})
	if err != nil {
		return nil, orbit.NewStorageError("triples.NewEtcdStore", fmt.Errorf("create etcd client: %w", err))
	}

	checkCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	if _, err := cli.Status(checkCtx, cfg.Endpoints[0]); err != nil {
		_ = cli.Close()
		return nil, orbit.NewStorageError("triples.NewEtcdStore", fmt.Errorf("etcd health check failed: %w", err))
	}

	s := NewEtcdStoreFromClient(cli, cfg.Prefix)
	s.owned = true
	return s, nil
}

// NewEtcdStoreFromClient wraps an existing client. Close does not close it.
func NewEtcdStoreFromClient(cli *clientv3.Client, prefix string) *EtcdStore {
	if prefix == "" {
		prefix = DefaultEtcdPrefix
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &EtcdStore{client: cli, prefix: prefix}
}

// Load lists every key under the prefix.
func (s *EtcdStore) Load(ctx context.Context) (graph.TripleSet, error) {
	resp, err := s.client.Get(ctx, s.prefix, clientv3.WithPrefix(), clientv3.WithKeysOnly())
	if err != nil {
		return graph.TripleSet{}, orbit.NewStorageError("EtcdStore.Load", err)
	}

	triples := make([]graph.Triple, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		t, err := s.decodeKey(string(kv.Key))
		if err != nil {
			return graph.TripleSet{}, orbit.NewStorageError("EtcdStore.Load", err)
		}
		triples = append(triples, t)
	}
	return versioned(triples), nil
}

// Add writes all triples in one transaction.
func (s *EtcdStore) Add(ctx context.Context, triples []graph.Triple) error {
	if len(triples) == 0 {
		return nil
	}
	if err := validate("EtcdStore.Add", triples); err != nil {
		return err
	}

	ops := make([]clientv3.Op, 0, len(triples))
	for _, t := range triples {
		ops = append(ops, clientv3.OpPut(s.encodeKey(t), t.String()))
	}
	if _, err := s.client.Txn(ctx).Then(ops...).Commit(); err != nil {
		return orbit.NewStorageError("EtcdStore.Add", err)
	}
	return nil
}

// Ping asks the first endpoint for its status.
func (s *EtcdStore) Ping(ctx context.Context) error {
	endpoints := s.client.Endpoints()
	if len(endpoints) == 0 {
		return errors.New("etcd client has no endpoints")
	}
	_, err := s.client.Status(ctx, endpoints[0])
	return err
}

// Close closes the client if the store created it.
func (s *EtcdStore) Close() error {
	if !s.owned {
		return nil
	}
	return s.client.Close()
}

func (s *EtcdStore) encodeKey(t graph.Triple) string {
	return s.prefix + t.Key()
}

func (s *EtcdStore) decodeKey(key string) (graph.Triple, error) {
	if !strings.HasPrefix(key, s.prefix) {
		return graph.Triple{}, fmt.Errorf("key %q outside prefix %q", key, s.prefix)
	}
	return graph.ParseTripleKey(strings.TrimPrefix(key, s.prefix))
}

package triples

import (
	"context"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/njsecure/orbit"
)

func setupRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	s, err := NewRedisStore(context.Background(), RedisOptions{URL: fmt.Sprintf("redis://%s", mr.Addr())})
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = s.Close()
	})
	return s, mr
}

func TestRedisStore(t *testing.T) {
	s, mr := setupRedisStore(t)

	exerciseStore(t, s)

	members, err := mr.Members(DefaultRedisKey)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		"malware|uses|attack-pattern",
		"course-of-action|mitigates|attack-pattern",
		"tool|uses|attack-pattern",
	}, members)

	require.NoError(t, s.Ping(context.Background()))
}

func TestRedisStoreCorruptMember(t *testing.T) {
	s, mr := setupRedisStore(t)
	_, err := mr.SetAdd(DefaultRedisKey, "not-a-triple")
	require.NoError(t, err)

	_, err = s.Load(context.Background())
	assert.ErrorIs(t, err, orbit.ErrStoreFailed)
}

func TestRedisStoreConnectionErrors(t *testing.T) {
	_, err := NewRedisStore(context.Background(), RedisOptions{URL: "://bad"})
	assert.ErrorIs(t, err, orbit.ErrInvalidConfig)

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	_, err = NewRedisStore(context.Background(), RedisOptions{URL: "redis://" + addr})
	assert.ErrorIs(t, err, orbit.ErrStoreFailed)
}

func TestRedisStoreServerDown(t *testing.T) {
	s, mr := setupRedisStore(t)
	mr.Close()

	_, err := s.Load(context.Background())
	assert.ErrorIs(t, err, orbit.ErrStoreFailed)
	assert.ErrorIs(t, s.Add(context.Background(), sortedTriple), orbit.ErrStoreFailed)
}

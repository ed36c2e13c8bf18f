package triples

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/njsecure/orbit"
	"github.com/njsecure/orbit/graph"
)

// failingStore fails every call.
type failingStore struct{}

func (failingStore) Load(context.Context) (graph.TripleSet, error) {
	return graph.TripleSet{}, orbit.NewStorageError("failingStore.Load", errors.New("down"))
}

func (failingStore) Add(context.Context, []graph.Triple) error {
	return orbit.NewStorageError("failingStore.Add", errors.New("down"))
}

func (failingStore) Close() error { return nil }

func TestLearnerSnapshotIsStable(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(usesPattern)
	l := NewLearner(store, nil)

	snap, err := l.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Len())

	added, err := l.Propose(ctx, []graph.Triple{mitigates, usesPattern, mitigates})
	require.NoError(t, err)
	assert.Equal(t, []graph.Triple{mitigates}, added)

	assert.Equal(t, 1, snap.Len(), "earlier snapshots are unaffected")
	assert.False(t, snap.Contains(mitigates))

	next, err := l.Snapshot(ctx)
	require.NoError(t, err)
	assert.True(t, next.Contains(mitigates))
	assert.NotEqual(t, snap.Version(), next.Version())

	persisted, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, next.Version(), persisted.Version())
}

func TestLearnerProposeNothingNew(t *testing.T) {
	l := NewLearner(NewMemoryStore(usesPattern), nil)

	added, err := l.Propose(context.Background(), []graph.Triple{usesPattern})
	require.NoError(t, err)
	assert.Empty(t, added)

	added, err = l.Propose(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, added)
}

func TestLearnerConcurrentProposals(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	l := NewLearner(store, nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := l.Propose(ctx, []graph.Triple{
				{SourceType: fmt.Sprintf("type-%d", i), RelationshipType: "uses", TargetType: "attack-pattern"},
				usesPattern,
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	set, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 21, set.Len())

	snap, err := l.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, set.Version(), snap.Version())
}

func TestLearnerRefresh(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	l := NewLearner(store, nil)

	_, err := l.Snapshot(ctx)
	require.NoError(t, err)
	require.NoError(t, store.Add(ctx, []graph.Triple{toolUses}))

	stale, err := l.Snapshot(ctx)
	require.NoError(t, err)
	assert.True(t, stale.IsEmpty())

	fresh, err := l.Refresh(ctx)
	require.NoError(t, err)
	assert.True(t, fresh.Contains(toolUses))
}

func TestLearnerStoreErrors(t *testing.T) {
	l := NewLearner(failingStore{}, nil)

	_, err := l.Snapshot(context.Background())
	assert.ErrorIs(t, err, orbit.ErrStoreFailed)

	_, err = l.Propose(context.Background(), []graph.Triple{usesPattern})
	assert.ErrorIs(t, err, orbit.ErrStoreFailed)
}

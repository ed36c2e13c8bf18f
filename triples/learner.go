package triples

import (
	"context"
	"log/slog"
	"sync"

	"github.com/njsecure/orbit/graph"
)

// Learner serializes allow-list access between concurrent runs. Runs take an
// immutable Snapshot when they start and Propose what they learned when they
// finish; proposals are applied one at a time.
type Learner struct {
	store  Store
	logger *slog.Logger

	mu       sync.Mutex
	snapshot graph.TripleSet
	loaded   bool
}

// NewLearner creates a Learner over store. A nil logger uses slog.Default().
func NewLearner(store Store, logger *slog.Logger) *Learner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Learner{store: store, logger: logger}
}

// Snapshot returns the current allow-list, loading it from the store on
// first use. The returned set is never modified.
func (l *Learner) Snapshot(ctx context.Context) (graph.TripleSet, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.loaded {
		return l.snapshot, nil
	}
	set, err := l.store.Load(ctx)
	if err != nil {
		return graph.TripleSet{}, err
	}
	l.snapshot = set
	l.loaded = true
	return set, nil
}

// Refresh reloads the snapshot from the store, picking up writes made by
// other processes.
func (l *Learner) Refresh(ctx context.Context) (graph.TripleSet, error) {
	l.mu.Lock()
	l.loaded = false
	l.mu.Unlock()
	return l.Snapshot(ctx)
}

// Propose adds the triples not yet in the allow-list and returns them,
// sorted. The store write and the snapshot update happen together under the
// learner's lock, so concurrent proposals never lose each other's triples.
func (l *Learner) Propose(ctx context.Context, proposed []graph.Triple) ([]graph.Triple, error) {
	if len(proposed) == 0 {
		return nil, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.loaded {
		set, err := l.store.Load(ctx)
		if err != nil {
			return nil, err
		}
		l.snapshot = set
		l.loaded = true
	}

	added := l.snapshot.Missing(proposed)
	if len(added) == 0 {
		return nil, nil
	}
	if err := l.store.Add(ctx, added); err != nil {
		return nil, err
	}

	merged := l.snapshot.Union(added...)
	l.snapshot = merged.WithVersion(Version(merged.Sorted()))

	l.logger.Info("allow-list updated",
		"added", len(added),
		"size", l.snapshot.Len(),
		"version", l.snapshot.Version())
	return added, nil
}

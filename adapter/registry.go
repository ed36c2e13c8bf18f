package adapter

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/njsecure/orbit"
)

// Registry maps source names to adapters. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

// NewRegistry creates a registry holding the given adapters. Later adapters
// replace earlier ones with the same source name.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.SourceName()] = a
	}
	return r
}

// DefaultRegistry returns a registry with the attack and d3fend adapters,
// both configured with opts.
func DefaultRegistry(opts ...Option) *Registry {
	return NewRegistry(NewAttack(opts...), NewD3FEND(opts...))
}

// Register adds an adapter. Registering a name twice is an error.
func (r *Registry) Register(a Adapter) error {
	if a == nil {
		return orbit.NewConfigurationError("Registry.Register", fmt.Errorf("%w: adapter is nil", orbit.ErrInvalidConfig))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	name := a.SourceName()
	if name == "" {
		return orbit.NewConfigurationError("Registry.Register", fmt.Errorf("%w: adapter has no source name", orbit.ErrInvalidConfig))
	}
	if _, exists := r.adapters[name]; exists {
		return orbit.NewConfigurationError("Registry.Register",
			fmt.Errorf("%w: source %q already registered", orbit.ErrInvalidConfig, name))
	}
	r.adapters[name] = a
	return nil
}

// Get returns the adapter for source. An unknown source yields a
// configuration error matching orbit.ErrUnknownSource whose message lists
// the available sources.
func (r *Registry) Get(source string) (Adapter, error) {
	r.mu.RLock()
	a, ok := r.adapters[source]
	r.mu.RUnlock()

	if !ok {
		err := fmt.Errorf("%w: %s. Available: %s", orbit.ErrUnknownSource, source, strings.Join(r.Names(), ", "))
		return nil, orbit.NewConfigurationError("Registry.Get", err).
			WithContext(map[string]any{"source": source})
	}
	return a, nil
}

// Names returns the registered source names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

package wallet

import (
	"sync"

	"github.com/pkg/errors"
)

// ProviderType keys provider instances in a Registry.
type ProviderType string

const (
	TypeExtension ProviderType = "extension"
	TypeEmbedded  ProviderType = "embedded"
	TypeCrossApp  ProviderType = "cross-app"
)

// ProviderFactory constructs a provider instance on demand.
type ProviderFactory func() (Provider, error)

// Registry keeps at most one live instance per provider type, preventing
// duplicate listener registration and duplicate bridge initialization. It is
// an explicit object passed through the composition root; tests construct
// isolated registries per case.
type Registry struct {
	mu        sync.Mutex
	factories map[ProviderType]ProviderFactory
	instances map[ProviderType]Provider
}

func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[ProviderType]ProviderFactory),
		instances: make(map[ProviderType]Provider),
	}
}

// Register installs the factory for a provider type. Registering a type a
// second time replaces the factory and drops any existing instance.
func (r *Registry) Register(t ProviderType, factory ProviderFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[t] = factory
	delete(r.instances, t)
}

// Create returns the singleton instance for the type, constructing it on
// first use.
func (r *Registry) Create(t ProviderType) (Provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.instances[t]; ok {
		return p, nil
	}
	factory, ok := r.factories[t]
	if !ok {
		return nil, errors.Errorf("no factory registered for provider type %q", t)
	}
	p, err := factory()
	if err != nil {
		return nil, errors.Wrapf(err, "create %s provider", t)
	}
	r.instances[t] = p
	return p, nil
}

// Get returns the live instance for the type, if one was created.
func (r *Registry) Get(t ProviderType) (Provider, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.instances[t]
	return p, ok
}

// Clear drops the live instance for the type. The next Create constructs a
// fresh one.
func (r *Registry) Clear(t ProviderType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.instances, t)
}

package storage

import (
	"context"
	"fmt"
	"sync"
)

// Registry maps provider types to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[ProviderType]Factory
}

func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[ProviderType]Factory),
	}
}

func (r *Registry) Register(typ ProviderType, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[typ] = factory
}

// New builds a provider of the given type. Unregistered types (including
// the reserved local and dropbox variants) are an error, not a panic.
func (r *Registry) New(ctx context.Context, typ ProviderType, cfg ProviderConfig) (Provider, error) {
	r.mu.RLock()
	factory, ok := r.factories[typ]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("storage provider %q is not available", typ)
	}
	return factory(ctx, cfg)
}

func (r *Registry) Supports(typ ProviderType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[typ]
	return ok
}

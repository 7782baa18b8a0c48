package history

import (
	"fmt"
	"sync"
)

// Registry maps entity kinds to their adapters. Registration happens once at
// process start; resolution of an unknown kind is a hard error, since an
// unresolvable adapter means a reversal cannot be attempted at all.
type Registry struct {
	mu       sync.RWMutex
	adapters map[EntityKind]EntityAdapter
}

func NewRegistry() *Registry {
	return &Registry{adapters: make(map[EntityKind]EntityAdapter)}
}

// Register binds kind to adapter. Re-registering a kind is a wiring bug and
// fails loudly rather than silently shadowing the earlier adapter.
func (r *Registry) Register(kind EntityKind, adapter EntityAdapter) error {
	if kind == "" {
		return fmt.Errorf("register adapter: empty entity kind")
	}
	if adapter == nil {
		return fmt.Errorf("register adapter %q: nil adapter", kind)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.adapters[kind]; exists {
		return fmt.Errorf("register adapter %q: already registered", kind)
	}
	r.adapters[kind] = adapter
	return nil
}

// Resolve returns the adapter for kind, or ErrUnknownEntity.
func (r *Registry) Resolve(kind EntityKind) (EntityAdapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	adapter, ok := r.adapters[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEntity, kind)
	}
	return adapter, nil
}

// Kinds lists the registered entity kinds.
func (r *Registry) Kinds() []EntityKind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]EntityKind, 0, len(r.adapters))
	for k := range r.adapters {
		kinds = append(kinds, k)
	}
	return kinds
}

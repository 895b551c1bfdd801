package game

import (
	"fmt"
	"sync"
)

// Registry manages game type registration and lookup.
// It provides a thread-safe way to register and retrieve game types by key.
type Registry struct {
	types map[string]Type
	mu    sync.RWMutex
}

// NewRegistry creates a new game type registry.
func NewRegistry() *Registry {
	return &Registry{
		types: make(map[string]Type),
	}
}

// Register adds a game type to the registry.
// If a type with the same key already exists, it will be replaced.
func (r *Registry) Register(t Type) error {
	if t == nil {
		return fmt.Errorf("cannot register nil game type")
	}
	if t.Key() == "" {
		return fmt.Errorf("game type key cannot be empty")
	}
	if t.PlayerCount() < 1 {
		return fmt.Errorf("game type %q must require at least one player", t.Key())
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.types[t.Key()] = t
	return nil
}

// Get retrieves a game type by its key.
// Returns the type and true if found, nil and false otherwise.
func (r *Registry) Get(key string) (Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[key]
	return t, ok
}

// List returns all registered game types.
// The returned slice is a copy, so modifications won't affect the registry.
func (r *Registry) List() []Type {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]Type, 0, len(r.types))
	for _, t := range r.types {
		types = append(types, t)
	}
	return types
}

// Keys returns all registered game type keys.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.types))
	for key := range r.types {
		keys = append(keys, key)
	}
	return keys
}

// Count returns the number of registered game types.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.types)
}

package backend

import (
	"fmt"
	"sync"

	partforgeerrors "github.com/partforge/partforge/pkg/errors"
)

// Registry resolves plugin identifiers from part properties to backends.
type Registry struct {
	mu       sync.RWMutex
	backends map[string]Backend
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{backends: make(map[string]Backend)}
}

// Register adds a backend under its own name.
func (r *Registry) Register(b Backend) error {
	if b == nil {
		return partforgeerrors.NewInternalError("cannot register nil backend")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.backends[b.Name()]; exists {
		return fmt.Errorf("backend %q already registered", b.Name())
	}
	r.backends[b.Name()] = b
	return nil
}

// Get retrieves the backend registered under name.
func (r *Registry) Get(name string) (Backend, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.backends[name]
	if !ok {
		return nil, fmt.Errorf("no backend registered for plugin %q", name)
	}
	return b, nil
}

// Names lists the registered backend names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.backends))
	for name := range r.backends {
		out = append(out, name)
	}
	return out
}

package llm

import (
	"fmt"
	"sync"
)

// Registry is a thread-safe table of provider adapters keyed by provider id.
// Registration order is preserved so listings are stable.
type Registry struct {
	adapters map[string]Adapter
	order    []string
	mu       sync.RWMutex
}

// NewRegistry creates a registry holding the given adapters.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter, len(adapters))}
	for _, a := range adapters {
		r.Register(a)
	}
	return r
}

// Register adds an adapter. An adapter with the same id is replaced.
// Incomplete adapters are rejected with a panic since they can only come
// from programming errors.
func (r *Registry) Register(a Adapter) {
	if err := validateAdapter(a); err != nil {
		panic(err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.adapters[a.ID]; !exists {
		r.order = append(r.order, a.ID)
	}
	r.adapters[a.ID] = a
}

// Resolve returns the adapter for id. Unknown ids are a programming error
// and panic.
func (r *Registry) Resolve(id string) Adapter {
	a, ok := r.Lookup(id)
	if !ok {
		panic(fmt.Sprintf("llm: unknown provider %q", id))
	}
	return a
}

// Lookup returns the adapter for id, if registered.
func (r *Registry) Lookup(id string) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[id]
	return a, ok
}

// Has reports whether id is registered.
func (r *Registry) Has(id string) bool {
	_, ok := r.Lookup(id)
	return ok
}

// List returns provider ids in registration order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Adapters returns all adapters in registration order.
func (r *Registry) Adapters() []Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Adapter, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.adapters[id])
	}
	return out
}

// Len returns the number of registered adapters.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.adapters)
}

func validateAdapter(a Adapter) error {
	switch {
	case a.ID == "":
		return fmt.Errorf("llm: adapter id is required")
	case a.Endpoint == nil:
		return fmt.Errorf("llm: adapter %q has no endpoint", a.ID)
	case a.BuildRequest == nil:
		return fmt.Errorf("llm: adapter %q has no request builder", a.ID)
	case a.ParseResponse == nil:
		return fmt.Errorf("llm: adapter %q has no response parser", a.ID)
	}
	return nil
}

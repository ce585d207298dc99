package ecs

// Registry tracks all component stores and supports bulk cleanup on entity destroy.
type Registry struct {
	stores []Removable
}

func NewRegistry() *Registry {
	return &Registry{
		stores: make([]Removable, 0, 16),
	}
}

// Register adds a component store (or any per-entity table) to the registry.
func (r *Registry) Register(store Removable) {
	r.stores = append(r.stores, store)
}

// RemoveAll clears the given entity from every registered store.
func (r *Registry) RemoveAll(id EntityID) {
	for _, s := range r.stores {
		s.Remove(id)
	}
}

// NewStore creates a component store already registered for bulk cleanup.
func NewStore[T any](r *Registry) *PtrComponentStore[T] {
	s := NewPtrComponentStore[T]()
	r.Register(s)
	return s
}

// RemoveFunc adapts a plain function to Removable.
type RemoveFunc func(id EntityID)

func (f RemoveFunc) Remove(id EntityID) { f(id) }

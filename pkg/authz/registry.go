package authz

import (
	"context"
	"sync"
)

// LookupFunc reports whether an entity of a registered kind exists.
type LookupFunc func(ctx context.Context, id int64) (bool, error)

// Registry maps kind tags to existence checks supplied by the host. When a
// registry is installed on the Store, assignment writes validate their
// assignee and instance references through it instead of accepting
// arbitrary (kind, id) pairs.
type Registry struct {
	mu    sync.RWMutex
	kinds map[Kind]LookupFunc
}

// NewRegistry creates an empty kind registry.
func NewRegistry() *Registry {
	return &Registry{kinds: make(map[Kind]LookupFunc)}
}

// Register installs the lookup for a kind, replacing any previous one.
func (r *Registry) Register(kind Kind, fn LookupFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kinds[kind] = fn
}

// Registered reports whether the kind has a lookup installed.
func (r *Registry) Registered(kind Kind) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.kinds[kind]
	return ok
}

// Validate resolves the ref through its kind's lookup. It returns
// UnknownKindError for an unregistered kind and DanglingRefError when the
// lookup reports the id does not exist.
func (r *Registry) Validate(ctx context.Context, ref Ref) error {
	r.mu.RLock()
	fn, ok := r.kinds[ref.Kind]
	r.mu.RUnlock()

	if !ok {
		return &UnknownKindError{Kind: ref.Kind}
	}

	exists, err := fn(ctx, ref.ID)
	if err != nil {
		return err
	}
	if !exists {
		return &DanglingRefError{Ref: ref}
	}
	return nil
}

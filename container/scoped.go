package container

import (
	"context"
	"sync"
)

// Scoped wraps a base container with local instance overrides, used for
// isolated sub-agent contexts. Reads check overrides first and then delegate
// to the base container; the base is never mutated through a scope.
type Scoped struct {
	base      *Container
	mu        sync.RWMutex
	overrides map[string]any
}

// Scoped returns a new scope over the container.
func (c *Container) Scoped() *Scoped {
	return &Scoped{
		base:      c,
		overrides: make(map[string]any),
	}
}

// RegisterInstance adds a local override visible only within this scope.
func (s *Scoped) RegisterInstance(name string, instance any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrides[name] = instance
}

// Resolve returns the local override for name if present, otherwise
// delegates to the base container.
func (s *Scoped) Resolve(ctx context.Context, name string) (any, error) {
	s.mu.RLock()
	instance, ok := s.overrides[name]
	s.mu.RUnlock()
	if ok {
		return instance, nil
	}
	return s.base.Resolve(ctx, name)
}

// ResolveRequired is like Resolve but fails with ServiceNotFoundError when
// neither the scope nor the base knows the name.
func (s *Scoped) ResolveRequired(ctx context.Context, name string) (any, error) {
	s.mu.RLock()
	instance, ok := s.overrides[name]
	s.mu.RUnlock()
	if ok {
		return instance, nil
	}
	return s.base.ResolveRequired(ctx, name)
}

// Package container provides dependency resolution for named services.
//
// Information Hiding:
// - Descriptor storage and singleton caching hidden
// - Construction locking and initialization tracking hidden
// - Lifecycle management hidden behind the Lifecycle interface
package container

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Lifecycle is the explicit opt-in interface for services that need
// asynchronous initialization and teardown. Initialize is started (not
// awaited) when the service is first constructed; callers that need
// readiness must call EnsureReady. Cleanup is invoked during Shutdown.
type Lifecycle interface {
	Initialize(ctx context.Context) error
	Cleanup(ctx context.Context) error
}

// Factory constructs a service instance from its resolved dependencies.
type Factory func(ctx context.Context, deps Deps) (any, error)

// Deps holds the resolved named dependencies passed to a Factory.
type Deps map[string]any

// Get returns the dependency registered under name, or nil.
func (d Deps) Get(name string) any {
	return d[name]
}

type lifetime int

const (
	lifetimeSingleton lifetime = iota
	lifetimeTransient
)

// descriptor describes how to construct a registered service.
type descriptor struct {
	name     string
	factory  Factory
	lifetime lifetime
	deps     []string
}

// singletonState caches a singleton instance and its initialization future.
// The once guard makes first construction idempotent under concurrent
// resolution; initDone is closed when the async Initialize completes.
type singletonState struct {
	once     sync.Once
	instance any
	err      error
	initDone chan struct{}
	initErr  error
}

// Container resolves named services, caching singletons for its lifetime.
// Safe for concurrent use.
type Container struct {
	mu          sync.RWMutex
	descriptors map[string]*descriptor
	singletons  map[string]*singletonState
	logger      *zap.Logger
}

// New creates an empty container. A nil logger defaults to a no-op logger.
func New(logger *zap.Logger) *Container {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Container{
		descriptors: make(map[string]*descriptor),
		singletons:  make(map[string]*singletonState),
		logger:      logger,
	}
}

// RegisterSingleton registers a service constructed at most once; every
// resolution returns the identical instance.
func (c *Container) RegisterSingleton(name string, factory Factory, deps ...string) {
	c.register(name, factory, lifetimeSingleton, deps)
}

// RegisterTransient registers a service constructed fresh on every resolution.
func (c *Container) RegisterTransient(name string, factory Factory, deps ...string) {
	c.register(name, factory, lifetimeTransient, deps)
}

func (c *Container) register(name string, factory Factory, lt lifetime, deps []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.descriptors[name] = &descriptor{
		name:     name,
		factory:  factory,
		lifetime: lt,
		deps:     deps,
	}
	delete(c.singletons, name)
}

// RegisterInstance registers an already-constructed instance under name.
// The instance is treated as a fully initialized singleton.
func (c *Container) RegisterInstance(name string, instance any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.descriptors[name] = &descriptor{name: name, lifetime: lifetimeSingleton}
	st := &singletonState{instance: instance}
	st.once.Do(func() {})
	c.singletons[name] = st
}

// Resolve returns the named service, constructing it (and its dependencies)
// as needed. Returns (nil, nil) if no service is registered under name; use
// ResolveRequired when absence is an error.
func (c *Container) Resolve(ctx context.Context, name string) (any, error) {
	c.mu.RLock()
	desc, ok := c.descriptors[name]
	c.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return c.build(ctx, desc)
}

// ResolveRequired returns the named service or fails with
// ServiceNotFoundError if nothing is registered under name.
func (c *Container) ResolveRequired(ctx context.Context, name string) (any, error) {
	c.mu.RLock()
	desc, ok := c.descriptors[name]
	c.mu.RUnlock()
	if !ok {
		return nil, &ServiceNotFoundError{Name: name}
	}
	return c.build(ctx, desc)
}

// build constructs an instance for the descriptor, honoring its lifetime.
func (c *Container) build(ctx context.Context, desc *descriptor) (any, error) {
	if desc.lifetime == lifetimeTransient {
		instance, _, err := c.construct(ctx, desc)
		return instance, err
	}

	c.mu.Lock()
	st, ok := c.singletons[desc.name]
	if !ok {
		st = &singletonState{}
		c.singletons[desc.name] = st
	}
	c.mu.Unlock()

	st.once.Do(func() {
		st.instance, st.initDone, st.err = c.construct(ctx, desc)
	})
	return st.instance, st.err
}

// construct resolves dependencies, invokes the factory, and starts (but does
// not await) asynchronous initialization for Lifecycle services.
func (c *Container) construct(ctx context.Context, desc *descriptor) (any, chan struct{}, error) {
	deps := make(Deps, len(desc.deps))
	for _, depName := range desc.deps {
		dep, err := c.Resolve(ctx, depName)
		if err != nil {
			return nil, nil, err
		}
		if dep == nil {
			return nil, nil, &DependencyError{Service: desc.name, Missing: depName}
		}
		deps[depName] = dep
	}

	if desc.factory == nil {
		return nil, nil, fmt.Errorf("service %q has no factory", desc.name)
	}
	instance, err := desc.factory(ctx, deps)
	if err != nil {
		return nil, nil, fmt.Errorf("constructing service %q: %w", desc.name, err)
	}

	var initDone chan struct{}
	if lc, ok := instance.(Lifecycle); ok {
		initDone = make(chan struct{})
		// Initialization outlives the resolving call.
		initCtx := context.WithoutCancel(ctx)
		done := initDone
		go func() {
			if initErr := lc.Initialize(initCtx); initErr != nil {
				c.logger.Warn("service initialization failed",
					zap.String("service", desc.name), zap.Error(initErr))
				c.setInitErr(desc.name, initErr)
			}
			close(done)
		}()
	}
	return instance, initDone, nil
}

func (c *Container) setInitErr(name string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if st, ok := c.singletons[name]; ok {
		st.initErr = err
	}
}

// EnsureReady blocks until the named singleton's asynchronous initialization
// has completed, resolving it first if necessary. Concurrent callers wait on
// the same initialization future; the service is never initialized twice.
func (c *Container) EnsureReady(ctx context.Context, name string) error {
	if _, err := c.ResolveRequired(ctx, name); err != nil {
		return err
	}

	c.mu.RLock()
	st, ok := c.singletons[name]
	c.mu.RUnlock()
	if !ok || st.initDone == nil {
		return nil
	}

	select {
	case <-st.initDone:
	case <-ctx.Done():
		return ctx.Err()
	}

	c.mu.RLock()
	initErr := st.initErr
	c.mu.RUnlock()
	return initErr
}

// Shutdown invokes Cleanup on every instantiated Lifecycle singleton,
// concurrently. Individual failures are logged and swallowed so one failing
// service cannot block teardown of the others.
func (c *Container) Shutdown(ctx context.Context) {
	c.mu.Lock()
	var targets []struct {
		name string
		lc   Lifecycle
	}
	for name, st := range c.singletons {
		if lc, ok := st.instance.(Lifecycle); ok {
			targets = append(targets, struct {
				name string
				lc   Lifecycle
			}{name, lc})
		}
	}
	c.singletons = make(map[string]*singletonState)
	c.mu.Unlock()

	var wg sync.WaitGroup
	for _, t := range targets {
		wg.Add(1)
		go func(name string, lc Lifecycle) {
			defer wg.Done()
			if err := lc.Cleanup(ctx); err != nil {
				c.logger.Warn("service cleanup failed",
					zap.String("service", name), zap.Error(err))
			}
		}(t.name, t.lc)
	}
	wg.Wait()
}

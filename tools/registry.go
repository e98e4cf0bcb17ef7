// Tool registry with dynamic registration.
//
// Information Hiding:
// - Tool storage and lookup implementation hidden
// - Registration and discovery mechanisms abstracted
package tools

import (
	"fmt"
	"sort"
	"sync"
)

// Registry manages available tools with dynamic registration. One registry
// is shared across agent instances; access is concurrency-safe.
type Registry struct {
	mu        sync.RWMutex
	tools     map[string]Tool
	nextSubID int
	onChange  map[int]func()
}

// NewRegistry creates a new empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools:    make(map[string]Tool),
		onChange: make(map[int]func()),
	}
}

// Register adds a new tool to the registry.
// Returns error if a tool with the same name already exists.
func (r *Registry) Register(tool Tool) error {
	r.mu.Lock()
	name := tool.Metadata().Name
	if _, exists := r.tools[name]; exists {
		r.mu.Unlock()
		return fmt.Errorf("tool '%s' already registered", name)
	}
	r.tools[name] = tool
	listeners := r.listenersLocked()
	r.mu.Unlock()

	for _, fn := range listeners {
		fn()
	}
	return nil
}

// Unregister removes a tool by name. Removing an unknown name is a no-op.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	_, exists := r.tools[name]
	delete(r.tools, name)
	listeners := r.listenersLocked()
	r.mu.Unlock()

	if exists {
		for _, fn := range listeners {
			fn()
		}
	}
}

// Subscribe registers a callback invoked after every registration change.
// Used to invalidate schema caches. The returned function removes the
// subscription; callers with a shorter lifetime than the registry must call
// it or the callback is retained for the registry's lifetime.
func (r *Registry) Subscribe(fn func()) (unsubscribe func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextSubID
	r.nextSubID++
	r.onChange[id] = fn
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.onChange, id)
	}
}

func (r *Registry) listenersLocked() []func() {
	listeners := make([]func(), 0, len(r.onChange))
	for _, fn := range r.onChange {
		listeners = append(listeners, fn)
	}
	return listeners
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, exists := r.tools[name]
	return tool, exists
}

// Has checks if a tool exists in the registry.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.tools[name]
	return exists
}

// Names returns all registered tool names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// List returns metadata for all registered tools, sorted by name.
func (r *Registry) List() []ToolMetadata {
	r.mu.RLock()
	defer r.mu.RUnlock()

	metadata := make([]ToolMetadata, 0, len(r.tools))
	for _, tool := range r.tools {
		metadata = append(metadata, tool.Metadata())
	}
	sort.Slice(metadata, func(i, j int) bool {
		return metadata[i].Name < metadata[j].Name
	})
	return metadata
}

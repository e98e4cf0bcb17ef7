// Package plugins tracks plugin activation state.
//
// Plugins own subsets of tools; activating or deactivating a plugin flips
// the visibility of its tools in the model-facing function definitions.
//
// Information Hiding:
// - Activation state storage hidden behind query operations
package plugins

import (
	"fmt"
	"sort"
	"sync"
)

// Plugin describes an installed plugin and the tools it owns.
type Plugin struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Tools       []string `json:"tools,omitempty"`
}

// Manager holds the installed plugins and their activation state.
// Safe for concurrent use.
type Manager struct {
	mu      sync.RWMutex
	plugins map[string]Plugin
	active  map[string]bool
}

// NewManager creates an empty plugin manager.
func NewManager() *Manager {
	return &Manager{
		plugins: make(map[string]Plugin),
		active:  make(map[string]bool),
	}
}

// Register installs a plugin, initially inactive.
// Returns error if a plugin with the same name already exists.
func (m *Manager) Register(p Plugin) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.plugins[p.Name]; exists {
		return fmt.Errorf("plugin '%s' already registered", p.Name)
	}
	m.plugins[p.Name] = p
	return nil
}

// Activate makes the plugin's tools visible.
func (m *Manager) Activate(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.plugins[name]; !exists {
		return fmt.Errorf("plugin '%s' not registered", name)
	}
	m.active[name] = true
	return nil
}

// Deactivate hides the plugin's tools.
func (m *Manager) Deactivate(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.plugins[name]; !exists {
		return fmt.Errorf("plugin '%s' not registered", name)
	}
	delete(m.active, name)
	return nil
}

// ActiveNames returns the active plugin names in sorted order.
func (m *Manager) ActiveNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.active))
	for name := range m.active {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Enabled reports whether tools owned by the named plugin are visible.
// Core tools (empty plugin name) are always visible.
func (m *Manager) Enabled(plugin string) bool {
	if plugin == "" {
		return true
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active[plugin]
}

// List returns all installed plugins sorted by name.
func (m *Manager) List() []Plugin {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Plugin, 0, len(m.plugins))
	for _, p := range m.plugins {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

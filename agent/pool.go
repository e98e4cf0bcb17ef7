package agent

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/mkarlsen/daedalus/config"
	"github.com/mkarlsen/daedalus/container"
	"github.com/mkarlsen/daedalus/tools"
)

// Pool runs multiple agent sessions concurrently. Sessions share the tool
// registry and plugin view; all other state is per-session.
type Pool struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	registry   *tools.Registry
	pluginView tools.PluginView
	settings   config.Settings
	logger     *zap.Logger
}

// NewPool creates an empty session pool.
func NewPool(registry *tools.Registry, pluginView tools.PluginView, settings config.Settings, logger *zap.Logger) *Pool {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		sessions:   make(map[string]*Session),
		registry:   registry,
		pluginView: pluginView,
		settings:   settings,
		logger:     logger,
	}
}

// Create starts a new session for the named agent and returns it.
func (p *Pool) Create(agentName string) *Session {
	s := NewSession(agentName, p.registry, p.pluginView, p.settings, p.logger)

	p.mu.Lock()
	p.sessions[s.ID()] = s
	p.mu.Unlock()

	p.logger.Info("session created",
		zap.String("session_id", s.ID()), zap.String("agent", agentName))
	return s
}

// Get returns the session with the given id.
func (p *Pool) Get(id string) (*Session, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.sessions[id]
	return s, ok
}

// Remove closes and forgets the session with the given id.
func (p *Pool) Remove(id string) error {
	p.mu.Lock()
	s, ok := p.sessions[id]
	delete(p.sessions, id)
	p.mu.Unlock()

	if !ok {
		return fmt.Errorf("session %q not found", id)
	}
	s.Close()
	return nil
}

// Len returns the number of live sessions.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.sessions)
}

// Initialize implements container.Lifecycle.
func (p *Pool) Initialize(ctx context.Context) error {
	return nil
}

// Cleanup implements container.Lifecycle: it closes every live session.
func (p *Pool) Cleanup(ctx context.Context) error {
	p.mu.Lock()
	sessions := p.sessions
	p.sessions = make(map[string]*Session)
	p.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
	p.logger.Info("session pool drained", zap.Int("closed", len(sessions)))
	return nil
}

// Pool participates in container shutdown.
var _ container.Lifecycle = (*Pool)(nil)

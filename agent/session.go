// Package agent ties the control core together per agent instance.
//
// Each session owns an independent conversation store, cycle detector, and
// thinking-loop detector; nothing mutable is shared between sessions except
// the tool registry and the filesystem.
//
// Information Hiding:
// - Turn lifecycle and detector coordination hidden
// - Warning plumbing between detectors and the prompt hidden
package agent

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mkarlsen/daedalus/config"
	"github.com/mkarlsen/daedalus/conversation"
	"github.com/mkarlsen/daedalus/cycles"
	"github.com/mkarlsen/daedalus/model"
	"github.com/mkarlsen/daedalus/thinking"
	"github.com/mkarlsen/daedalus/tools"
)

// Session is one agent instance: its conversation, detectors, and
// orchestrator over the shared tool registry.
type Session struct {
	id        string
	agentName string
	conv      *conversation.Store
	cycles    *cycles.Detector
	thinking  *thinking.Detector
	orch      *tools.Orchestrator
	logger    *zap.Logger

	mu          sync.Mutex // guards loopWarning, written from a timer callback
	loopWarning string
}

// NewSession creates a session for the named agent. The registry (and the
// plugin view, if any) may be shared; everything else is per-session.
func NewSession(agentName string, registry *tools.Registry, pluginView tools.PluginView, settings config.Settings, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("agent", agentName))

	orchOpts := []tools.OrchestratorOption{
		tools.WithLogger(logger),
		tools.WithExecutor(tools.NewExecutor(tools.ExecutorConfig{
			TimeoutSecs: settings.Tools.TimeoutSecs,
			MaxRetries:  settings.Tools.MaxRetries,
		})),
		tools.WithDuplicatePolicy(tools.DuplicatePolicy{
			WarnThreshold:  settings.Tools.DuplicateWarnAfter,
			BlockThreshold: settings.Tools.DuplicateBlockAfter,
		}),
	}
	if pluginView != nil {
		orchOpts = append(orchOpts, tools.WithPlugins(pluginView))
	}

	s := &Session{
		id:        uuid.New().String(),
		agentName: agentName,
		conv:      conversation.NewStore(),
		cycles:    cycles.NewDetector(settings.Cycles, nil, logger),
		orch:      tools.NewOrchestrator(registry, orchOpts...),
		logger:    logger,
	}
	s.thinking = thinking.NewDetector(settings.Thinking, s.onThinkingLoop, logger)
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// AgentName returns the agent this session belongs to.
func (s *Session) AgentName() string { return s.agentName }

// Conversation returns the session's message store.
func (s *Session) Conversation() *conversation.Store { return s.conv }

// Orchestrator returns the session's tool orchestrator.
func (s *Session) Orchestrator() *tools.Orchestrator { return s.orch }

// BeginTurn records a new user message and resets the per-turn detector
// state: cycle history, duplicate tracking, and the thinking monitor.
func (s *Session) BeginTurn(content string) model.Message {
	s.cycles.ClearHistory()
	s.orch.BeginTurn()
	s.thinking.Reset()
	s.mu.Lock()
	s.loopWarning = ""
	s.mu.Unlock()

	return s.conv.Append(model.Message{
		Role:    model.RoleUser,
		Content: content,
	})
}

// AddThinkingChunk feeds streamed reasoning text to the loop detector.
func (s *Session) AddThinkingChunk(text string) {
	s.thinking.AddChunk(text)
}

// EndGeneration stops thinking-loop monitoring for the current generation.
func (s *Session) EndGeneration() {
	s.thinking.Stop()
}

// Close tears the session down: it stops loop monitoring and detaches the
// orchestrator from the shared registry.
func (s *Session) Close() {
	s.thinking.Stop()
	s.orch.Close()
}

func (s *Session) onThinkingLoop(d thinking.Detection) {
	s.mu.Lock()
	s.loopWarning = d.Reason
	s.mu.Unlock()
}

// LoopWarning returns the last thinking-loop reason, if one was detected
// this turn.
func (s *Session) LoopWarning() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loopWarning == "" {
		return "", false
	}
	return s.loopWarning, true
}

// ExecuteToolCalls runs a batch of model-requested tool calls through the
// orchestrator, records messages and detector state, and returns the cycle
// warnings for the next prompt. Context cancellation aborts the batch and
// propagates verbatim.
func (s *Session) ExecuteToolCalls(ctx context.Context, calls []model.ToolCall) (map[string]cycles.CycleInfo, error) {
	warnings := s.cycles.Check(calls)

	s.conv.Append(model.Message{
		Role:      model.RoleAssistant,
		ToolCalls: calls,
	})

	results := make(map[string]cycles.CallResult, len(calls))
	for _, call := range calls {
		result, err := s.orch.ExecuteTool(ctx, call.Function.Name, call.Function.Arguments, tools.ExecContext{
			Agent:  s.agentName,
			CallID: call.ID,
		})
		if err != nil {
			return nil, err
		}

		content, merr := json.Marshal(result)
		if merr != nil {
			content = []byte(`{"success":false,"error":"unencodable result"}`)
		}
		s.conv.Append(model.Message{
			Role:       model.RoleTool,
			Content:    string(content),
			ToolCallID: call.ID,
		})

		results[call.ID] = cycles.CallResult{
			Success: result.Success(),
			Empty:   strings.TrimSpace(result.Output) == "",
		}
	}

	s.cycles.RecordToolCalls(calls, results)
	s.cycles.ClearIfBroken()
	return warnings, nil
}

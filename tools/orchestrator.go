// Tool orchestration: validation, visibility, deduplication, and dispatch.
//
// Information Hiding:
// - Dispatch pipeline ordering hidden behind ExecuteTool
// - Duplicate policy and delegation bookkeeping hidden
// - Schema caching hidden
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	jsonx "github.com/mkarlsen/daedalus/internal/jsonx"
)

// ExecContext carries the per-call execution context.
type ExecContext struct {
	// Agent is the name of the agent issuing the call, checked against
	// tool allow-lists.
	Agent string
	// CallID is the model-assigned tool-call identifier.
	CallID string
}

// Orchestrator ties the tool system together: it validates arguments,
// enforces agent visibility, deduplicates identical in-flight calls,
// executes through the retrying executor, and builds the model-facing
// schema list. One orchestrator belongs to one agent instance; the registry
// behind it may be shared.
type Orchestrator struct {
	registry    *Registry
	executor    *Executor
	duplicates  *DuplicateDetector
	delegations *DelegationTracker
	plugins     PluginView
	defsCache   *lru.Cache[string, []openai.Tool]
	unsubscribe func()
	logger      *zap.Logger
}

// OrchestratorOption customizes an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithExecutor overrides the default retrying executor.
func WithExecutor(e *Executor) OrchestratorOption {
	return func(o *Orchestrator) { o.executor = e }
}

// WithDuplicatePolicy overrides the default duplicate-call policy.
func WithDuplicatePolicy(p DuplicatePolicy) OrchestratorOption {
	return func(o *Orchestrator) { o.duplicates = NewDuplicateDetector(p) }
}

// WithPlugins wires the plugin-activation state used for visibility
// filtering.
func WithPlugins(p PluginView) OrchestratorOption {
	return func(o *Orchestrator) { o.plugins = p }
}

// WithLogger sets the orchestrator logger.
func WithLogger(l *zap.Logger) OrchestratorOption {
	return func(o *Orchestrator) { o.logger = l }
}

// NewOrchestrator creates an orchestrator over the given registry. The
// schema cache is invalidated whenever the registry changes.
func NewOrchestrator(registry *Registry, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		registry:    registry,
		executor:    NewDefaultExecutor(),
		duplicates:  NewDuplicateDetector(DefaultDuplicatePolicy()),
		delegations: NewDelegationTracker(),
		plugins:     allPluginsActive{},
		defsCache:   newDefinitionCache(),
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.unsubscribe = registry.Subscribe(o.defsCache.Purge)
	return o
}

// Close detaches the orchestrator from registry change notifications. Must
// be called when the owning agent instance is discarded, otherwise a shared
// registry retains the orchestrator's schema cache. Idempotent.
func (o *Orchestrator) Close() {
	if o.unsubscribe != nil {
		o.unsubscribe()
		o.unsubscribe = nil
	}
}

// Registry returns the underlying tool registry.
func (o *Orchestrator) Registry() *Registry {
	return o.registry
}

// Delegations returns the delegation tracker for interjection routing.
func (o *Orchestrator) Delegations() *DelegationTracker {
	return o.delegations
}

// BeginTurn resets per-turn state (the duplicate-call detector).
func (o *Orchestrator) BeginTurn() {
	o.duplicates.Reset()
}

// ExecuteTool dispatches one tool call. Domain failures (unknown tool,
// visibility violations, duplicates, schema mismatches, execution errors)
// come back as failed results; the error return is reserved for context
// cancellation, which propagates verbatim.
func (o *Orchestrator) ExecuteTool(ctx context.Context, name string, args map[string]any, ec ExecContext) (ToolResult, error) {
	tool, ok := o.registry.Get(name)
	if !ok {
		return ValidationFailure(
			fmt.Sprintf("unknown tool '%s'", name),
			"check the function definitions for the available tool names",
		), nil
	}
	meta := tool.Metadata()

	if !agentAllowed(meta, ec.Agent) {
		return ToolResult{
			Error:      fmt.Errorf("tool '%s' is not available to agent '%s'", name, ec.Agent),
			ErrorType:  ErrTypeAgentMismatch,
			Suggestion: "use a tool from this agent's function definitions",
		}, nil
	}

	decision := o.duplicates.Check(name, args)
	if decision.Block {
		o.logger.Warn("duplicate tool call blocked",
			zap.String("tool", name), zap.Int("count", decision.Count))
		return ValidationFailure(
			fmt.Sprintf("identical %s call already made %d times this turn", name, decision.Count-1),
			"vary the arguments or try a different approach",
		), nil
	}

	if result, ok := validateArguments(meta, args); !ok {
		return result, nil
	}

	raw, err := json.Marshal(args)
	if err != nil {
		return ValidationFailure(
			fmt.Sprintf("arguments for '%s' cannot be encoded: %v", name, err),
			"pass a plain JSON object as arguments",
		), nil
	}
	if err := tool.Validate(raw); err != nil {
		return ValidationFailure(err.Error(), "fix the arguments and retry"), nil
	}

	if meta.Delegation {
		o.delegations.Begin(ec.CallID, name)
		defer o.delegations.End(ec.CallID)
	}

	result, err := o.executor.Execute(ctx, tool, raw)
	if meta.Delegation {
		o.delegations.MarkCompleting(ec.CallID)
	}
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return ToolResult{}, err
		}
		return FailureResult(err), nil
	}

	if result.Success() {
		o.duplicates.Record(name, args)
		if decision.Warn {
			result.Warning = fmt.Sprintf(
				"this exact %s call was already made this turn; repeating it will be blocked", name)
		}
	}
	return result, nil
}

// ParseArguments decodes tool-call arguments that may arrive either as a
// JSON object or as a string-encoded object embedded in model output.
func ParseArguments(raw string) (map[string]any, error) {
	extracted, err := jsonx.Extract(raw)
	if err != nil {
		return nil, fmt.Errorf("arguments are not a JSON object: %w", err)
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(extracted), &args); err != nil {
		return nil, fmt.Errorf("arguments are not a JSON object: %w", err)
	}
	return args, nil
}

// validateArguments checks required parameters and basic types against the
// tool's declared schema.
func validateArguments(meta ToolMetadata, args map[string]any) (ToolResult, bool) {
	for _, p := range meta.Parameters {
		v, present := args[p.Name]
		if !present {
			if p.Required {
				return ValidationFailure(
					fmt.Sprintf("missing required parameter '%s' for tool '%s'", p.Name, meta.Name),
					fmt.Sprintf("provide '%s' (%s): %s", p.Name, p.ParamType, p.Description),
				), false
			}
			continue
		}
		if !typeMatches(p.ParamType, v) {
			return ValidationFailure(
				fmt.Sprintf("parameter '%s' of tool '%s' must be of type %s", p.Name, meta.Name, p.ParamType),
				fmt.Sprintf("pass '%s' as %s", p.Name, p.ParamType),
			), false
		}
	}
	return ToolResult{}, true
}

func typeMatches(paramType string, v any) bool {
	if v == nil {
		return true
	}
	switch paramType {
	case "string", "":
		_, ok := v.(string)
		return ok
	case "number", "float", "integer", "int":
		_, ok := v.(float64)
		return ok
	case "boolean", "bool":
		_, ok := v.(bool)
		return ok
	case "array":
		_, ok := v.([]any)
		return ok
	case "object":
		_, ok := v.(map[string]any)
		return ok
	default:
		return true
	}
}

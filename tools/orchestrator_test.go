package tools

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

// fakeTool is a scriptable tool for orchestration tests.
type fakeTool struct {
	BaseTool
	meta  ToolMetadata
	calls int
	run   func(ctx context.Context, args json.RawMessage) (ToolResult, error)
}

func (f *fakeTool) Metadata() ToolMetadata { return f.meta }

func (f *fakeTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	f.calls++
	if f.run != nil {
		return f.run(ctx, args)
	}
	return SuccessResult("ok"), nil
}

func newFakeTool(name string) *fakeTool {
	return &fakeTool{meta: ToolMetadata{
		Name:        name,
		Description: "test tool",
		Parameters: []ToolParameter{
			{Name: "target", ParamType: "string", Description: "what to operate on", Required: true},
		},
	}}
}

func newTestOrchestrator(t *testing.T, tools ...Tool) *Orchestrator {
	t.Helper()
	registry := NewRegistry()
	for _, tool := range tools {
		if err := registry.Register(tool); err != nil {
			t.Fatalf("Register failed: %v", err)
		}
	}
	return NewOrchestrator(registry)
}

func TestExecuteToolUnknown(t *testing.T) {
	o := newTestOrchestrator(t)

	result, err := o.ExecuteTool(context.Background(), "nonexistent", nil, ExecContext{Agent: "main"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Success() {
		t.Fatal("expected a failed result for an unknown tool")
	}
	if result.ErrorType != ErrTypeValidation {
		t.Errorf("expected %s, got %s", ErrTypeValidation, result.ErrorType)
	}
}

func TestExecuteToolAgentMismatch(t *testing.T) {
	tool := newFakeTool("restricted")
	tool.meta.AllowedAgents = []string{"planner"}
	o := newTestOrchestrator(t, tool)

	args := map[string]any{"target": "x"}
	result, err := o.ExecuteTool(context.Background(), "restricted", args, ExecContext{Agent: "main"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ErrorType != ErrTypeAgentMismatch {
		t.Errorf("expected %s, got %s", ErrTypeAgentMismatch, result.ErrorType)
	}
	if tool.calls != 0 {
		t.Errorf("tool executed despite agent mismatch: %d calls", tool.calls)
	}

	result, err = o.ExecuteTool(context.Background(), "restricted", args, ExecContext{Agent: "planner"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success() {
		t.Errorf("allowed agent rejected: %v", result.Error)
	}
}

func TestExecuteToolDuplicateWarnThenBlock(t *testing.T) {
	tool := newFakeTool("scan")
	o := newTestOrchestrator(t, tool)
	args := map[string]any{"target": "/etc/hosts"}
	ctx := context.Background()

	first, err := o.ExecuteTool(ctx, "scan", args, ExecContext{Agent: "main"})
	if err != nil || !first.Success() {
		t.Fatalf("first call failed: result=%+v err=%v", first, err)
	}
	if first.Warning != "" {
		t.Errorf("unexpected warning on first call: %q", first.Warning)
	}

	second, err := o.ExecuteTool(ctx, "scan", args, ExecContext{Agent: "main"})
	if err != nil || !second.Success() {
		t.Fatalf("second call failed: result=%+v err=%v", second, err)
	}
	if second.Warning == "" {
		t.Error("expected a soft duplicate warning on the second identical call")
	}

	third, err := o.ExecuteTool(ctx, "scan", args, ExecContext{Agent: "main"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if third.Success() {
		t.Fatal("expected the third identical call to be blocked")
	}
	if third.ErrorType != ErrTypeValidation {
		t.Errorf("expected %s, got %s", ErrTypeValidation, third.ErrorType)
	}
	if tool.calls != 2 {
		t.Errorf("blocked call reached the tool: %d executions", tool.calls)
	}

	data, err := json.Marshal(third)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if payload["success"] != false {
		t.Errorf("expected success=false in serialized result, got %v", payload["success"])
	}
	if payload["error_type"] != string(ErrTypeValidation) {
		t.Errorf("expected error_type=%s, got %v", ErrTypeValidation, payload["error_type"])
	}
}

func TestExecuteToolDuplicateVariedArgsNotBlocked(t *testing.T) {
	tool := newFakeTool("scan")
	o := newTestOrchestrator(t, tool)
	ctx := context.Background()

	for i, target := range []string{"/a", "/b", "/c", "/d"} {
		result, err := o.ExecuteTool(ctx, "scan", map[string]any{"target": target}, ExecContext{Agent: "main"})
		if err != nil {
			t.Fatalf("call %d: unexpected error: %v", i, err)
		}
		if !result.Success() {
			t.Fatalf("call %d blocked despite distinct arguments: %v", i, result.Error)
		}
	}
}

func TestBeginTurnResetsDuplicates(t *testing.T) {
	tool := newFakeTool("scan")
	o := newTestOrchestrator(t, tool)
	args := map[string]any{"target": "/a"}
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := o.ExecuteTool(ctx, "scan", args, ExecContext{Agent: "main"}); err != nil {
			t.Fatalf("call %d failed: %v", i, err)
		}
	}

	o.BeginTurn()

	result, err := o.ExecuteTool(ctx, "scan", args, ExecContext{Agent: "main"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success() {
		t.Errorf("call blocked after turn reset: %v", result.Error)
	}
	if result.Warning != "" {
		t.Errorf("unexpected warning after turn reset: %q", result.Warning)
	}
}

func TestExecuteToolMissingRequiredParameter(t *testing.T) {
	tool := newFakeTool("scan")
	o := newTestOrchestrator(t, tool)

	result, err := o.ExecuteTool(context.Background(), "scan", map[string]any{}, ExecContext{Agent: "main"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Success() {
		t.Fatal("expected a validation failure")
	}
	if result.ErrorType != ErrTypeValidation {
		t.Errorf("expected %s, got %s", ErrTypeValidation, result.ErrorType)
	}
	if !strings.Contains(result.Error.Error(), "target") {
		t.Errorf("error does not name the missing parameter: %v", result.Error)
	}
	if tool.calls != 0 {
		t.Errorf("tool executed with missing parameter: %d calls", tool.calls)
	}
}

func TestExecuteToolParameterTypeMismatch(t *testing.T) {
	tool := newFakeTool("scan")
	o := newTestOrchestrator(t, tool)

	result, err := o.ExecuteTool(context.Background(), "scan",
		map[string]any{"target": float64(42)}, ExecContext{Agent: "main"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Success() || result.ErrorType != ErrTypeValidation {
		t.Errorf("expected a validation failure, got %+v", result)
	}
}

func TestExecuteToolCancellationPropagates(t *testing.T) {
	tool := newFakeTool("slow")
	tool.run = func(ctx context.Context, _ json.RawMessage) (ToolResult, error) {
		return ToolResult{}, ctx.Err()
	}
	o := newTestOrchestrator(t, tool)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := o.ExecuteTool(ctx, "slow", map[string]any{"target": "x"}, ExecContext{Agent: "main"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestExecuteToolDelegationTracked(t *testing.T) {
	var target string
	var active bool
	tool := &fakeTool{meta: ToolMetadata{Name: "dispatch_agent", Description: "delegate", Delegation: true}}
	o := newTestOrchestrator(t, tool)
	tool.run = func(ctx context.Context, _ json.RawMessage) (ToolResult, error) {
		target, active = o.Delegations().ActiveTarget()
		return SuccessResult("done"), nil
	}

	_, err := o.ExecuteTool(context.Background(), "dispatch_agent", nil, ExecContext{Agent: "main", CallID: "call-7"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !active || target != "call-7" {
		t.Errorf("delegation not active during execution: target=%q active=%v", target, active)
	}
	if o.Delegations().Depth() != 0 {
		t.Errorf("delegation not removed after completion: depth=%d", o.Delegations().Depth())
	}
}

func TestParseArguments(t *testing.T) {
	args, err := ParseArguments(`{"target": "/a.go", "limit": 3}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if args["target"] != "/a.go" {
		t.Errorf("expected target=/a.go, got %v", args["target"])
	}

	args, err = ParseArguments("```json\n{\"target\": \"/b.go\"}\n```")
	if err != nil {
		t.Fatalf("fenced arguments rejected: %v", err)
	}
	if args["target"] != "/b.go" {
		t.Errorf("expected target=/b.go, got %v", args["target"])
	}

	if _, err := ParseArguments("not json at all"); err == nil {
		t.Error("expected an error for non-JSON arguments")
	}
}

func TestCloseDetachesFromSharedRegistry(t *testing.T) {
	registry := NewRegistry()
	if err := registry.Register(newFakeTool("scan")); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	subscribers := func() int {
		registry.mu.RLock()
		defer registry.mu.RUnlock()
		return len(registry.onChange)
	}

	orchestrators := make([]*Orchestrator, 0, 100)
	for i := 0; i < 100; i++ {
		orchestrators = append(orchestrators, NewOrchestrator(registry))
	}
	if got := subscribers(); got != 100 {
		t.Fatalf("expected 100 subscribers, got %d", got)
	}

	for _, o := range orchestrators {
		o.Close()
		o.Close()
	}
	if got := subscribers(); got != 0 {
		t.Errorf("expected 0 subscribers after Close, got %d", got)
	}
}

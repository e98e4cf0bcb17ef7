package tools

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestExecutorRetriesTransientFailure(t *testing.T) {
	attempts := 0
	tool := &fakeTool{meta: ToolMetadata{Name: "flaky"}}
	tool.run = func(ctx context.Context, _ json.RawMessage) (ToolResult, error) {
		attempts++
		if attempts < 2 {
			return FailureResultf("connection refused"), nil
		}
		return SuccessResult("recovered"), nil
	}

	e := NewDefaultExecutor()
	result, err := e.Execute(context.Background(), tool, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success() || result.Output != "recovered" {
		t.Errorf("expected recovery after retry, got %+v", result)
	}
	if attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts)
	}
}

func TestExecutorNoRetryOnValidationFailure(t *testing.T) {
	attempts := 0
	tool := &fakeTool{meta: ToolMetadata{Name: "strict"}}
	tool.run = func(ctx context.Context, _ json.RawMessage) (ToolResult, error) {
		attempts++
		return ValidationFailure("bad arguments", "fix them"), nil
	}

	e := NewDefaultExecutor()
	result, err := e.Execute(context.Background(), tool, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Success() {
		t.Fatal("expected the validation failure to surface")
	}
	if attempts != 1 {
		t.Errorf("validation failure was retried: %d attempts", attempts)
	}
}

func TestExecutorExhaustsRetries(t *testing.T) {
	attempts := 0
	tool := &fakeTool{meta: ToolMetadata{Name: "broken"}}
	tool.run = func(ctx context.Context, _ json.RawMessage) (ToolResult, error) {
		attempts++
		return FailureResultf("network unreachable"), nil
	}

	e := NewExecutor(ExecutorConfig{MaxRetries: 2})
	result, err := e.Execute(context.Background(), tool, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Success() {
		t.Fatal("expected failure after exhausted retries")
	}
	if attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts)
	}
	if !strings.Contains(result.Error.Error(), "after 2 attempts") {
		t.Errorf("error does not report attempt count: %v", result.Error)
	}
}

func TestExecutorCancellationVerbatim(t *testing.T) {
	tool := &fakeTool{meta: ToolMetadata{Name: "slow"}}
	tool.run = func(ctx context.Context, _ json.RawMessage) (ToolResult, error) {
		return ToolResult{}, ctx.Err()
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := NewDefaultExecutor()
	_, err := e.Execute(ctx, tool, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestExecutorConfigDefaults(t *testing.T) {
	var cfg ExecutorConfig
	if cfg.Timeout().Seconds() != 30 {
		t.Errorf("expected 30s default timeout, got %v", cfg.Timeout())
	}
	if cfg.Retries() != 3 {
		t.Errorf("expected 3 default retries, got %d", cfg.Retries())
	}

	cfg = ExecutorConfig{TimeoutSecs: 5, MaxRetries: 1}
	if cfg.Timeout().Seconds() != 5 {
		t.Errorf("expected 5s timeout, got %v", cfg.Timeout())
	}
	if cfg.Retries() != 1 {
		t.Errorf("expected 1 retry, got %d", cfg.Retries())
	}
}

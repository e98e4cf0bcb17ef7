// Tool Executor with Retry Logic.
//
// Information Hiding:
// - Retry strategy implementation hidden
// - Backoff algorithm hidden
// - Error classification logic hidden
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// ExecutorConfig holds tool execution configuration.
// The zero value is safe: timeout defaults to 30s and retries to 3.
type ExecutorConfig struct {
	TimeoutSecs uint64
	MaxRetries  uint32
}

// Timeout returns the configured timeout, defaulting to 30 seconds if zero.
func (c *ExecutorConfig) Timeout() time.Duration {
	if c == nil || c.TimeoutSecs == 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutSecs) * time.Second
}

// Retries returns the configured max retries, defaulting to 3 if zero.
func (c *ExecutorConfig) Retries() uint32 {
	if c == nil || c.MaxRetries == 0 {
		return 3
	}
	return c.MaxRetries
}

// Executor provides tool execution with retry and timeout support.
// Cancellation is never retried or reclassified: a context error propagates
// verbatim so callers can distinguish user interruption from failure.
type Executor struct {
	config ExecutorConfig
}

// NewExecutor creates a new tool executor with the given configuration.
func NewExecutor(config ExecutorConfig) *Executor {
	return &Executor{config: config}
}

// NewDefaultExecutor creates an executor with default configuration.
func NewDefaultExecutor() *Executor {
	return &Executor{}
}

// Execute runs a tool with retry logic.
func (e *Executor) Execute(ctx context.Context, tool Tool, args json.RawMessage) (ToolResult, error) {
	var lastErr error
	toolName := tool.Metadata().Name
	maxRetries := e.config.Retries()

	for attempt := uint32(0); attempt < maxRetries; attempt++ {
		if attempt > 0 {
			// Exponential backoff
			backoff := e.calculateBackoff(attempt)
			select {
			case <-ctx.Done():
				return ToolResult{}, ctx.Err()
			case <-time.After(backoff):
			}
		}

		result, err := tool.Execute(ctx, args)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return ToolResult{}, err
			}
			lastErr = err
			continue
		}

		if result.Success() {
			return result, nil
		}

		// Check if we should retry this failure
		if !e.shouldRetry(result) {
			return result, nil
		}

		lastErr = result.Error
	}

	// All retries exhausted
	errMsg := "unknown error"
	if lastErr != nil {
		errMsg = lastErr.Error()
	}
	return FailureResultf("tool '%s' failed after %d attempts: %s", toolName, maxRetries, errMsg), nil
}

// calculateBackoff returns the backoff duration for the given attempt.
func (e *Executor) calculateBackoff(attempt uint32) time.Duration {
	const (
		baseDelay = 100 * time.Millisecond
		maxDelay  = 5 * time.Second
	)

	delay := baseDelay * time.Duration(1<<attempt)
	if delay > maxDelay {
		delay = maxDelay
	}
	return delay
}

// shouldRetry determines if an error is retryable.
func (e *Executor) shouldRetry(result ToolResult) bool {
	if result.Error == nil {
		return true
	}
	if result.ErrorType == ErrTypeValidation || result.ErrorType == ErrTypeAgentMismatch {
		return false
	}

	errLower := strings.ToLower(result.Error.Error())

	// Don't retry validation errors or permission issues
	nonRetryable := []string{"validation", "not allowed", "permission", "empty"}
	for _, s := range nonRetryable {
		if strings.Contains(errLower, s) {
			return false
		}
	}

	// Always retry timeouts and network errors
	retryable := []string{"timeout", "connection", "network"}
	for _, s := range retryable {
		if strings.Contains(errLower, s) {
			return true
		}
	}

	// Default: retry
	return true
}

// ExecuteWithTimeout runs a tool with a specific timeout.
func (e *Executor) ExecuteWithTimeout(ctx context.Context, tool Tool, args json.RawMessage, timeout time.Duration) (ToolResult, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return e.Execute(ctx, tool, args)
}

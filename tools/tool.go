// Package tools provides the tool system for agents.
//
// Information Hiding:
// - Tool execution details hidden behind interface
// - Tool parameters and schemas hidden in implementations
// - Registry implementation details hidden from consumers
// - Error handling internalized per tool
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
)

// ToolParameter defines a parameter schema for a tool.
type ToolParameter struct {
	Name        string `json:"name"`
	ParamType   string `json:"param_type"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// ToolMetadata describes what a tool does and who may call it.
type ToolMetadata struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  []ToolParameter `json:"parameters"`

	// Plugin names the plugin that owns the tool; empty means core.
	Plugin string `json:"plugin,omitempty"`

	// AllowedAgents restricts which agents may call the tool. Empty means
	// every agent.
	AllowedAgents []string `json:"allowed_agents,omitempty"`

	// Delegation marks tools that hand control to a sub-agent. Delegation
	// tools are exempt from the injected description requirement and are
	// tracked for interjection routing.
	Delegation bool `json:"delegation,omitempty"`
}

// String returns a string representation of the tool metadata.
func (m ToolMetadata) String() string {
	return fmt.Sprintf("%s: %s", m.Name, m.Description)
}

// ErrorType classifies a failed tool result for the model.
type ErrorType string

// Failure classifications.
const (
	ErrTypeValidation    ErrorType = "validation_error"
	ErrTypeAgentMismatch ErrorType = "agent_mismatch"
	ErrTypeExecution     ErrorType = "execution_error"
)

// ToolResult represents the result of a tool execution.
// Success is determined by whether Error is nil.
type ToolResult struct {
	Output     string    `json:"output"`
	Error      error     `json:"-"` // Excluded from JSON, use MarshalJSON for custom serialization
	ErrorType  ErrorType `json:"-"`
	Suggestion string    `json:"-"`

	// Warning carries non-blocking annotations, e.g. a soft duplicate-call
	// notice attached to an otherwise successful result.
	Warning string `json:"-"`
}

// MarshalJSON implements custom JSON marshaling for ToolResult.
func (t ToolResult) MarshalJSON() ([]byte, error) {
	if t.Error != nil {
		return json.Marshal(struct {
			Success    bool      `json:"success"`
			Output     string    `json:"output,omitempty"`
			Error      string    `json:"error"`
			ErrorType  ErrorType `json:"error_type,omitempty"`
			Suggestion string    `json:"suggestion,omitempty"`
		}{
			Output:     t.Output,
			Error:      t.Error.Error(),
			ErrorType:  t.ErrorType,
			Suggestion: t.Suggestion,
		})
	}
	return json.Marshal(struct {
		Success bool   `json:"success"`
		Output  string `json:"output"`
		Warning string `json:"warning,omitempty"`
	}{
		Success: true,
		Output:  t.Output,
		Warning: t.Warning,
	})
}

// Success returns true if the tool execution succeeded.
func (t ToolResult) Success() bool {
	return t.Error == nil
}

// SuccessResult creates a successful tool result.
func SuccessResult(output string) ToolResult {
	return ToolResult{Output: output}
}

// FailureResult creates a failed tool result.
func FailureResult(err error) ToolResult {
	return ToolResult{Error: err, ErrorType: ErrTypeExecution}
}

// FailureResultf creates a failed tool result with a formatted error message.
func FailureResultf(format string, args ...any) ToolResult {
	return ToolResult{Error: fmt.Errorf(format, args...), ErrorType: ErrTypeExecution}
}

// ValidationFailure creates a failed result classified as recoverable
// validation trouble, with a remediation suggestion for the model.
func ValidationFailure(reason, suggestion string) ToolResult {
	return ToolResult{
		Error:      fmt.Errorf("%s", reason),
		ErrorType:  ErrTypeValidation,
		Suggestion: suggestion,
	}
}

// Tool is the interface that all tools must implement.
//
// Information Hiding: Tool implementations hide their internal execution
// logic, data structures, and error handling strategies behind this
// interface.
type Tool interface {
	// Metadata returns tool metadata (name, description, parameters).
	Metadata() ToolMetadata

	// Execute runs the tool with given arguments.
	Execute(ctx context.Context, args json.RawMessage) (ToolResult, error)

	// Validate validates arguments before execution (optional).
	Validate(args json.RawMessage) error
}

// BaseTool provides a default implementation for Validate.
type BaseTool struct{}

// Validate provides a default no-op validation.
func (BaseTool) Validate(args json.RawMessage) error {
	return nil
}

// pathAllowed checks if a path is within the allowed paths.
// If allowedPaths is empty, all paths are allowed.
func pathAllowed(path string, allowedPaths []string) bool {
	if len(allowedPaths) == 0 {
		return true
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	for _, allowed := range allowedPaths {
		allowedAbs, err := filepath.Abs(allowed)
		if err != nil {
			continue
		}
		if strings.HasPrefix(absPath, allowedAbs) {
			return true
		}
	}
	return false
}

// Package model provides domain types shared across packages.
package model

import (
	"time"
)

// Role identifies the author of a conversation message.
type Role string

// Message roles recognized by the conversation store.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// FunctionCall is the function portion of a tool-call record as produced
// by the model: a tool name plus its decoded arguments.
type FunctionCall struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ToolCall is a single tool invocation requested by the model.
type ToolCall struct {
	ID       string       `json:"id"`
	Function FunctionCall `json:"function"`
}

// Message is one entry in a conversation. Messages are owned by the
// conversation store and mutated only through its operations; the ID and
// CreatedAt fields are assigned at insertion when absent.
type Message struct {
	ID         string         `json:"id,omitempty"`
	Role       Role           `json:"role"`
	Content    string         `json:"content"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCall     `json:"tool_calls,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at,omitempty"`
}

// IsToolResult reports whether the message carries the result of a tool call.
func (m Message) IsToolResult() bool {
	return m.Role == RoleTool && m.ToolCallID != ""
}

// IsEphemeral reports whether the message is flagged to be dropped from
// compaction input.
func (m Message) IsEphemeral() bool {
	if m.Metadata == nil {
		return false
	}
	v, ok := m.Metadata["ephemeral"].(bool)
	return ok && v
}

// IsSummary reports whether the message was produced by summarization.
func (m Message) IsSummary() bool {
	if m.Metadata == nil {
		return false
	}
	v, ok := m.Metadata["summary"].(bool)
	return ok && v
}

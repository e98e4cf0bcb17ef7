package model

import "testing"

func TestIsToolResult(t *testing.T) {
	msg := Message{Role: RoleTool, ToolCallID: "c1"}
	if !msg.IsToolResult() {
		t.Error("tool message with a call id must be a tool result")
	}
	if (Message{Role: RoleTool}).IsToolResult() {
		t.Error("tool message without a call id is not a tool result")
	}
	if (Message{Role: RoleAssistant, ToolCallID: "c1"}).IsToolResult() {
		t.Error("assistant message is not a tool result")
	}
}

func TestIsEphemeral(t *testing.T) {
	if (Message{}).IsEphemeral() {
		t.Error("message without metadata is not ephemeral")
	}
	msg := Message{Metadata: map[string]any{"ephemeral": true}}
	if !msg.IsEphemeral() {
		t.Error("expected ephemeral=true to be honored")
	}
	msg = Message{Metadata: map[string]any{"ephemeral": "yes"}}
	if msg.IsEphemeral() {
		t.Error("non-boolean ephemeral flag must be ignored")
	}
}

func TestIsSummary(t *testing.T) {
	msg := Message{Metadata: map[string]any{"summary": true}}
	if !msg.IsSummary() {
		t.Error("expected summary=true to be honored")
	}
	if (Message{}).IsSummary() {
		t.Error("message without metadata is not a summary")
	}
}

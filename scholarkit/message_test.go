package scholarkit

import (
	"strings"
	"testing"
)

func TestMessageValidate(t *testing.T) {
	tests := []struct {
		name    string
		message *Message
		wantErr bool
	}{
		{
			name:    "valid user message",
			message: NewMessage(RoleUser, "Hello"),
			wantErr: false,
		},
		{
			name:    "valid system message",
			message: NewMessage(RoleSystem, "You are helpful."),
			wantErr: false,
		},
		{
			name:    "empty role",
			message: &Message{Content: "Hello"},
			wantErr: true,
		},
		{
			name:    "unknown role",
			message: NewMessage("moderator", "Hello"),
			wantErr: true,
		},
		{
			name:    "oversized content",
			message: NewMessage(RoleUser, strings.Repeat("x", MaxContentSize+1)),
			wantErr: true,
		},
		{
			name:    "tool message without call id",
			message: NewMessage(RoleTool, "42"),
			wantErr: true,
		},
		{
			name:    "tool message with call id",
			message: NewToolResultMessage("call-1", "42"),
			wantErr: false,
		},
		{
			name: "tool call without name",
			message: &Message{
				Role:      RoleAssistant,
				ToolCalls: []ToolCall{{ID: "call-1"}},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.message.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMessageClone(t *testing.T) {
	original := NewMessage(RoleAssistant, "calling a tool")
	original.WithMetadata("model", "gpt-4o")
	original.ToolCalls = []ToolCall{
		{ID: "call-1", Name: "multiply", Arguments: map[string]interface{}{"a": 6.0, "b": 7.0}},
	}

	clone := original.Clone()

	if clone.Content != original.Content || clone.Role != original.Role {
		t.Errorf("clone differs: got role=%s content=%q", clone.Role, clone.Content)
	}
	if len(clone.ToolCalls) != 1 || clone.ToolCalls[0].Name != "multiply" {
		t.Errorf("clone tool calls = %+v", clone.ToolCalls)
	}

	// Mutating the clone must not touch the original.
	clone.Metadata["model"] = "other"
	clone.ToolCalls[0].Name = "divide"

	if original.Metadata["model"] != "gpt-4o" {
		t.Errorf("original metadata mutated: %v", original.Metadata["model"])
	}
	if original.ToolCalls[0].Name != "multiply" {
		t.Errorf("original tool calls mutated: %v", original.ToolCalls[0].Name)
	}
}

func TestNewToolResultMessage(t *testing.T) {
	msg := NewToolResultMessage("call-7", `{"result": 42}`)
	if msg.Role != RoleTool {
		t.Errorf("expected tool role, got %s", msg.Role)
	}
	if msg.ToolCallID != "call-7" {
		t.Errorf("expected call id call-7, got %s", msg.ToolCallID)
	}
	if err := msg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestToolResultHelpers(t *testing.T) {
	ok := NewToolResult(42).WithMetadata("source", "calculator")
	if !ok.Success || ok.Data != 42 {
		t.Errorf("unexpected result: %+v", ok)
	}
	if ok.Metadata["source"] != "calculator" {
		t.Errorf("metadata not set: %+v", ok.Metadata)
	}

	fail := NewToolError("boom")
	if fail.Success || fail.Error != "boom" {
		t.Errorf("unexpected error result: %+v", fail)
	}
}

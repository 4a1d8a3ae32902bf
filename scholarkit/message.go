// Package scholarkit provides core interfaces and types for the scholarkit framework.
//
// Scholarkit wires hosted language models to callable tools (web search,
// paper search, code execution, arithmetic) through a small agent loop.
// This package defines the vocabulary shared by every other package:
// messages, tool calls, tools, and agents.
package scholarkit

import (
	"fmt"
	"time"
)

// Standard message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// MaxContentSize is the maximum allowed message content size in bytes.
const MaxContentSize = 1024 * 1024

// ToolCall is a request by the model to invoke a named tool.
//
// The model produces tool calls through a provider's native function-calling
// API. Arguments arrive as a decoded JSON object matching the tool's schema.
type ToolCall struct {
	// ID is the provider-assigned call identifier. Tool result messages
	// must echo it back so the model can match results to calls.
	ID string `json:"id"`

	// Name is the tool to invoke.
	Name string `json:"name"`

	// Arguments is the decoded JSON argument object.
	Arguments map[string]interface{} `json:"arguments"`
}

// Message represents one turn exchanged between the user, the model, and tools.
type Message struct {
	Role      string                 `json:"role"`
	Content   string                 `json:"content"`
	Metadata  map[string]interface{} `json:"metadata"`
	Timestamp time.Time              `json:"timestamp"`

	// ToolCalls is set on assistant messages when the model requests tool
	// invocations instead of (or in addition to) producing text.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolCallID is set on tool-role messages carrying a tool result back
	// to the model. It matches the ID of the originating ToolCall.
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// NewMessage creates a new message with the given role and content.
func NewMessage(role, content string) *Message {
	return &Message{
		Role:      role,
		Content:   content,
		Metadata:  make(map[string]interface{}),
		Timestamp: time.Now().UTC(),
	}
}

// NewToolResultMessage creates a tool-role message carrying the result of a
// tool call back to the model.
func NewToolResultMessage(callID, content string) *Message {
	m := NewMessage(RoleTool, content)
	m.ToolCallID = callID
	return m
}

// WithMetadata adds metadata to the message and returns the message for chaining.
func (m *Message) WithMetadata(key string, value interface{}) *Message {
	if m.Metadata == nil {
		m.Metadata = make(map[string]interface{})
	}
	m.Metadata[key] = value
	return m
}

// Validate checks the message against role and size constraints.
func (m *Message) Validate() error {
	switch m.Role {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
	case "":
		return fmt.Errorf("message role cannot be empty")
	default:
		return fmt.Errorf("invalid message role %q: must be one of system, user, assistant, tool", m.Role)
	}

	if len(m.Content) > MaxContentSize {
		return fmt.Errorf("message content exceeds maximum size of %d bytes (got %d)", MaxContentSize, len(m.Content))
	}

	if m.Role == RoleTool && m.ToolCallID == "" {
		return fmt.Errorf("tool message must carry the tool call id it answers")
	}

	for i, tc := range m.ToolCalls {
		if tc.Name == "" {
			return fmt.Errorf("tool call %d has no tool name", i)
		}
	}

	return nil
}

// Clone returns a deep copy of the message.
func (m *Message) Clone() *Message {
	out := &Message{
		Role:       m.Role,
		Content:    m.Content,
		Timestamp:  m.Timestamp,
		ToolCallID: m.ToolCallID,
	}
	if m.Metadata != nil {
		out.Metadata = make(map[string]interface{}, len(m.Metadata))
		for k, v := range m.Metadata {
			out.Metadata[k] = v
		}
	}
	if len(m.ToolCalls) > 0 {
		out.ToolCalls = make([]ToolCall, len(m.ToolCalls))
		copy(out.ToolCalls, m.ToolCalls)
	}
	return out
}

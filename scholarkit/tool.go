package scholarkit

import "context"

// Schema is a JSON Schema object describing a tool's parameters.
//
// The schema is handed verbatim to the provider's function-calling API, so it
// must be a valid JSON object schema: {"type": "object", "properties": {...},
// "required": [...]}.
type Schema map[string]interface{}

// ToolResult represents the result of a tool execution.
type ToolResult struct {
	Success  bool                   `json:"success"`
	Data     interface{}            `json:"data,omitempty"`
	Error    string                 `json:"error,omitempty"`
	Metadata map[string]interface{} `json:"metadata"`
}

// NewToolResult creates a successful tool result.
func NewToolResult(data interface{}) *ToolResult {
	return &ToolResult{
		Success:  true,
		Data:     data,
		Metadata: make(map[string]interface{}),
	}
}

// NewToolError creates a tool result representing an error.
//
// Tool errors are returned to the model as tool results rather than aborting
// the conversation, so the model can recover (retry with corrected arguments,
// pick another tool, or explain the failure).
func NewToolError(err string) *ToolResult {
	return &ToolResult{
		Success:  false,
		Error:    err,
		Metadata: make(map[string]interface{}),
	}
}

// WithMetadata adds metadata to the tool result and returns it for chaining.
func (t *ToolResult) WithMetadata(key string, value interface{}) *ToolResult {
	t.Metadata[key] = value
	return t
}

// Tool represents an executable capability the model can invoke.
//
// Name, Description, and Schema together form the function declaration sent
// to the hosted model; Execute runs when the model requests the call.
type Tool interface {
	// Name returns the unique identifier for this tool.
	Name() string

	// Description returns a human-readable description of what this tool does.
	// The model uses it to decide when to call the tool, so it should say
	// what the tool is for, not how it works.
	Description() string

	// Schema returns the JSON Schema for the tool's argument object.
	Schema() Schema

	// Execute runs the tool with the given parameters and returns a result.
	Execute(ctx context.Context, params map[string]interface{}) (*ToolResult, error)
}

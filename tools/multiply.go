package tools

import (
	"context"
	"fmt"

	"github.com/scholarkit/scholarkit-go/scholarkit"
)

// MultiplyTool multiplies two numbers exactly.
//
// Deliberately trivial: it exists to demonstrate and test the tool-calling
// loop end to end without any external dependency.
type MultiplyTool struct{}

// NewMultiplyTool creates a multiply tool.
func NewMultiplyTool() *MultiplyTool {
	return &MultiplyTool{}
}

// Name returns the tool identifier.
func (t *MultiplyTool) Name() string {
	return "multiply"
}

// Description returns what the tool does, phrased for the model.
func (t *MultiplyTool) Description() string {
	return "Multiply two numbers and return the exact product."
}

// Schema returns the JSON Schema for the tool's parameters.
func (t *MultiplyTool) Schema() scholarkit.Schema {
	return scholarkit.Schema{
		"type": "object",
		"properties": map[string]interface{}{
			"a": map[string]interface{}{
				"type":        "number",
				"description": "First factor",
			},
			"b": map[string]interface{}{
				"type":        "number",
				"description": "Second factor",
			},
		},
		"required": []string{"a", "b"},
	}
}

// Execute multiplies params["a"] by params["b"].
func (t *MultiplyTool) Execute(ctx context.Context, params map[string]interface{}) (*scholarkit.ToolResult, error) {
	a, err := numberParam(params, "a")
	if err != nil {
		return scholarkit.NewToolError(err.Error()), nil
	}
	b, err := numberParam(params, "b")
	if err != nil {
		return scholarkit.NewToolError(err.Error()), nil
	}

	return scholarkit.NewToolResult(a * b), nil
}

// numberParam extracts a required numeric parameter.
//
// JSON decoding yields float64; int and int64 are accepted for callers
// constructing parameter maps in Go.
func numberParam(params map[string]interface{}, key string) (float64, error) {
	raw, ok := params[key]
	if !ok {
		return 0, fmt.Errorf("missing required parameter %q", key)
	}
	switch v := raw.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("parameter %q must be a number, got %T", key, raw)
	}
}

var _ scholarkit.Tool = (*MultiplyTool)(nil)

// Package llm provides hosted-model adapters for scholarkit.
//
// The package defines the minimal contract every provider adapter implements.
// Adapters convert scholarkit Messages (including tool calls and tool
// results) to and from the provider wire format, so agents can swap
// providers without changing their own code.
package llm

import (
	"context"

	"github.com/scholarkit/scholarkit-go/scholarkit"
)

// LLM is the minimal interface for agent-model interaction.
//
// Design principles:
//   - Minimal: Complete, Stream, Model, Unwrap
//   - Flexible: functional CallOptions carry provider-specific knobs
//   - Consistent: speaks scholarkit Messages on both sides
//   - Swappable: change providers without changing agent code
//
// Tool use goes through WithTools: the adapter translates the declared
// tool specs into the provider's native function-calling request, and
// surfaces any tool calls the model makes as Message.ToolCalls on the
// response.
//
// Example:
//
//	client := llm.NewOpenAI("", "gpt-4o-mini")
//	resp, err := client.Complete(ctx, messages,
//	    llm.WithTemperature(0.2),
//	    llm.WithTools(registry.Specs()),
//	)
//	if err != nil {
//	    return err
//	}
//	if len(resp.ToolCalls) > 0 {
//	    // the model wants a tool executed
//	}
type LLM interface {
	// Complete generates a single completion from the model.
	//
	// The response message has Role "assistant". When the model requests
	// tool invocations, the response carries them in ToolCalls and Content
	// may be empty. Metadata holds provider data (model name, token usage,
	// finish reason).
	Complete(ctx context.Context, messages []*scholarkit.Message, opts ...CallOption) (*scholarkit.Message, error)

	// Stream generates completion chunks from the model.
	//
	// Each chunk is an assistant message holding partial Content with
	// Metadata["streaming"] = true. The channel is closed when streaming
	// completes; a mid-stream failure is delivered as a final chunk with
	// an "error" metadata key. Tool calls are not streamed: use Complete
	// when tools are declared.
	Stream(ctx context.Context, messages []*scholarkit.Message, opts ...CallOption) (<-chan *scholarkit.Message, error)

	// Model returns the model identifier for this instance.
	Model() string

	// Unwrap returns the underlying provider client for advanced features.
	//
	// This is an escape hatch; code using it loses provider portability.
	Unwrap() interface{}
}

// ToolSpec declares one callable tool to the model.
//
// Parameters must be a JSON Schema object ({"type": "object", ...}); it is
// passed verbatim to the provider's function-calling API.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]interface{}
}

// CallOptions holds per-call options for LLM requests.
type CallOptions struct {
	// Common options
	Temperature *float64
	MaxTokens   *int
	TopP        *float64

	// Tools declared for this call. Empty means plain text generation.
	Tools []ToolSpec

	// ToolChoice controls how the model may use the declared tools:
	// "auto" (default), "none", or "required".
	ToolChoice string

	// Extra holds provider-specific options.
	Extra map[string]interface{}
}

// CallOption is a functional option for configuring LLM calls.
type CallOption func(*CallOptions)

// WithTemperature sets the sampling temperature (typically 0.0-2.0).
func WithTemperature(temperature float64) CallOption {
	return func(opts *CallOptions) {
		opts.Temperature = &temperature
	}
}

// WithMaxTokens sets the maximum number of tokens to generate.
func WithMaxTokens(maxTokens int) CallOption {
	return func(opts *CallOptions) {
		opts.MaxTokens = &maxTokens
	}
}

// WithTopP sets the nucleus sampling parameter.
func WithTopP(topP float64) CallOption {
	return func(opts *CallOptions) {
		opts.TopP = &topP
	}
}

// WithTools declares the tools the model may call during this request.
func WithTools(tools []ToolSpec) CallOption {
	return func(opts *CallOptions) {
		opts.Tools = tools
	}
}

// WithToolChoice overrides the tool selection mode ("auto", "none", "required").
func WithToolChoice(choice string) CallOption {
	return func(opts *CallOptions) {
		opts.ToolChoice = choice
	}
}

// WithExtra adds a provider-specific option.
func WithExtra(key string, value interface{}) CallOption {
	return func(opts *CallOptions) {
		if opts.Extra == nil {
			opts.Extra = make(map[string]interface{})
		}
		opts.Extra[key] = value
	}
}

// BuildCallOptions creates CallOptions from functional options.
func BuildCallOptions(opts ...CallOption) *CallOptions {
	options := &CallOptions{
		Extra: make(map[string]interface{}),
	}
	for _, opt := range opts {
		opt(options)
	}
	return options
}

package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sashabaranov/go-openai"
	"github.com/scholarkit/scholarkit-go/scholarkit"
)

// OpenAI is an adapter for OpenAI chat models and OpenAI-compatible APIs.
//
// Wraps the go-openai SDK to provide a consistent scholarkit interface,
// including native function calling: declared ToolSpecs become OpenAI tool
// definitions, and tool calls returned by the model surface as
// Message.ToolCalls.
//
// Example:
//
//	client := llm.NewOpenAI("", "gpt-4o-mini") // key from OPENAI_API_KEY
//	resp, err := client.Complete(ctx, messages, llm.WithTools(specs))
type OpenAI struct {
	client *openai.Client
	model  string
}

// NewOpenAI creates a new OpenAI adapter.
//
// If apiKey is empty, the OPENAI_API_KEY environment variable is used.
// If model is empty, gpt-4o-mini is used.
func NewOpenAI(apiKey, model string) *OpenAI {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAI{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

// NewOpenAIWithBaseURL creates an adapter for an OpenAI-compatible endpoint
// (Azure OpenAI, vLLM, OpenRouter, local gateways).
func NewOpenAIWithBaseURL(apiKey, model, baseURL string) *OpenAI {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAI{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

// Model returns the model identifier.
func (o *OpenAI) Model() string {
	return o.model
}

// Complete generates a completion from the model.
//
// Response metadata includes:
//   - model: model that served the request
//   - usage: token counts (prompt, completion, total)
//   - finish_reason: why generation stopped ("tool_calls" when the model
//     requested tool invocations)
func (o *OpenAI) Complete(ctx context.Context, messages []*scholarkit.Message, opts ...CallOption) (*scholarkit.Message, error) {
	options := BuildCallOptions(opts...)

	req, err := o.buildRequest(messages, options, false)
	if err != nil {
		return nil, err
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("openai returned no choices")
	}

	choice := resp.Choices[0]
	response := scholarkit.NewMessage(scholarkit.RoleAssistant, choice.Message.Content)
	response.Metadata["model"] = resp.Model
	response.Metadata["usage"] = map[string]interface{}{
		"prompt_tokens":     resp.Usage.PromptTokens,
		"completion_tokens": resp.Usage.CompletionTokens,
		"total_tokens":      resp.Usage.TotalTokens,
	}
	response.Metadata["finish_reason"] = string(choice.FinishReason)
	response.Metadata["id"] = resp.ID

	// Surface tool calls requested by the model.
	for _, tc := range choice.Message.ToolCalls {
		call := scholarkit.ToolCall{
			ID:   tc.ID,
			Name: tc.Function.Name,
		}
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &call.Arguments); err != nil {
				return nil, fmt.Errorf("openai tool call %q has malformed arguments: %w", tc.Function.Name, err)
			}
		}
		response.ToolCalls = append(response.ToolCalls, call)
	}

	return response, nil
}

// Stream generates completion chunks from the model.
func (o *OpenAI) Stream(ctx context.Context, messages []*scholarkit.Message, opts ...CallOption) (<-chan *scholarkit.Message, error) {
	options := BuildCallOptions(opts...)

	req, err := o.buildRequest(messages, options, true)
	if err != nil {
		return nil, err
	}

	stream, err := o.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("openai stream error: %w", err)
	}

	messageChan := make(chan *scholarkit.Message)

	go func() {
		defer close(messageChan)
		defer stream.Close()

		for {
			response, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				errorMsg := scholarkit.NewMessage(scholarkit.RoleAssistant, "")
				errorMsg.Metadata["error"] = err.Error()
				errorMsg.Metadata["streaming"] = true
				select {
				case messageChan <- errorMsg:
				case <-ctx.Done():
				}
				return
			}

			if len(response.Choices) > 0 {
				delta := response.Choices[0].Delta
				if delta.Content != "" {
					chunk := scholarkit.NewMessage(scholarkit.RoleAssistant, delta.Content)
					chunk.Metadata["streaming"] = true
					chunk.Metadata["model"] = o.model
					select {
					case messageChan <- chunk:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()

	return messageChan, nil
}

// buildRequest assembles a chat completion request from messages and options.
func (o *OpenAI) buildRequest(messages []*scholarkit.Message, options *CallOptions, stream bool) (openai.ChatCompletionRequest, error) {
	converted, err := o.convertMessages(messages)
	if err != nil {
		return openai.ChatCompletionRequest{}, err
	}

	req := openai.ChatCompletionRequest{
		Model:    o.model,
		Messages: converted,
		Stream:   stream,
	}

	if options.Temperature != nil {
		req.Temperature = float32(*options.Temperature)
	}
	if options.MaxTokens != nil {
		req.MaxTokens = *options.MaxTokens
	}
	if options.TopP != nil {
		req.TopP = float32(*options.TopP)
	}
	if fp, ok := options.Extra["frequency_penalty"].(float64); ok {
		req.FrequencyPenalty = float32(fp)
	}
	if pp, ok := options.Extra["presence_penalty"].(float64); ok {
		req.PresencePenalty = float32(pp)
	}
	if stop, ok := options.Extra["stop"].([]string); ok {
		req.Stop = stop
	}

	if len(options.Tools) > 0 {
		req.Tools = make([]openai.Tool, len(options.Tools))
		for i, spec := range options.Tools {
			req.Tools[i] = openai.Tool{
				Type: openai.ToolTypeFunction,
				Function: &openai.FunctionDefinition{
					Name:        spec.Name,
					Description: spec.Description,
					Parameters:  spec.Parameters,
				},
			}
		}
		switch options.ToolChoice {
		case "", "auto":
			req.ToolChoice = "auto"
		case "none":
			req.ToolChoice = "none"
		case "required":
			req.ToolChoice = "required"
		default:
			return openai.ChatCompletionRequest{}, fmt.Errorf("unknown tool choice %q", options.ToolChoice)
		}
	}

	return req, nil
}

// convertMessages converts scholarkit Messages to the OpenAI wire format.
//
// Assistant messages carrying tool calls are re-encoded as OpenAI tool
// calls; tool-role messages become tool results keyed by ToolCallID.
func (o *OpenAI) convertMessages(messages []*scholarkit.Message) ([]openai.ChatCompletionMessage, error) {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))

	for _, msg := range messages {
		converted := openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}

		switch msg.Role {
		case scholarkit.RoleSystem, scholarkit.RoleUser:
		case scholarkit.RoleTool:
			converted.ToolCallID = msg.ToolCallID
		case scholarkit.RoleAssistant:
			for _, tc := range msg.ToolCalls {
				args, err := json.Marshal(tc.Arguments)
				if err != nil {
					return nil, fmt.Errorf("encode arguments for tool call %q: %w", tc.Name, err)
				}
				converted.ToolCalls = append(converted.ToolCalls, openai.ToolCall{
					ID:   tc.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tc.Name,
						Arguments: string(args),
					},
				})
			}
		default:
			converted.Role = openai.ChatMessageRoleAssistant
		}

		out = append(out, converted)
	}

	return out, nil
}

// Unwrap returns the underlying *openai.Client.
func (o *OpenAI) Unwrap() interface{} {
	return o.client
}

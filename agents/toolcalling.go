// Package agents provides ready-to-use agent implementations that bind a
// hosted model to tools and conversation memory.
package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/scholarkit/scholarkit-go/adapter/llm"
	"github.com/scholarkit/scholarkit-go/memory"
	"github.com/scholarkit/scholarkit-go/scholarkit"
	"github.com/scholarkit/scholarkit-go/tools"
)

// DefaultMaxToolRounds bounds the model-tool round trips in one Process call.
const DefaultMaxToolRounds = 8

// ToolCallingAgent answers user messages by letting the model call tools.
//
// Each Process call runs the function-calling loop: send the conversation
// with the registry's tool declarations, execute any tool calls the model
// returns, feed the results back, and repeat until the model answers in
// plain text or the round limit is reached. With a Memory configured, the
// conversation persists across calls under the agent's session.
type ToolCallingAgent struct {
	name          string
	llm           llm.LLM
	registry      *tools.Registry
	mem           memory.Memory
	sessionID     string
	systemPrompt  string
	maxToolRounds int
	logger        *slog.Logger
	callOpts      []llm.CallOption
}

// ToolCallingOption configures a ToolCallingAgent.
type ToolCallingOption func(*ToolCallingAgent)

// WithSystemPrompt sets the system prompt sent ahead of every conversation.
func WithSystemPrompt(prompt string) ToolCallingOption {
	return func(a *ToolCallingAgent) {
		a.systemPrompt = prompt
	}
}

// WithMaxToolRounds bounds the tool round trips per Process call.
func WithMaxToolRounds(n int) ToolCallingOption {
	return func(a *ToolCallingAgent) {
		if n > 0 {
			a.maxToolRounds = n
		}
	}
}

// WithMemory persists conversation history across Process calls.
func WithMemory(mem memory.Memory, sessionID string) ToolCallingOption {
	return func(a *ToolCallingAgent) {
		a.mem = mem
		a.sessionID = sessionID
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) ToolCallingOption {
	return func(a *ToolCallingAgent) {
		a.logger = logger
	}
}

// WithCallOptions appends LLM call options applied to every request, e.g.
// llm.WithTemperature(0.2).
func WithCallOptions(opts ...llm.CallOption) ToolCallingOption {
	return func(a *ToolCallingAgent) {
		a.callOpts = append(a.callOpts, opts...)
	}
}

// NewToolCallingAgent creates a tool-calling agent.
func NewToolCallingAgent(name string, model llm.LLM, registry *tools.Registry, opts ...ToolCallingOption) *ToolCallingAgent {
	agent := &ToolCallingAgent{
		name:          name,
		llm:           model,
		registry:      registry,
		maxToolRounds: DefaultMaxToolRounds,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(agent)
	}
	return agent
}

// Name returns the agent's name.
func (a *ToolCallingAgent) Name() string {
	return a.name
}

// Capabilities describes what this agent can do.
func (a *ToolCallingAgent) Capabilities() []string {
	caps := []string{"chat", "tool-calling"}
	caps = append(caps, a.registry.Names()...)
	return caps
}

// Process answers one user message, calling tools as the model requests.
func (a *ToolCallingAgent) Process(ctx context.Context, message *scholarkit.Message) (*scholarkit.Message, error) {
	if err := message.Validate(); err != nil {
		return nil, fmt.Errorf("invalid message: %w", err)
	}

	conversation, err := a.buildConversation(ctx, message)
	if err != nil {
		return nil, err
	}

	callOpts := append([]llm.CallOption{}, a.callOpts...)
	if specs := a.registry.Specs(); len(specs) > 0 {
		callOpts = append(callOpts, llm.WithTools(specs))
	}

	var response *scholarkit.Message
	for round := 0; ; round++ {
		if round >= a.maxToolRounds {
			return nil, fmt.Errorf("agent %q exceeded %d tool rounds without a final answer", a.name, a.maxToolRounds)
		}

		response, err = a.llm.Complete(ctx, conversation, callOpts...)
		if err != nil {
			return nil, fmt.Errorf("model call failed: %w", err)
		}

		if len(response.ToolCalls) == 0 {
			break
		}

		conversation = append(conversation, response)
		for _, call := range response.ToolCalls {
			toolMsg, err := a.runTool(ctx, call)
			if err != nil {
				return nil, err
			}
			conversation = append(conversation, toolMsg)
		}
	}

	if err := a.remember(ctx, message, response); err != nil {
		return nil, err
	}

	return response, nil
}

// buildConversation assembles system prompt, stored history, and the
// incoming message.
func (a *ToolCallingAgent) buildConversation(ctx context.Context, message *scholarkit.Message) ([]*scholarkit.Message, error) {
	var conversation []*scholarkit.Message

	if a.systemPrompt != "" {
		conversation = append(conversation, scholarkit.NewMessage(scholarkit.RoleSystem, a.systemPrompt))
	}

	if a.mem != nil {
		history, err := a.mem.Retrieve(ctx, a.sessionID, 0)
		if err != nil {
			return nil, fmt.Errorf("retrieve history: %w", err)
		}
		conversation = append(conversation, history...)
	}

	return append(conversation, message), nil
}

// runTool executes one tool call and packages the outcome as a tool-result
// message. Tool failures (including unknown tools) go back to the model
// rather than aborting the loop.
func (a *ToolCallingAgent) runTool(ctx context.Context, call scholarkit.ToolCall) (*scholarkit.Message, error) {
	a.logger.Debug("executing tool call",
		"agent", a.name,
		"tool", call.Name,
		"call_id", call.ID,
	)

	result, err := a.registry.Execute(ctx, call.Name, call.Arguments)
	if err != nil {
		return nil, fmt.Errorf("tool %q: %w", call.Name, err)
	}

	if !result.Success {
		a.logger.Warn("tool call failed",
			"agent", a.name,
			"tool", call.Name,
			"error", result.Error,
		)
		return scholarkit.NewToolResultMessage(call.ID, fmt.Sprintf("error: %s", result.Error)), nil
	}

	encoded, err := json.Marshal(result.Data)
	if err != nil {
		return nil, fmt.Errorf("encode result of tool %q: %w", call.Name, err)
	}
	return scholarkit.NewToolResultMessage(call.ID, string(encoded)), nil
}

// remember stores the user message and the final answer, when memory is
// configured. Intermediate tool traffic is not persisted.
func (a *ToolCallingAgent) remember(ctx context.Context, message, response *scholarkit.Message) error {
	if a.mem == nil {
		return nil
	}
	if err := a.mem.Store(ctx, a.sessionID, message); err != nil {
		return fmt.Errorf("store user message: %w", err)
	}
	if err := a.mem.Store(ctx, a.sessionID, response); err != nil {
		return fmt.Errorf("store response: %w", err)
	}
	return nil
}

var _ scholarkit.Agent = (*ToolCallingAgent)(nil)

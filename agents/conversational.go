package agents

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/scholarkit/scholarkit-go/adapter/llm"
	"github.com/scholarkit/scholarkit-go/memory"
	"github.com/scholarkit/scholarkit-go/scholarkit"
)

// ConversationalAgent is a plain chat agent without tools.
//
// It keeps multi-turn context through a Memory and supports streaming
// responses. Use ToolCallingAgent when the model should call tools.
type ConversationalAgent struct {
	name         string
	llm          llm.LLM
	mem          memory.Memory
	sessionID    string
	systemPrompt string
	logger       *slog.Logger
	callOpts     []llm.CallOption
}

// ConversationalOption configures a ConversationalAgent.
type ConversationalOption func(*ConversationalAgent)

// WithConversationalSystemPrompt sets the system prompt.
func WithConversationalSystemPrompt(prompt string) ConversationalOption {
	return func(a *ConversationalAgent) {
		a.systemPrompt = prompt
	}
}

// WithConversationalCallOptions appends LLM call options for every request.
func WithConversationalCallOptions(opts ...llm.CallOption) ConversationalOption {
	return func(a *ConversationalAgent) {
		a.callOpts = append(a.callOpts, opts...)
	}
}

// WithConversationalLogger sets the structured logger.
func WithConversationalLogger(logger *slog.Logger) ConversationalOption {
	return func(a *ConversationalAgent) {
		a.logger = logger
	}
}

// NewConversationalAgent creates a chat agent whose history lives in mem
// under sessionID.
func NewConversationalAgent(name string, model llm.LLM, mem memory.Memory, sessionID string, opts ...ConversationalOption) *ConversationalAgent {
	agent := &ConversationalAgent{
		name:      name,
		llm:       model,
		mem:       mem,
		sessionID: sessionID,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(agent)
	}
	return agent
}

// Name returns the agent's name.
func (a *ConversationalAgent) Name() string {
	return a.name
}

// Capabilities describes what this agent can do.
func (a *ConversationalAgent) Capabilities() []string {
	return []string{"chat", "multi-turn", "streaming"}
}

// Process answers one user message with full session context.
func (a *ConversationalAgent) Process(ctx context.Context, message *scholarkit.Message) (*scholarkit.Message, error) {
	if err := message.Validate(); err != nil {
		return nil, fmt.Errorf("invalid message: %w", err)
	}

	conversation, err := a.buildConversation(ctx, message)
	if err != nil {
		return nil, err
	}

	response, err := a.llm.Complete(ctx, conversation, a.callOpts...)
	if err != nil {
		return nil, fmt.Errorf("model call failed: %w", err)
	}

	if err := a.mem.Store(ctx, a.sessionID, message); err != nil {
		return nil, fmt.Errorf("store user message: %w", err)
	}
	if err := a.mem.Store(ctx, a.sessionID, response); err != nil {
		return nil, fmt.Errorf("store response: %w", err)
	}

	return response, nil
}

// Stream answers one user message as a stream of chunks.
//
// The user message and the assembled final answer are stored once the
// stream completes.
func (a *ConversationalAgent) Stream(ctx context.Context, message *scholarkit.Message) (<-chan *scholarkit.Message, error) {
	if err := message.Validate(); err != nil {
		return nil, fmt.Errorf("invalid message: %w", err)
	}

	conversation, err := a.buildConversation(ctx, message)
	if err != nil {
		return nil, err
	}

	chunks, err := a.llm.Stream(ctx, conversation, a.callOpts...)
	if err != nil {
		return nil, fmt.Errorf("model stream failed: %w", err)
	}

	out := make(chan *scholarkit.Message)
	go func() {
		defer close(out)

		var full string
		for chunk := range chunks {
			full += chunk.Content
			select {
			case out <- chunk:
			case <-ctx.Done():
				return
			}
		}

		if full == "" {
			return
		}
		final := scholarkit.NewMessage(scholarkit.RoleAssistant, full)
		if err := a.mem.Store(ctx, a.sessionID, message); err != nil {
			a.logger.Error("store user message failed",
				"agent", a.name,
				"session_id", a.sessionID,
				"error", err,
			)
			return
		}
		if err := a.mem.Store(ctx, a.sessionID, final); err != nil {
			a.logger.Error("store response failed",
				"agent", a.name,
				"session_id", a.sessionID,
				"error", err,
			)
		}
	}()

	return out, nil
}

func (a *ConversationalAgent) buildConversation(ctx context.Context, message *scholarkit.Message) ([]*scholarkit.Message, error) {
	var conversation []*scholarkit.Message

	if a.systemPrompt != "" {
		conversation = append(conversation, scholarkit.NewMessage(scholarkit.RoleSystem, a.systemPrompt))
	}

	history, err := a.mem.Retrieve(ctx, a.sessionID, 0)
	if err != nil {
		return nil, fmt.Errorf("retrieve history: %w", err)
	}
	conversation = append(conversation, history...)

	return append(conversation, message), nil
}

var _ scholarkit.Agent = (*ConversationalAgent)(nil)
var _ scholarkit.StreamingAgent = (*ConversationalAgent)(nil)

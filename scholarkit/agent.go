package scholarkit

import "context"

// Agent is the core interface that all agents must implement.
//
// Agents process messages and return responses. Middleware decorators
// (retry, rate limiting, tracing) wrap this interface, so anything that
// speaks Agent composes with the rest of the framework.
type Agent interface {
	// Name returns the unique identifier for this agent.
	Name() string

	// Process handles a message and returns a response.
	Process(ctx context.Context, message *Message) (*Message, error)

	// Capabilities returns a list of capability identifiers this agent
	// supports. May be empty.
	Capabilities() []string
}

// StreamingAgent extends Agent to support incremental responses.
//
// The returned channel is closed when streaming completes. Errors during
// streaming are delivered as a final message with an "error" metadata key,
// matching the LLM adapter convention.
type StreamingAgent interface {
	Agent

	Stream(ctx context.Context, message *Message) (<-chan *Message, error)
}

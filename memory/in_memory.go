package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/scholarkit/scholarkit-go/scholarkit"
)

// DefaultMaxMessagesPerSession bounds each session's stored history.
const DefaultMaxMessagesPerSession = 200

// InMemoryMemory is a bounded, thread-safe, process-local Memory.
//
// When a session exceeds the configured capacity, the oldest messages are
// evicted. History is lost when the process exits.
type InMemoryMemory struct {
	mu          sync.RWMutex
	sessions    map[string][]*scholarkit.Message
	maxMessages int
}

// NewInMemoryMemory creates an in-memory store. maxMessages <= 0 uses
// DefaultMaxMessagesPerSession.
func NewInMemoryMemory(maxMessages int) *InMemoryMemory {
	if maxMessages <= 0 {
		maxMessages = DefaultMaxMessagesPerSession
	}
	return &InMemoryMemory{
		sessions:    make(map[string][]*scholarkit.Message),
		maxMessages: maxMessages,
	}
}

// Store appends a message to the session, evicting the oldest entries when
// the session is full.
func (m *InMemoryMemory) Store(ctx context.Context, sessionID string, message *scholarkit.Message) error {
	if sessionID == "" {
		return fmt.Errorf("session id is required")
	}
	if message == nil {
		return fmt.Errorf("message is nil")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	history := append(m.sessions[sessionID], message.Clone())
	if len(history) > m.maxMessages {
		history = history[len(history)-m.maxMessages:]
	}
	m.sessions[sessionID] = history
	return nil
}

// Retrieve returns the session's messages in chronological order.
func (m *InMemoryMemory) Retrieve(ctx context.Context, sessionID string, limit int) ([]*scholarkit.Message, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session id is required")
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	history := m.sessions[sessionID]
	if limit > 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}

	out := make([]*scholarkit.Message, len(history))
	for i, msg := range history {
		out[i] = msg.Clone()
	}
	return out, nil
}

// Clear removes the session's history.
func (m *InMemoryMemory) Clear(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session id is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, sessionID)
	return nil
}

// SessionCount returns the number of sessions with stored history.
func (m *InMemoryMemory) SessionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

var _ Memory = (*InMemoryMemory)(nil)

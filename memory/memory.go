// Package memory provides conversation history storage for agents.
//
// Two implementations ship with the package: InMemoryMemory for single
// process use and tests, and RedisMemory for history that survives restarts
// and is shared between processes.
package memory

import (
	"context"

	"github.com/scholarkit/scholarkit-go/scholarkit"
)

// Memory stores and retrieves conversation messages per session.
type Memory interface {
	// Store appends a message to the session's history.
	Store(ctx context.Context, sessionID string, message *scholarkit.Message) error

	// Retrieve returns the session's messages in chronological order.
	// A limit of 0 returns everything; a positive limit returns the most
	// recent limit messages.
	Retrieve(ctx context.Context, sessionID string, limit int) ([]*scholarkit.Message, error)

	// Clear removes all messages for the session.
	Clear(ctx context.Context, sessionID string) error
}

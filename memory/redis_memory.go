package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/scholarkit/scholarkit-go/scholarkit"
)

// RedisMemory stores conversation history in Redis.
//
// Each session is a sorted set keyed by "scholarkit:session:<id>" with
// messages scored by their timestamp, so retrieval is chronological. An
// optional TTL expires idle sessions.
type RedisMemory struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// RedisOption configures a RedisMemory.
type RedisOption func(*RedisMemory)

// WithKeyPrefix overrides the key prefix (default "scholarkit:session:").
func WithKeyPrefix(prefix string) RedisOption {
	return func(m *RedisMemory) {
		m.keyPrefix = prefix
	}
}

// WithTTL expires a session this long after its last write. Zero disables
// expiry.
func WithTTL(ttl time.Duration) RedisOption {
	return func(m *RedisMemory) {
		m.ttl = ttl
	}
}

// NewRedisMemory creates a Redis-backed store and verifies connectivity.
func NewRedisMemory(ctx context.Context, addr, password string, db int, opts ...RedisOption) (*RedisMemory, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis at %s: %w", addr, err)
	}

	m := &RedisMemory{
		client:    client,
		keyPrefix: "scholarkit:session:",
		ttl:       24 * time.Hour,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// NewRedisMemoryFromClient wraps an existing client. Used when the caller
// manages the connection, and in tests with a mock-backed client.
func NewRedisMemoryFromClient(client *redis.Client, opts ...RedisOption) *RedisMemory {
	m := &RedisMemory{
		client:    client,
		keyPrefix: "scholarkit:session:",
		ttl:       24 * time.Hour,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *RedisMemory) key(sessionID string) string {
	return m.keyPrefix + sessionID
}

// Store appends a message to the session's sorted set.
func (m *RedisMemory) Store(ctx context.Context, sessionID string, message *scholarkit.Message) error {
	if sessionID == "" {
		return fmt.Errorf("session id is required")
	}
	if message == nil {
		return fmt.Errorf("message is nil")
	}

	encoded, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	key := m.key(sessionID)
	score := float64(message.Timestamp.UnixNano())
	if message.Timestamp.IsZero() {
		score = float64(time.Now().UnixNano())
	}

	pipe := m.client.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: score, Member: encoded})
	if m.ttl > 0 {
		pipe.Expire(ctx, key, m.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store message in redis: %w", err)
	}
	return nil
}

// Retrieve returns the session's messages in chronological order.
func (m *RedisMemory) Retrieve(ctx context.Context, sessionID string, limit int) ([]*scholarkit.Message, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session id is required")
	}

	key := m.key(sessionID)

	var raw []string
	var err error
	if limit > 0 {
		raw, err = m.client.ZRange(ctx, key, int64(-limit), -1).Result()
	} else {
		raw, err = m.client.ZRange(ctx, key, 0, -1).Result()
	}
	if err != nil {
		return nil, fmt.Errorf("read session from redis: %w", err)
	}

	messages := make([]*scholarkit.Message, 0, len(raw))
	for _, item := range raw {
		var msg scholarkit.Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			return nil, fmt.Errorf("decode stored message: %w", err)
		}
		messages = append(messages, &msg)
	}
	return messages, nil
}

// Clear removes the session's history.
func (m *RedisMemory) Clear(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session id is required")
	}
	if err := m.client.Del(ctx, m.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("clear session in redis: %w", err)
	}
	return nil
}

// Close releases the underlying Redis client.
func (m *RedisMemory) Close() error {
	return m.client.Close()
}

var _ Memory = (*RedisMemory)(nil)

// Package middleware provides agent decorators for cross-cutting concerns:
// retries, rate limiting, and timeouts. Decorators wrap any scholarkit.Agent
// and compose in any order.
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/scholarkit/scholarkit-go/scholarkit"
)

// RetryDecorator retries failed Process calls with exponential backoff.
type RetryDecorator struct {
	agent       scholarkit.Agent
	maxRetries  int
	baseDelay   time.Duration
	maxDelay    time.Duration
	logger      *slog.Logger
	shouldRetry func(error) bool
}

// RetryOption configures a RetryDecorator.
type RetryOption func(*RetryDecorator)

// WithMaxRetries sets how many times a failed call is retried (default 3).
func WithMaxRetries(n int) RetryOption {
	return func(d *RetryDecorator) {
		if n >= 0 {
			d.maxRetries = n
		}
	}
}

// WithBaseDelay sets the delay before the first retry (default 100ms).
// Each subsequent retry doubles it, capped by WithMaxDelay.
func WithBaseDelay(delay time.Duration) RetryOption {
	return func(d *RetryDecorator) {
		d.baseDelay = delay
	}
}

// WithMaxDelay caps the backoff delay (default 10s).
func WithMaxDelay(delay time.Duration) RetryOption {
	return func(d *RetryDecorator) {
		d.maxDelay = delay
	}
}

// WithRetryPredicate limits retries to errors the predicate accepts.
// By default every error is retried.
func WithRetryPredicate(predicate func(error) bool) RetryOption {
	return func(d *RetryDecorator) {
		d.shouldRetry = predicate
	}
}

// WithRetryLogger sets the structured logger.
func WithRetryLogger(logger *slog.Logger) RetryOption {
	return func(d *RetryDecorator) {
		d.logger = logger
	}
}

// NewRetryDecorator wraps an agent with retry behavior.
func NewRetryDecorator(agent scholarkit.Agent, opts ...RetryOption) *RetryDecorator {
	d := &RetryDecorator{
		agent:       agent,
		maxRetries:  3,
		baseDelay:   100 * time.Millisecond,
		maxDelay:    10 * time.Second,
		logger:      slog.Default(),
		shouldRetry: func(error) bool { return true },
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Name returns the wrapped agent's name.
func (d *RetryDecorator) Name() string {
	return d.agent.Name()
}

// Capabilities returns the wrapped agent's capabilities.
func (d *RetryDecorator) Capabilities() []string {
	return d.agent.Capabilities()
}

// Process delegates to the wrapped agent, retrying failures with
// exponential backoff. Context cancellation stops retrying immediately.
func (d *RetryDecorator) Process(ctx context.Context, message *scholarkit.Message) (*scholarkit.Message, error) {
	var lastErr error

	for attempt := 0; attempt <= d.maxRetries; attempt++ {
		if attempt > 0 {
			delay := d.backoff(attempt)
			d.logger.Debug("retrying agent call",
				"agent", d.agent.Name(),
				"attempt", attempt,
				"delay", delay,
			)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, fmt.Errorf("retry aborted: %w", ctx.Err())
			}
		}

		response, err := d.agent.Process(ctx, message)
		if err == nil {
			return response, nil
		}
		lastErr = err

		if !d.shouldRetry(err) {
			return nil, err
		}
	}

	return nil, fmt.Errorf("agent %q failed after %d retries: %w", d.agent.Name(), d.maxRetries, lastErr)
}

// backoff computes the delay for the given attempt (1-based).
func (d *RetryDecorator) backoff(attempt int) time.Duration {
	delay := d.baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= d.maxDelay {
			return d.maxDelay
		}
	}
	if delay > d.maxDelay {
		return d.maxDelay
	}
	return delay
}

var _ scholarkit.Agent = (*RetryDecorator)(nil)

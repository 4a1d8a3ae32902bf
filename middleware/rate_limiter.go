package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/scholarkit/scholarkit-go/scholarkit"
)

// RateLimiterDecorator throttles Process calls with a token bucket.
//
// The bucket holds up to burst tokens and refills at rate tokens per
// second. A call with no token available waits for one, or fails when the
// context is done first.
type RateLimiterDecorator struct {
	agent scholarkit.Agent

	mu         sync.Mutex
	tokens     float64
	burst      float64
	refillRate float64
	lastRefill time.Time
}

// NewRateLimiterDecorator wraps an agent with a token-bucket rate limiter
// allowing rate calls per second with the given burst size.
func NewRateLimiterDecorator(agent scholarkit.Agent, rate float64, burst int) *RateLimiterDecorator {
	if rate <= 0 {
		rate = 1
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimiterDecorator{
		agent:      agent,
		tokens:     float64(burst),
		burst:      float64(burst),
		refillRate: rate,
		lastRefill: time.Now(),
	}
}

// Name returns the wrapped agent's name.
func (d *RateLimiterDecorator) Name() string {
	return d.agent.Name()
}

// Capabilities returns the wrapped agent's capabilities.
func (d *RateLimiterDecorator) Capabilities() []string {
	return d.agent.Capabilities()
}

// Process waits for a token, then delegates to the wrapped agent.
func (d *RateLimiterDecorator) Process(ctx context.Context, message *scholarkit.Message) (*scholarkit.Message, error) {
	if err := d.acquire(ctx); err != nil {
		return nil, err
	}
	return d.agent.Process(ctx, message)
}

// acquire blocks until a token is available or the context is done.
func (d *RateLimiterDecorator) acquire(ctx context.Context) error {
	for {
		d.mu.Lock()
		d.refill()
		if d.tokens >= 1 {
			d.tokens--
			d.mu.Unlock()
			return nil
		}
		// Time until one token accrues.
		wait := time.Duration((1 - d.tokens) / d.refillRate * float64(time.Second))
		d.mu.Unlock()

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return fmt.Errorf("rate limit wait aborted: %w", ctx.Err())
		}
	}
}

// refill adds tokens accrued since the last refill. Caller holds mu.
func (d *RateLimiterDecorator) refill() {
	now := time.Now()
	elapsed := now.Sub(d.lastRefill).Seconds()
	d.lastRefill = now

	d.tokens += elapsed * d.refillRate
	if d.tokens > d.burst {
		d.tokens = d.burst
	}
}

var _ scholarkit.Agent = (*RateLimiterDecorator)(nil)

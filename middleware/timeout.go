package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/scholarkit/scholarkit-go/scholarkit"
)

// TimeoutDecorator bounds each Process call with a deadline.
type TimeoutDecorator struct {
	agent   scholarkit.Agent
	timeout time.Duration
}

// NewTimeoutDecorator wraps an agent so every Process call is cancelled
// after the given timeout.
func NewTimeoutDecorator(agent scholarkit.Agent, timeout time.Duration) *TimeoutDecorator {
	return &TimeoutDecorator{
		agent:   agent,
		timeout: timeout,
	}
}

// Name returns the wrapped agent's name.
func (d *TimeoutDecorator) Name() string {
	return d.agent.Name()
}

// Capabilities returns the wrapped agent's capabilities.
func (d *TimeoutDecorator) Capabilities() []string {
	return d.agent.Capabilities()
}

// Process delegates with a deadline applied to the context.
func (d *TimeoutDecorator) Process(ctx context.Context, message *scholarkit.Message) (*scholarkit.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	response, err := d.agent.Process(ctx, message)
	if err != nil && ctx.Err() == context.DeadlineExceeded {
		return nil, fmt.Errorf("agent %q timed out after %s: %w", d.agent.Name(), d.timeout, err)
	}
	return response, err
}

var _ scholarkit.Agent = (*TimeoutDecorator)(nil)

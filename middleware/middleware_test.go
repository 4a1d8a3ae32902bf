package middleware

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/scholarkit/scholarkit-go/scholarkit"
)

// flakyAgent fails a set number of times before succeeding.
type flakyAgent struct {
	failures int
	calls    int
	delay    time.Duration
}

func (a *flakyAgent) Name() string           { return "flaky" }
func (a *flakyAgent) Capabilities() []string { return []string{"test"} }

func (a *flakyAgent) Process(ctx context.Context, message *scholarkit.Message) (*scholarkit.Message, error) {
	a.calls++
	if a.delay > 0 {
		select {
		case <-time.After(a.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if a.calls <= a.failures {
		return nil, errors.New("transient failure")
	}
	return scholarkit.NewMessage(scholarkit.RoleAssistant, "ok"), nil
}

func TestRetryDecoratorEventualSuccess(t *testing.T) {
	agent := &flakyAgent{failures: 2}
	retry := NewRetryDecorator(agent,
		WithMaxRetries(3),
		WithBaseDelay(time.Millisecond),
	)

	resp, err := retry.Process(context.Background(), scholarkit.NewMessage(scholarkit.RoleUser, "hi"))
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if resp.Content != "ok" {
		t.Errorf("response = %q", resp.Content)
	}
	if agent.calls != 3 {
		t.Errorf("agent called %d times, want 3", agent.calls)
	}
}

func TestRetryDecoratorExhausted(t *testing.T) {
	agent := &flakyAgent{failures: 10}
	retry := NewRetryDecorator(agent,
		WithMaxRetries(2),
		WithBaseDelay(time.Millisecond),
	)

	_, err := retry.Process(context.Background(), scholarkit.NewMessage(scholarkit.RoleUser, "hi"))
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if !strings.Contains(err.Error(), "after 2 retries") {
		t.Errorf("error = %v", err)
	}
	if agent.calls != 3 {
		t.Errorf("agent called %d times, want 3 (initial + 2 retries)", agent.calls)
	}
}

func TestRetryDecoratorPredicate(t *testing.T) {
	agent := &flakyAgent{failures: 10}
	retry := NewRetryDecorator(agent,
		WithMaxRetries(5),
		WithBaseDelay(time.Millisecond),
		WithRetryPredicate(func(error) bool { return false }),
	)

	_, err := retry.Process(context.Background(), scholarkit.NewMessage(scholarkit.RoleUser, "hi"))
	if err == nil {
		t.Fatal("expected error")
	}
	if agent.calls != 1 {
		t.Errorf("non-retryable error retried: %d calls", agent.calls)
	}
}

func TestRetryDecoratorContextCancel(t *testing.T) {
	agent := &flakyAgent{failures: 10}
	retry := NewRetryDecorator(agent,
		WithMaxRetries(10),
		WithBaseDelay(time.Hour),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := retry.Process(ctx, scholarkit.NewMessage(scholarkit.RoleUser, "hi"))
	if err == nil {
		t.Fatal("expected error")
	}
	if time.Since(start) > time.Second {
		t.Error("cancellation did not interrupt backoff wait")
	}
}

func TestRetryBackoffCapped(t *testing.T) {
	retry := NewRetryDecorator(&flakyAgent{},
		WithBaseDelay(100*time.Millisecond),
		WithMaxDelay(300*time.Millisecond),
	)

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 300 * time.Millisecond},
		{10, 300 * time.Millisecond},
	}
	for _, tt := range tests {
		if got := retry.backoff(tt.attempt); got != tt.want {
			t.Errorf("backoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestRateLimiterDecoratorBurst(t *testing.T) {
	agent := &flakyAgent{}
	limited := NewRateLimiterDecorator(agent, 1000, 2)

	ctx := context.Background()
	msg := scholarkit.NewMessage(scholarkit.RoleUser, "hi")

	// Burst allows the first two calls through immediately.
	for i := 0; i < 2; i++ {
		if _, err := limited.Process(ctx, msg); err != nil {
			t.Fatalf("Process() error = %v", err)
		}
	}
	if agent.calls != 2 {
		t.Errorf("agent called %d times, want 2", agent.calls)
	}
}

func TestRateLimiterDecoratorBlocksWhenEmpty(t *testing.T) {
	agent := &flakyAgent{}
	// One token, very slow refill: the second call must wait.
	limited := NewRateLimiterDecorator(agent, 0.001, 1)

	ctx := context.Background()
	msg := scholarkit.NewMessage(scholarkit.RoleUser, "hi")

	if _, err := limited.Process(ctx, msg); err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	blockedCtx, cancel := context.WithTimeout(ctx, 30*time.Millisecond)
	defer cancel()

	_, err := limited.Process(blockedCtx, msg)
	if err == nil {
		t.Fatal("expected rate limit wait to be aborted")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want deadline exceeded", err)
	}
}

func TestTimeoutDecorator(t *testing.T) {
	slow := &flakyAgent{delay: time.Second}
	timed := NewTimeoutDecorator(slow, 20*time.Millisecond)

	_, err := timed.Process(context.Background(), scholarkit.NewMessage(scholarkit.RoleUser, "hi"))
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !strings.Contains(err.Error(), "timed out") {
		t.Errorf("error = %v", err)
	}
}

func TestTimeoutDecoratorFastPath(t *testing.T) {
	fast := &flakyAgent{}
	timed := NewTimeoutDecorator(fast, time.Second)

	resp, err := timed.Process(context.Background(), scholarkit.NewMessage(scholarkit.RoleUser, "hi"))
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if resp.Content != "ok" {
		t.Errorf("response = %q", resp.Content)
	}
}

func TestDecoratorsCompose(t *testing.T) {
	agent := &flakyAgent{failures: 1}

	var composed scholarkit.Agent = agent
	composed = NewRetryDecorator(composed, WithMaxRetries(2), WithBaseDelay(time.Millisecond))
	composed = NewTimeoutDecorator(composed, time.Second)
	composed = NewRateLimiterDecorator(composed, 1000, 10)

	if composed.Name() != "flaky" {
		t.Errorf("Name() = %q, decorators should delegate", composed.Name())
	}

	resp, err := composed.Process(context.Background(), scholarkit.NewMessage(scholarkit.RoleUser, "hi"))
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if resp.Content != "ok" {
		t.Errorf("response = %q", resp.Content)
	}
}

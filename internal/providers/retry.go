package providers

import (
	"context"
	"fmt"
	"time"

	"github.com/chainguard-dev/clog"

	"github.com/dshills/ticketgate/internal/config"
)

// RetryPolicy bounds how rate-limited completion calls are retried. The delay
// before retry i (zero-based) is BaseDelay * 2^i. Only KindRateLimited
// failures are retried; every other failure is returned immediately.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration

	// Sleep waits for d or until ctx is done. Nil uses a timer.
	Sleep func(ctx context.Context, d time.Duration) error
	// OnRetry, when set, is called before each backoff.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// DefaultRetryPolicy returns five attempts with a two second base delay.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 5,
		BaseDelay:   2 * time.Second,
	}
}

// PolicyFromConfig builds a RetryPolicy from config settings.
func PolicyFromConfig(cfg config.Retry) RetryPolicy {
	p := DefaultRetryPolicy()
	if cfg.MaxAttempts > 0 {
		p.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.BaseDelay >= 0 {
		p.BaseDelay = cfg.BaseDelay
	}
	return p
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Retry calls fn until it succeeds, fails with a non-retryable error, or
// the policy's attempts are used up. The last rate-limit error is returned
// wrapped once attempts run out.
func Retry[T any](ctx context.Context, p RetryPolicy, operation string, fn func() (T, error)) (T, error) {
	attempts := max(p.MaxAttempts, 1)
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var result T
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		result, lastErr = fn()
		if lastErr == nil {
			return result, nil
		}
		if !IsRateLimited(lastErr) {
			return result, lastErr
		}
		if attempt == attempts-1 {
			break
		}

		delay := p.BaseDelay << attempt
		clog.FromContext(ctx).With("operation", operation).
			With("attempt", attempt+1).
			With("max_attempts", attempts).
			With("backoff", delay).
			Warn("Rate limit hit, retrying")
		if p.OnRetry != nil {
			p.OnRetry(attempt+1, delay, lastErr)
		}

		if err := sleep(ctx, delay); err != nil {
			return result, err
		}
	}

	return result, fmt.Errorf("%s failed after %d attempts: %w", operation, attempts, lastErr)
}

type retrying struct {
	next   Completer
	policy RetryPolicy
}

// WithRetry wraps a Completer so every call runs under policy.
func WithRetry(c Completer, policy RetryPolicy) Completer {
	return &retrying{next: c, policy: policy}
}

func (r *retrying) Name() string { return r.next.Name() }

func (r *retrying) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	return Retry(ctx, r.policy, r.next.Name()+" completion", func() (CompletionResponse, error) {
		return r.next.Complete(ctx, req)
	})
}

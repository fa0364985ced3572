package resilience

import (
	"context"
	"math/rand"
	"time"
)

// RetryConfig controls the retry loop for one wrapped operation.
type RetryConfig struct {
	// MaxAttempts is the total number of invocations, including the first.
	MaxAttempts int
	// BaseDelay seeds the exponential backoff before the second attempt.
	BaseDelay time.Duration
	// MaxDelay caps the exponential component.
	MaxDelay time.Duration
	// Timeout bounds each individual invocation. Zero disables the bound.
	Timeout time.Duration
}

// DefaultRetry mirrors the defaults used for hosting API calls.
func DefaultRetry() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    10 * time.Second,
		Timeout:     10 * time.Second,
	}
}

func (c RetryConfig) withDefaults() RetryConfig {
	d := DefaultRetry()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = d.BaseDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = d.MaxDelay
	}
	return c
}

// backoffDelay computes the sleep before attempt k (k >= 2): the exponential
// component capped at MaxDelay, plus uniform jitter of up to 10% of that
// component.
func (c RetryConfig) backoffDelay(attempt int) time.Duration {
	exp := c.BaseDelay << (attempt - 2)
	if exp > c.MaxDelay || exp <= 0 {
		exp = c.MaxDelay
	}
	jitter := time.Duration(rand.Int63n(int64(exp)/10 + 1))
	return exp + jitter
}

// Retry invokes op up to cfg.MaxAttempts times. Non-retryable errors are
// returned immediately without consuming further attempts; exhausting the
// budget returns a *RetryExhaustedError wrapping the last failure.
func Retry(ctx context.Context, cfg RetryConfig, op func(ctx context.Context) error) error {
	cfg = cfg.withDefaults()

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(cfg.backoffDelay(attempt)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		lastErr = invoke(ctx, cfg.Timeout, op)
		if lastErr == nil {
			return nil
		}
		if !IsRetryable(lastErr) {
			return lastErr
		}
	}
	return &RetryExhaustedError{Attempts: cfg.MaxAttempts, Err: lastErr}
}

func invoke(ctx context.Context, timeout time.Duration, op func(ctx context.Context) error) error {
	if timeout <= 0 {
		return op(ctx)
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return op(callCtx)
}

package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts: attempts,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
	}
}

func TestRetrySucceedsOnThirdAttempt(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetry(3), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return &StatusError{Code: 503, Msg: "unavailable"}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected exactly 3 invocations, got %d", calls)
	}
}

func TestRetryStopsOnNonRetryableError(t *testing.T) {
	calls := 0
	wantErr := &StatusError{Code: 404, Msg: "not found"}
	err := Retry(context.Background(), fastRetry(3), func(ctx context.Context) error {
		calls++
		return wantErr
	})
	if calls != 1 {
		t.Fatalf("non-retryable error consumed %d attempts, want 1", calls)
	}
	var se *StatusError
	if !errors.As(err, &se) || se.Code != 404 {
		t.Fatalf("expected the original 404 error, got %v", err)
	}
}

func TestRetryExhaustionWrapsLastError(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetry(3), func(ctx context.Context) error {
		calls++
		return &StatusError{Code: 500, Msg: "boom"}
	})
	if calls != 3 {
		t.Fatalf("expected 3 invocations, got %d", calls)
	}
	var exhausted *RetryExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected RetryExhaustedError, got %v", err)
	}
	if exhausted.Attempts != 3 {
		t.Fatalf("expected Attempts=3, got %d", exhausted.Attempts)
	}
	var se *StatusError
	if !errors.As(exhausted, &se) || se.Code != 500 {
		t.Fatalf("exhausted error should wrap the last failure, got %v", exhausted.Err)
	}
}

func TestRetryable408And429(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502} {
		if !IsRetryable(&StatusError{Code: code}) {
			t.Fatalf("status %d should be retryable", code)
		}
	}
	for _, code := range []int{400, 401, 403, 404, 409, 422} {
		if IsRetryable(&StatusError{Code: code}) {
			t.Fatalf("status %d should not be retryable", code)
		}
	}
}

func TestRetryTimeoutCountsAsTransient(t *testing.T) {
	cfg := fastRetry(2)
	cfg.Timeout = 5 * time.Millisecond
	calls := 0
	err := Retry(context.Background(), cfg, func(ctx context.Context) error {
		calls++
		<-ctx.Done()
		return ctx.Err()
	})
	if calls != 2 {
		t.Fatalf("timeout should be retried, got %d invocations", calls)
	}
	var exhausted *RetryExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected RetryExhaustedError, got %v", err)
	}
}

func TestBackoffDelayGrowsAndCaps(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 5, BaseDelay: 100 * time.Millisecond, MaxDelay: 300 * time.Millisecond}
	d2 := cfg.backoffDelay(2)
	if d2 < 100*time.Millisecond || d2 > 110*time.Millisecond {
		t.Fatalf("attempt 2 delay out of range: %v", d2)
	}
	d3 := cfg.backoffDelay(3)
	if d3 < 200*time.Millisecond || d3 > 220*time.Millisecond {
		t.Fatalf("attempt 3 delay out of range: %v", d3)
	}
	d5 := cfg.backoffDelay(5)
	if d5 < 300*time.Millisecond || d5 > 330*time.Millisecond {
		t.Fatalf("attempt 5 delay should cap at MaxDelay(+jitter): %v", d5)
	}
}

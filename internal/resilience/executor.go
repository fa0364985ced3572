package resilience

import (
	"context"

	"golang.org/x/sync/singleflight"
)

// Executor wraps external calls with the full resilience stack: circuit
// breaker, retry with backoff, and (via Dedup) in-flight request
// deduplication. One Executor is shared process-wide; its breaker state is
// the only mutable state and is concurrency-safe.
type Executor struct {
	breaker *Breaker
	retry   RetryConfig
	group   singleflight.Group
}

// NewExecutor creates an Executor with the given retry defaults and a
// breaker using the standard threshold/recovery settings.
func NewExecutor(retry RetryConfig) *Executor {
	return &Executor{
		breaker: NewBreaker(0, 0),
		retry:   retry.withDefaults(),
	}
}

// NewExecutorWithBreaker allows tests and callers with special recovery
// requirements to supply their own breaker.
func NewExecutorWithBreaker(retry RetryConfig, b *Breaker) *Executor {
	return &Executor{breaker: b, retry: retry.withDefaults()}
}

// Do runs op under the breaker for key with retry. Every invocation of op is
// individually admitted by and reported to the breaker, so the
// consecutive-failure count reflects real upstream calls, not retry batches.
func (e *Executor) Do(ctx context.Context, key string, op func(ctx context.Context) error) error {
	return Retry(ctx, e.retry, func(ctx context.Context) error {
		if err := e.breaker.Allow(key); err != nil {
			return err
		}
		if err := op(ctx); err != nil {
			e.breaker.OnFailure(key)
			return err
		}
		e.breaker.OnSuccess(key)
		return nil
	})
}

// Dedup collapses concurrent calls sharing key into a single execution of
// fn; every caller receives the same result. The key is released once the
// call settles, so a later call with the same key runs fn again.
func (e *Executor) Dedup(key string, fn func() (interface{}, error)) (interface{}, bool, error) {
	v, err, shared := e.group.Do(key, fn)
	return v, shared, err
}

// BreakerState exposes the breaker state for key for diagnostics endpoints.
func (e *Executor) BreakerState(key string) string {
	return e.breaker.State(key)
}

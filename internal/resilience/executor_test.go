package resilience

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestExecutorRetriesThroughBreaker(t *testing.T) {
	ex := NewExecutor(fastRetry(3))
	calls := 0
	err := ex.Do(context.Background(), "svc", func(ctx context.Context) error {
		calls++
		if calls < 2 {
			return &StatusError{Code: 502, Msg: "bad gateway"}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 invocations, got %d", calls)
	}
}

func TestExecutorFailsFastWhenCircuitOpen(t *testing.T) {
	b := NewBreaker(1, time.Hour)
	ex := NewExecutorWithBreaker(fastRetry(3), b)
	b.OnFailure("svc")

	calls := 0
	err := ex.Do(context.Background(), "svc", func(ctx context.Context) error {
		calls++
		return nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
	if calls != 0 {
		t.Fatalf("operation must not be invoked while the circuit is open, got %d calls", calls)
	}
}

func TestDedupSharesInFlightResult(t *testing.T) {
	ex := NewExecutor(fastRetry(1))

	var executions int32
	release := make(chan struct{})
	fn := func() (interface{}, error) {
		atomic.AddInt32(&executions, 1)
		<-release
		return "result", nil
	}

	const callers = 4
	var wg sync.WaitGroup
	results := make([]interface{}, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, _, err := ex.Dedup("alert:42", fn)
			if err != nil {
				t.Errorf("caller %d: %v", i, err)
			}
			results[i] = v
		}(i)
	}

	// Give the goroutines time to pile up on the same key before releasing.
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := atomic.LoadInt32(&executions); got != 1 {
		t.Fatalf("expected exactly one execution for concurrent callers, got %d", got)
	}
	for i, v := range results {
		if v != "result" {
			t.Fatalf("caller %d got %v, want shared result", i, v)
		}
	}
}

func TestDedupKeyReleasedAfterSettle(t *testing.T) {
	ex := NewExecutor(fastRetry(1))
	count := 0
	fn := func() (interface{}, error) {
		count++
		return count, nil
	}
	if v, _, _ := ex.Dedup("k", fn); v != 1 {
		t.Fatalf("first call: got %v", v)
	}
	if v, _, _ := ex.Dedup("k", fn); v != 2 {
		t.Fatalf("key must be released once the call settles: got %v", v)
	}
}

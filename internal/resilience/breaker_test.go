package resilience

import (
	"errors"
	"testing"
	"time"
)

func TestBreakerOpensAtThreshold(t *testing.T) {
	b := NewBreaker(3, time.Minute)
	for i := 0; i < 2; i++ {
		b.OnFailure("svc")
	}
	if err := b.Allow("svc"); err != nil {
		t.Fatalf("breaker should stay closed below threshold: %v", err)
	}
	b.OnFailure("svc")
	if err := b.Allow("svc"); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("breaker should be open after 3 consecutive failures, got %v", err)
	}
}

func TestBreakerSuccessResetsConsecutiveCount(t *testing.T) {
	b := NewBreaker(3, time.Minute)
	b.OnFailure("svc")
	b.OnFailure("svc")
	b.OnSuccess("svc")
	b.OnFailure("svc")
	b.OnFailure("svc")
	if err := b.Allow("svc"); err != nil {
		t.Fatalf("count should have reset on success, got %v", err)
	}
}

func TestBreakerFailsFastBeforeRecoveryTimeout(t *testing.T) {
	now := time.Now()
	b := NewBreaker(1, time.Minute)
	b.now = func() time.Time { return now }

	b.OnFailure("svc")
	if err := b.Allow("svc"); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected open circuit, got %v", err)
	}

	// 59s later the window has not elapsed; the call still fails fast.
	now = now.Add(59 * time.Second)
	if err := b.Allow("svc"); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected circuit to stay open before recovery timeout, got %v", err)
	}
}

func TestBreakerHalfOpenProbeRecovers(t *testing.T) {
	now := time.Now()
	b := NewBreaker(1, time.Minute)
	b.now = func() time.Time { return now }

	b.OnFailure("svc")

	// After the recovery window a single probe is admitted.
	now = now.Add(61 * time.Second)
	if err := b.Allow("svc"); err != nil {
		t.Fatalf("expected half-open probe to be admitted, got %v", err)
	}
	if got := b.State("svc"); got != "half-open" {
		t.Fatalf("expected half-open state, got %s", got)
	}
	// A second concurrent call is rejected while the probe is in flight.
	if err := b.Allow("svc"); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("only one trial call may run half-open, got %v", err)
	}

	b.OnSuccess("svc")
	if got := b.State("svc"); got != "closed" {
		t.Fatalf("successful probe should close the circuit, got %s", got)
	}
	if err := b.Allow("svc"); err != nil {
		t.Fatalf("closed circuit should admit calls: %v", err)
	}
}

func TestBreakerFailedProbeReopens(t *testing.T) {
	now := time.Now()
	b := NewBreaker(1, time.Minute)
	b.now = func() time.Time { return now }

	b.OnFailure("svc")
	now = now.Add(61 * time.Second)
	if err := b.Allow("svc"); err != nil {
		t.Fatalf("probe should be admitted: %v", err)
	}
	b.OnFailure("svc")
	if got := b.State("svc"); got != "open" {
		t.Fatalf("failed probe should reopen the circuit, got %s", got)
	}
	// The recovery window restarts from the probe failure.
	now = now.Add(30 * time.Second)
	if err := b.Allow("svc"); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("circuit should still be open, got %v", err)
	}
}

func TestBreakerKeysAreIndependent(t *testing.T) {
	b := NewBreaker(1, time.Minute)
	b.OnFailure("github.com:create_ref")
	if err := b.Allow("github.com:create_pr"); err != nil {
		t.Fatalf("unrelated key should be unaffected: %v", err)
	}
	if err := b.Allow("github.com:create_ref"); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("tripped key should be open, got %v", err)
	}
}

package resilience

import (
	"sync"
	"time"
)

// breakerState is the lifecycle of one keyed circuit.
type breakerState int

const (
	stateClosed breakerState = iota
	stateOpen
	stateHalfOpen
)

// Breaker is a keyed circuit breaker. Keys identify logical service
// endpoints (e.g. "github.com:create_ref"); all remediation attempts
// targeting the same endpoint share one circuit.
type Breaker struct {
	failureThreshold int
	recoveryTimeout  time.Duration
	now              func() time.Time

	mu       sync.Mutex
	circuits map[string]*circuit
}

type circuit struct {
	state       breakerState
	failures    int
	lastFailure time.Time
	probing     bool // a half-open trial call is in flight
}

// NewBreaker creates a Breaker. threshold <= 0 and timeout <= 0 select the
// defaults (5 consecutive failures, 60s recovery).
func NewBreaker(threshold int, timeout time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Breaker{
		failureThreshold: threshold,
		recoveryTimeout:  timeout,
		now:              time.Now,
		circuits:         make(map[string]*circuit),
	}
}

// Allow reports whether a call for key may proceed. Open circuits fail fast
// with ErrCircuitOpen until the recovery timeout has elapsed since the last
// failure; then exactly one trial call is admitted (half-open).
func (b *Breaker) Allow(key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	c := b.circuits[key]
	if c == nil {
		return nil
	}

	switch c.state {
	case stateClosed:
		return nil
	case stateOpen:
		if b.now().Sub(c.lastFailure) < b.recoveryTimeout {
			return ErrCircuitOpen
		}
		// Recovery window elapsed: admit a single probe.
		c.state = stateHalfOpen
		c.probing = true
		return nil
	case stateHalfOpen:
		if c.probing {
			return ErrCircuitOpen
		}
		c.probing = true
		return nil
	}
	return nil
}

// OnSuccess records a successful call for key. A successful half-open probe
// closes the circuit and resets the failure count.
func (b *Breaker) OnSuccess(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	c := b.circuits[key]
	if c == nil {
		return
	}
	c.state = stateClosed
	c.failures = 0
	c.probing = false
}

// OnFailure records a failed call for key. Reaching the consecutive-failure
// threshold opens the circuit; a failed half-open probe reopens it and
// refreshes the recovery window.
func (b *Breaker) OnFailure(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	c := b.circuits[key]
	if c == nil {
		c = &circuit{}
		b.circuits[key] = c
	}

	c.lastFailure = b.now()
	c.probing = false

	if c.state == stateHalfOpen {
		c.state = stateOpen
		return
	}
	c.failures++
	if c.failures >= b.failureThreshold {
		c.state = stateOpen
	}
}

// State returns a human-readable state for key, for diagnostics.
func (b *Breaker) State(key string) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	c := b.circuits[key]
	if c == nil {
		return "closed"
	}
	switch c.state {
	case stateOpen:
		return "open"
	case stateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

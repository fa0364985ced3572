package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrCircuitOpen is returned without invoking the operation when the circuit
// breaker for the call's key is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// RetryExhaustedError wraps the last failure after the retry budget is spent.
type RetryExhaustedError struct {
	Attempts int
	Err      error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("operation failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *RetryExhaustedError) Unwrap() error { return e.Err }

// StatusError carries an HTTP status from an upstream API so the retry loop
// can classify it. Hosting providers wrap client errors into this type.
type StatusError struct {
	Code int
	Msg  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream returned %d: %s", e.Code, e.Msg)
}

// IsRetryable classifies err as transient (retry) or permanent (fail fast).
// Transient: network errors, timeouts, 5xx, 408 and 429. Permanent: every
// other 4xx and any error without a recognisable transport cause.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrCircuitOpen) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		if se.Code >= 500 {
			return true
		}
		if se.Code == 408 || se.Code == 429 {
			return true
		}
		return false
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	// Unclassified errors are treated as transient; the budget still bounds
	// them.
	return true
}

package breaker

import (
	"sync"
	"time"
)

// State of a server's breaker.
type State int

const (
	StateClosed   State = iota // Normal operation
	StateOpen                  // Server shed from selection
	StateHalfOpen              // Probing with live traffic again
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF-OPEN"
	default:
		return "UNKNOWN"
	}
}

// Breaker sheds a single server from selection after consecutive
// dispatch failures, letting traffic probe it again after the reset
// timeout.
type Breaker struct {
	mutex            sync.Mutex
	state            State
	failures         int
	lastFailure      time.Time
	failureThreshold int
	resetTimeout     time.Duration
}

// NewBreaker creates a closed breaker tripping after threshold
// consecutive failures and re-probing after timeout.
func NewBreaker(threshold int, timeout time.Duration) *Breaker {
	return &Breaker{
		state:            StateClosed,
		failureThreshold: threshold,
		resetTimeout:     timeout,
	}
}

// Allow reports whether the server may receive a new selection.
// An open breaker transitions to half-open once the reset timeout has
// elapsed since the last failure.
func (b *Breaker) Allow() bool {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if time.Since(b.lastFailure) >= b.resetTimeout {
			b.state = StateHalfOpen
			return true
		}
		return false
	case StateHalfOpen:
		return true
	default:
		return true
	}
}

// RecordFailure counts a dispatch failure, opening the breaker at the
// threshold or immediately when a half-open probe fails.
func (b *Breaker) RecordFailure() {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.failures++
	b.lastFailure = time.Now()

	if b.state == StateHalfOpen {
		b.state = StateOpen
		return
	}

	if b.failures >= b.failureThreshold {
		b.state = StateOpen
	}
}

// RecordSuccess closes the breaker and clears the failure count.
func (b *Breaker) RecordSuccess() {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.failures = 0
	b.state = StateClosed
}

// State returns the breaker's current state.
func (b *Breaker) State() State {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.state
}

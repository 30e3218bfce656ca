package modulehost

import (
	"sync"
	"time"
)

// BreakerState is one of the three circuit-breaker states.
type BreakerState int

const (
	Closed BreakerState = iota
	Open
	HalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case Closed:
		return "Closed"
	case Open:
		return "Open"
	case HalfOpen:
		return "HalfOpen"
	default:
		return "Unknown"
	}
}

// CircuitBreaker tracks consecutive faults for one module: exception,
// timeout, and playback error all count as a fault. Closed runs
// normally; Open skips the module; HalfOpen allows one trial run after
// the reset timeout elapses.
type CircuitBreaker struct {
	mu               sync.Mutex
	state            BreakerState
	consecutiveFault int
	failureThreshold int
	resetTimeout     time.Duration
	openedAt         time.Time
}

// NewCircuitBreaker creates a Closed breaker with the given threshold and
// recovery timeout.
func NewCircuitBreaker(failureThreshold int, resetTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{failureThreshold: failureThreshold, resetTimeout: resetTimeout}
}

// Allow reports whether the module may run this frame, transitioning
// Open → HalfOpen once the reset timeout has elapsed.
func (b *CircuitBreaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case Closed, HalfOpen:
		return true
	case Open:
		if time.Since(b.openedAt) >= b.resetTimeout {
			b.state = HalfOpen
			return true
		}
		return false
	default:
		return false
	}
}

// RecordSuccess clears the fault streak and closes the breaker.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consecutiveFault = 0
	b.state = Closed
}

// RecordFault counts a fault. In HalfOpen, any fault reopens immediately.
// In Closed, the breaker opens once consecutive faults reach threshold.
func (b *CircuitBreaker) RecordFault() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consecutiveFault++
	if b.state == HalfOpen {
		b.state = Open
		b.openedAt = time.Now()
		return
	}
	if b.consecutiveFault >= b.failureThreshold {
		b.state = Open
		b.openedAt = time.Now()
	}
}

// State returns the breaker's current state.
func (b *CircuitBreaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Package breaker implements a simple closed/open/half-open circuit
// breaker for the router and filter-parser LLM calls, each keeping its
// own instance.
package breaker

import (
	"sync"
	"time"

	"ragengine/internal/obs"
)

// State is one of the three breaker states.
type State string

const (
	Closed   State = "closed"
	Open     State = "open"
	HalfOpen State = "half-open"
)

// Breaker trips open after a run of consecutive failures and probes for
// recovery after a cooldown.
type Breaker struct {
	mu              sync.Mutex
	state           State
	failures        int
	openedAt        time.Time
	failureThreshold int
	cooldown        time.Duration
	clock           obs.Clock
}

// Option configures a Breaker.
type Option func(*Breaker)

// WithFailureThreshold overrides the default of 5 consecutive failures.
func WithFailureThreshold(n int) Option {
	return func(b *Breaker) { b.failureThreshold = n }
}

// WithCooldown overrides the default 30s open-state cooldown.
func WithCooldown(d time.Duration) Option {
	return func(b *Breaker) { b.cooldown = d }
}

// WithClock overrides the wall clock, for deterministic tests.
func WithClock(c obs.Clock) Option {
	return func(b *Breaker) { b.clock = c }
}

// New constructs a closed Breaker.
func New(opts ...Option) *Breaker {
	b := &Breaker{state: Closed, failureThreshold: 5, cooldown: 30 * time.Second, clock: obs.SystemClock{}}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Allow reports whether a call may proceed. In the open state it flips to
// half-open once the cooldown has elapsed and allows that probe through;
// callers arriving while still open are rejected. While half-open, every
// caller is allowed until a success or failure is recorded.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed, HalfOpen:
		return true
	case Open:
		if b.clock.Now().Sub(b.openedAt) >= b.cooldown {
			b.state = HalfOpen
			return true
		}
		return false
	default:
		return true
	}
}

// RecordSuccess closes the breaker and resets the failure count.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = Closed
	b.failures = 0
}

// RecordFailure increments the failure count, opening the breaker once
// the threshold is reached (or immediately, if the failing call was the
// half-open probe).
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == HalfOpen {
		b.state = Open
		b.openedAt = b.clock.Now()
		return
	}

	b.failures++
	if b.failures >= b.failureThreshold {
		b.state = Open
		b.openedAt = b.clock.Now()
	}
}

// State reports the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

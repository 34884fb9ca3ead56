package chat

import (
	"errors"
	"sync"
	"time"
)

// Breaker defaults, tuned for a hosted model API: a short outage trips
// quickly, and the cooldown stays well under typical client timeouts.
const (
	defaultBreakerThreshold = 5
	defaultBreakerCooldown  = 30 * time.Second
)

// ErrModelUnavailable is returned while the generation breaker rejects
// calls after repeated upstream failures.
var ErrModelUnavailable = errors.New("model temporarily unavailable")

// breaker gates generation calls on upstream health. A run of consecutive
// failures trips it; while tripped, calls are rejected until the cooldown
// elapses, after which exactly one probe call is let through. The probe's
// outcome either closes the breaker or starts another cooldown round.
type breaker struct {
	mu        sync.Mutex
	threshold int
	cooldown  time.Duration

	failures  int       // consecutive failures since the last success
	trippedAt time.Time // zero while closed
	probing   bool      // a post-cooldown probe is in flight
}

func newBreaker(threshold int, cooldown time.Duration) *breaker {
	if threshold <= 0 {
		threshold = defaultBreakerThreshold
	}
	if cooldown <= 0 {
		cooldown = defaultBreakerCooldown
	}
	return &breaker{threshold: threshold, cooldown: cooldown}
}

// acquire reports whether a generation call may proceed. When the cooldown
// has elapsed it admits a single probe; concurrent callers keep getting
// ErrModelUnavailable until that probe resolves.
func (b *breaker) acquire() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.trippedAt.IsZero() {
		return nil
	}
	if b.probing || time.Since(b.trippedAt) < b.cooldown {
		return ErrModelUnavailable
	}
	b.probing = true
	return nil
}

// succeed records a successful call and fully closes the breaker.
func (b *breaker) succeed() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	b.trippedAt = time.Time{}
	b.probing = false
}

// fail records a failed call. A failed probe restarts the cooldown; a
// failure while closed counts toward the trip threshold.
func (b *breaker) fail() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.probing {
		b.probing = false
		b.trippedAt = time.Now()
		return
	}

	b.failures++
	if b.failures >= b.threshold && b.trippedAt.IsZero() {
		b.trippedAt = time.Now()
	}
}

// tripped reports whether the breaker is currently rejecting calls.
func (b *breaker) tripped() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.trippedAt.IsZero()
}

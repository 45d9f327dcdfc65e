package audit

import (
	"sync"
	"time"
)

// Breaker drops audit writes for a cooldown after a run of consecutive failures
type Breaker struct {
	mu sync.Mutex

	threshold int
	cooldown  time.Duration
	now       func() time.Time

	failures  int
	openUntil time.Time
	open      bool
}

// NewBreaker creates a breaker. Non-positive arguments fall back to 5 failures and 30s.
func NewBreaker(threshold int, cooldown time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &Breaker{
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
	}
}

// Allow reports whether a write may be attempted. Once the cooldown has
// passed the breaker half-opens and lets the next write probe the store.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.open {
		return true
	}
	if b.now().After(b.openUntil) {
		b.open = false
		// one more failure re-opens immediately
		b.failures = b.threshold - 1
		return true
	}
	return false
}

// Success closes the breaker
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.open = false
}

// Failure records a failed write and reports whether the breaker just opened
func (b *Breaker) Failure() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	if !b.open && b.failures >= b.threshold {
		b.open = true
		b.openUntil = b.now().Add(b.cooldown)
		return true
	}
	return false
}

// IsOpen reports whether writes are currently being dropped
func (b *Breaker) IsOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.open && !b.now().After(b.openUntil)
}

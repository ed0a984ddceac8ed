package notify

import (
	"sync"
	"time"
)

// breaker stops publishing while the broker is unhealthy. After threshold
// consecutive failures it opens for cooldown, then lets a single record
// through as a probe.
type breaker struct {
	mu sync.Mutex

	threshold int
	cooldown  time.Duration
	now       func() time.Time

	failures  int
	openUntil time.Time
	isOpen    bool
	probing   bool
}

func newBreaker(threshold int, cooldown time.Duration) *breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &breaker{threshold: threshold, cooldown: cooldown, now: time.Now}
}

// allow reports whether a record may be produced.
func (b *breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.isOpen {
		return true
	}
	if b.probing || b.now().Before(b.openUntil) {
		return false
	}
	b.probing = true
	return true
}

// recordSuccess closes the circuit and reports whether it was open.
func (b *breaker) recordSuccess() (closed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	closed = b.isOpen
	b.failures = 0
	b.isOpen = false
	b.probing = false
	return closed
}

// recordFailure counts a failure and reports whether it opened the circuit.
// A failed probe keeps the circuit open for another cooldown.
func (b *breaker) recordFailure() (opened bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.isOpen {
		b.probing = false
		b.openUntil = b.now().Add(b.cooldown)
		return false
	}
	b.failures++
	if b.failures < b.threshold {
		return false
	}
	b.isOpen = true
	b.openUntil = b.now().Add(b.cooldown)
	return true
}

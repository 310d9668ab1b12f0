package source

import (
	"context"
	"sync"
	"time"
)

// defaultMinInterval spaces requests to public knowledge-base endpoints.
// Both DBpedia and Wikidata throttle aggressive clients.
const defaultMinInterval = 500 * time.Millisecond

// limiter enforces a minimum interval between requests to one source.
// Waiters reserve slots in arrival order, so concurrent callers are spaced
// out rather than released together.
type limiter struct {
	mu       sync.Mutex
	interval time.Duration
	next     time.Time
}

func newLimiter(interval time.Duration) *limiter {
	if interval < 0 {
		interval = 0
	}
	return &limiter{interval: interval}
}

// wait blocks until this caller's reserved slot arrives or ctx is done.
func (l *limiter) wait(ctx context.Context) error {
	if l.interval == 0 {
		return nil
	}

	l.mu.Lock()
	now := time.Now()
	slot := l.next
	if slot.Before(now) {
		slot = now
	}
	l.next = slot.Add(l.interval)
	l.mu.Unlock()

	delay := time.Until(slot)
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

package rate

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Limiter implements a sliding window rate limiter. The websocket handler
// holds one per connection to throttle inbound messages.
type Limiter struct {
	window  time.Duration // time window
	limit   int           // requests limit
	history []time.Time   // accepted requests, oldest first
	mu      sync.Mutex
	clock   clock.Clock
}

// NewLimiter accepts at most limit requests per window. A nil clock uses
// the wall clock.
func NewLimiter(window time.Duration, limit int, clk clock.Clock) *Limiter {
	if clk == nil {
		clk = clock.New()
	}
	return &Limiter{
		window: window,
		limit:  limit,
		clock:  clk,
	}
}

// Allow records a request and reports whether it fits in the window.
// Rejected requests are not recorded.
func (l *Limiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	l.slide(now)

	if len(l.history) >= l.limit {
		return false
	}
	l.history = append(l.history, now)
	return true
}

// RetryAfter returns how long until the next request would be allowed.
func (l *Limiter) RetryAfter() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	l.slide(now)

	if len(l.history) < l.limit || len(l.history) == 0 {
		return 0
	}
	return l.history[0].Add(l.window).Sub(now)
}

// Slots returns the number of requests still allowed in the window.
func (l *Limiter) Slots() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.slide(l.clock.Now())
	return l.limit - len(l.history)
}

func (l *Limiter) slide(now time.Time) {
	start := now.Add(-l.window)
	i := 0
	for i < len(l.history) && !l.history[i].After(start) {
		i++
	}
	if i > 0 {
		l.history = append(l.history[:0], l.history[i:]...)
	}
}

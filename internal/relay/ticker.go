package relay

import (
	"sync"
	"time"
)

// DefaultDebounceInterval is how long buffered bytes may sit idle.
const DefaultDebounceInterval = 500 * time.Millisecond

// DefaultCheckInterval is how often the deadline is polled.
const DefaultCheckInterval = 50 * time.Millisecond

// Ticker tracks the idle deadline shared by the push and check tasks.
//
// Every push calls Reset. The check task reads Deadline, and once it has
// passed calls Fire with the value it read. Fire succeeds only if no
// Reset happened in between, so each stable deadline fires at most once.
type Ticker struct {
	mu       sync.Mutex
	interval time.Duration
	deadline time.Time
}

// NewTicker creates a ticker whose first deadline is now+interval.
func NewTicker(interval time.Duration, now time.Time) *Ticker {
	if interval <= 0 {
		interval = DefaultDebounceInterval
	}
	return &Ticker{interval: interval, deadline: now.Add(interval)}
}

// Reset pushes the deadline to now+interval.
func (t *Ticker) Reset(now time.Time) {
	t.mu.Lock()
	t.deadline = now.Add(t.interval)
	t.mu.Unlock()
}

// Deadline returns the current deadline.
func (t *Ticker) Deadline() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.deadline
}

// Fire reports whether the idle timeout fires at now for the deadline the
// caller observed. It returns false if the deadline has not passed or was
// superseded by a Reset. On success the next deadline is now+interval.
func (t *Ticker) Fire(observed, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.deadline.Equal(observed) || now.Before(t.deadline) {
		return false
	}
	t.deadline = now.Add(t.interval)
	return true
}

// SetInterval changes the debounce interval. The current deadline is
// left alone; the next Reset or Fire uses the new value.
func (t *Ticker) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	t.mu.Lock()
	t.interval = d
	t.mu.Unlock()
}

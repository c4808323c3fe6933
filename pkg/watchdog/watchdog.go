// Package watchdog bounds the time a transfer may stall.
package watchdog

import (
	"sync"
	"time"
)

// Timer expires when it has not been reset for longer than its timeout
type Timer struct {
	mu       sync.Mutex
	timeout  time.Duration
	deadline time.Time
	now      func() time.Time
}

// Create a new started timer
func New(timeout time.Duration) *Timer {
	return newTimer(timeout, time.Now)
}

func newTimer(timeout time.Duration, now func() time.Time) *Timer {
	t := &Timer{timeout: timeout, now: now}
	t.deadline = now().Add(timeout)
	return t
}

// Reset restarts the timeout
func (t *Timer) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.deadline = t.now().Add(t.timeout)
}

func (t *Timer) Expired() bool {
	return t.Remaining() == 0
}

// Remaining time before expiry
func (t *Timer) Remaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	remaining := t.deadline.Sub(t.now())
	if remaining < 0 {
		return 0
	}
	return remaining
}

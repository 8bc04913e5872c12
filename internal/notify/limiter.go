package notify

import (
	"sync"
	"time"

	"github.com/kirillm/action-guard/internal/clock"
)

const rateWindow = time.Minute

// WindowLimiter fixed per-minute message budget. The window resets lazily
// on the first call after it elapses.
type WindowLimiter struct {
	mu          sync.Mutex
	limit       int
	count       int
	windowStart time.Time
	clock       clock.Clock
}

// NewWindowLimiter creates a limiter allowing limit messages per minute.
func NewWindowLimiter(limit int, clk clock.Clock) *WindowLimiter {
	return &WindowLimiter{
		limit: limit,
		clock: clock.OrReal(clk),
	}
}

// Allow consumes one unit of budget if available.
func (l *WindowLimiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.resetLocked(l.clock.Now())
	if l.count >= l.limit {
		return false
	}
	l.count++
	return true
}

// Remaining returns the budget left in the current window.
func (l *WindowLimiter) Remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.resetLocked(l.clock.Now())
	if rem := l.limit - l.count; rem > 0 {
		return rem
	}
	return 0
}

// SetLimit changes the budget; the current window count is kept.
func (l *WindowLimiter) SetLimit(limit int) {
	l.mu.Lock()
	l.limit = limit
	l.mu.Unlock()
}

func (l *WindowLimiter) resetLocked(now time.Time) {
	if l.windowStart.IsZero() || now.Sub(l.windowStart) >= rateWindow {
		l.windowStart = now
		l.count = 0
	}
}

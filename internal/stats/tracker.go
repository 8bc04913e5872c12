// Package stats keeps the per-day decision counters reported in the daily
// summary.
package stats

import (
	"sync"
	"time"

	"github.com/kirillm/action-guard/internal/approval"
	"github.com/kirillm/action-guard/internal/clock"
	"github.com/kirillm/action-guard/internal/domain"
)

// RolloverFunc receives the finished day's summary.
type RolloverFunc func(domain.DailySummary)

// Tracker counts outcomes for the current calendar day in loc. The first
// observation on a new day closes the previous one.
type Tracker struct {
	mu      sync.Mutex
	clock   clock.Clock
	loc     *time.Location
	current domain.DailySummary

	onRollover RolloverFunc
}

// NewTracker creates a tracker. loc nil means UTC.
func NewTracker(clk clock.Clock, loc *time.Location, onRollover RolloverFunc) *Tracker {
	if loc == nil {
		loc = time.UTC
	}
	clk = clock.OrReal(clk)
	return &Tracker{
		clock:      clk,
		loc:        loc,
		current:    domain.DailySummary{Date: clock.StartOfDay(clk.Now(), loc)},
		onRollover: onRollover,
	}
}

// OnRollover replaces the rollover callback.
func (t *Tracker) OnRollover(fn RolloverFunc) {
	t.mu.Lock()
	t.onRollover = fn
	t.mu.Unlock()
}

// RecordOutcome counts a routing decision. Escalations are counted from
// queue events, so escalate only counts as queued here.
func (t *Tracker) RecordOutcome(outcome domain.Outcome, value float64) {
	t.update(func(s *domain.DailySummary) {
		switch outcome {
		case domain.OutcomeAutoExecute:
			s.AutoExecuted++
			s.TotalValue += value
		case domain.OutcomeQueueForApproval, domain.OutcomeEscalate:
			s.Queued++
		case domain.OutcomeReject:
			s.Rejected++
		}
	})
}

// Observe counts queue lifecycle events.
func (t *Tracker) Observe(e approval.Event) {
	switch e.Type {
	case approval.EventApproved:
		value := 0.0
		if e.Request != nil && e.Request.Decision != nil {
			value = e.Request.Decision.Action.Metadata.EstimatedValue
		}
		t.update(func(s *domain.DailySummary) {
			s.Approved++
			s.TotalValue += value
		})
	case approval.EventRejected:
		t.update(func(s *domain.DailySummary) { s.Rejected++ })
	case approval.EventExpired:
		t.update(func(s *domain.DailySummary) { s.Expired++ })
	case approval.EventEscalated:
		t.update(func(s *domain.DailySummary) { s.Escalated++ })
	}
}

// Attach subscribes the tracker to bus. Returns the unsubscribe func.
func (t *Tracker) Attach(bus *approval.Bus) func() {
	return bus.SubscribeAll(t.Observe)
}

// Snapshot returns the current day's counters.
func (t *Tracker) Snapshot() domain.DailySummary {
	t.update(nil)
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// Roll closes the current day if the clock has moved past it. Returns the
// closed summary.
func (t *Tracker) Roll() (domain.DailySummary, bool) {
	return t.update(nil)
}

func (t *Tracker) update(fn func(*domain.DailySummary)) (domain.DailySummary, bool) {
	t.mu.Lock()
	now := t.clock.Now()

	var (
		prev   domain.DailySummary
		rolled bool
	)
	if day := clock.StartOfDay(now, t.loc); !day.Equal(t.current.Date) {
		prev, rolled = t.current, true
		t.current = domain.DailySummary{Date: day}
	}
	if fn != nil {
		fn(&t.current)
	}
	cb := t.onRollover
	t.mu.Unlock()

	if rolled && cb != nil {
		cb(prev)
	}
	return prev, rolled
}

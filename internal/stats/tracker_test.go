package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillm/action-guard/internal/approval"
	"github.com/kirillm/action-guard/internal/clock"
	"github.com/kirillm/action-guard/internal/domain"
)

func TestTracker_Counts(t *testing.T) {
	clk := clock.NewManual(time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC))
	tr := NewTracker(clk, nil, nil)

	tr.RecordOutcome(domain.OutcomeAutoExecute, 5)
	tr.RecordOutcome(domain.OutcomeAutoExecute, 10)
	tr.RecordOutcome(domain.OutcomeQueueForApproval, 500)
	tr.RecordOutcome(domain.OutcomeEscalate, 900)
	tr.RecordOutcome(domain.OutcomeReject, 0)

	req := &domain.ApprovalRequest{Decision: &domain.Decision{
		Action: domain.Action{Metadata: domain.Metadata{EstimatedValue: 500}},
	}}
	tr.Observe(approval.Event{Type: approval.EventApproved, Request: req})
	tr.Observe(approval.Event{Type: approval.EventEscalated, Request: req})
	tr.Observe(approval.Event{Type: approval.EventExpired, Request: req})
	tr.Observe(approval.Event{Type: approval.EventRejected, Request: req})
	tr.Observe(approval.Event{Type: approval.EventQueueSizeChanged, Size: 3})

	got := tr.Snapshot()
	assert.Equal(t, time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC), got.Date)
	assert.Equal(t, 2, got.AutoExecuted)
	assert.Equal(t, 2, got.Queued)
	assert.Equal(t, 1, got.Approved)
	assert.Equal(t, 2, got.Rejected)
	assert.Equal(t, 1, got.Escalated)
	assert.Equal(t, 1, got.Expired)
	assert.Equal(t, 515.0, got.TotalValue)
	assert.Equal(t, 4, got.Total())
}

func TestTracker_RolloverAtLocalMidnight(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	// 23:30 local on 2024-07-01
	clk := clock.NewManual(time.Date(2024, 7, 1, 21, 30, 0, 0, time.UTC))
	var closed []domain.DailySummary
	tr := NewTracker(clk, loc, func(s domain.DailySummary) { closed = append(closed, s) })

	tr.RecordOutcome(domain.OutcomeAutoExecute, 1)
	clk.Advance(20 * time.Minute)
	tr.RecordOutcome(domain.OutcomeAutoExecute, 1)
	assert.Empty(t, closed)

	clk.Advance(20 * time.Minute) // 00:10 local
	tr.RecordOutcome(domain.OutcomeQueueForApproval, 0)

	require.Len(t, closed, 1)
	assert.Equal(t, 2, closed[0].AutoExecuted)
	assert.Equal(t, time.Date(2024, 7, 1, 0, 0, 0, 0, loc), closed[0].Date)

	cur := tr.Snapshot()
	assert.Equal(t, 0, cur.AutoExecuted)
	assert.Equal(t, 1, cur.Queued)
	assert.Equal(t, time.Date(2024, 7, 2, 0, 0, 0, 0, loc), cur.Date)
}

func TestTracker_Roll(t *testing.T) {
	clk := clock.NewManual(time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC))
	tr := NewTracker(clk, time.UTC, nil)
	tr.RecordOutcome(domain.OutcomeReject, 0)

	_, rolled := tr.Roll()
	assert.False(t, rolled)

	clk.Advance(24 * time.Hour)
	prev, rolled := tr.Roll()
	require.True(t, rolled)
	assert.Equal(t, 1, prev.Rejected)

	_, rolled = tr.Roll()
	assert.False(t, rolled, "a day closes once")
}

func TestTracker_Attach(t *testing.T) {
	bus := approval.NewBus(approval.Hooks{})
	tr := NewTracker(clock.NewManual(time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)), nil, nil)

	unsubscribe := tr.Attach(bus)
	bus.Publish(approval.Event{Type: approval.EventExpired})
	unsubscribe()
	bus.Publish(approval.Event{Type: approval.EventExpired})

	assert.Equal(t, 1, tr.Snapshot().Expired)
}

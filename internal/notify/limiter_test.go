package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kirillm/action-guard/internal/clock"
)

func TestWindowLimiter(t *testing.T) {
	clk := clock.NewManual(time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC))
	l := NewWindowLimiter(3, clk)

	assert.Equal(t, 3, l.Remaining())
	assert.True(t, l.Allow())
	assert.True(t, l.Allow())
	assert.True(t, l.Allow())
	assert.False(t, l.Allow())
	assert.Equal(t, 0, l.Remaining())

	clk.Advance(59 * time.Second)
	assert.False(t, l.Allow(), "window has not elapsed")

	clk.Advance(time.Second)
	assert.Equal(t, 3, l.Remaining())
	assert.True(t, l.Allow())
	assert.Equal(t, 2, l.Remaining())
}

func TestWindowLimiter_SetLimit(t *testing.T) {
	clk := clock.NewManual(time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC))
	l := NewWindowLimiter(1, clk)

	assert.True(t, l.Allow())
	assert.False(t, l.Allow())

	l.SetLimit(2)
	assert.True(t, l.Allow())
	assert.False(t, l.Allow())
}

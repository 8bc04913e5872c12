package execution

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillm/action-guard/internal/clock"
	"github.com/kirillm/action-guard/internal/domain"
	"github.com/kirillm/action-guard/pkg/utils"
)

var now = time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC)

func newTestExecutor() (*Executor, *clock.Manual) {
	clk := clock.NewManual(now)
	return NewExecutor(nil, clk, utils.Nop()), clk
}

func handlerNamed(name string) Handler {
	return func(context.Context, domain.Action) (*Result, error) {
		return &Result{Success: true, Output: name}, nil
	}
}

func TestExecutor_Lookup(t *testing.T) {
	e, _ := newTestExecutor()
	e.Register("deploy", handlerNamed("deploy"))
	e.Register("production_deploy", handlerNamed("exact"))
	e.Register("post_*", handlerNamed("glob"))

	tests := []struct {
		actionType string
		want       string
		handler    string
	}{
		{"production_deploy", "exact", "production_deploy"},
		{"staging_deploy", "deploy", "deploy"},
		{"post_tweet", "glob", "post_*"},
	}

	for _, tt := range tests {
		t.Run(tt.actionType, func(t *testing.T) {
			res, err := e.Execute(t.Context(), domain.Action{ID: "a", Type: tt.actionType})
			require.NoError(t, err)
			assert.True(t, res.Success)
			assert.Equal(t, tt.want, res.Output)
			assert.Equal(t, tt.handler, res.Handler)
			assert.Equal(t, now, res.ExecutedAt)
		})
	}

	assert.True(t, e.Has("post_blog"))
	assert.False(t, e.Has("transfer_funds"))
	assert.Equal(t, []string{"deploy", "production_deploy", "post_*"}, e.Types())
}

func TestExecutor_NoHandler(t *testing.T) {
	e, _ := newTestExecutor()
	_, err := e.Execute(t.Context(), domain.Action{Type: "transfer_funds"})
	assert.ErrorIs(t, err, domain.ErrNoExecutor)
}

func TestExecutor_KillSwitch(t *testing.T) {
	e, _ := newTestExecutor()
	e.Register("dca_buy", handlerNamed("buy"))

	e.KillSwitch().Activate("exchange outage")
	_, err := e.Execute(t.Context(), domain.Action{Type: "dca_buy"})
	require.ErrorIs(t, err, domain.ErrKillSwitchEngaged)
	assert.Contains(t, err.Error(), "exchange outage")

	active, reason, at := e.KillSwitch().GetStatus()
	assert.True(t, active)
	assert.Equal(t, "exchange outage", reason)
	assert.Equal(t, now, at)

	e.KillSwitch().Deactivate()
	_, err = e.Execute(t.Context(), domain.Action{Type: "dca_buy"})
	assert.NoError(t, err)
}

func TestExecutor_HandlerFailure(t *testing.T) {
	e, clk := newTestExecutor()
	boom := errors.New("boom")
	e.Register("fails", func(context.Context, domain.Action) (*Result, error) {
		clk.Advance(time.Second)
		return nil, boom
	})
	e.Register("panics", func(context.Context, domain.Action) (*Result, error) {
		panic("nil map")
	})

	res, err := e.Execute(t.Context(), domain.Action{Type: "fails"})
	require.ErrorIs(t, err, boom)
	require.NotNil(t, res)
	assert.False(t, res.Success)
	assert.Equal(t, time.Second, res.Duration)

	_, err = e.Execute(t.Context(), domain.Action{Type: "panics"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "handler panic")
}

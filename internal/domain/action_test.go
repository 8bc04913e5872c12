package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/kirillm/action-guard/internal/clock"
	"github.com/kirillm/action-guard/internal/idgen"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFactory() (*ActionFactory, time.Time) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return NewActionFactory(&idgen.Sequence{Prefix: "act"}, clock.NewManual(now)), now
}

func TestActionBuilder_Build(t *testing.T) {
	f, now := newFactory()

	action, err := f.New(EngineTrading, CategoryTrading, "dca_buy").
		Description("Buy BTC").
		Param("symbol", "BTCUSDT").
		Value(25).
		Urgency(UrgencyHigh).
		Build()

	require.NoError(t, err)
	assert.Equal(t, "act-1", action.ID)
	assert.Equal(t, now, action.Timestamp)
	assert.Equal(t, "BTCUSDT", action.ParamString("symbol"))
	assert.Equal(t, 25.0, action.Metadata.EstimatedValue)
	assert.Equal(t, UrgencyHigh, action.Metadata.Urgency)
	assert.False(t, action.Metadata.Reversible)
}

func TestActionBuilder_DefaultsUrgencyToNormal(t *testing.T) {
	f, _ := newFactory()

	action, err := f.New(EngineContent, CategoryContent, "post_tweet").Description("hello").Build()
	require.NoError(t, err)
	assert.Equal(t, UrgencyNormal, action.Metadata.Urgency)
}

func TestActionBuilder_UniqueIDs(t *testing.T) {
	f := NewActionFactory(nil, nil)
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		a, err := f.New(EngineOther, CategoryOther, "noop").Description("noop").Build()
		require.NoError(t, err)
		assert.False(t, seen[a.ID], "duplicate id %s", a.ID)
		seen[a.ID] = true
	}
}

func TestActionBuilder_ParamsAreCopied(t *testing.T) {
	f, _ := newFactory()
	b := f.New(EngineTrading, CategoryTrading, "dca_buy").Description("buy").Param("qty", 1)

	first, err := b.Build()
	require.NoError(t, err)

	b.Param("qty", 2)
	assert.Equal(t, 1, first.Params["qty"])

	cp := first.CopyParams()
	cp["qty"] = 3
	assert.Equal(t, 1, first.Params["qty"])
}

func TestActionBuilder_Validation(t *testing.T) {
	tests := []struct {
		name  string
		build func(f *ActionFactory) (Action, error)
		want  string
	}{
		{
			name: "empty type",
			build: func(f *ActionFactory) (Action, error) {
				return f.New(EngineTrading, CategoryTrading, "").Description("x").Build()
			},
			want: "type is empty",
		},
		{
			name: "empty description",
			build: func(f *ActionFactory) (Action, error) {
				return f.New(EngineTrading, CategoryTrading, "dca_buy").Build()
			},
			want: "description is empty",
		},
		{
			name: "unknown engine",
			build: func(f *ActionFactory) (Action, error) {
				return f.New(Engine("forex"), CategoryTrading, "buy").Description("x").Build()
			},
			want: `unknown engine "forex"`,
		},
		{
			name: "unknown category",
			build: func(f *ActionFactory) (Action, error) {
				return f.New(EngineTrading, Category("misc"), "buy").Description("x").Build()
			},
			want: `unknown category "misc"`,
		},
		{
			name: "unknown urgency",
			build: func(f *ActionFactory) (Action, error) {
				return f.New(EngineTrading, CategoryTrading, "buy").Description("x").Urgency("asap").Build()
			},
			want: `unknown urgency "asap"`,
		},
		{
			name: "negative value",
			build: func(f *ActionFactory) (Action, error) {
				return f.New(EngineTrading, CategoryTrading, "buy").Description("x").Value(-1).Build()
			},
			want: "estimated value is negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, _ := newFactory()
			_, err := tt.build(f)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidAction))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestAction_ValidateZeroValue(t *testing.T) {
	err := Action{}.Validate()
	require.ErrorIs(t, err, ErrInvalidAction)
	assert.Contains(t, err.Error(), "id is empty")
	assert.Contains(t, err.Error(), "timestamp is zero")
}

func TestDecision_Resolve(t *testing.T) {
	f, now := newFactory()
	action, err := f.New(EngineBuild, CategoryDeployment, "deploy").Description("deploy").Build()
	require.NoError(t, err)

	d := NewDecision(action, RiskAssessment{ActionID: action.ID, Recommendation: OutcomeQueueForApproval})
	assert.NotEmpty(t, d.ID)
	assert.Equal(t, OutcomeQueueForApproval, d.Outcome)
	assert.False(t, d.ShouldExecute())

	d.Resolve(OutcomeAutoExecute, "alice", now)
	assert.True(t, d.ShouldExecute())
	assert.Equal(t, "alice", d.ApprovedBy)
	require.NotNil(t, d.ApprovedAt)
	assert.Equal(t, now, *d.ApprovedAt)
}

func TestApprovalRequest_Snapshot(t *testing.T) {
	req := &ApprovalRequest{
		ID:                "r-1",
		NotificationsSent: map[string]bool{TagEscalation: true},
	}

	snap := req.Snapshot()
	snap.NotificationsSent[TagCriticalEscalation] = true

	assert.True(t, snap.Sent(TagEscalation))
	assert.False(t, req.Sent(TagCriticalEscalation))
}

func TestAction_TypedParams(t *testing.T) {
	a := Action{Params: map[string]interface{}{
		"amount":  12.5,
		"levels":  4,
		"enabled": true,
		"symbol":  "BTCUSDT",
	}}

	assert.Equal(t, 12.5, a.ParamFloat("amount", 0))
	assert.Equal(t, 4.0, a.ParamFloat("levels", 0))
	assert.Equal(t, 7.0, a.ParamFloat("symbol", 7))
	assert.Equal(t, 7.0, a.ParamFloat("missing", 7))
	assert.True(t, a.ParamBool("enabled", false))
	assert.True(t, a.ParamBool("missing", true))
	assert.Equal(t, "BTCUSDT", a.ParamString("symbol"))
}

package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillm/action-guard/internal/clock"
	"github.com/kirillm/action-guard/internal/domain"
	"github.com/kirillm/action-guard/internal/idgen"
	"github.com/kirillm/action-guard/internal/policy"
)

var testNow = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

type actionInput struct {
	engine     domain.Engine
	category   domain.Category
	typ        string
	value      float64
	reversible bool
	urgency    domain.Urgency
}

func build(t *testing.T, s actionInput) domain.Action {
	t.Helper()
	if s.engine == "" {
		s.engine = domain.EngineOther
	}
	if s.urgency == "" {
		s.urgency = domain.UrgencyNormal
	}
	f := domain.NewActionFactory(&idgen.Sequence{Prefix: "act"}, clock.NewManual(testNow))
	a, err := f.New(s.engine, s.category, s.typ).
		Description("test action " + s.typ).
		Value(s.value).
		Reversible(s.reversible).
		Urgency(s.urgency).
		Build()
	require.NoError(t, err)
	return a
}

func newClassifier(p *policy.Policy) *Classifier {
	return NewClassifier(policy.Static{P: p}, clock.NewManual(testNow))
}

func TestClassify_DCABuyScenario(t *testing.T) {
	action := build(t, actionInput{
		engine:   domain.EngineTrading,
		category: domain.CategoryTrading,
		typ:      "dca_buy",
		value:    5,
		urgency:  domain.UrgencyNormal,
	})

	c := newClassifier(policy.Default())
	assessment, rule, err := c.Explain(action)
	require.NoError(t, err)

	assert.Equal(t, 33, assessment.Score)
	assert.Equal(t, domain.RiskLow, assessment.Level)
	assert.Equal(t, domain.OutcomeAutoExecute, assessment.Recommendation)
	assert.Equal(t, "safe-pattern", rule)
	assert.Equal(t, action.ID, assessment.ActionID)
	assert.Equal(t, testNow, assessment.Timestamp)

	// без safe паттернов уровень low все равно ведет к auto_execute
	p := policy.Default()
	p.SafePatterns = nil
	assessment, rule, err = newClassifier(p).Explain(action)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeAutoExecute, assessment.Recommendation)
	assert.Equal(t, "level-low", rule)
}

func TestClassify_ProductionDeployScenario(t *testing.T) {
	action := build(t, actionInput{
		engine:     domain.EngineBuild,
		category:   domain.CategoryDeployment,
		typ:        "claude_production_deploy",
		reversible: true,
		urgency:    domain.UrgencyHigh,
	})

	assessment, rule, err := newClassifier(policy.Default()).Explain(action)
	require.NoError(t, err)

	assert.Equal(t, domain.OutcomeEscalate, assessment.Recommendation)
	assert.Equal(t, "dangerous-pattern", rule)
	assert.Equal(t, 22, assessment.Score)
	assert.Contains(t, assessment.Constraints, ConstraintDeployment)
	assert.NotContains(t, assessment.Constraints, ConstraintIrreversible)
}

func TestClassify_ZeroValueReversibleLowUrgencyIsSafe(t *testing.T) {
	categories := []domain.Category{
		domain.CategoryTrading,
		domain.CategoryContent,
		domain.CategoryBuild,
		domain.CategoryDeployment,
		domain.CategoryConfiguration,
		domain.CategoryOther,
	}
	types := []string{"noop", "publish_blog_post", "rotate_key"}

	c := newClassifier(policy.Default())
	for _, cat := range categories {
		for _, typ := range types {
			action := build(t, actionInput{category: cat, typ: typ, reversible: true, urgency: domain.UrgencyLow})
			assessment, err := c.Classify(action)
			require.NoError(t, err)
			assert.Equal(t, domain.RiskSafe, assessment.Level, "category=%s type=%s score=%d", cat, typ, assessment.Score)
		}
	}
}

func TestClassify_Precedence(t *testing.T) {
	tests := []struct {
		name      string
		input     actionInput
		wantLevel domain.RiskLevel
		want      domain.Outcome
		wantRule  string
	}{
		{
			name: "safe pattern wins over high score",
			input: actionInput{
				category: domain.CategoryTrading, typ: "dca_buy", value: 50000, urgency: domain.UrgencyCritical,
			},
			wantLevel: domain.RiskHigh,
			want:      domain.OutcomeAutoExecute,
			wantRule:  "safe-pattern",
		},
		{
			name: "dangerous pattern wins over safe score",
			input: actionInput{
				category: domain.CategoryConfiguration, typ: "delete_cache", reversible: true, urgency: domain.UrgencyLow,
			},
			wantLevel: domain.RiskSafe,
			want:      domain.OutcomeEscalate,
			wantRule:  "dangerous-pattern",
		},
		{
			name: "safe beats dangerous when both match",
			input: actionInput{
				category: domain.CategoryContent, typ: "delete_draft", reversible: true,
			},
			wantLevel: domain.RiskSafe,
			want:      domain.OutcomeAutoExecute,
			wantRule:  "safe-pattern",
		},
		{
			name: "medium level queues",
			input: actionInput{
				category: domain.CategoryTrading, typ: "market_sell", value: 500, urgency: domain.UrgencyHigh,
			},
			wantLevel: domain.RiskMedium,
			want:      domain.OutcomeQueueForApproval,
			wantRule:  "level-medium",
		},
		{
			name: "high level queues",
			input: actionInput{
				category: domain.CategoryTrading, typ: "market_sell", value: 50000, urgency: domain.UrgencyCritical,
			},
			wantLevel: domain.RiskHigh,
			want:      domain.OutcomeQueueForApproval,
			wantRule:  "level-high",
		},
		{
			name: "critical level escalates",
			input: actionInput{
				category: domain.CategoryTrading, typ: "announce_listing", value: 50000, urgency: domain.UrgencyCritical,
			},
			wantLevel: domain.RiskCritical,
			want:      domain.OutcomeEscalate,
			wantRule:  "level-critical",
		},
	}

	c := newClassifier(policy.Default())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assessment, rule, err := c.Explain(build(t, tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.wantLevel, assessment.Level, "score=%d", assessment.Score)
			assert.Equal(t, tt.want, assessment.Recommendation)
			assert.Equal(t, tt.wantRule, rule)
		})
	}
}

func TestClassify_Factors(t *testing.T) {
	action := build(t, actionInput{
		engine:   domain.EngineContent,
		category: domain.CategoryContent,
		typ:      "post_tweet",
		value:    150,
		urgency:  domain.UrgencyCritical,
	})

	assessment, err := newClassifier(policy.Default()).Classify(action)
	require.NoError(t, err)
	require.Len(t, assessment.Factors, 5)

	names := []string{FactorFinancial, FactorReversibility, FactorCategory, FactorUrgency, FactorVisibility}
	var weightSum, total float64
	for i, f := range assessment.Factors {
		assert.Equal(t, names[i], f.Name)
		weightSum += f.Weight
		total += f.Contribution()
	}
	assert.InDelta(t, 1.0, weightSum, 1e-9)

	fin := assessment.Factors[0]
	assert.Equal(t, 40.0, fin.Value)
	assert.False(t, fin.Exceeded)

	rev := assessment.Factors[1]
	assert.Equal(t, 80.0, rev.Value)
	assert.True(t, rev.Exceeded)

	vis := assessment.Factors[4]
	assert.Equal(t, 60.0, vis.Value)
	assert.True(t, vis.Exceeded)
	assert.Contains(t, vis.Reason, "post")

	// 14 + 16 + 3 + 13.5 + 9 = 55.5
	assert.InDelta(t, 55.5, total, 1e-9)
	assert.Equal(t, 56, assessment.Score)
	assert.Equal(t, domain.RiskMedium, assessment.Level)
	assert.Equal(t, []string{ConstraintIrreversible}, assessment.Constraints)
}

func TestClassify_Constraints(t *testing.T) {
	action := build(t, actionInput{
		category: domain.CategoryTrading, typ: "market_sell", value: 50000, urgency: domain.UrgencyCritical,
	})

	assessment, err := newClassifier(policy.Default()).Classify(action)
	require.NoError(t, err)
	assert.Equal(t, []string{ConstraintHumanApproval, ConstraintIrreversible, ConstraintTrading}, assessment.Constraints)
	assert.True(t, assessment.HasConstraint(ConstraintHumanApproval))
}

func TestClassify_InvalidAction(t *testing.T) {
	_, err := newClassifier(policy.Default()).Classify(domain.Action{Type: "x"})
	require.ErrorIs(t, err, domain.ErrInvalidAction)
}

func TestClassify_CategoryOverride(t *testing.T) {
	p := policy.Default()
	p.CategoryRisk[domain.CategoryContent] = 100

	action := build(t, actionInput{category: domain.CategoryContent, typ: "noop", reversible: true, urgency: domain.UrgencyLow})
	assessment, err := newClassifier(p).Classify(action)
	require.NoError(t, err)

	// 0 + 2 + 15 + 1.5 + 3
	assert.Equal(t, 22, assessment.Score)
	assert.Equal(t, domain.RiskLow, assessment.Level)
}

func TestClassify_FollowsPolicyStore(t *testing.T) {
	store := policy.NewStore(policy.Default())
	c := NewClassifier(store, clock.NewManual(testNow))
	action := build(t, actionInput{category: domain.CategoryTrading, typ: "market_sell", value: 500, urgency: domain.UrgencyHigh})

	before, err := c.Classify(action)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeQueueForApproval, before.Recommendation)

	p := policy.Default()
	p.LevelOutcomes[domain.RiskMedium] = domain.OutcomeReject
	store.Set(p)

	after, err := c.Classify(action)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeReject, after.Recommendation)
}

func TestFinancialRisk(t *testing.T) {
	b := policy.Default().ValueBuckets
	tests := []struct {
		value float64
		want  float64
	}{
		{-5, 0},
		{0, 0},
		{10, 5},
		{10.01, 20},
		{100, 20},
		{1000, 40},
		{10000, 70},
		{10001, 100},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FinancialRisk(tt.value, b), "value=%v", tt.value)
	}
}

func TestLevelForScore(t *testing.T) {
	bands := policy.Default().LevelBands
	tests := []struct {
		score int
		want  domain.RiskLevel
	}{
		{0, domain.RiskSafe},
		{20, domain.RiskSafe},
		{21, domain.RiskLow},
		{40, domain.RiskLow},
		{41, domain.RiskMedium},
		{60, domain.RiskMedium},
		{61, domain.RiskHigh},
		{80, domain.RiskHigh},
		{81, domain.RiskCritical},
		{100, domain.RiskCritical},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LevelForScore(tt.score, bands), "score=%d", tt.score)
	}
}

package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kirillm/action-guard/internal/domain"
	"github.com/kirillm/action-guard/internal/policy"
)

func TestBuildRules_Order(t *testing.T) {
	rules := BuildRules(policy.Default())

	names := make([]string, 0, len(rules))
	for _, r := range rules {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{
		"safe-pattern",
		"dangerous-pattern",
		"level-safe",
		"level-low",
		"level-medium",
		"level-high",
		"level-critical",
	}, names)
}

func TestRuleSet_Evaluate(t *testing.T) {
	rules := BuildRules(policy.Default())
	action := domain.Action{Type: "rotate_key"}

	rule, ok := rules.Evaluate(action, domain.RiskHigh)
	assert.True(t, ok)
	assert.Equal(t, "level-high", rule.Name)
	assert.Equal(t, domain.OutcomeQueueForApproval, rule.Outcome)

	_, ok = RuleSet{}.Evaluate(action, domain.RiskHigh)
	assert.False(t, ok)
}

func TestBuildRules_GlobPatterns(t *testing.T) {
	p := policy.Default()
	p.DangerousPatterns = []string{"deploy_*_prod"}

	rules := BuildRules(p)

	rule, ok := rules.Evaluate(domain.Action{Type: "deploy_api_prod"}, domain.RiskSafe)
	assert.True(t, ok)
	assert.Equal(t, "dangerous-pattern", rule.Name)

	rule, ok = rules.Evaluate(domain.Action{Type: "deploy_api_staging"}, domain.RiskSafe)
	assert.True(t, ok)
	assert.Equal(t, "level-safe", rule.Name)
}

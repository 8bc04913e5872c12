package risk

import (
	"github.com/kirillm/action-guard/internal/domain"
	"github.com/kirillm/action-guard/internal/match"
	"github.com/kirillm/action-guard/internal/policy"
)

// Rule один пункт упорядоченного списка рекомендаций
type Rule struct {
	Name    string
	Match   func(action domain.Action, level domain.RiskLevel) bool
	Outcome domain.Outcome
}

// RuleSet правила в порядке приоритета; побеждает первое совпадение
type RuleSet []Rule

// Evaluate возвращает первое совпавшее правило
func (rs RuleSet) Evaluate(action domain.Action, level domain.RiskLevel) (Rule, bool) {
	for _, r := range rs {
		if r.Match(action, level) {
			return r, true
		}
	}
	return Rule{}, false
}

// BuildRules строит список: safe паттерны, dangerous паттерны, затем таблица уровней.
// Паттерны сравниваются грубо (подстрока в обе стороны, см. пакет match).
func BuildRules(p *policy.Policy) RuleSet {
	rules := RuleSet{
		{
			Name:    "safe-pattern",
			Match:   typeMatches(p.SafePatterns),
			Outcome: domain.OutcomeAutoExecute,
		},
		{
			Name:    "dangerous-pattern",
			Match:   typeMatches(p.DangerousPatterns),
			Outcome: domain.OutcomeEscalate,
		},
	}

	for _, lvl := range domain.RiskLevels {
		outcome, ok := p.LevelOutcomes[lvl]
		if !ok {
			continue
		}
		lvl := lvl
		rules = append(rules, Rule{
			Name:    "level-" + string(lvl),
			Match:   func(_ domain.Action, level domain.RiskLevel) bool { return level == lvl },
			Outcome: outcome,
		})
	}
	return rules
}

func typeMatches(patterns []string) func(domain.Action, domain.RiskLevel) bool {
	return func(action domain.Action, _ domain.RiskLevel) bool {
		_, ok := match.Any(action.Type, patterns)
		return ok
	}
}

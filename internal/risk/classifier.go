package risk

import (
	"fmt"
	"math"

	"github.com/kirillm/action-guard/internal/clock"
	"github.com/kirillm/action-guard/internal/domain"
	"github.com/kirillm/action-guard/internal/match"
	"github.com/kirillm/action-guard/internal/policy"
)

// Factor names
const (
	FactorFinancial     = "financial_value"
	FactorReversibility = "reversibility"
	FactorCategory      = "category_base_risk"
	FactorUrgency       = "urgency"
	FactorVisibility    = "external_visibility"
)

// Constraint strings
const (
	ConstraintHumanApproval = "requires human approval"
	ConstraintIrreversible  = "action cannot be reversed"
	ConstraintTrading       = "trading: subject to position and exposure limits"
	ConstraintDeployment    = "deployment: verify rollback plan before release"
)

const (
	reversibleRisk   = 10
	irreversibleRisk = 80
	visibleRisk      = 60
	internalRisk     = 20
	defaultCategory  = 30
)

// Classifier оценивает риск действия по текущей политике.
// Classify не имеет побочных эффектов.
type Classifier struct {
	source policy.Source
	clock  clock.Clock
}

// NewClassifier создает классификатор
func NewClassifier(source policy.Source, clk clock.Clock) *Classifier {
	if source == nil {
		source = policy.Static{}
	}
	return &Classifier{
		source: source,
		clock:  clock.OrReal(clk),
	}
}

// Classify строит RiskAssessment. Структурно некорректное действие
// возвращается как ошибка ErrInvalidAction.
func (c *Classifier) Classify(action domain.Action) (domain.RiskAssessment, error) {
	assessment, _, err := c.Explain(action)
	return assessment, err
}

// Explain как Classify, но дополнительно возвращает имя сработавшего правила
func (c *Classifier) Explain(action domain.Action) (domain.RiskAssessment, string, error) {
	if err := action.Validate(); err != nil {
		return domain.RiskAssessment{}, "", err
	}

	p := c.source.Current()

	factors := []domain.RiskFactor{
		financialFactor(action, p),
		reversibilityFactor(action, p),
		categoryFactor(action, p),
		urgencyFactor(action, p),
		visibilityFactor(action, p),
	}

	var total float64
	for _, f := range factors {
		total += f.Contribution()
	}
	score := clampScore(int(math.Round(total)))
	level := LevelForScore(score, p.LevelBands)

	recommendation := domain.OutcomeQueueForApproval
	ruleName := "fallback"
	if rule, ok := BuildRules(p).Evaluate(action, level); ok {
		recommendation = rule.Outcome
		ruleName = rule.Name
	}

	return domain.RiskAssessment{
		ActionID:       action.ID,
		Level:          level,
		Score:          score,
		Factors:        factors,
		Recommendation: recommendation,
		Constraints:    constraints(action, level),
		Timestamp:      c.clock.Now(),
	}, ruleName, nil
}

// LevelForScore отображает счет в уровень по возрастающим границам
func LevelForScore(score int, bands policy.LevelBands) domain.RiskLevel {
	switch {
	case score <= bands.Safe:
		return domain.RiskSafe
	case score <= bands.Low:
		return domain.RiskLow
	case score <= bands.Medium:
		return domain.RiskMedium
	case score <= bands.High:
		return domain.RiskHigh
	default:
		return domain.RiskCritical
	}
}

// FinancialRisk отображает денежную оценку в сырой риск 0..100
func FinancialRisk(value float64, b policy.ValueBuckets) float64 {
	switch {
	case value <= 0:
		return 0
	case value <= b.Negligible:
		return 5
	case value <= b.Low:
		return 20
	case value <= b.Medium:
		return 40
	case value <= b.High:
		return 70
	default:
		return 100
	}
}

func financialFactor(action domain.Action, p *policy.Policy) domain.RiskFactor {
	value := action.Metadata.EstimatedValue
	raw := FinancialRisk(value, p.ValueBuckets)

	reason := "no monetary value"
	if value > 0 {
		reason = fmt.Sprintf("estimated value %.2f", value)
	}
	return newFactor(FactorFinancial, p.Weights.Financial, raw, p.FactorThresholds.Financial, reason)
}

func reversibilityFactor(action domain.Action, p *policy.Policy) domain.RiskFactor {
	if action.Metadata.Reversible {
		return newFactor(FactorReversibility, p.Weights.Reversibility, reversibleRisk, p.FactorThresholds.Reversibility, "action can be rolled back")
	}
	return newFactor(FactorReversibility, p.Weights.Reversibility, irreversibleRisk, p.FactorThresholds.Reversibility, "action cannot be rolled back")
}

func categoryFactor(action domain.Action, p *policy.Policy) domain.RiskFactor {
	raw, ok := p.CategoryRisk[action.Category]
	if !ok {
		raw = defaultCategory
	}
	reason := fmt.Sprintf("base risk for category %s", action.Category)
	return newFactor(FactorCategory, p.Weights.Category, raw, p.FactorThresholds.Category, reason)
}

func urgencyFactor(action domain.Action, p *policy.Policy) domain.RiskFactor {
	raw := p.UrgencyRisk[action.Metadata.Urgency]
	reason := fmt.Sprintf("urgency %s", action.Metadata.Urgency)
	return newFactor(FactorUrgency, p.Weights.Urgency, raw, p.FactorThresholds.Urgency, reason)
}

func visibilityFactor(action domain.Action, p *policy.Policy) domain.RiskFactor {
	if pattern, ok := match.Any(action.Type, p.VisibilityPatterns); ok {
		reason := fmt.Sprintf("publicly visible (%s)", pattern)
		return newFactor(FactorVisibility, p.Weights.Visibility, visibleRisk, p.FactorThresholds.Visibility, reason)
	}
	return newFactor(FactorVisibility, p.Weights.Visibility, internalRisk, p.FactorThresholds.Visibility, "internal only")
}

func newFactor(name string, weight, value, threshold float64, reason string) domain.RiskFactor {
	return domain.RiskFactor{
		Name:      name,
		Weight:    weight,
		Value:     value,
		Threshold: threshold,
		Exceeded:  value > threshold,
		Reason:    reason,
	}
}

func constraints(action domain.Action, level domain.RiskLevel) []string {
	out := []string{}
	if level == domain.RiskHigh || level == domain.RiskCritical {
		out = append(out, ConstraintHumanApproval)
	}
	if !action.Metadata.Reversible {
		out = append(out, ConstraintIrreversible)
	}
	switch action.Category {
	case domain.CategoryTrading:
		out = append(out, ConstraintTrading)
	case domain.CategoryDeployment:
		out = append(out, ConstraintDeployment)
	}
	return out
}

func clampScore(s int) int {
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}

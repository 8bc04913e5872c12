package policy

import (
	"fmt"
	"math"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/hay-kot/criterio"

	"github.com/kirillm/action-guard/internal/domain"
)

const weightTolerance = 0.001

// Validate проверяет политику и возвращает все найденные проблемы сразу
func (p *Policy) Validate() error {
	return criterio.ValidateStruct(
		p.validateWeights(),
		p.validateBuckets(),
		p.validateTables(),
		p.validateBands(),
		p.validatePatterns(),
		p.validateTunables(),
	)
}

func (p *Policy) validateWeights() error {
	var errs criterio.FieldErrorsBuilder

	weights := map[string]float64{
		"weights.financial":     p.Weights.Financial,
		"weights.reversibility": p.Weights.Reversibility,
		"weights.category":      p.Weights.Category,
		"weights.urgency":       p.Weights.Urgency,
		"weights.visibility":    p.Weights.Visibility,
	}
	for field, w := range weights {
		if w < 0 || w > 1 {
			errs = errs.Append(field, fmt.Errorf("must be within [0,1], got %v", w))
		}
	}

	if sum := p.Weights.Sum(); math.Abs(sum-1.0) > weightTolerance {
		errs = errs.Append("weights", fmt.Errorf("must sum to 1.0, got %.3f", sum))
	}
	return errs.ToError()
}

func (p *Policy) validateBuckets() error {
	var errs criterio.FieldErrorsBuilder
	b := p.ValueBuckets

	if b.Negligible <= 0 {
		errs = errs.Append("value_buckets.negligible", fmt.Errorf("must be positive"))
	}
	if !(b.Negligible < b.Low && b.Low < b.Medium && b.Medium < b.High) {
		errs = errs.Append("value_buckets", fmt.Errorf("must be strictly ascending"))
	}
	return errs.ToError()
}

func (p *Policy) validateTables() error {
	var errs criterio.FieldErrorsBuilder

	for cat, v := range p.CategoryRisk {
		field := fmt.Sprintf("category_risk[%s]", cat)
		if !cat.Valid() {
			errs = errs.Append(field, fmt.Errorf("unknown category"))
		}
		if v < 0 || v > 100 {
			errs = errs.Append(field, fmt.Errorf("must be within [0,100], got %v", v))
		}
	}

	for _, u := range []domain.Urgency{domain.UrgencyLow, domain.UrgencyNormal, domain.UrgencyHigh, domain.UrgencyCritical} {
		v, ok := p.UrgencyRisk[u]
		field := fmt.Sprintf("urgency_risk[%s]", u)
		if !ok {
			errs = errs.Append(field, fmt.Errorf("missing"))
			continue
		}
		if v < 0 || v > 100 {
			errs = errs.Append(field, fmt.Errorf("must be within [0,100], got %v", v))
		}
	}

	for _, lvl := range domain.RiskLevels {
		out, ok := p.LevelOutcomes[lvl]
		field := fmt.Sprintf("level_outcomes[%s]", lvl)
		if !ok {
			errs = errs.Append(field, fmt.Errorf("missing"))
			continue
		}
		if !out.Valid() {
			errs = errs.Append(field, fmt.Errorf("unknown outcome %q", out))
		}
	}
	return errs.ToError()
}

func (p *Policy) validateBands() error {
	var errs criterio.FieldErrorsBuilder
	b := p.LevelBands

	if b.Safe < 0 || b.High > 100 {
		errs = errs.Append("level_bands", fmt.Errorf("must be within [0,100]"))
	}
	if !(b.Safe < b.Low && b.Low < b.Medium && b.Medium < b.High) {
		errs = errs.Append("level_bands", fmt.Errorf("must be strictly ascending"))
	}
	return errs.ToError()
}

func (p *Policy) validatePatterns() error {
	var errs criterio.FieldErrorsBuilder

	sets := []struct {
		field    string
		patterns []string
	}{
		{"safe_patterns", p.SafePatterns},
		{"dangerous_patterns", p.DangerousPatterns},
		{"visibility_patterns", p.VisibilityPatterns},
	}
	for _, set := range sets {
		for i, pattern := range set.patterns {
			field := fmt.Sprintf("%s[%d]", set.field, i)
			if pattern == "" {
				errs = errs.Append(field, fmt.Errorf("empty pattern"))
				continue
			}
			if !doublestar.ValidatePattern(pattern) {
				errs = errs.Append(field, fmt.Errorf("invalid glob %q", pattern))
			}
		}
	}
	return errs.ToError()
}

func (p *Policy) validateTunables() error {
	var errs criterio.FieldErrorsBuilder

	if p.Queue.MaxPending <= 0 {
		errs = errs.Append("queue.max_pending", fmt.Errorf("must be positive"))
	}
	if p.Queue.TTL <= 0 {
		errs = errs.Append("queue.ttl", fmt.Errorf("must be positive"))
	}
	if p.Queue.EscalateAfter < 0 || p.Queue.AutoRejectAfter < 0 {
		errs = errs.Append("queue", fmt.Errorf("thresholds must not be negative"))
	}
	if p.Queue.EscalateAfter > 0 && p.Queue.AutoRejectAfter > 0 && p.Queue.AutoRejectAfter <= p.Queue.EscalateAfter {
		errs = errs.Append("queue.auto_reject_after", fmt.Errorf("must be longer than escalate_after"))
	}
	if p.Queue.SweepInterval <= 0 {
		errs = errs.Append("queue.sweep_interval", fmt.Errorf("must be positive"))
	}
	if p.Rollback.MaxCheckpoints <= 0 {
		errs = errs.Append("rollback.max_checkpoints", fmt.Errorf("must be positive"))
	}
	if p.Rollback.TTL <= 0 {
		errs = errs.Append("rollback.ttl", fmt.Errorf("must be positive"))
	}
	if p.Notify.RatePerMinute <= 0 {
		errs = errs.Append("notify.rate_per_minute", fmt.Errorf("must be positive"))
	}
	return errs.ToError()
}

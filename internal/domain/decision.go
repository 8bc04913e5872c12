package domain

import (
	"time"

	"github.com/kirillm/action-guard/internal/idgen"
)

// Decision связывает действие, его оценку и итоговое решение.
// Outcome меняется только очередью при approve/reject.
type Decision struct {
	ID         string         `json:"id"`
	Action     Action         `json:"action"`
	Assessment RiskAssessment `json:"assessment"`
	Outcome    Outcome        `json:"outcome"`
	ApprovedBy string         `json:"approved_by,omitempty"`
	ApprovedAt *time.Time     `json:"approved_at,omitempty"`
}

// NewDecision создает решение с рекомендованным итогом
func NewDecision(action Action, assessment RiskAssessment) *Decision {
	return &Decision{
		ID:         idgen.New(),
		Action:     action,
		Assessment: assessment,
		Outcome:    assessment.Recommendation,
	}
}

// Resolve фиксирует решение человека
func (d *Decision) Resolve(outcome Outcome, by string, at time.Time) {
	d.Outcome = outcome
	d.ApprovedBy = by
	d.ApprovedAt = &at
}

// ShouldExecute true если действие можно выполнять
func (d *Decision) ShouldExecute() bool {
	return d.Outcome == OutcomeAutoExecute
}

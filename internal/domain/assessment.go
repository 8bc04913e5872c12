package domain

import "time"

// RiskLevel уровень риска
type RiskLevel string

const (
	RiskSafe     RiskLevel = "safe"
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// RiskLevels все уровни по возрастанию
var RiskLevels = []RiskLevel{RiskSafe, RiskLow, RiskMedium, RiskHigh, RiskCritical}

// Valid проверяет известен ли уровень
func (l RiskLevel) Valid() bool {
	for _, lvl := range RiskLevels {
		if l == lvl {
			return true
		}
	}
	return false
}

// Outcome итог решения
type Outcome string

const (
	OutcomeAutoExecute      Outcome = "auto_execute"
	OutcomeQueueForApproval Outcome = "queue_for_approval"
	OutcomeEscalate         Outcome = "escalate"
	OutcomeReject           Outcome = "reject"
)

// Valid проверяет известен ли итог
func (o Outcome) Valid() bool {
	switch o {
	case OutcomeAutoExecute, OutcomeQueueForApproval, OutcomeEscalate, OutcomeReject:
		return true
	}
	return false
}

// RiskFactor один взвешенный фактор оценки
type RiskFactor struct {
	Name      string  `json:"name"`
	Weight    float64 `json:"weight"`
	Value     float64 `json:"value"`
	Threshold float64 `json:"threshold"`
	Exceeded  bool    `json:"exceeded"`
	Reason    string  `json:"reason"`
}

// Contribution вклад фактора в итоговый счет
func (f RiskFactor) Contribution() float64 {
	return f.Value * f.Weight
}

// RiskAssessment результат классификации одного действия
type RiskAssessment struct {
	ActionID       string       `json:"action_id"`
	Level          RiskLevel    `json:"level"`
	Score          int          `json:"score"`
	Factors        []RiskFactor `json:"factors"`
	Recommendation Outcome      `json:"recommendation"`
	Constraints    []string     `json:"constraints"`
	Timestamp      time.Time    `json:"timestamp"`
}

// HasConstraint проверяет наличие ограничения
func (a RiskAssessment) HasConstraint(c string) bool {
	for _, existing := range a.Constraints {
		if existing == c {
			return true
		}
	}
	return false
}

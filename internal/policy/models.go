package policy

import (
	"time"

	"github.com/kirillm/action-guard/internal/domain"
)

// Policy профиль риск-классификации и параметры очереди
type Policy struct {
	ProfileName string `yaml:"profile_name"`

	Weights          Weights                             `yaml:"weights"`
	ValueBuckets     ValueBuckets                        `yaml:"value_buckets"`
	CategoryRisk     map[domain.Category]float64         `yaml:"category_risk"`
	UrgencyRisk      map[domain.Urgency]float64          `yaml:"urgency_risk"`
	FactorThresholds FactorThresholds                    `yaml:"factor_thresholds"`
	LevelBands       LevelBands                          `yaml:"level_bands"`
	LevelOutcomes    map[domain.RiskLevel]domain.Outcome `yaml:"level_outcomes"`

	SafePatterns       []string `yaml:"safe_patterns"`
	DangerousPatterns  []string `yaml:"dangerous_patterns"`
	VisibilityPatterns []string `yaml:"visibility_patterns"`

	Queue    QueuePolicy    `yaml:"queue"`
	Rollback RollbackPolicy `yaml:"rollback"`
	Notify   NotifyPolicy   `yaml:"notify"`
}

// Weights веса пяти факторов, в сумме 1.0
type Weights struct {
	Financial     float64 `yaml:"financial"`
	Reversibility float64 `yaml:"reversibility"`
	Category      float64 `yaml:"category"`
	Urgency       float64 `yaml:"urgency"`
	Visibility    float64 `yaml:"visibility"`
}

// Sum сумма весов
func (w Weights) Sum() float64 {
	return w.Financial + w.Reversibility + w.Category + w.Urgency + w.Visibility
}

// ValueBuckets верхние границы корзин денежной оценки
type ValueBuckets struct {
	Negligible float64 `yaml:"negligible"`
	Low        float64 `yaml:"low"`
	Medium     float64 `yaml:"medium"`
	High       float64 `yaml:"high"`
}

// FactorThresholds значения, выше которых фактор считается превышенным
type FactorThresholds struct {
	Financial     float64 `yaml:"financial"`
	Reversibility float64 `yaml:"reversibility"`
	Category      float64 `yaml:"category"`
	Urgency       float64 `yaml:"urgency"`
	Visibility    float64 `yaml:"visibility"`
}

// LevelBands верхние границы уровней; все что выше High это critical
type LevelBands struct {
	Safe   int `yaml:"safe"`
	Low    int `yaml:"low"`
	Medium int `yaml:"medium"`
	High   int `yaml:"high"`
}

// QueuePolicy параметры очереди подтверждений
type QueuePolicy struct {
	MaxPending           int           `yaml:"max_pending"`
	TTL                  time.Duration `yaml:"ttl"`
	EscalateAfter        time.Duration `yaml:"escalate_after"`
	AutoRejectAfter      time.Duration `yaml:"auto_reject_after"`
	CriticalAutoEscalate bool          `yaml:"critical_auto_escalate"`
	SweepInterval        time.Duration `yaml:"sweep_interval"`
}

// RollbackPolicy параметры хранилища чекпоинтов
type RollbackPolicy struct {
	MaxCheckpoints int           `yaml:"max_checkpoints"`
	TTL            time.Duration `yaml:"ttl"`
}

// NotifyPolicy параметры нотификаций
type NotifyPolicy struct {
	RatePerMinute int           `yaml:"rate_per_minute"`
	SendTimeout   time.Duration `yaml:"send_timeout"`
}

package policy

import (
	"time"

	"github.com/kirillm/action-guard/internal/domain"
)

// DefaultProfile имя профиля по умолчанию
const DefaultProfile = "moderate"

// Default возвращает встроенную политику. Каждый вызов отдает новые map и slice.
func Default() *Policy {
	return &Policy{
		ProfileName: DefaultProfile,
		Weights: Weights{
			Financial:     0.35,
			Reversibility: 0.20,
			Category:      0.15,
			Urgency:       0.15,
			Visibility:    0.15,
		},
		ValueBuckets: ValueBuckets{
			Negligible: 10,
			Low:        100,
			Medium:     1000,
			High:       10000,
		},
		CategoryRisk: map[domain.Category]float64{
			domain.CategoryTrading:       50,
			domain.CategoryDeployment:    50,
			domain.CategoryBuild:         30,
			domain.CategoryOther:         30,
			domain.CategoryConfiguration: 25,
			domain.CategoryContent:       20,
		},
		UrgencyRisk: map[domain.Urgency]float64{
			domain.UrgencyLow:      10,
			domain.UrgencyNormal:   30,
			domain.UrgencyHigh:     60,
			domain.UrgencyCritical: 90,
		},
		FactorThresholds: FactorThresholds{
			Financial:     40,
			Reversibility: 50,
			Category:      40,
			Urgency:       50,
			Visibility:    50,
		},
		LevelBands: LevelBands{
			Safe:   20,
			Low:    40,
			Medium: 60,
			High:   80,
		},
		LevelOutcomes: map[domain.RiskLevel]domain.Outcome{
			domain.RiskSafe:     domain.OutcomeAutoExecute,
			domain.RiskLow:      domain.OutcomeAutoExecute,
			domain.RiskMedium:   domain.OutcomeQueueForApproval,
			domain.RiskHigh:     domain.OutcomeQueueForApproval,
			domain.RiskCritical: domain.OutcomeEscalate,
		},
		SafePatterns: []string{
			"dca",
			"draft",
			"preview",
			"dry_run",
			"get_",
			"list_",
		},
		DangerousPatterns: []string{
			"production_deploy",
			"prod_deploy",
			"delete",
			"drop_",
			"withdraw",
			"transfer_funds",
			"force_push",
			"panic_sell",
		},
		VisibilityPatterns: []string{
			"post",
			"publish",
			"announce",
			"tweet",
			"blog",
		},
		Queue: QueuePolicy{
			MaxPending:           50,
			TTL:                  24 * time.Hour,
			EscalateAfter:        4 * time.Hour,
			AutoRejectAfter:      12 * time.Hour,
			CriticalAutoEscalate: true,
			SweepInterval:        time.Hour,
		},
		Rollback: RollbackPolicy{
			MaxCheckpoints: 100,
			TTL:            24 * time.Hour,
		},
		Notify: NotifyPolicy{
			RatePerMinute: 20,
			SendTimeout:   10 * time.Second,
		},
	}
}

package approval

import (
	"math"

	"github.com/kirillm/action-guard/internal/domain"
)

var urgencyWeights = map[domain.Urgency]float64{
	domain.UrgencyLow:      1,
	domain.UrgencyNormal:   2,
	domain.UrgencyHigh:     3,
	domain.UrgencyCritical: 4,
}

var levelWeights = map[domain.RiskLevel]float64{
	domain.RiskSafe:     0,
	domain.RiskLow:      5,
	domain.RiskMedium:   10,
	domain.RiskHigh:     20,
	domain.RiskCritical: 30,
}

// Priority = urgency weight * 10 + risk level weight + min(value/10, 10).
// Higher is reviewed first.
func Priority(d *domain.Decision) float64 {
	urgency := urgencyWeights[d.Action.Metadata.Urgency]
	level := levelWeights[d.Assessment.Level]
	value := math.Min(math.Max(d.Action.Metadata.EstimatedValue, 0)/10, 10)
	return urgency*10 + level + value
}

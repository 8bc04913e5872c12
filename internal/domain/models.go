package domain

import "time"

// DecisionRecord строка журнала решений
type DecisionRecord struct {
	ID             int64     `db:"id"`
	DecisionID     string    `db:"decision_id"`
	ActionID       string    `db:"action_id"`
	Engine         string    `db:"engine"`
	Category       string    `db:"category"`
	ActionType     string    `db:"action_type"`
	Description    string    `db:"description"`
	EstimatedValue float64   `db:"estimated_value"`
	Reversible     bool      `db:"reversible"`
	Urgency        string    `db:"urgency"`
	RiskLevel      string    `db:"risk_level"`
	RiskScore      int       `db:"risk_score"`
	Outcome        string    `db:"outcome"`
	ResolvedBy     *string   `db:"resolved_by"`
	Payload        []byte    `db:"payload"` // JSON снимок Decision
	CreatedAt      time.Time `db:"created_at"`
}

// ApprovalEventRecord строка журнала событий очереди
type ApprovalEventRecord struct {
	ID         int64     `db:"id"`
	EventType  string    `db:"event_type"`
	RequestID  string    `db:"request_id"`
	DecisionID string    `db:"decision_id"`
	Status     string    `db:"status"`
	Actor      *string   `db:"actor"`
	Reason     *string   `db:"reason"`
	QueueSize  int       `db:"queue_size"`
	CreatedAt  time.Time `db:"created_at"`
}

// NewDecisionRecord строит строку журнала из решения
func NewDecisionRecord(d *Decision, payload []byte, at time.Time) *DecisionRecord {
	rec := &DecisionRecord{
		DecisionID:     d.ID,
		ActionID:       d.Action.ID,
		Engine:         string(d.Action.Engine),
		Category:       string(d.Action.Category),
		ActionType:     d.Action.Type,
		Description:    d.Action.Description,
		EstimatedValue: d.Action.Metadata.EstimatedValue,
		Reversible:     d.Action.Metadata.Reversible,
		Urgency:        string(d.Action.Metadata.Urgency),
		RiskLevel:      string(d.Assessment.Level),
		RiskScore:      d.Assessment.Score,
		Outcome:        string(d.Outcome),
		Payload:        payload,
		CreatedAt:      at,
	}
	if d.ApprovedBy != "" {
		by := d.ApprovedBy
		rec.ResolvedBy = &by
	}
	return rec
}

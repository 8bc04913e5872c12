package domain

import "time"

// ApprovalStatus статус запроса на подтверждение
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
	ApprovalExpired  ApprovalStatus = "expired"
)

// Notification tags stored in ApprovalRequest.NotificationsSent
const (
	TagEscalation         = "escalation"
	TagCriticalEscalation = "critical-escalation"
	TagPatternEscalation  = "pattern-escalation"
	TagApprovalNeeded     = "approval-needed"
)

// ApprovalRequest единица работы очереди подтверждений
type ApprovalRequest struct {
	ID                string          `json:"id"`
	Decision          *Decision       `json:"decision"`
	Priority          float64         `json:"priority"`
	Urgency           Urgency         `json:"urgency"`
	ExpiresAt         time.Time       `json:"expires_at"`
	NotificationsSent map[string]bool `json:"notifications_sent"`
	Status            ApprovalStatus  `json:"status"`
	CreatedAt         time.Time       `json:"created_at"`
	ReviewedBy        string          `json:"reviewed_by,omitempty"`
	ReviewedAt        *time.Time      `json:"reviewed_at,omitempty"`
	Feedback          string          `json:"feedback,omitempty"`
}

// Sent проверяет был ли отправлен тег
func (r *ApprovalRequest) Sent(tag string) bool {
	return r.NotificationsSent[tag]
}

// Escalated проверяет была ли эскалация по любой причине
func (r *ApprovalRequest) Escalated() bool {
	return r.Sent(TagEscalation) || r.Sent(TagCriticalEscalation) || r.Sent(TagPatternEscalation)
}

// Age возраст запроса на момент now
func (r *ApprovalRequest) Age(now time.Time) time.Duration {
	return now.Sub(r.CreatedAt)
}

// Snapshot копия запроса, безопасная для чтения вне очереди
func (r *ApprovalRequest) Snapshot() *ApprovalRequest {
	cp := *r
	cp.NotificationsSent = make(map[string]bool, len(r.NotificationsSent))
	for k, v := range r.NotificationsSent {
		cp.NotificationsSent[k] = v
	}
	if r.ReviewedAt != nil {
		at := *r.ReviewedAt
		cp.ReviewedAt = &at
	}
	return &cp
}

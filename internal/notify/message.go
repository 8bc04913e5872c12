package notify

import (
	"time"

	"github.com/kirillm/action-guard/internal/domain"
)

// Kind message kind.
type Kind string

const (
	KindApprovalNeeded Kind = "approval_needed"
	KindEscalation     Kind = "escalation"
	KindDecision       Kind = "decision"
	KindDailySummary   Kind = "daily_summary"
)

// Message is the channel-neutral content; each channel renders it in its
// own format.
type Message struct {
	Kind Kind

	RequestID      string
	ActionType     string
	Description    string
	Engine         domain.Engine
	RiskLevel      domain.RiskLevel
	RiskScore      int
	EstimatedValue float64
	Reversible     bool
	Constraints    []string
	ExpiresAt      time.Time

	ApproveCommand string
	RejectCommand  string

	Approved   bool
	Reason     string
	ReviewedBy string

	Summary *domain.DailySummary
}

func requestMessage(kind Kind, req *domain.ApprovalRequest, commands CommandSet) Message {
	d := req.Decision
	msg := Message{
		Kind:           kind,
		RequestID:      req.ID,
		ActionType:     d.Action.Type,
		Description:    d.Action.Description,
		Engine:         d.Action.Engine,
		RiskLevel:      d.Assessment.Level,
		RiskScore:      d.Assessment.Score,
		EstimatedValue: d.Action.Metadata.EstimatedValue,
		Reversible:     d.Action.Metadata.Reversible,
		Constraints:    d.Assessment.Constraints,
		ExpiresAt:      req.ExpiresAt,
		ReviewedBy:     req.ReviewedBy,
	}
	if kind == KindApprovalNeeded || kind == KindEscalation {
		msg.ApproveCommand = commands.Approve(req.ID)
		msg.RejectCommand = commands.Reject(req.ID)
	}
	return msg
}

// CommandSet builds the operator commands referenced in messages.
type CommandSet struct {
	Prefix string
}

// Approve returns the exact command approving id.
func (c CommandSet) Approve(id string) string {
	return c.prefix() + "approve " + id
}

// Reject returns the command rejecting id.
func (c CommandSet) Reject(id string) string {
	return c.prefix() + "reject " + id + " <reason>"
}

func (c CommandSet) prefix() string {
	if c.Prefix == "" {
		return "/"
	}
	return c.Prefix
}

package notify

import (
	"fmt"
	"time"
)

// Card structured payload posted to chat webhooks.
type Card struct {
	Kind    string       `json:"kind"`
	Title   string       `json:"title"`
	Color   string       `json:"color"`
	Text    string       `json:"text,omitempty"`
	Facts   []CardFact   `json:"facts"`
	Actions []CardAction `json:"actions,omitempty"`
	SentAt  time.Time    `json:"sent_at"`
}

// CardFact label/value row.
type CardFact struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// CardAction operator command attached to the card.
type CardAction struct {
	Label   string `json:"label"`
	Command string `json:"command"`
}

// BuildCard renders msg as a card; content matches the Markdown rendering.
func BuildCard(msg Message, now time.Time) Card {
	card := Card{Kind: string(msg.Kind), SentAt: now}

	switch msg.Kind {
	case KindDailySummary:
		card.Title = "Daily summary"
		card.Color = "#439FE0"
		if s := msg.Summary; s != nil {
			card.Title += " " + s.Date.Format("2006-01-02")
			card.Facts = []CardFact{
				{"Auto-executed", fmt.Sprint(s.AutoExecuted)},
				{"Queued", fmt.Sprint(s.Queued)},
				{"Approved", fmt.Sprint(s.Approved)},
				{"Rejected", fmt.Sprint(s.Rejected)},
				{"Escalated", fmt.Sprint(s.Escalated)},
				{"Expired", fmt.Sprint(s.Expired)},
				{"Total value", fmt.Sprintf("$%.2f", s.TotalValue)},
			}
		}
		return card
	case KindApprovalNeeded:
		card.Title = "Approval needed"
		card.Color = levelColor(string(msg.RiskLevel))
	case KindEscalation:
		card.Title = "ESCALATION"
		card.Color = "#D00000"
	case KindDecision:
		if msg.Approved {
			card.Title = "Approved"
			card.Color = "#2EB67D"
		} else {
			card.Title = "Rejected"
			card.Color = "#E01E5A"
		}
	}

	card.Text = msg.Description
	card.Facts = []CardFact{
		{"Type", msg.ActionType},
		{"Risk", fmt.Sprintf("%s (%d/100)", msg.RiskLevel, msg.RiskScore)},
		{"Value", fmt.Sprintf("$%.2f", msg.EstimatedValue)},
		{"Reversible", yesNo(msg.Reversible)},
		{"Request", msg.RequestID},
	}
	if !msg.ExpiresAt.IsZero() && msg.Kind != KindDecision {
		card.Facts = append(card.Facts, CardFact{"Expires", msg.ExpiresAt.UTC().Format(time.RFC3339)})
	}
	if msg.ReviewedBy != "" {
		card.Facts = append(card.Facts, CardFact{"By", msg.ReviewedBy})
	}
	if msg.Reason != "" {
		card.Facts = append(card.Facts, CardFact{"Reason", msg.Reason})
	}
	if msg.ApproveCommand != "" {
		card.Actions = []CardAction{
			{Label: "Approve", Command: msg.ApproveCommand},
			{Label: "Reject", Command: msg.RejectCommand},
		}
	}
	return card
}

func levelColor(level string) string {
	switch level {
	case "critical":
		return "#D00000"
	case "high":
		return "#FF8C00"
	case "medium":
		return "#ECB22E"
	default:
		return "#2EB67D"
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

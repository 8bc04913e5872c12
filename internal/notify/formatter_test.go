package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kirillm/action-guard/internal/domain"
)

var expires = time.Date(2024, 7, 2, 9, 0, 0, 0, time.UTC)

func sampleMessage(kind Kind) Message {
	return Message{
		Kind:           kind,
		RequestID:      "req-1",
		ActionType:     "production_deploy",
		Description:    "Deploy api_v2 to prod",
		RiskLevel:      domain.RiskHigh,
		RiskScore:      64,
		EstimatedValue: 250,
		Reversible:     true,
		ExpiresAt:      expires,
		ApproveCommand: "/approve req-1",
		RejectCommand:  "/reject req-1 <reason>",
	}
}

func TestFormatter_T(t *testing.T) {
	tests := []struct {
		lang Lang
		key  string
		want string
	}{
		{LangEN, "approval_needed", "Approval needed"},
		{LangRU, "approved", "Подтверждено"},
		{Lang("de"), "rejected", "Rejected"},
		{LangEN, "unknown_key", "unknown_key"},
	}

	for _, tt := range tests {
		t.Run(string(tt.lang)+"/"+tt.key, func(t *testing.T) {
			assert.Equal(t, tt.want, NewFormatter(tt.lang).T(tt.key))
		})
	}
}

func TestFormatter_ApprovalNeeded(t *testing.T) {
	out := NewFormatter(LangEN).Format(sampleMessage(KindApprovalNeeded))

	assert.Contains(t, out, "*Approval needed*")
	assert.Contains(t, out, `Deploy api\_v2 to prod`)
	assert.Contains(t, out, "`production_deploy`")
	assert.Contains(t, out, "high (64/100)")
	assert.Contains(t, out, "$250.00")
	assert.Contains(t, out, "Reversible: yes")
	assert.Contains(t, out, "`req-1`")
	assert.Contains(t, out, "2024-07-02T09:00:00Z")
	assert.Contains(t, out, "`/approve req-1`")
}

func TestFormatter_Decision(t *testing.T) {
	msg := sampleMessage(KindDecision)
	msg.Reason = "too risky"
	msg.ReviewedBy = "alice"

	out := NewFormatter(LangEN).Format(msg)
	assert.Contains(t, out, "❌ *Rejected*")
	assert.Contains(t, out, "Reason: too risky")
	assert.Contains(t, out, "By: alice")

	msg.Approved = true
	assert.Contains(t, NewFormatter(LangEN).Format(msg), "✅ *Approved*")
}

func TestFormatter_Summary(t *testing.T) {
	out := NewFormatter(LangEN).Format(Message{
		Kind: KindDailySummary,
		Summary: &domain.DailySummary{
			Date:         time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
			AutoExecuted: 4,
			Queued:       2,
			TotalValue:   1234.5,
		},
	})

	assert.Contains(t, out, "Daily summary* 2024-07-01")
	assert.Contains(t, out, "Auto-executed: 4")
	assert.Contains(t, out, "Queued: 2")
	assert.Contains(t, out, "$1234.50")
}

func TestBuildCard(t *testing.T) {
	now := time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC)

	card := BuildCard(sampleMessage(KindApprovalNeeded), now)
	assert.Equal(t, "approval_needed", card.Kind)
	assert.Equal(t, "Approval needed", card.Title)
	assert.Equal(t, "Deploy api_v2 to prod", card.Text)
	assert.Contains(t, card.Facts, CardFact{"Risk", "high (64/100)"})
	assert.Contains(t, card.Facts, CardFact{"Request", "req-1"})
	assert.Contains(t, card.Facts, CardFact{"Expires", "2024-07-02T09:00:00Z"})
	assert.Equal(t, []CardAction{
		{Label: "Approve", Command: "/approve req-1"},
		{Label: "Reject", Command: "/reject req-1 <reason>"},
	}, card.Actions)

	esc := BuildCard(sampleMessage(KindEscalation), now)
	assert.Equal(t, "ESCALATION", esc.Title)
}

func TestCommandSet(t *testing.T) {
	assert.Equal(t, "/approve abc", CommandSet{}.Approve("abc"))
	assert.Equal(t, "!reject abc <reason>", CommandSet{Prefix: "!"}.Reject("abc"))
}

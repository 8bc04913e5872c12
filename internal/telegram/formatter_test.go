package telegram

import (
	"strings"
	"testing"
	"time"

	"github.com/kirillm/action-guard/internal/domain"
	"github.com/kirillm/action-guard/internal/notify"
	"github.com/kirillm/action-guard/internal/orchestrator"
)

var now = time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)

func pendingRequest(id string, escalated bool) *domain.ApprovalRequest {
	req := &domain.ApprovalRequest{
		ID: id,
		Decision: &domain.Decision{
			ID: "dec-" + id,
			Action: domain.Action{
				ID:          "act-" + id,
				Type:        "market_sell",
				Description: "sell 0.01 BTC_USDT",
				Metadata:    domain.Metadata{EstimatedValue: 500},
			},
			Assessment: domain.RiskAssessment{Score: 45, Level: domain.RiskMedium},
		},
		CreatedAt:         now.Add(-90 * time.Minute),
		NotificationsSent: map[string]bool{},
		Status:            domain.ApprovalPending,
	}
	if escalated {
		req.NotificationsSent[domain.TagEscalation] = true
	}
	return req
}

func TestFormatter_T(t *testing.T) {
	tests := []struct {
		name string
		lang notify.Lang
		key  string
		want string
	}{
		{"english pending", notify.LangEN, "pending", "Pending approvals"},
		{"russian pending", notify.LangRU, "pending", "Ожидают подтверждения"},
		{"english error", notify.LangEN, "error", "Error"},
		{"falls back to notify", notify.LangEN, "approved", "Approved"},
		{"unknown key", notify.LangEN, "unknown_key", "unknown_key"},
		{"unknown lang", "de", "error", "Error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFormatter(tt.lang)
			if got := f.T(tt.key); got != tt.want {
				t.Errorf("T() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFormatter_FormatPending(t *testing.T) {
	f := NewFormatter(notify.LangEN)

	if got := f.FormatPending(nil, now, 10); !strings.Contains(got, "Queue is empty") {
		t.Errorf("empty queue = %q", got)
	}

	reqs := []*domain.ApprovalRequest{
		pendingRequest("req-1", true),
		pendingRequest("req-2", false),
		pendingRequest("req-3", false),
	}
	result := f.FormatPending(reqs, now, 2)

	for _, want := range []string{"(3)", "`req-1` 🚨", "`req-2`", "market_sell", "medium (45/100)", "$500.00", "age 1h 30m", "more 1"} {
		if !strings.Contains(result, want) {
			t.Errorf("FormatPending() missing %q in:\n%s", want, result)
		}
	}
	if strings.Contains(result, "req-3") {
		t.Error("FormatPending() should stop at limit")
	}
	// Markdown в описании экранируется
	if !strings.Contains(result, `BTC\_USDT`) {
		t.Errorf("description not escaped:\n%s", result)
	}
}

func TestFormatter_FormatApproved(t *testing.T) {
	f := NewFormatter(notify.LangEN)
	req := pendingRequest("req-1", false)

	executed := f.FormatApproved(&orchestrator.Result{
		Decision:   req.Decision,
		Request:    req,
		Executed:   true,
		Checkpoint: &domain.RollbackCheckpoint{ID: "cp-1"},
	})
	if !strings.Contains(executed, "Executed") || !strings.Contains(executed, "/rollback act-req-1") {
		t.Errorf("FormatApproved() executed = %q", executed)
	}

	shadow := f.FormatApproved(&orchestrator.Result{Decision: req.Decision, Request: req})
	if !strings.Contains(shadow, "shadow mode") {
		t.Errorf("FormatApproved() shadow = %q", shadow)
	}
}

func TestFormatter_FormatRejected(t *testing.T) {
	f := NewFormatter(notify.LangRU)
	req := pendingRequest("req-1", false)
	req.Feedback = "слишком много"

	result := f.FormatRejected(req)
	if !strings.Contains(result, "❌") || !strings.Contains(result, "слишком много") {
		t.Errorf("FormatRejected() = %q", result)
	}
}

func TestFormatter_FormatCheckpoints(t *testing.T) {
	f := NewFormatter(notify.LangEN)

	if got := f.FormatCheckpoints(nil, now, 5); !strings.Contains(got, "No checkpoints") {
		t.Errorf("empty = %q", got)
	}

	cps := []*domain.RollbackCheckpoint{
		{ID: "cp-2", ActionID: "act-2", ActionType: "set_dca_amount", CreatedAt: now.Add(-5 * time.Minute)},
		{ID: "cp-1", ActionID: "act-1", ActionType: "apply_patch", CreatedAt: now.Add(-2 * time.Hour)},
	}
	result := f.FormatCheckpoints(cps, now, 5)
	if !strings.Contains(result, "set_dca_amount") || !strings.Contains(result, "`act-1`") || !strings.Contains(result, "age 5m") {
		t.Errorf("FormatCheckpoints() = %q", result)
	}
}

func TestFormatter_FormatSummaryAndMode(t *testing.T) {
	f := NewFormatter(notify.LangEN)

	summary := f.FormatSummary(domain.DailySummary{Date: now, AutoExecuted: 4, Queued: 2, TotalValue: 120})
	if !strings.Contains(summary, "2024-07-01") || !strings.Contains(summary, "Auto-executed: 4") {
		t.Errorf("FormatSummary() = %q", summary)
	}

	mode := f.FormatMode(orchestrator.ModePilot, true)
	if !strings.Contains(mode, "pilot") || !strings.Contains(mode, "ACTIVE") {
		t.Errorf("FormatMode() = %q", mode)
	}
}

func TestFormatter_FormatErrorSuccess(t *testing.T) {
	f := NewFormatter(notify.LangEN)

	if result := f.FormatSuccess("Operation completed"); !strings.Contains(result, "✅") || !strings.Contains(result, "Operation completed") {
		t.Errorf("FormatSuccess() = %q", result)
	}
	if result := f.FormatError(domain.ErrRequestNotFound); !strings.Contains(result, "approval request not found") {
		t.Errorf("FormatError() = %q", result)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		want     string
	}{
		{"negative", -time.Second, "0s"},
		{"seconds", 30 * time.Second, "30s"},
		{"minutes", 5 * time.Minute, "5m"},
		{"hours", 2 * time.Hour, "2h 0m"},
		{"hours and minutes", 2*time.Hour + 30*time.Minute, "2h 30m"},
		{"days", 25 * time.Hour, "1d 1h"},
		{"days and hours", 50 * time.Hour, "2d 2h"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatDuration(tt.duration); got != tt.want {
				t.Errorf("FormatDuration() = %v, want %v", got, tt.want)
			}
		})
	}
}

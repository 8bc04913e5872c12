package notify

import (
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/kirillm/action-guard/internal/domain"
)

// Lang язык сообщений
type Lang string

const (
	LangEN Lang = "en"
	LangRU Lang = "ru"
)

// Formatter форматирует сообщения в Telegram Markdown
type Formatter struct {
	lang Lang
}

// NewFormatter создает новый форматтер
func NewFormatter(lang Lang) *Formatter {
	if lang != LangRU && lang != LangEN {
		lang = LangEN
	}
	return &Formatter{lang: lang}
}

// T возвращает перевод
func (f *Formatter) T(key string) string {
	translations := map[string]map[Lang]string{
		"approval_needed": {LangEN: "Approval needed", LangRU: "Требуется подтверждение"},
		"escalation":      {LangEN: "ESCALATION", LangRU: "ЭСКАЛАЦИЯ"},
		"approved":        {LangEN: "Approved", LangRU: "Подтверждено"},
		"rejected":        {LangEN: "Rejected", LangRU: "Отклонено"},
		"daily_summary":   {LangEN: "Daily summary", LangRU: "Сводка за день"},
		"action":          {LangEN: "Action", LangRU: "Действие"},
		"type":            {LangEN: "Type", LangRU: "Тип"},
		"risk":            {LangEN: "Risk", LangRU: "Риск"},
		"value":           {LangEN: "Value", LangRU: "Сумма"},
		"reversible":      {LangEN: "Reversible", LangRU: "Обратимо"},
		"yes":             {LangEN: "yes", LangRU: "да"},
		"no":              {LangEN: "no", LangRU: "нет"},
		"request":         {LangEN: "Request", LangRU: "Запрос"},
		"expires":         {LangEN: "Expires", LangRU: "Истекает"},
		"approve_with":    {LangEN: "Approve with", LangRU: "Подтвердить"},
		"reject_with":     {LangEN: "Reject with", LangRU: "Отклонить"},
		"reason":          {LangEN: "Reason", LangRU: "Причина"},
		"by":              {LangEN: "By", LangRU: "Кем"},
		"constraints":     {LangEN: "Constraints", LangRU: "Ограничения"},
		"auto_executed":   {LangEN: "Auto-executed", LangRU: "Выполнено автоматически"},
		"queued":          {LangEN: "Queued", LangRU: "В очереди"},
		"escalated":       {LangEN: "Escalated", LangRU: "Эскалировано"},
		"expired":         {LangEN: "Expired", LangRU: "Истекло"},
		"total_value":     {LangEN: "Total value", LangRU: "Общая сумма"},
	}

	if trans, ok := translations[key]; ok {
		if val, ok := trans[f.lang]; ok {
			return val
		}
	}
	return key
}

// Format рендерит сообщение
func (f *Formatter) Format(msg Message) string {
	switch msg.Kind {
	case KindApprovalNeeded:
		return f.formatRequest("🔔 ", f.T("approval_needed"), msg)
	case KindEscalation:
		return f.formatRequest("🚨 ", f.T("escalation"), msg)
	case KindDecision:
		return f.formatDecision(msg)
	case KindDailySummary:
		return f.formatSummary(msg.Summary)
	default:
		return escape(msg.Description)
	}
}

func (f *Formatter) formatRequest(icon, title string, msg Message) string {
	var sb strings.Builder

	sb.WriteString(icon)
	sb.WriteString("*" + title + "*")
	sb.WriteString("\n\n")

	sb.WriteString(fmt.Sprintf("%s: %s\n", f.T("action"), escape(msg.Description)))
	sb.WriteString(fmt.Sprintf("%s: `%s`\n", f.T("type"), msg.ActionType))
	sb.WriteString(fmt.Sprintf("%s: %s %s (%d/100)\n", f.T("risk"), levelIcon(msg.RiskLevel), msg.RiskLevel, msg.RiskScore))
	if msg.EstimatedValue > 0 {
		sb.WriteString(fmt.Sprintf("%s: $%.2f\n", f.T("value"), msg.EstimatedValue))
	}
	sb.WriteString(fmt.Sprintf("%s: %s\n", f.T("reversible"), f.yesNo(msg.Reversible)))
	if len(msg.Constraints) > 0 {
		sb.WriteString(fmt.Sprintf("%s: %s\n", f.T("constraints"), escape(strings.Join(msg.Constraints, "; "))))
	}
	sb.WriteString(fmt.Sprintf("%s: `%s`\n", f.T("request"), msg.RequestID))
	if !msg.ExpiresAt.IsZero() {
		sb.WriteString(fmt.Sprintf("%s: %s\n", f.T("expires"), msg.ExpiresAt.UTC().Format(time.RFC3339)))
	}
	if msg.ApproveCommand != "" {
		sb.WriteString(fmt.Sprintf("\n%s: `%s`\n", f.T("approve_with"), msg.ApproveCommand))
		sb.WriteString(fmt.Sprintf("%s: `%s`\n", f.T("reject_with"), msg.RejectCommand))
	}

	return sb.String()
}

func (f *Formatter) formatDecision(msg Message) string {
	var sb strings.Builder

	if msg.Approved {
		sb.WriteString("✅ *" + f.T("approved") + "*")
	} else {
		sb.WriteString("❌ *" + f.T("rejected") + "*")
	}
	sb.WriteString("\n\n")

	sb.WriteString(fmt.Sprintf("%s: %s\n", f.T("action"), escape(msg.Description)))
	sb.WriteString(fmt.Sprintf("%s: `%s`\n", f.T("type"), msg.ActionType))
	sb.WriteString(fmt.Sprintf("%s: %s (%d/100)\n", f.T("risk"), msg.RiskLevel, msg.RiskScore))
	sb.WriteString(fmt.Sprintf("%s: `%s`\n", f.T("request"), msg.RequestID))
	if msg.ReviewedBy != "" {
		sb.WriteString(fmt.Sprintf("%s: %s\n", f.T("by"), escape(msg.ReviewedBy)))
	}
	if msg.Reason != "" {
		sb.WriteString(fmt.Sprintf("%s: %s\n", f.T("reason"), escape(msg.Reason)))
	}

	return sb.String()
}

func (f *Formatter) formatSummary(s *domain.DailySummary) string {
	if s == nil {
		return ""
	}
	var sb strings.Builder

	sb.WriteString("📊 *" + f.T("daily_summary") + "*")
	sb.WriteString(" " + s.Date.Format("2006-01-02"))
	sb.WriteString("\n\n")

	sb.WriteString(fmt.Sprintf("%s: %d\n", f.T("auto_executed"), s.AutoExecuted))
	sb.WriteString(fmt.Sprintf("%s: %d\n", f.T("queued"), s.Queued))
	sb.WriteString(fmt.Sprintf("%s: %d\n", f.T("approved"), s.Approved))
	sb.WriteString(fmt.Sprintf("%s: %d\n", f.T("rejected"), s.Rejected))
	sb.WriteString(fmt.Sprintf("%s: %d\n", f.T("escalated"), s.Escalated))
	sb.WriteString(fmt.Sprintf("%s: %d\n", f.T("expired"), s.Expired))
	sb.WriteString(fmt.Sprintf("%s: $%.2f\n", f.T("total_value"), s.TotalValue))

	return sb.String()
}

func (f *Formatter) yesNo(b bool) string {
	if b {
		return f.T("yes")
	}
	return f.T("no")
}

func levelIcon(l domain.RiskLevel) string {
	switch l {
	case domain.RiskSafe:
		return "🟢"
	case domain.RiskLow:
		return "🟢"
	case domain.RiskMedium:
		return "🟡"
	case domain.RiskHigh:
		return "🟠"
	case domain.RiskCritical:
		return "🔴"
	}
	return "⚪"
}

func escape(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, s)
}

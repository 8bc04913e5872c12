package telegram

import (
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/kirillm/action-guard/internal/domain"
	"github.com/kirillm/action-guard/internal/notify"
	"github.com/kirillm/action-guard/internal/orchestrator"
)

// Formatter форматирует ответы оператору
type Formatter struct {
	lang  notify.Lang
	cards *notify.Formatter
}

// NewFormatter создает новый форматтер
func NewFormatter(lang notify.Lang) *Formatter {
	if lang != notify.LangRU && lang != notify.LangEN {
		lang = notify.LangEN
	}
	return &Formatter{lang: lang, cards: notify.NewFormatter(lang)}
}

// GetLang возвращает текущий язык
func (f *Formatter) GetLang() notify.Lang {
	return f.lang
}

// T переводит строку; неизвестные ключи ищутся в словаре уведомлений
func (f *Formatter) T(key string) string {
	translations := map[string]map[notify.Lang]string{
		"pending":        {notify.LangEN: "Pending approvals", notify.LangRU: "Ожидают подтверждения"},
		"queue_empty":    {notify.LangEN: "Queue is empty", notify.LangRU: "Очередь пуста"},
		"checkpoints":    {notify.LangEN: "Rollback checkpoints", notify.LangRU: "Точки отката"},
		"no_checkpoints": {notify.LangEN: "No checkpoints", notify.LangRU: "Нет точек отката"},
		"executed":       {notify.LangEN: "Executed", notify.LangRU: "Выполнено"},
		"not_executed":   {notify.LangEN: "Approved, not executed (shadow mode)", notify.LangRU: "Подтверждено, не выполнено (shadow режим)"},
		"rolled_back":    {notify.LangEN: "Rolled back", notify.LangRU: "Откат выполнен"},
		"mode":           {notify.LangEN: "Mode", notify.LangRU: "Режим"},
		"kill_switch":    {notify.LangEN: "Kill switch", notify.LangRU: "Аварийная остановка"},
		"active":         {notify.LangEN: "ACTIVE", notify.LangRU: "АКТИВНА"},
		"inactive":       {notify.LangEN: "inactive", notify.LangRU: "неактивна"},
		"age":            {notify.LangEN: "age", notify.LangRU: "возраст"},
		"more":           {notify.LangEN: "more", notify.LangRU: "еще"},
		"success":        {notify.LangEN: "Success", notify.LangRU: "Успешно"},
		"error":          {notify.LangEN: "Error", notify.LangRU: "Ошибка"},
		"access_denied":  {notify.LangEN: "Access denied", notify.LangRU: "Доступ запрещен"},
		"admin_required": {notify.LangEN: "Admin permission required", notify.LangRU: "Требуются права администратора"},
	}

	if trans, ok := translations[key]; ok {
		if val, ok := trans[f.lang]; ok {
			return val
		}
	}
	return f.cards.T(key)
}

// FormatPending форматирует очередь; показывает не больше limit запросов
func (f *Formatter) FormatPending(reqs []*domain.ApprovalRequest, now time.Time, limit int) string {
	if len(reqs) == 0 {
		return "📭 " + f.T("queue_empty")
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📋 *%s* (%d)\n\n", f.T("pending"), len(reqs)))

	for i, req := range reqs {
		if limit > 0 && i >= limit {
			sb.WriteString(fmt.Sprintf("… %s %d\n", f.T("more"), len(reqs)-limit))
			break
		}
		d := req.Decision
		marker := ""
		if req.Escalated() {
			marker = " 🚨"
		}
		sb.WriteString(fmt.Sprintf("%d. `%s`%s\n", i+1, req.ID, marker))
		sb.WriteString(fmt.Sprintf("   %s: %s\n", d.Action.Type, escape(d.Action.Description)))
		sb.WriteString(fmt.Sprintf("   %s %s (%d/100)", f.T("risk"), d.Assessment.Level, d.Assessment.Score))
		if v := d.Action.Metadata.EstimatedValue; v > 0 {
			sb.WriteString(fmt.Sprintf(" · $%.2f", v))
		}
		sb.WriteString(fmt.Sprintf(" · %s %s\n", f.T("age"), FormatDuration(req.Age(now))))
	}

	return sb.String()
}

// FormatApproved форматирует итог approve
func (f *Formatter) FormatApproved(res *orchestrator.Result) string {
	var sb strings.Builder
	action := res.Decision.Action

	sb.WriteString(fmt.Sprintf("✅ %s: `%s`\n", f.T("approved"), res.Request.ID))
	sb.WriteString(fmt.Sprintf("%s: %s\n", f.T("action"), escape(action.Description)))
	if res.Executed {
		sb.WriteString("🚀 " + f.T("executed"))
		if res.Checkpoint != nil {
			sb.WriteString(fmt.Sprintf(" · /rollback %s", action.ID))
		}
		sb.WriteString("\n")
	} else {
		sb.WriteString("🔍 " + f.T("not_executed") + "\n")
	}
	return sb.String()
}

// FormatRejected форматирует итог reject
func (f *Formatter) FormatRejected(req *domain.ApprovalRequest) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("❌ %s: `%s`\n", f.T("rejected"), req.ID))
	if req.Decision != nil {
		sb.WriteString(fmt.Sprintf("%s: %s\n", f.T("action"), escape(req.Decision.Action.Description)))
	}
	if req.Feedback != "" {
		sb.WriteString(fmt.Sprintf("%s: %s\n", f.T("reason"), escape(req.Feedback)))
	}
	return sb.String()
}

// FormatCheckpoints форматирует точки отката, новые первыми
func (f *Formatter) FormatCheckpoints(cps []*domain.RollbackCheckpoint, now time.Time, limit int) string {
	if len(cps) == 0 {
		return "📭 " + f.T("no_checkpoints")
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("↩️ *%s* (%d)\n\n", f.T("checkpoints"), len(cps)))
	for i, cp := range cps {
		if limit > 0 && i >= limit {
			sb.WriteString(fmt.Sprintf("… %s %d\n", f.T("more"), len(cps)-limit))
			break
		}
		sb.WriteString(fmt.Sprintf("%d. %s · `%s` · %s %s\n",
			i+1, cp.ActionType, cp.ActionID, f.T("age"), FormatDuration(now.Sub(cp.CreatedAt))))
	}
	return sb.String()
}

// FormatSummary форматирует сводку так же, как уведомление
func (f *Formatter) FormatSummary(s domain.DailySummary) string {
	return f.cards.Format(notify.Message{Kind: notify.KindDailySummary, Summary: &s})
}

// FormatMode форматирует режим и состояние аварийной остановки
func (f *Formatter) FormatMode(mode orchestrator.Mode, killSwitch bool) string {
	ks := "🟢 " + f.T("inactive")
	if killSwitch {
		ks = "🔴 " + f.T("active")
	}
	return fmt.Sprintf("⚙️ %s: *%s*\n%s: %s", f.T("mode"), mode, f.T("kill_switch"), ks)
}

// FormatError форматирует сообщение об ошибке
func (f *Formatter) FormatError(err error) string {
	return fmt.Sprintf("❌ %s: %s", f.T("error"), escape(err.Error()))
}

// FormatSuccess форматирует сообщение об успехе
func (f *Formatter) FormatSuccess(message string) string {
	return fmt.Sprintf("✅ %s: %s", f.T("success"), message)
}

// FormatDuration форматирует длительность
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	} else if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	} else if d < 24*time.Hour {
		hours := int(d.Hours())
		minutes := int(d.Minutes()) % 60
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	return fmt.Sprintf("%dd %dh", days, hours)
}

func escape(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, s)
}

package telegram

import (
	"context"
	"fmt"

	"github.com/kirillm/action-guard/internal/clock"
	"github.com/kirillm/action-guard/internal/domain"
	"github.com/kirillm/action-guard/internal/orchestrator"
)

// Guard операции orchestrator, доступные оператору
type Guard interface {
	Pending() []*domain.ApprovalRequest
	Approve(ctx context.Context, requestID, by, feedback string) (*orchestrator.Result, error)
	Reject(ctx context.Context, requestID, reason, by string) (*domain.ApprovalRequest, error)
	Rollback(ctx context.Context, actionID string) error
	Summary() domain.DailySummary
	GetMode() orchestrator.Mode
	SetMode(mode orchestrator.Mode) error
}

// KillSwitch аварийная остановка исполнения
type KillSwitch interface {
	Activate(reason string)
	Deactivate()
	IsActive() bool
}

// CheckpointLister источник точек отката
type CheckpointLister interface {
	Checkpoints() []*domain.RollbackCheckpoint
}

// Handlers содержит все обработчики команд
type Handlers struct {
	guard       Guard
	killSwitch  KillSwitch
	checkpoints CheckpointLister
	formatter   *Formatter
	clock       clock.Clock
}

// NewHandlers создает набор обработчиков; killSwitch и checkpoints опциональны
func NewHandlers(guard Guard, killSwitch KillSwitch, checkpoints CheckpointLister, formatter *Formatter, clk clock.Clock) *Handlers {
	return &Handlers{
		guard:       guard,
		killSwitch:  killSwitch,
		checkpoints: checkpoints,
		formatter:   formatter,
		clock:       clock.OrReal(clk),
	}
}

// Register регистрирует обработчики в роутере
func (h *Handlers) Register(r *Router) {
	r.RegisterHandler(string(CmdHelp), h.HandleHelp)
	r.RegisterHandler("start", h.HandleHelp)
	r.RegisterHandler(string(CmdPending), h.HandlePending)
	r.RegisterHandler(string(CmdSummary), h.HandleSummary)
	r.RegisterHandler(string(CmdCheckpoints), h.HandleCheckpoints)

	r.RegisterAdminHandler(string(CmdApprove), h.HandleApprove)
	r.RegisterAdminHandler(string(CmdReject), h.HandleReject)
	r.RegisterAdminHandler(string(CmdRollback), h.HandleRollback)
	r.RegisterAdminHandler(string(CmdMode), h.HandleMode)
	r.RegisterAdminHandler(string(CmdPanicStop), h.HandlePanicStop)
}

// HandlePending обрабатывает команду /pending
func (h *Handlers) HandlePending(ctx context.Context, args *CommandArgs) (string, error) {
	return h.formatter.FormatPending(h.guard.Pending(), h.clock.Now(), args.Count), nil
}

// HandleApprove обрабатывает команду /approve
func (h *Handlers) HandleApprove(ctx context.Context, args *CommandArgs) (string, error) {
	res, err := h.guard.Approve(ctx, args.ID, args.Actor, args.Text)
	if err != nil {
		if res != nil && res.Request != nil {
			// запрос подтвержден, но исполнение упало
			return h.formatter.FormatApproved(res) + "\n" + h.formatter.FormatError(err), nil
		}
		return "", err
	}
	return h.formatter.FormatApproved(res), nil
}

// HandleReject обрабатывает команду /reject
func (h *Handlers) HandleReject(ctx context.Context, args *CommandArgs) (string, error) {
	req, err := h.guard.Reject(ctx, args.ID, args.Text, args.Actor)
	if err != nil {
		return "", err
	}
	return h.formatter.FormatRejected(req), nil
}

// HandleRollback обрабатывает команду /rollback
func (h *Handlers) HandleRollback(ctx context.Context, args *CommandArgs) (string, error) {
	if err := h.guard.Rollback(ctx, args.ID); err != nil {
		return "", err
	}
	return h.formatter.FormatSuccess(fmt.Sprintf("%s `%s`", h.formatter.T("rolled_back"), args.ID)), nil
}

// HandleCheckpoints обрабатывает команду /checkpoints
func (h *Handlers) HandleCheckpoints(ctx context.Context, args *CommandArgs) (string, error) {
	if h.checkpoints == nil {
		return h.formatter.FormatCheckpoints(nil, h.clock.Now(), 0), nil
	}
	return h.formatter.FormatCheckpoints(h.checkpoints.Checkpoints(), h.clock.Now(), args.Count), nil
}

// HandleSummary обрабатывает команду /summary
func (h *Handlers) HandleSummary(ctx context.Context, args *CommandArgs) (string, error) {
	return h.formatter.FormatSummary(h.guard.Summary()), nil
}

// HandleMode обрабатывает команду /mode
func (h *Handlers) HandleMode(ctx context.Context, args *CommandArgs) (string, error) {
	if args.Mode != "" {
		if err := h.guard.SetMode(orchestrator.Mode(args.Mode)); err != nil {
			return "", err
		}
	}
	return h.formatter.FormatMode(h.guard.GetMode(), h.killSwitchActive()), nil
}

// HandlePanicStop обрабатывает команду /panicstop
func (h *Handlers) HandlePanicStop(ctx context.Context, args *CommandArgs) (string, error) {
	if h.killSwitch == nil {
		return "", fmt.Errorf("kill switch not configured")
	}

	switch args.Action {
	case "on":
		h.killSwitch.Activate("manual stop by " + args.Actor)
		return "🚨 EMERGENCY STOP ACTIVATED\n\nAll execution is now paused.", nil
	case "off":
		h.killSwitch.Deactivate()
		return h.formatter.FormatSuccess("Emergency stop deactivated"), nil
	default:
		return h.formatter.FormatMode(h.guard.GetMode(), h.killSwitchActive()), nil
	}
}

func (h *Handlers) killSwitchActive() bool {
	return h.killSwitch != nil && h.killSwitch.IsActive()
}

// HandleHelp обрабатывает команду /help
func (h *Handlers) HandleHelp(ctx context.Context, args *CommandArgs) (string, error) {
	help := `🛡️ Action Guard Commands

📊 INFORMATION:
/pending [N] - Requests awaiting approval
/summary - Today's counters
/checkpoints [N] - Rollback checkpoints

✍️ REVIEW (Admin only):
/approve <ID> [feedback] - Approve and execute
/reject <ID> <reason> - Reject a request
/rollback <ACTION_ID> - Restore state before an action

🛡️ ADMIN:
/mode [shadow|pilot|full] - Show or switch mode
/panicstop [on|off] - Emergency stop

Approval cards also carry ✅/❌ buttons.`

	return help, nil
}

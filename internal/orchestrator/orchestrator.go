package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kirillm/action-guard/internal/approval"
	"github.com/kirillm/action-guard/internal/clock"
	"github.com/kirillm/action-guard/internal/domain"
	"github.com/kirillm/action-guard/internal/execution"
	"github.com/kirillm/action-guard/internal/policy"
	"github.com/kirillm/action-guard/internal/risk"
	"github.com/kirillm/action-guard/internal/rollback"
	"github.com/kirillm/action-guard/internal/stats"
	"github.com/kirillm/action-guard/internal/tracing"
	"github.com/kirillm/action-guard/pkg/utils"
)

// Mode режим работы orchestrator
type Mode string

const (
	ModeShadow Mode = domain.ModeShadow // классифицирует и ставит в очередь, но не исполняет
	ModePilot  Mode = domain.ModePilot  // автоисполнение только до лимита суммы
	ModeFull   Mode = domain.ModeFull   // полная автономия в рамках политики
)

// Valid проверяет известен ли режим
func (m Mode) Valid() bool {
	switch m {
	case ModeShadow, ModePilot, ModeFull:
		return true
	}
	return false
}

const defaultPilotMaxValue = 100

// SummarySender отправляет дневную сводку
type SummarySender interface {
	SendDailySummary(ctx context.Context, summary domain.DailySummary) bool
}

// Config конфигурация orchestrator
type Config struct {
	Mode          Mode
	PilotMaxValue float64       // лимит автоисполнения в pilot режиме
	SweepInterval time.Duration // интервал проверки очереди (1h default)
	SummaryHour   int           // час отправки сводки за прошедший день
	Location      *time.Location
}

// Deps зависимости orchestrator; Audit и Summaries опциональны
type Deps struct {
	Classifier *risk.Classifier
	Queue      *approval.Queue
	Rollback   *rollback.Manager
	Executor   *execution.Executor
	Stats      *stats.Tracker
	Audit      domain.DecisionRepository
	Summaries  SummarySender
	Clock      clock.Clock
	Logger     *utils.Logger
}

// Result итог обработки одного действия
type Result struct {
	Decision   *domain.Decision
	Rule       string
	Request    *domain.ApprovalRequest
	Checkpoint *domain.RollbackCheckpoint
	Execution  *execution.Result
	Executed   bool
}

// Orchestrator ведет действие по конвейеру classify → route → execute
type Orchestrator struct {
	mu   sync.RWMutex
	mode Mode
	cfg  Config

	classifier *risk.Classifier
	queue      *approval.Queue
	rollback   *rollback.Manager
	executor   *execution.Executor
	stats      *stats.Tracker
	audit      domain.DecisionRepository
	summaries  SummarySender
	sweeper    *approval.Sweeper

	clock  clock.Clock
	logger *utils.Logger

	lastClosed  domain.DailySummary
	summarySent time.Time

	runMu     sync.Mutex
	isRunning bool
	stopChan  chan struct{}
	done      chan struct{}
}

// New создает новый orchestrator
func New(cfg Config, deps Deps) (*Orchestrator, error) {
	if deps.Classifier == nil || deps.Queue == nil || deps.Rollback == nil || deps.Executor == nil {
		return nil, errors.New("orchestrator: classifier, queue, rollback and executor are required")
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeShadow
	}
	if !cfg.Mode.Valid() {
		return nil, fmt.Errorf("orchestrator: unknown mode %q", cfg.Mode)
	}
	if cfg.PilotMaxValue <= 0 {
		cfg.PilotMaxValue = defaultPilotMaxValue
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	logger := deps.Logger
	if logger == nil {
		logger = utils.Default()
	}
	clk := clock.OrReal(deps.Clock)

	o := &Orchestrator{
		mode:       cfg.Mode,
		cfg:        cfg,
		classifier: deps.Classifier,
		queue:      deps.Queue,
		rollback:   deps.Rollback,
		executor:   deps.Executor,
		stats:      deps.Stats,
		audit:      deps.Audit,
		summaries:  deps.Summaries,
		clock:      clk,
		logger:     logger.Component("orchestrator"),
	}
	if o.stats == nil {
		o.stats = stats.NewTracker(clk, cfg.Location, nil)
	}
	o.stats.OnRollover(o.dayClosed)
	o.stats.Attach(o.queue.Bus())
	o.sweeper = approval.NewSweeper(o.queue, cfg.SweepInterval, logger)
	return o, nil
}

// Propose классифицирует действие и направляет его по итогу
func (o *Orchestrator) Propose(ctx context.Context, action domain.Action) (*Result, error) {
	ctx, span := tracing.Start(ctx, "orchestrator.Propose", map[string]string{
		"action.id":   action.ID,
		"action.type": action.Type,
	})

	res, err := o.propose(ctx, action)
	if res != nil && res.Decision != nil {
		span.Set("decision.outcome", string(res.Decision.Outcome))
	}
	span.End(err)
	return res, err
}

func (o *Orchestrator) propose(ctx context.Context, action domain.Action) (*Result, error) {
	_, cspan := tracing.Start(ctx, "risk.Classify", nil)
	assessment, rule, err := o.classifier.Explain(action)
	if err == nil {
		cspan.Set("risk.level", string(assessment.Level))
	}
	cspan.End(err)
	if err != nil {
		return nil, fmt.Errorf("classify %s: %w", action.Type, err)
	}

	d := domain.NewDecision(action, assessment)
	res := &Result{Decision: d, Rule: rule}
	mode := o.GetMode()

	if d.Outcome == domain.OutcomeAutoExecute && mode == ModePilot && action.Metadata.EstimatedValue > o.cfg.PilotMaxValue {
		o.logger.Info("pilot mode: %s value %.2f above cap %.2f, queueing", action.Type, action.Metadata.EstimatedValue, o.cfg.PilotMaxValue)
		d.Outcome = domain.OutcomeQueueForApproval
	}

	o.logger.Info("📝 %s (%s): score=%d level=%s rule=%s → %s",
		action.Type, action.ID, assessment.Score, assessment.Level, rule, d.Outcome)
	o.stats.RecordOutcome(d.Outcome, action.Metadata.EstimatedValue)
	o.saveDecision(ctx, d)

	switch d.Outcome {
	case domain.OutcomeAutoExecute:
		if mode == ModeShadow {
			o.logger.Info("🔍 Shadow mode: would execute %s", action.Type)
			return res, nil
		}
		return res, o.execute(ctx, res)

	case domain.OutcomeQueueForApproval, domain.OutcomeEscalate:
		req, err := o.queue.Add(d)
		if err != nil {
			return res, fmt.Errorf("queue %s: %w", action.Type, err)
		}
		if d.Outcome == domain.OutcomeEscalate {
			reason := approval.ReasonPattern
			if assessment.Level == domain.RiskCritical {
				reason = approval.ReasonCritical
			}
			o.queue.Escalate(req.ID, reason)
		}
		res.Request = req
		return res, nil

	default:
		o.logger.Warn("🚫 %s rejected: %s", action.Type, rule)
		return res, nil
	}
}

// Approve подтверждает запрос и исполняет действие (кроме shadow режима)
func (o *Orchestrator) Approve(ctx context.Context, requestID, by, feedback string) (*Result, error) {
	ctx, span := tracing.Start(ctx, "orchestrator.Approve", map[string]string{"request.id": requestID})

	req, ok := o.queue.Approve(requestID, by, feedback)
	if !ok {
		err := fmt.Errorf("approve %s: %w", requestID, domain.ErrRequestNotFound)
		span.End(err)
		return nil, err
	}
	o.updateOutcome(ctx, req.Decision, by)

	res := &Result{Decision: req.Decision, Request: req}
	var err error
	if o.GetMode() == ModeShadow {
		o.logger.Info("🔍 Shadow mode: approved %s not executed", req.Decision.Action.Type)
	} else {
		err = o.execute(ctx, res)
	}
	span.End(err)
	return res, err
}

// Reject отклоняет запрос
func (o *Orchestrator) Reject(ctx context.Context, requestID, reason, by string) (*domain.ApprovalRequest, error) {
	req, ok := o.queue.Reject(requestID, reason, by)
	if !ok {
		return nil, fmt.Errorf("reject %s: %w", requestID, domain.ErrRequestNotFound)
	}
	o.updateOutcome(ctx, req.Decision, by)
	return req, nil
}

// Rollback откатывает последнее исполнение действия
func (o *Orchestrator) Rollback(ctx context.Context, actionID string) error {
	ctx, span := tracing.Start(ctx, "rollback.RollbackByActionID", map[string]string{"action.id": actionID})
	err := o.rollback.RollbackByActionID(ctx, actionID)
	span.End(err)
	return err
}

// Pending ожидающие запросы по приоритету
func (o *Orchestrator) Pending() []*domain.ApprovalRequest {
	return o.queue.GetPending()
}

// Summary счетчики текущего дня
func (o *Orchestrator) Summary() domain.DailySummary {
	return o.stats.Snapshot()
}

// ApplyPolicy применяет перезагруженную политику к очереди и чекпоинтам
func (o *Orchestrator) ApplyPolicy(p *policy.Policy) {
	if p == nil {
		return
	}
	o.queue.SetConfig(approval.ConfigFromPolicy(p.Queue))
	o.rollback.SetConfig(rollback.ConfigFromPolicy(p.Rollback))
	o.logger.Info("policy %q applied", p.ProfileName)
}

// execute создает чекпоинт для обратимых действий и исполняет. При ошибке
// исполнения состояние восстанавливается из чекпоинта.
func (o *Orchestrator) execute(ctx context.Context, res *Result) error {
	d := res.Decision
	action := d.Action

	if action.Metadata.Reversible {
		cp, err := o.rollback.CreateCheckpoint(ctx, d)
		if err != nil {
			return fmt.Errorf("checkpoint %s: %w", action.Type, err)
		}
		res.Checkpoint = cp
	}

	ctx, span := tracing.Start(ctx, "execution.Execute", map[string]string{"action.type": action.Type})
	out, err := o.executor.Execute(ctx, action)
	span.End(err)
	res.Execution = out

	if err != nil {
		o.logger.Error("❌ Execution failed: %s: %v", action.Type, err)
		if res.Checkpoint != nil {
			if rbErr := o.rollback.Rollback(ctx, res.Checkpoint.ID); rbErr != nil {
				o.logger.Error("rollback after failed %s: %v", action.Type, rbErr)
			}
		}
		return err
	}

	res.Executed = true
	o.logger.Info("✅ Executed: %s (%s)", action.Type, action.ID)
	return nil
}

func (o *Orchestrator) saveDecision(ctx context.Context, d *domain.Decision) {
	if o.audit == nil {
		return
	}
	payload, err := json.Marshal(d)
	if err != nil {
		o.logger.Warn("⚠️  Failed to encode decision %s: %v", d.ID, err)
		return
	}
	if err := o.audit.Save(ctx, domain.NewDecisionRecord(d, payload, o.clock.Now())); err != nil {
		// журнал не блокирует решение
		o.logger.Warn("⚠️  Failed to save decision to database: %v", err)
	}
}

func (o *Orchestrator) updateOutcome(ctx context.Context, d *domain.Decision, by string) {
	if o.audit == nil || d == nil {
		return
	}
	if err := o.audit.UpdateOutcome(ctx, d.ID, d.Outcome, by); err != nil {
		o.logger.Warn("⚠️  Failed to update decision %s: %v", d.ID, err)
	}
}

// SetMode изменяет режим работы
func (o *Orchestrator) SetMode(mode Mode) error {
	if !mode.Valid() {
		return fmt.Errorf("unknown mode %q", mode)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.logger.Info("🔄 Switching mode: %s → %s", o.mode, mode)
	o.mode = mode
	return nil
}

// GetMode возвращает текущий режим
func (o *Orchestrator) GetMode() Mode {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.mode
}

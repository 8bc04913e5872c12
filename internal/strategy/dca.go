package strategy

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kirillm/action-guard/internal/adapters"
	"github.com/kirillm/action-guard/internal/domain"
	"github.com/kirillm/action-guard/internal/execution"
	"github.com/kirillm/action-guard/internal/orchestrator"
	"github.com/kirillm/action-guard/internal/rollback"
	"github.com/kirillm/action-guard/pkg/utils"
)

// stateDCAAmount ключ чекпоинта с суммой до изменения
const stateDCAAmount = "dca_amount"

// Proposer принимает действия на проверку
type Proposer interface {
	Propose(ctx context.Context, action domain.Action) (*orchestrator.Result, error)
}

// DCAStrategy периодически предлагает покупку на фиксированную сумму.
// Ордер размещается только если guard пропустил действие.
type DCAStrategy struct {
	guard    Proposer
	adapter  *adapters.TradingAdapter
	position *Position
	logger   *utils.Logger
	symbol   string
	interval time.Duration

	mu     sync.RWMutex
	amount float64

	runMu    sync.Mutex
	stopChan chan struct{}
	done     chan struct{}
}

func NewDCAStrategy(
	guard Proposer,
	adapter *adapters.TradingAdapter,
	position *Position,
	logger *utils.Logger,
	symbol string,
	amount float64,
	interval time.Duration,
) *DCAStrategy {
	if logger == nil {
		logger = utils.Default()
	}
	if position == nil {
		position = &Position{}
	}
	return &DCAStrategy{
		guard:    guard,
		adapter:  adapter,
		position: position,
		logger:   logger.Component("dca"),
		symbol:   symbol,
		amount:   amount,
		interval: interval,
	}
}

// Register подменяет обработчик dca_buy учетом позиции и регистрирует
// исполнение и откат изменения суммы
func (d *DCAStrategy) Register(ex *execution.Executor, buy execution.Handler, rb *rollback.Manager) {
	if buy != nil {
		ex.Register(adapters.TypeDCABuy, d.wrapBuy(buy))
	}
	ex.Register(adapters.TypeSetDCAAmount, d.applyAmount)
	if rb != nil {
		rb.RegisterCapturer(adapters.TypeSetDCAAmount, d.captureAmount)
		rb.RegisterHandler(adapters.TypeSetDCAAmount, d.restoreAmount)
	}
}

// Start запускает DCA стратегию
func (d *DCAStrategy) Start(ctx context.Context) error {
	if d.interval <= 0 {
		return errors.New("dca: interval must be positive")
	}

	d.runMu.Lock()
	defer d.runMu.Unlock()
	if d.stopChan != nil {
		return errors.New("dca: already running")
	}
	d.stopChan = make(chan struct{})
	d.done = make(chan struct{})

	d.logger.Info("DCA strategy started for %s with amount %.2f USDT every %s", d.symbol, d.Amount(), d.interval)
	go d.run(ctx, d.stopChan, d.done)
	return nil
}

// Stop останавливает DCA стратегию
func (d *DCAStrategy) Stop() {
	d.runMu.Lock()
	stop, done := d.stopChan, d.done
	d.stopChan, d.done = nil, nil
	d.runMu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
	d.logger.Info("DCA strategy stopped")
}

func (d *DCAStrategy) run(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := d.Tick(ctx); err != nil {
				d.logger.Error("DCA execution failed: %v", err)
			}
		case <-stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Tick предлагает одну DCA покупку
func (d *DCAStrategy) Tick(ctx context.Context) (*orchestrator.Result, error) {
	action, err := d.adapter.DCABuy(d.symbol, d.Amount())
	if err != nil {
		return nil, fmt.Errorf("build dca action: %w", err)
	}
	res, err := d.guard.Propose(ctx, action)
	if err != nil {
		return res, err
	}
	d.logger.Info("DCA %s proposed: %s", d.symbol, res.Decision.Outcome)
	return res, nil
}

// Amount текущая сумма покупки
func (d *DCAStrategy) Amount() float64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.amount
}

// Position позиция стратегии
func (d *DCAStrategy) Position() PositionSnapshot {
	return d.position.Snapshot()
}

// RequestAmount предлагает изменение суммы; применяется только через guard
func (d *DCAStrategy) RequestAmount(ctx context.Context, amount float64) (*orchestrator.Result, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("dca amount must be positive, got %.2f", amount)
	}
	action, err := d.adapter.SetDCAAmount(d.symbol, amount, d.Amount())
	if err != nil {
		return nil, fmt.Errorf("build amount action: %w", err)
	}
	return d.guard.Propose(ctx, action)
}

func (d *DCAStrategy) wrapBuy(buy execution.Handler) execution.Handler {
	return func(ctx context.Context, action domain.Action) (*execution.Result, error) {
		res, err := buy(ctx, action)
		if err != nil {
			return res, err
		}
		d.position.Buy(detailFloat(res, "quantity"), detailFloat(res, "amount"))
		return res, nil
	}
}

func (d *DCAStrategy) applyAmount(_ context.Context, action domain.Action) (*execution.Result, error) {
	amount := action.ParamFloat("amount", 0)
	if amount <= 0 {
		return nil, fmt.Errorf("missing amount parameter")
	}

	d.mu.Lock()
	previous := d.amount
	d.amount = amount
	d.mu.Unlock()

	d.logger.Info("DCA amount updated to %.2f USDT", amount)
	return &execution.Result{
		Success: true,
		Output:  fmt.Sprintf("dca amount %.2f -> %.2f", previous, amount),
		Details: map[string]interface{}{"previous": previous, "amount": amount},
	}, nil
}

func (d *DCAStrategy) captureAmount(_ context.Context, _ domain.Action) (map[string]interface{}, error) {
	return map[string]interface{}{stateDCAAmount: d.Amount()}, nil
}

func (d *DCAStrategy) restoreAmount(_ context.Context, cp *domain.RollbackCheckpoint) error {
	amount, ok := cp.State[stateDCAAmount].(float64)
	if !ok || amount <= 0 {
		return fmt.Errorf("checkpoint %s has no dca amount", cp.ID)
	}

	d.mu.Lock()
	d.amount = amount
	d.mu.Unlock()

	d.logger.Info("DCA amount restored to %.2f USDT", amount)
	return nil
}

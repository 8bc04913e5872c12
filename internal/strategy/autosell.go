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
	"github.com/kirillm/action-guard/pkg/utils"
)

// AutoSellStrategy предлагает продажу части позиции при достижении цели по прибыли
type AutoSellStrategy struct {
	guard    Proposer
	adapter  *adapters.TradingAdapter
	prices   execution.PriceSource
	position *Position
	logger   *utils.Logger
	symbol   string
	interval time.Duration

	mu                sync.RWMutex
	triggerPercent    float64 // процент роста для активации продажи
	sellAmountPercent float64 // процент позиции для продажи
	enabled           bool

	runMu    sync.Mutex
	stopChan chan struct{}
	done     chan struct{}
}

func NewAutoSellStrategy(
	guard Proposer,
	adapter *adapters.TradingAdapter,
	prices execution.PriceSource,
	position *Position,
	logger *utils.Logger,
	symbol string,
	triggerPercent float64,
	sellAmountPercent float64,
	interval time.Duration,
) *AutoSellStrategy {
	if logger == nil {
		logger = utils.Default()
	}
	if position == nil {
		position = &Position{}
	}
	return &AutoSellStrategy{
		guard:             guard,
		adapter:           adapter,
		prices:            prices,
		position:          position,
		logger:            logger.Component("autosell"),
		symbol:            symbol,
		interval:          interval,
		triggerPercent:    triggerPercent,
		sellAmountPercent: sellAmountPercent,
		enabled:           true,
	}
}

// Register подменяет обработчик auto_sell учетом позиции
func (a *AutoSellStrategy) Register(ex *execution.Executor, sell execution.Handler) {
	ex.Register(adapters.TypeAutoSell, func(ctx context.Context, action domain.Action) (*execution.Result, error) {
		res, err := sell(ctx, action)
		if err != nil {
			return res, err
		}
		profit := a.position.Sell(detailFloat(res, "quantity"), detailFloat(res, "price"))
		if res.Details != nil {
			res.Details["profit"] = profit
		}
		return res, nil
	})
}

// Start запускает Auto-Sell стратегию
func (a *AutoSellStrategy) Start(ctx context.Context) error {
	if a.interval <= 0 {
		return errors.New("autosell: interval must be positive")
	}

	a.runMu.Lock()
	defer a.runMu.Unlock()
	if a.stopChan != nil {
		return errors.New("autosell: already running")
	}
	a.stopChan = make(chan struct{})
	a.done = make(chan struct{})

	a.logger.Info("Auto-Sell strategy started for %s with trigger %.2f%% and sell amount %.2f%%",
		a.symbol, a.TriggerPercent(), a.SellAmountPercent())
	go a.run(ctx, a.stopChan, a.done)
	return nil
}

// Stop останавливает Auto-Sell стратегию
func (a *AutoSellStrategy) Stop() {
	a.runMu.Lock()
	stop, done := a.stopChan, a.done
	a.stopChan, a.done = nil, nil
	a.runMu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
	a.logger.Info("Auto-Sell strategy stopped")
}

func (a *AutoSellStrategy) run(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := a.Check(ctx); err != nil {
				a.logger.Error("Auto-Sell check failed: %v", err)
			}
		case <-stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Check проверяет цену и предлагает продажу; nil результат означает, что цель не достигнута
func (a *AutoSellStrategy) Check(ctx context.Context) (*orchestrator.Result, error) {
	if !a.IsEnabled() {
		return nil, nil
	}

	pos := a.position.Snapshot()
	if pos.Quantity <= 0 || pos.AvgEntryPrice <= 0 {
		return nil, nil
	}

	price, err := a.prices.GetPrice(ctx, a.symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to get price: %w", err)
	}

	profitPercent := (price - pos.AvgEntryPrice) / pos.AvgEntryPrice * 100
	a.logger.Debug("Current price: %.2f, Avg entry: %.2f, Profit: %.2f%%", price, pos.AvgEntryPrice, profitPercent)

	if profitPercent < a.TriggerPercent() {
		return nil, nil
	}

	percent := a.SellAmountPercent()
	action, err := a.adapter.AutoSell(a.symbol, percent, pos.Quantity*price)
	if err != nil {
		return nil, fmt.Errorf("build auto-sell action: %w", err)
	}

	a.logger.Info("Auto-Sell triggered for %s at %.2f (profit %.2f%%)", a.symbol, price, profitPercent)
	return a.guard.Propose(ctx, action)
}

// Enable включает Auto-Sell
func (a *AutoSellStrategy) Enable() {
	a.mu.Lock()
	a.enabled = true
	a.mu.Unlock()
	a.logger.Info("Auto-Sell enabled")
}

// Disable выключает Auto-Sell
func (a *AutoSellStrategy) Disable() {
	a.mu.Lock()
	a.enabled = false
	a.mu.Unlock()
	a.logger.Info("Auto-Sell disabled")
}

func (a *AutoSellStrategy) IsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enabled
}

func (a *AutoSellStrategy) TriggerPercent() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.triggerPercent
}

func (a *AutoSellStrategy) SellAmountPercent() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.sellAmountPercent
}

// UpdateTriggerPercent обновляет процент триггера
func (a *AutoSellStrategy) UpdateTriggerPercent(percent float64) {
	a.mu.Lock()
	a.triggerPercent = percent
	a.mu.Unlock()
	a.logger.Info("Auto-Sell trigger updated to %.2f%%", percent)
}

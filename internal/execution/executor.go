package execution

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kirillm/action-guard/internal/clock"
	"github.com/kirillm/action-guard/internal/domain"
	"github.com/kirillm/action-guard/internal/match"
	"github.com/kirillm/action-guard/pkg/utils"
)

var (
	ErrSlippageTooHigh   = errors.New("slippage exceeds threshold")
	ErrPriceUnavailable  = errors.New("unable to get price from any source")
	ErrInsufficientFunds = errors.New("insufficient balance")
)

// Handler выполняет действие одного типа
type Handler func(ctx context.Context, action domain.Action) (*Result, error)

// Result результат исполнения
type Result struct {
	Success    bool                   `json:"success"`
	Handler    string                 `json:"handler"`
	Output     string                 `json:"output,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
	ExecutedAt time.Time              `json:"executed_at"`
	Duration   time.Duration          `json:"duration"`
}

// Executor диспетчер обработчиков по типу действия
type Executor struct {
	mu         sync.RWMutex
	handlers   *match.Registry[Handler]
	killSwitch *KillSwitch
	clock      clock.Clock
	logger     *utils.Logger
}

// NewExecutor создает executor; killSwitch может быть nil
func NewExecutor(killSwitch *KillSwitch, clk clock.Clock, logger *utils.Logger) *Executor {
	if logger == nil {
		logger = utils.Default()
	}
	if killSwitch == nil {
		killSwitch = NewKillSwitch(clk, logger)
	}
	return &Executor{
		handlers:   match.NewRegistry[Handler](),
		killSwitch: killSwitch,
		clock:      clock.OrReal(clk),
		logger:     logger.Component("executor"),
	}
}

// Register регистрирует обработчик для типа или шаблона типа
func (e *Executor) Register(actionType string, h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers.Set(actionType, h)
}

// Has проверяет есть ли обработчик для типа
func (e *Executor) Has(actionType string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, _, ok := e.handlers.Lookup(actionType)
	return ok
}

// Types зарегистрированные типы
func (e *Executor) Types() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.handlers.Keys()
}

// KillSwitch возвращает kill switch
func (e *Executor) KillSwitch() *KillSwitch {
	return e.killSwitch
}

// Execute выполняет действие
func (e *Executor) Execute(ctx context.Context, action domain.Action) (*Result, error) {
	// 1. Проверка kill switch
	if e.killSwitch.IsActive() {
		_, reason, _ := e.killSwitch.GetStatus()
		return nil, fmt.Errorf("%w: %s", domain.ErrKillSwitchEngaged, reason)
	}

	// 2. Поиск обработчика
	e.mu.RLock()
	handler, key, ok := e.handlers.Lookup(action.Type)
	e.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrNoExecutor, action.Type)
	}

	// 3. Исполнение
	start := e.clock.Now()
	result, err := safeCall(ctx, handler, action)
	if result == nil {
		result = &Result{}
	}
	result.Handler = key
	result.ExecutedAt = start
	result.Duration = e.clock.Now().Sub(start)

	if err != nil {
		result.Success = false
		e.logger.Error("action %s (%s) failed via %q: %v", action.ID, action.Type, key, err)
		return result, fmt.Errorf("execute %s: %w", action.Type, err)
	}

	e.logger.Info("action %s (%s) executed via %q", action.ID, action.Type, key)
	return result, nil
}

func safeCall(ctx context.Context, h Handler, action domain.Action) (res *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(ctx, action)
}

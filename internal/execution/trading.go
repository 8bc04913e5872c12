package execution

import (
	"context"
	"fmt"
	"strings"

	"github.com/kirillm/action-guard/internal/clock"
	"github.com/kirillm/action-guard/internal/domain"
	"github.com/kirillm/action-guard/pkg/utils"
)

// defaultSlippagePercent порог проскальзывания по умолчанию
const defaultSlippagePercent = 1.0

// Exchange интерфейс биржи
type Exchange interface {
	PriceSource
	GetBalance(ctx context.Context, asset string) (float64, error)
	PlaceMarketOrder(ctx context.Context, symbol, side string, quantity float64) (string, error)
}

// TradingHandlers обработчики торговых действий поверх биржи
type TradingHandlers struct {
	exchange Exchange
	prices   *PriceFailover
	slippage *SlippageGuard
}

// NewTradingHandlers создает обработчики; slippagePercent <= 0 означает 1%
func NewTradingHandlers(ex Exchange, slippagePercent float64, clk clock.Clock, logger *utils.Logger) *TradingHandlers {
	if slippagePercent <= 0 {
		slippagePercent = defaultSlippagePercent
	}
	return &TradingHandlers{
		exchange: ex,
		prices:   NewPriceFailover(ex, clk, logger),
		slippage: NewSlippageGuard(slippagePercent),
	}
}

// Prices источник цен с failover
func (t *TradingHandlers) Prices() *PriceFailover { return t.prices }

// Register регистрирует обработчики в executor
func (t *TradingHandlers) Register(e *Executor) {
	e.Register("dca_buy", t.Buy)
	e.Register("auto_sell", t.Sell)
	e.Register("market_sell", t.Sell)
	e.Register("panic_sell", t.Sell)
}

// Buy выполняет покупку на сумму amount (USDT)
func (t *TradingHandlers) Buy(ctx context.Context, action domain.Action) (*Result, error) {
	symbol := action.ParamString("symbol")
	quoteAmount := action.ParamFloat("amount", 0)
	if symbol == "" || quoteAmount <= 0 {
		return nil, fmt.Errorf("missing symbol or amount parameter")
	}

	price, err := t.prices.GetPrice(ctx, symbol)
	if err != nil {
		return nil, err
	}

	if expected := action.ParamFloat("expected_price", 0); expected > 0 {
		if err := t.slippage.CheckSlippage(price, expected); err != nil {
			return nil, err
		}
	}

	// Проверяем баланс USDT
	usdtBalance, err := t.exchange.GetBalance(ctx, "USDT")
	if err != nil {
		return nil, fmt.Errorf("failed to get USDT balance: %w", err)
	}
	if usdtBalance < quoteAmount {
		return nil, fmt.Errorf("%w: have %.2f, need %.2f", ErrInsufficientFunds, usdtBalance, quoteAmount)
	}

	quantity := quoteAmount / price
	orderID, err := t.exchange.PlaceMarketOrder(ctx, symbol, "BUY", quantity)
	if err != nil {
		return nil, fmt.Errorf("failed to place order: %w", err)
	}

	return &Result{
		Success: true,
		Output:  fmt.Sprintf("bought %.8f %s @ %.2f", quantity, symbol, price),
		Details: map[string]interface{}{
			"order_id": orderID,
			"price":    price,
			"quantity": quantity,
			"amount":   quoteAmount,
		},
	}, nil
}

// Sell продает percent (по умолчанию 100) от баланса или quantity
func (t *TradingHandlers) Sell(ctx context.Context, action domain.Action) (*Result, error) {
	symbol := action.ParamString("symbol")
	if symbol == "" {
		return nil, fmt.Errorf("missing symbol parameter")
	}

	price, err := t.prices.GetPrice(ctx, symbol)
	if err != nil {
		return nil, err
	}

	quantity := action.ParamFloat("quantity", 0)
	if quantity <= 0 {
		balance, err := t.exchange.GetBalance(ctx, baseAsset(symbol))
		if err != nil {
			return nil, fmt.Errorf("failed to get balance: %w", err)
		}
		if balance <= 0 {
			return nil, ErrInsufficientFunds
		}
		quantity = balance * action.ParamFloat("percent", 100) / 100
	}

	orderID, err := t.exchange.PlaceMarketOrder(ctx, symbol, "SELL", quantity)
	if err != nil {
		return nil, fmt.Errorf("failed to place order: %w", err)
	}

	return &Result{
		Success: true,
		Output:  fmt.Sprintf("sold %.8f %s @ %.2f", quantity, symbol, price),
		Details: map[string]interface{}{
			"order_id": orderID,
			"price":    price,
			"quantity": quantity,
			"amount":   quantity * price,
		},
	}, nil
}

func baseAsset(symbol string) string {
	for _, quote := range []string{"USDT", "USDC", "USD"} {
		if strings.HasSuffix(symbol, quote) && len(symbol) > len(quote) {
			return strings.TrimSuffix(symbol, quote)
		}
	}
	return symbol
}

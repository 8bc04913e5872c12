package adapters

import (
	"fmt"
	"strings"

	"github.com/kirillm/action-guard/internal/domain"
)

// Типы торговых действий
const (
	TypeDCABuy          = "dca_buy"
	TypeAutoSell        = "auto_sell"
	TypeMarketSell      = "market_sell"
	TypePanicSell       = "panic_sell"
	TypeInitGrid        = "init_grid"
	TypeStopGrid        = "stop_grid"
	TypeSetDCAAmount    = "set_dca_amount"
	TypeSetStopLoss     = "set_stop_loss"
	TypeSetTakeProfit   = "set_take_profit"
	TypeTransferFunds   = "transfer_funds"
	TypeGetPortfolio    = "get_portfolio"
	TypeRebalance       = "rebalance_portfolio"
	TypeUpdateRiskLimit = "update_risk_limits"
)

// TradingAdapter строит действия торгового движка
type TradingAdapter struct {
	base
}

// NewTradingAdapter создает адаптер
func NewTradingAdapter(factory *domain.ActionFactory) *TradingAdapter {
	return &TradingAdapter{base: newBase(factory)}
}

func (a *TradingAdapter) Engine() domain.Engine { return domain.EngineTrading }

// DCABuy плановая покупка на фиксированную сумму
func (a *TradingAdapter) DCABuy(symbol string, amountUSD float64) (domain.Action, error) {
	return a.factory.New(domain.EngineTrading, domain.CategoryTrading, TypeDCABuy).
		Description(fmt.Sprintf("DCA buy %s for $%.2f", symbol, amountUSD)).
		Param("symbol", symbol).
		Param("amount", amountUSD).
		Value(amountUSD).
		Build()
}

// AutoSell продажа части позиции при достижении цели по прибыли
func (a *TradingAdapter) AutoSell(symbol string, percent, positionValue float64) (domain.Action, error) {
	value := positionValue * percent / 100
	return a.factory.New(domain.EngineTrading, domain.CategoryTrading, TypeAutoSell).
		Description(fmt.Sprintf("Auto-sell %.0f%% of %s (~$%.2f)", percent, symbol, value)).
		Param("symbol", symbol).
		Param("percent", percent).
		Value(value).
		Build()
}

// MarketSell немедленная рыночная продажа
func (a *TradingAdapter) MarketSell(symbol string, quantity, value float64) (domain.Action, error) {
	return a.factory.New(domain.EngineTrading, domain.CategoryTrading, TypeMarketSell).
		Description(fmt.Sprintf("Market sell %.8f %s", quantity, symbol)).
		Param("symbol", symbol).
		Param("quantity", quantity).
		Value(value).
		Urgency(domain.UrgencyHigh).
		Build()
}

// EmergencyStop закрывает все позиции; срочно и необратимо
func (a *TradingAdapter) EmergencyStop(reason string, exposure float64) (domain.Action, error) {
	return a.factory.New(domain.EngineTrading, domain.CategoryTrading, TypePanicSell).
		Description("Emergency stop: "+reason).
		Param("reason", reason).
		Value(exposure).
		Urgency(domain.UrgencyCritical).
		Build()
}

// InitGrid размещает сетку ордеров; сетку можно снять
func (a *TradingAdapter) InitGrid(symbol string, levels int, spacingPercent, orderSize float64) (domain.Action, error) {
	value := float64(levels) * orderSize
	return a.factory.New(domain.EngineTrading, domain.CategoryTrading, TypeInitGrid).
		Description(fmt.Sprintf("Init grid %s: %d levels, %.2f%% spacing", symbol, levels, spacingPercent)).
		Param("symbol", symbol).
		Param("levels", levels).
		Param("spacing_percent", spacingPercent).
		Param("order_size", orderSize).
		Value(value).
		Reversible(true).
		Build()
}

// SetDCAAmount изменение суммы DCA; previous сохраняется для отката
func (a *TradingAdapter) SetDCAAmount(symbol string, amount, previous float64) (domain.Action, error) {
	return a.factory.New(domain.EngineTrading, domain.CategoryConfiguration, TypeSetDCAAmount).
		Description(fmt.Sprintf("Set DCA amount for %s: $%.2f -> $%.2f", symbol, previous, amount)).
		Param("symbol", symbol).
		Param("amount", amount).
		Param("previous", previous).
		Value(amount).
		Reversible(true).
		Urgency(domain.UrgencyLow).
		Build()
}

// SetStopLoss установка стоп-лосса
func (a *TradingAdapter) SetStopLoss(symbol string, percent float64) (domain.Action, error) {
	return a.factory.New(domain.EngineTrading, domain.CategoryConfiguration, TypeSetStopLoss).
		Description(fmt.Sprintf("Set stop-loss for %s at %.2f%%", symbol, percent)).
		Param("symbol", symbol).
		Param("percent", percent).
		Reversible(true).
		Build()
}

// FromRequest переводит запрос AI-ассистента в действие. Неизвестные
// типы попадают в категорию trading с обычной срочностью.
func (a *TradingAdapter) FromRequest(actionType string, params map[string]interface{}) (domain.Action, error) {
	actionType = strings.ToLower(strings.TrimSpace(actionType))
	probe := domain.Action{Params: params}
	symbol := probe.ParamString("symbol")

	switch actionType {
	case TypeDCABuy, "buy":
		return a.DCABuy(symbol, probe.ParamFloat("amount", 0))
	case TypeAutoSell, "sell":
		return a.AutoSell(symbol, probe.ParamFloat("percent", 100), probe.ParamFloat("position_value", 0))
	case TypeMarketSell:
		return a.MarketSell(symbol, probe.ParamFloat("quantity", 0), probe.ParamFloat("value", 0))
	case TypePanicSell, "emergency_stop":
		return a.EmergencyStop(probe.ParamString("reason"), probe.ParamFloat("exposure", 0))
	case TypeInitGrid:
		return a.InitGrid(symbol,
			int(probe.ParamFloat("levels", 0)),
			probe.ParamFloat("spacing_percent", 0),
			probe.ParamFloat("order_size", 0))
	case TypeSetDCAAmount, "update_dca_amount":
		return a.SetDCAAmount(symbol, probe.ParamFloat("amount", 0), probe.ParamFloat("previous", 0))
	case TypeSetStopLoss:
		return a.SetStopLoss(symbol, probe.ParamFloat("percent", 0))
	}

	category := domain.CategoryTrading
	reversible := false
	if strings.HasPrefix(actionType, "set_") || strings.HasPrefix(actionType, "update_") {
		category = domain.CategoryConfiguration
		reversible = true
	}
	desc := probe.ParamString("description")
	if desc == "" {
		desc = strings.ReplaceAll(actionType, "_", " ")
		if symbol != "" {
			desc += " " + symbol
		}
	}
	return a.factory.New(domain.EngineTrading, category, actionType).
		Description(desc).
		Params(params).
		Value(probe.ParamFloat("value", probe.ParamFloat("amount", 0))).
		Reversible(reversible).
		Build()
}

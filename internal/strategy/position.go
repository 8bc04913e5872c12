package strategy

import (
	"sync"

	"github.com/kirillm/action-guard/internal/execution"
)

// Position позиция по одному символу, обновляется по результатам исполнения
type Position struct {
	mu             sync.RWMutex
	quantity       float64
	invested       float64
	totalSold      float64
	realizedProfit float64
}

// PositionSnapshot копия позиции
type PositionSnapshot struct {
	Quantity       float64
	Invested       float64
	AvgEntryPrice  float64
	TotalSold      float64
	RealizedProfit float64
}

// Snapshot возвращает текущее состояние
func (p *Position) Snapshot() PositionSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return PositionSnapshot{
		Quantity:       p.quantity,
		Invested:       p.invested,
		AvgEntryPrice:  p.avgLocked(),
		TotalSold:      p.totalSold,
		RealizedProfit: p.realizedProfit,
	}
}

// Buy учитывает покупку
func (p *Position) Buy(quantity, amount float64) {
	if quantity <= 0 {
		return
	}
	p.mu.Lock()
	p.quantity += quantity
	p.invested += amount
	p.mu.Unlock()
}

// Sell учитывает продажу и возвращает реализованную прибыль
func (p *Position) Sell(quantity, price float64) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	if quantity > p.quantity {
		quantity = p.quantity
	}
	if quantity <= 0 {
		return 0
	}

	avg := p.avgLocked()
	profit := quantity * (price - avg)

	// себестоимость уменьшается пропорционально проданному
	p.invested -= avg * quantity
	p.quantity -= quantity
	p.totalSold += quantity * price
	p.realizedProfit += profit
	if p.quantity == 0 {
		p.invested = 0
	}
	return profit
}

func (p *Position) avgLocked() float64 {
	if p.quantity <= 0 {
		return 0
	}
	return p.invested / p.quantity
}

func detailFloat(res *execution.Result, key string) float64 {
	if res == nil {
		return 0
	}
	switch v := res.Details[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

package execution

import (
	"fmt"
	"math"
	"sync"
)

// SlippageGuard защита от чрезмерного проскальзывания
type SlippageGuard struct {
	mu               sync.RWMutex
	thresholdPercent float64
}

// NewSlippageGuard создает новый slippage guard
func NewSlippageGuard(thresholdPercent float64) *SlippageGuard {
	return &SlippageGuard{
		thresholdPercent: thresholdPercent,
	}
}

// CheckSlippage проверяет приемлемость проскальзывания
func (sg *SlippageGuard) CheckSlippage(actualPrice, expectedPrice float64) error {
	if expectedPrice <= 0 {
		return fmt.Errorf("invalid expected price: %.2f", expectedPrice)
	}

	slippage := CalculateSlippage(actualPrice, expectedPrice)
	threshold := sg.GetThreshold()
	if slippage > threshold {
		return fmt.Errorf("%w: %.2f%% (threshold: %.2f%%)", ErrSlippageTooHigh, slippage, threshold)
	}

	return nil
}

// CalculateSlippage вычисляет процент проскальзывания
func CalculateSlippage(actualPrice, expectedPrice float64) float64 {
	if expectedPrice <= 0 {
		return 0.0
	}

	return math.Abs((actualPrice - expectedPrice) / expectedPrice * 100.0)
}

// SetThreshold устанавливает новый порог
func (sg *SlippageGuard) SetThreshold(thresholdPercent float64) {
	sg.mu.Lock()
	sg.thresholdPercent = thresholdPercent
	sg.mu.Unlock()
}

// GetThreshold возвращает текущий порог
func (sg *SlippageGuard) GetThreshold() float64 {
	sg.mu.RLock()
	defer sg.mu.RUnlock()
	return sg.thresholdPercent
}

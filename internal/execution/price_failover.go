package execution

import (
	"context"
	"sync"
	"time"

	"github.com/kirillm/action-guard/internal/clock"
	"github.com/kirillm/action-guard/pkg/utils"
)

// priceCacheTTL срок годности кешированной цены
const priceCacheTTL = 5 * time.Minute

// PriceSource источник цен
type PriceSource interface {
	GetPrice(ctx context.Context, symbol string) (float64, error)
}

// PriceFailover failover механизм для получения цен
type PriceFailover struct {
	mu              sync.Mutex
	primarySource   PriceSource
	fallbackSources []PriceSource
	cache           map[string]cachedPrice

	clock  clock.Clock
	logger *utils.Logger
}

type cachedPrice struct {
	price     float64
	timestamp time.Time
}

// NewPriceFailover создает новый price failover
func NewPriceFailover(primarySource PriceSource, clk clock.Clock, logger *utils.Logger) *PriceFailover {
	if logger == nil {
		logger = utils.Default()
	}
	return &PriceFailover{
		primarySource: primarySource,
		cache:         make(map[string]cachedPrice),
		clock:         clock.OrReal(clk),
		logger:        logger.Component("prices"),
	}
}

// AddFallbackSource добавляет запасной источник цен
func (pf *PriceFailover) AddFallbackSource(source PriceSource) {
	pf.mu.Lock()
	pf.fallbackSources = append(pf.fallbackSources, source)
	pf.mu.Unlock()
}

// GetPrice получает цену с failover
func (pf *PriceFailover) GetPrice(ctx context.Context, symbol string) (float64, error) {
	pf.mu.Lock()
	sources := append([]PriceSource{pf.primarySource}, pf.fallbackSources...)
	pf.mu.Unlock()

	for i, source := range sources {
		price, err := source.GetPrice(ctx, symbol)
		if err != nil {
			pf.logger.Debug("price source #%d failed for %s: %v", i, symbol, err)
			continue
		}
		if i > 0 {
			pf.logger.Warn("⚠️ Using fallback source #%d for %s price", i, symbol)
		}
		pf.mu.Lock()
		pf.cache[symbol] = cachedPrice{price: price, timestamp: pf.clock.Now()}
		pf.mu.Unlock()
		return price, nil
	}

	// Все источники недоступны, используем кеш если есть
	pf.mu.Lock()
	defer pf.mu.Unlock()
	if cached, ok := pf.cache[symbol]; ok {
		age := pf.clock.Now().Sub(cached.timestamp)
		if age < priceCacheTTL {
			pf.logger.Warn("⚠️ Using cached price for %s (age: %v)", symbol, age)
			return cached.price, nil
		}
	}

	return 0, ErrPriceUnavailable
}

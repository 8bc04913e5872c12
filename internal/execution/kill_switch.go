package execution

import (
	"sync"
	"time"

	"github.com/kirillm/action-guard/internal/clock"
	"github.com/kirillm/action-guard/pkg/utils"
)

// KillSwitch аварийная остановка исполнения
type KillSwitch struct {
	mu          sync.RWMutex
	active      bool
	activatedAt time.Time
	reason      string

	clock  clock.Clock
	logger *utils.Logger
}

// NewKillSwitch создает новый kill switch
func NewKillSwitch(clk clock.Clock, logger *utils.Logger) *KillSwitch {
	if logger == nil {
		logger = utils.Default()
	}
	return &KillSwitch{
		clock:  clock.OrReal(clk),
		logger: logger.Component("kill-switch"),
	}
}

// Activate активирует kill switch
func (ks *KillSwitch) Activate(reason string) {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	ks.active = true
	ks.activatedAt = ks.clock.Now()
	ks.reason = reason

	ks.logger.Error("🚨 KILL SWITCH ACTIVATED: %s", reason)
}

// Deactivate деактивирует kill switch (требует ручного вмешательства)
func (ks *KillSwitch) Deactivate() {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	ks.active = false
	ks.reason = ""

	ks.logger.Warn("✅ Kill switch deactivated")
}

// IsActive проверяет активен ли kill switch
func (ks *KillSwitch) IsActive() bool {
	ks.mu.RLock()
	defer ks.mu.RUnlock()

	return ks.active
}

// GetStatus возвращает статус kill switch
func (ks *KillSwitch) GetStatus() (bool, string, time.Time) {
	ks.mu.RLock()
	defer ks.mu.RUnlock()

	return ks.active, ks.reason, ks.activatedAt
}

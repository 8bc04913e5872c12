package telegram

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/kirillm/action-guard/internal/clock"
)

const limiterIdleTTL = 5 * time.Minute

// AuthManager управляет правами доступа и rate limiting
type AuthManager struct {
	mu              sync.RWMutex
	adminIDs        map[int64]bool
	whitelist       map[int64]bool
	enableWhitelist bool
	rateLimiters    map[int64]*userLimiter
	clock           clock.Clock
}

// userLimiter token bucket пользователя
type userLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewAuthManager создает менеджер из списков id через запятую.
// Пустой список админов означает, что админом считается любой
// пользователь из разрешенного чата.
func NewAuthManager(adminIDsStr, whitelistStr string, clk clock.Clock) *AuthManager {
	am := &AuthManager{
		adminIDs:     make(map[int64]bool),
		whitelist:    make(map[int64]bool),
		rateLimiters: make(map[int64]*userLimiter),
		clock:        clock.OrReal(clk),
	}

	for _, id := range ParseIDs(adminIDsStr) {
		am.adminIDs[id] = true
	}

	if strings.TrimSpace(whitelistStr) != "" {
		am.enableWhitelist = true
		for _, id := range ParseIDs(whitelistStr) {
			am.whitelist[id] = true
		}
	}

	return am
}

// ParseIDs разбирает "1, 2,3"; нечисловые элементы пропускаются
func ParseIDs(s string) []int64 {
	var ids []int64
	for _, idStr := range strings.Split(s, ",") {
		idStr = strings.TrimSpace(idStr)
		if idStr == "" {
			continue
		}
		if id, err := strconv.ParseInt(idStr, 10, 64); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

// IsAdmin проверяет, является ли пользователь администратором
func (am *AuthManager) IsAdmin(userID int64) bool {
	am.mu.RLock()
	defer am.mu.RUnlock()

	if len(am.adminIDs) == 0 {
		return true
	}

	return am.adminIDs[userID]
}

// IsAllowed проверяет, разрешен ли доступ пользователю
func (am *AuthManager) IsAllowed(userID int64) bool {
	am.mu.RLock()
	defer am.mu.RUnlock()

	if !am.enableWhitelist {
		return true
	}

	// Админы всегда разрешены
	if am.adminIDs[userID] {
		return true
	}

	return am.whitelist[userID]
}

// CheckRateLimit пропускает не больше maxPerSecond запросов в секунду
func (am *AuthManager) CheckRateLimit(userID int64, maxPerSecond int) error {
	if maxPerSecond <= 0 {
		maxPerSecond = 1
	}
	now := am.clock.Now()

	am.mu.Lock()
	ul, exists := am.rateLimiters[userID]
	if !exists {
		ul = &userLimiter{limiter: rate.NewLimiter(rate.Limit(maxPerSecond), maxPerSecond)}
		am.rateLimiters[userID] = ul
	} else if ul.limiter.Burst() != maxPerSecond {
		ul.limiter.SetLimitAt(now, rate.Limit(maxPerSecond))
		ul.limiter.SetBurstAt(now, maxPerSecond)
	}
	ul.lastSeen = now
	am.mu.Unlock()

	r := ul.limiter.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return fmt.Errorf("rate limit exceeded, please wait %v", delay.Round(time.Millisecond))
	}
	return nil
}

// RequireAdmin возвращает ошибку, если пользователь не администратор
func (am *AuthManager) RequireAdmin(userID int64) error {
	if !am.IsAdmin(userID) {
		return fmt.Errorf("access denied: admin permission required")
	}
	return nil
}

// AddAdmin добавляет администратора
func (am *AuthManager) AddAdmin(userID int64) {
	am.mu.Lock()
	defer am.mu.Unlock()
	am.adminIDs[userID] = true
}

// RemoveAdmin удаляет администратора
func (am *AuthManager) RemoveAdmin(userID int64) {
	am.mu.Lock()
	defer am.mu.Unlock()
	delete(am.adminIDs, userID)
}

// AddToWhitelist добавляет пользователя в whitelist
func (am *AuthManager) AddToWhitelist(userID int64) {
	am.mu.Lock()
	defer am.mu.Unlock()
	am.whitelist[userID] = true
}

// RemoveFromWhitelist удаляет пользователя из whitelist
func (am *AuthManager) RemoveFromWhitelist(userID int64) {
	am.mu.Lock()
	defer am.mu.Unlock()
	delete(am.whitelist, userID)
}

// GetAdminIDs возвращает список ID администраторов
func (am *AuthManager) GetAdminIDs() []int64 {
	am.mu.RLock()
	defer am.mu.RUnlock()

	ids := make([]int64, 0, len(am.adminIDs))
	for id := range am.adminIDs {
		ids = append(ids, id)
	}
	return ids
}

// CleanupRateLimiters удаляет лимитеры неактивных пользователей
func (am *AuthManager) CleanupRateLimiters() int {
	am.mu.Lock()
	defer am.mu.Unlock()

	now := am.clock.Now()
	removed := 0
	for userID, ul := range am.rateLimiters {
		if now.Sub(ul.lastSeen) > limiterIdleTTL {
			delete(am.rateLimiters, userID)
			removed++
		}
	}
	return removed
}

package rollback

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kirillm/action-guard/internal/clock"
	"github.com/kirillm/action-guard/internal/domain"
	"github.com/kirillm/action-guard/internal/idgen"
	"github.com/kirillm/action-guard/internal/match"
	"github.com/kirillm/action-guard/internal/policy"
	"github.com/kirillm/action-guard/pkg/utils"
)

// Handler undoes the domain effect recorded in a checkpoint.
type Handler func(ctx context.Context, cp *domain.RollbackCheckpoint) error

// Capturer records domain-specific state before execution. The returned
// map is merged into the checkpoint state.
type Capturer func(ctx context.Context, action domain.Action) (map[string]interface{}, error)

// Generic state keys.
const (
	StateTimestamp   = "timestamp"
	StateActionType  = "action_type"
	StateCategory    = "category"
	StateParams      = "params"
	StateDescription = "description"
)

// Config manager tunables.
type Config struct {
	MaxCheckpoints int
	TTL            time.Duration
}

// ConfigFromPolicy maps the policy section onto Config.
func ConfigFromPolicy(p policy.RollbackPolicy) Config {
	return Config{MaxCheckpoints: p.MaxCheckpoints, TTL: p.TTL}
}

func (c Config) withDefaults() Config {
	d := policy.Default().Rollback
	if c.MaxCheckpoints <= 0 {
		c.MaxCheckpoints = d.MaxCheckpoints
	}
	if c.TTL <= 0 {
		c.TTL = d.TTL
	}
	return c
}

// Manager stores single-use checkpoints for reversible actions.
type Manager struct {
	mu          sync.Mutex
	cfg         Config
	checkpoints map[string]*domain.RollbackCheckpoint
	handlers    *match.Registry[Handler]
	capturers   *match.Registry[Capturer]

	clock  clock.Clock
	ids    idgen.Generator
	logger *utils.Logger
}

// NewManager creates a manager; zero config values fall back to policy defaults.
func NewManager(cfg Config, clk clock.Clock, ids idgen.Generator, logger *utils.Logger) *Manager {
	if logger == nil {
		logger = utils.Default()
	}
	return &Manager{
		cfg:         cfg.withDefaults(),
		checkpoints: make(map[string]*domain.RollbackCheckpoint),
		handlers:    match.NewRegistry[Handler](),
		capturers:   match.NewRegistry[Capturer](),
		clock:       clock.OrReal(clk),
		ids:         idgen.OrDefault(ids),
		logger:      logger.Component("rollback"),
	}
}

// RegisterHandler registers h for actionType; a later registration for the
// same type replaces the earlier one.
func (m *Manager) RegisterHandler(actionType string, h Handler) {
	m.mu.Lock()
	m.handlers.Set(actionType, h)
	m.mu.Unlock()
}

// RegisterCapturer registers a state capturer for actionType.
func (m *Manager) RegisterCapturer(actionType string, c Capturer) {
	m.mu.Lock()
	m.capturers.Set(actionType, c)
	m.mu.Unlock()
}

// CreateCheckpoint snapshots state for a reversible action. Irreversible
// actions fail with ErrIrreversibleAction.
func (m *Manager) CreateCheckpoint(ctx context.Context, d *domain.Decision) (*domain.RollbackCheckpoint, error) {
	if d == nil {
		return nil, fmt.Errorf("create checkpoint: %w", domain.ErrInvalidAction)
	}
	action := d.Action
	if !action.Metadata.Reversible {
		return nil, fmt.Errorf("create checkpoint for %s (%s): %w", action.ID, action.Type, domain.ErrIrreversibleAction)
	}

	now := m.clock.Now()
	state := map[string]interface{}{
		StateTimestamp:   now,
		StateActionType:  action.Type,
		StateCategory:    string(action.Category),
		StateParams:      action.CopyParams(),
		StateDescription: action.Description,
	}

	m.mu.Lock()
	capture, _, hasCapturer := m.capturers.Lookup(action.Type)
	m.mu.Unlock()

	if hasCapturer {
		extra, err := capture(ctx, action)
		if err != nil {
			return nil, fmt.Errorf("capture state for %s: %w", action.Type, err)
		}
		for k, v := range extra {
			state[k] = v
		}
	}

	cp := &domain.RollbackCheckpoint{
		ID:         m.ids.NewID(),
		ActionID:   action.ID,
		DecisionID: d.ID,
		ActionType: action.Type,
		State:      state,
		CreatedAt:  now,
	}

	m.mu.Lock()
	m.sweepLocked(now)
	for len(m.checkpoints) >= m.cfg.MaxCheckpoints {
		oldest := m.oldestLocked()
		if oldest == nil {
			break
		}
		delete(m.checkpoints, oldest.ID)
		m.logger.Warn("checkpoint store full, evicted %s for action %s", oldest.ID, oldest.ActionID)
	}
	m.checkpoints[cp.ID] = cp
	m.mu.Unlock()

	m.logger.Info("checkpoint %s created for action %s (%s)", cp.ID, action.ID, action.Type)
	return cp, nil
}

// Rollback runs the handler registered for the checkpoint's action type and
// removes the checkpoint. A missing handler is logged and not an error.
func (m *Manager) Rollback(ctx context.Context, checkpointID string) error {
	m.mu.Lock()
	now := m.clock.Now()
	m.sweepLocked(now)
	cp, ok := m.checkpoints[checkpointID]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("rollback %s: %w", checkpointID, domain.ErrCheckpointNotFound)
	}
	// single-use: removed before the handler runs so concurrent calls cannot repeat it
	delete(m.checkpoints, checkpointID)
	handler, key, found := m.handlers.Lookup(cp.ActionType)
	m.mu.Unlock()

	if !found {
		m.logger.Warn("no rollback handler for %s, checkpoint %s cleared without restoring state: %v",
			cp.ActionType, cp.ID, cp.State[StateParams])
		return nil
	}

	m.logger.Info("rolling back action %s via handler %q", cp.ActionID, key)
	if err := handler(ctx, cp); err != nil {
		return fmt.Errorf("rollback handler %s for action %s: %w", key, cp.ActionID, err)
	}
	return nil
}

// RollbackByActionID rolls back the newest checkpoint for actionID.
func (m *Manager) RollbackByActionID(ctx context.Context, actionID string) error {
	m.mu.Lock()
	m.sweepLocked(m.clock.Now())
	var newest *domain.RollbackCheckpoint
	for _, cp := range m.checkpoints {
		if cp.ActionID == actionID && (newest == nil || cp.CreatedAt.After(newest.CreatedAt)) {
			newest = cp
		}
	}
	m.mu.Unlock()

	if newest == nil {
		return fmt.Errorf("rollback action %s: %w", actionID, domain.ErrCheckpointNotFound)
	}
	return m.Rollback(ctx, newest.ID)
}

// CanRollback reports whether a checkpoint younger than the TTL exists for actionID.
func (m *Manager) CanRollback(actionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock.Now()
	for _, cp := range m.checkpoints {
		if cp.ActionID == actionID && now.Sub(cp.CreatedAt) < m.cfg.TTL {
			return true
		}
	}
	return false
}

// GetCheckpoint returns a live checkpoint by id. Checkpoints past the TTL
// are swept first and reported as missing.
func (m *Manager) GetCheckpoint(id string) (*domain.RollbackCheckpoint, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweepLocked(m.clock.Now())
	cp, ok := m.checkpoints[id]
	if !ok {
		return nil, false
	}
	cpy := *cp
	return &cpy, true
}

// Checkpoints returns copies of the live checkpoints, newest first.
func (m *Manager) Checkpoints() []*domain.RollbackCheckpoint {
	m.mu.Lock()
	m.sweepLocked(m.clock.Now())
	out := make([]*domain.RollbackCheckpoint, 0, len(m.checkpoints))
	for _, cp := range m.checkpoints {
		cpy := *cp
		out = append(out, &cpy)
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

// SetConfig applies new limits; existing checkpoints are trimmed lazily.
func (m *Manager) SetConfig(cfg Config) {
	m.mu.Lock()
	m.cfg = cfg.withDefaults()
	m.mu.Unlock()
}

// Size returns the number of stored checkpoints.
func (m *Manager) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.checkpoints)
}

func (m *Manager) sweepLocked(now time.Time) {
	for id, cp := range m.checkpoints {
		if now.Sub(cp.CreatedAt) >= m.cfg.TTL {
			delete(m.checkpoints, id)
			m.logger.Debug("checkpoint %s expired", id)
		}
	}
}

func (m *Manager) oldestLocked() *domain.RollbackCheckpoint {
	var oldest *domain.RollbackCheckpoint
	for _, cp := range m.checkpoints {
		if oldest == nil || cp.CreatedAt.Before(oldest.CreatedAt) ||
			(cp.CreatedAt.Equal(oldest.CreatedAt) && cp.ID < oldest.ID) {
			oldest = cp
		}
	}
	return oldest
}

package notify

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kirillm/action-guard/internal/clock"
	"github.com/kirillm/action-guard/internal/domain"
	"github.com/kirillm/action-guard/internal/policy"
	"github.com/kirillm/action-guard/pkg/utils"
)

// Config dispatcher tunables.
type Config struct {
	RatePerMinute int
	SendTimeout   time.Duration
	Commands      CommandSet
}

// ConfigFromPolicy maps the policy section onto Config.
func ConfigFromPolicy(p policy.NotifyPolicy) Config {
	return Config{
		RatePerMinute: p.RatePerMinute,
		SendTimeout:   p.SendTimeout,
	}
}

func (c Config) withDefaults() Config {
	d := policy.Default().Notify
	if c.RatePerMinute <= 0 {
		c.RatePerMinute = d.RatePerMinute
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = d.SendTimeout
	}
	return c
}

type registered struct {
	ch      Channel
	enabled bool
}

// Dispatcher fans messages out to every enabled channel under a shared
// per-minute budget.
type Dispatcher struct {
	mu       sync.RWMutex
	channels []*registered
	cfg      Config

	limiter *WindowLimiter
	logger  *utils.Logger
}

// NewDispatcher creates a dispatcher with no channels.
func NewDispatcher(cfg Config, clk clock.Clock, logger *utils.Logger) *Dispatcher {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = utils.Default()
	}
	return &Dispatcher{
		cfg:     cfg,
		limiter: NewWindowLimiter(cfg.RatePerMinute, clk),
		logger:  logger.Component("notify"),
	}
}

// AddChannel registers ch.
func (d *Dispatcher) AddChannel(ch Channel, enabled bool) {
	d.mu.Lock()
	d.channels = append(d.channels, &registered{ch: ch, enabled: enabled})
	d.mu.Unlock()
}

// SetEnabled toggles a channel by name.
func (d *Dispatcher) SetEnabled(name string, enabled bool) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, r := range d.channels {
		if r.ch.Name() == name {
			r.enabled = enabled
			return true
		}
	}
	return false
}

// SetConfig applies new tunables; the current window count is kept.
func (d *Dispatcher) SetConfig(cfg Config) {
	cfg = cfg.withDefaults()
	d.mu.Lock()
	if cfg.Commands.Prefix == "" {
		cfg.Commands = d.cfg.Commands
	}
	d.cfg = cfg
	d.mu.Unlock()
	d.limiter.SetLimit(cfg.RatePerMinute)
}

// Remaining budget in the current minute.
func (d *Dispatcher) Remaining() int {
	return d.limiter.Remaining()
}

// NotifyApprovalNeeded announces a newly queued request.
func (d *Dispatcher) NotifyApprovalNeeded(ctx context.Context, req *domain.ApprovalRequest) bool {
	if req == nil || req.Decision == nil {
		return false
	}
	return d.dispatch(ctx, requestMessage(KindApprovalNeeded, req, d.commands()))
}

// NotifyEscalation re-announces an aging or critical request.
func (d *Dispatcher) NotifyEscalation(ctx context.Context, req *domain.ApprovalRequest) bool {
	if req == nil || req.Decision == nil {
		return false
	}
	return d.dispatch(ctx, requestMessage(KindEscalation, req, d.commands()))
}

// NotifyApprovalDecision reports a resolution; reason is optional.
func (d *Dispatcher) NotifyApprovalDecision(ctx context.Context, req *domain.ApprovalRequest, approved bool, reason string) bool {
	if req == nil || req.Decision == nil {
		return false
	}
	msg := requestMessage(KindDecision, req, d.commands())
	msg.Approved = approved
	msg.Reason = reason
	return d.dispatch(ctx, msg)
}

// SendDailySummary posts the day's aggregate.
func (d *Dispatcher) SendDailySummary(ctx context.Context, summary domain.DailySummary) bool {
	return d.dispatch(ctx, Message{Kind: KindDailySummary, Summary: &summary})
}

func (d *Dispatcher) commands() CommandSet {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cfg.Commands
}

func (d *Dispatcher) dispatch(ctx context.Context, msg Message) bool {
	d.mu.RLock()
	timeout := d.cfg.SendTimeout
	targets := make([]Channel, 0, len(d.channels))
	for _, r := range d.channels {
		if r.enabled {
			targets = append(targets, r.ch)
		}
	}
	d.mu.RUnlock()

	if len(targets) == 0 {
		d.logger.Debug("no enabled channels, %s not sent", msg.Kind)
		return false
	}
	if !d.limiter.Allow() {
		d.logger.Warn("rate limit reached, %s for %q dropped", msg.Kind, msg.RequestID)
		return false
	}

	var (
		g         errgroup.Group
		delivered atomic.Int32
	)
	for _, ch := range targets {
		ch := ch
		g.Go(func() error {
			sendCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			if err := safeSend(sendCtx, ch, msg); err != nil {
				d.logger.Error("channel %s (%s) failed to send %s: %v", ch.Name(), ch.Type(), msg.Kind, err)
				return nil
			}
			delivered.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	return delivered.Load() > 0
}

func safeSend(ctx context.Context, ch Channel, msg Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return ch.Send(ctx, msg)
}

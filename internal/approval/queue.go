package approval

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/kirillm/action-guard/internal/clock"
	"github.com/kirillm/action-guard/internal/domain"
	"github.com/kirillm/action-guard/internal/idgen"
	"github.com/kirillm/action-guard/internal/policy"
	"github.com/kirillm/action-guard/pkg/utils"
)

// SystemReviewer is recorded as reviewer for automatic transitions.
const SystemReviewer = "system"

var (
	// ErrNilDecision returned by Add for a nil decision.
	ErrNilDecision = errors.New("decision is nil")
)

// Config queue tunables.
type Config struct {
	MaxPending           int
	TTL                  time.Duration
	EscalateAfter        time.Duration
	AutoRejectAfter      time.Duration
	CriticalAutoEscalate bool
}

// ConfigFromPolicy maps the policy section onto Config.
func ConfigFromPolicy(p policy.QueuePolicy) Config {
	return Config{
		MaxPending:           p.MaxPending,
		TTL:                  p.TTL,
		EscalateAfter:        p.EscalateAfter,
		AutoRejectAfter:      p.AutoRejectAfter,
		CriticalAutoEscalate: p.CriticalAutoEscalate,
	}
}

func (c Config) withDefaults() Config {
	d := policy.Default().Queue
	if c.MaxPending <= 0 {
		c.MaxPending = d.MaxPending
	}
	if c.TTL <= 0 {
		c.TTL = d.TTL
	}
	return c
}

// Option configures a Queue.
type Option func(*Queue)

// WithClock overrides the clock.
func WithClock(c clock.Clock) Option {
	return func(q *Queue) { q.clock = clock.OrReal(c) }
}

// WithIDs overrides the id generator.
func WithIDs(g idgen.Generator) Option {
	return func(q *Queue) { q.ids = idgen.OrDefault(g) }
}

// WithBus uses an existing bus.
func WithBus(b *Bus) Option {
	return func(q *Queue) {
		if b != nil {
			q.bus = b
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *utils.Logger) Option {
	return func(q *Queue) {
		if l != nil {
			q.logger = l.Component("approval")
		}
	}
}

type entry struct {
	req *domain.ApprovalRequest
	seq uint64
}

// Queue holds decisions waiting for a human. All state is guarded by one
// mutex; events are published after it is released.
type Queue struct {
	mu         sync.Mutex
	cfg        Config
	items      map[string]*entry
	byDecision map[string]string
	nextSeq    uint64

	bus    *Bus
	clock  clock.Clock
	ids    idgen.Generator
	logger *utils.Logger
}

// NewQueue creates a queue.
func NewQueue(cfg Config, opts ...Option) *Queue {
	q := &Queue{
		cfg:        cfg.withDefaults(),
		items:      make(map[string]*entry),
		byDecision: make(map[string]string),
		bus:        NewBus(Hooks{}),
		clock:      clock.Real,
		ids:        idgen.Default{},
		logger:     utils.Default().Component("approval"),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Bus returns the event bus for subscriptions.
func (q *Queue) Bus() *Bus {
	return q.bus
}

// SetConfig replaces tunables; existing requests keep their expiry.
func (q *Queue) SetConfig(cfg Config) {
	q.mu.Lock()
	q.cfg = cfg.withDefaults()
	q.mu.Unlock()
}

// Add enqueues a decision. At capacity the lowest-priority pending request
// is evicted first. Adding a decision that is already pending returns the
// existing request.
func (q *Queue) Add(d *domain.Decision) (*domain.ApprovalRequest, error) {
	if d == nil {
		return nil, ErrNilDecision
	}

	q.mu.Lock()
	now := q.clock.Now()

	if id, ok := q.byDecision[d.ID]; ok {
		snap := q.items[id].req.Snapshot()
		q.mu.Unlock()
		return snap, nil
	}

	var events []Event
	for len(q.items) >= q.cfg.MaxPending {
		victim := q.lowestLocked()
		if victim == nil {
			break
		}
		victim.req.Status = domain.ApprovalExpired
		q.removeLocked(victim.req.ID)
		events = append(events, q.eventLocked(EventExpired, victim.req, ReasonEvicted, now))
		q.logger.Warn("queue full, evicted request %s priority=%.1f", victim.req.ID, victim.req.Priority)
	}

	req := &domain.ApprovalRequest{
		ID:                q.ids.NewID(),
		Decision:          d,
		Priority:          Priority(d),
		Urgency:           d.Action.Metadata.Urgency,
		ExpiresAt:         now.Add(q.cfg.TTL),
		NotificationsSent: make(map[string]bool),
		Status:            domain.ApprovalPending,
		CreatedAt:         now,
	}
	q.nextSeq++
	q.items[req.ID] = &entry{req: req, seq: q.nextSeq}
	q.byDecision[d.ID] = req.ID

	events = append(events,
		q.eventLocked(EventAdded, req, "", now),
		q.sizeEventLocked(now),
	)
	snap := req.Snapshot()
	q.mu.Unlock()

	q.logger.Info("queued request %s action=%s priority=%.1f", req.ID, d.Action.Type, req.Priority)
	q.publish(events)
	return snap, nil
}

// Approve resolves a pending request as approved and flips the decision
// outcome to auto_execute. Returns false if the id is not pending.
func (q *Queue) Approve(id, approvedBy, feedback string) (*domain.ApprovalRequest, bool) {
	return q.resolve(id, domain.ApprovalApproved, domain.OutcomeAutoExecute, approvedBy, feedback, EventApproved)
}

// Reject resolves a pending request as rejected. Returns false if the id is
// not pending.
func (q *Queue) Reject(id, reason, rejectedBy string) (*domain.ApprovalRequest, bool) {
	return q.resolve(id, domain.ApprovalRejected, domain.OutcomeReject, rejectedBy, reason, EventRejected)
}

func (q *Queue) resolve(id string, status domain.ApprovalStatus, outcome domain.Outcome, by, feedback string, evt EventType) (*domain.ApprovalRequest, bool) {
	q.mu.Lock()
	now := q.clock.Now()

	e, ok := q.items[id]
	if !ok {
		q.mu.Unlock()
		return nil, false
	}

	// past expiry but not yet swept
	if !now.Before(e.req.ExpiresAt) {
		events := q.expireLocked(e, now)
		q.mu.Unlock()
		q.publish(events)
		return nil, false
	}

	req := e.req
	req.Status = status
	req.ReviewedBy = by
	req.ReviewedAt = &now
	req.Feedback = feedback
	req.Decision.Resolve(outcome, by, now)
	q.removeLocked(id)

	events := []Event{
		q.eventLocked(evt, req, feedback, now),
		q.sizeEventLocked(now),
	}
	snap := req.Snapshot()
	q.mu.Unlock()

	q.logger.Info("request %s %s by %q", id, status, by)
	q.publish(events)
	return snap, true
}

// Escalate tags a pending request and emits escalated once per tag. The tag
// follows the reason: critical shares the tag of the critical sweep, a
// dangerous pattern has its own, anything else shares the age tag. A request
// past expiry is expired instead and false is returned.
func (q *Queue) Escalate(id, reason string) bool {
	tag := escalationTag(reason)

	q.mu.Lock()
	now := q.clock.Now()
	e, ok := q.items[id]
	if !ok {
		q.mu.Unlock()
		return false
	}
	if !now.Before(e.req.ExpiresAt) {
		events := q.expireLocked(e, now)
		q.mu.Unlock()
		q.publish(events)
		return false
	}
	if e.req.Sent(tag) {
		q.mu.Unlock()
		return false
	}
	e.req.NotificationsSent[tag] = true
	events := []Event{q.eventLocked(EventEscalated, e.req, reason, now)}
	q.mu.Unlock()

	q.publish(events)
	return true
}

// MarkNotified records tag on a pending request. Returns false if the
// request is gone or the tag was already set.
func (q *Queue) MarkNotified(id, tag string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.items[id]
	if !ok || e.req.Sent(tag) {
		return false
	}
	e.req.NotificationsSent[tag] = true
	return true
}

// Get returns a snapshot of a pending request.
func (q *Queue) Get(id string) (*domain.ApprovalRequest, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.items[id]
	if !ok {
		return nil, false
	}
	return e.req.Snapshot(), true
}

// Size returns the number of pending requests.
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// GetPending returns pending requests, highest priority first; equal
// priorities keep insertion order.
func (q *Queue) GetPending() []*domain.ApprovalRequest {
	q.mu.Lock()
	entries := q.sortedLocked()
	out := make([]*domain.ApprovalRequest, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.req.Snapshot())
	}
	q.mu.Unlock()
	return out
}

// Expire marks every pending request past its expiry as expired and
// removes it. Returns the expired requests.
func (q *Queue) Expire() []*domain.ApprovalRequest {
	q.mu.Lock()
	now := q.clock.Now()

	var events []Event
	var expired []*domain.ApprovalRequest
	for _, e := range q.sortedLocked() {
		if now.Before(e.req.ExpiresAt) {
			continue
		}
		expired = append(expired, e.req.Snapshot())
		events = append(events, q.expireEventsLocked(e, now)...)
	}
	if len(expired) > 0 {
		events = append(events, q.sizeEventLocked(now))
	}
	q.mu.Unlock()

	for _, r := range expired {
		q.logger.Info("request %s expired", r.ID)
	}
	q.publish(events)
	return expired
}

// CheckEscalations escalates aging and critical requests and auto-rejects
// requests older than AutoRejectAfter. A request crossing both thresholds
// in the same pass is rejected without an escalation event. Returns the
// requests escalated in this pass.
func (q *Queue) CheckEscalations() []*domain.ApprovalRequest {
	q.mu.Lock()
	now := q.clock.Now()
	cfg := q.cfg

	var events []Event
	var escalated []*domain.ApprovalRequest
	var rejected []string
	for _, e := range q.sortedLocked() {
		req := e.req
		age := req.Age(now)

		if cfg.AutoRejectAfter > 0 && age >= cfg.AutoRejectAfter {
			req.Status = domain.ApprovalRejected
			req.ReviewedBy = SystemReviewer
			req.ReviewedAt = &now
			req.Feedback = ReasonAutoRejected
			req.Decision.Resolve(domain.OutcomeReject, SystemReviewer, now)
			q.removeLocked(req.ID)
			events = append(events, q.eventLocked(EventRejected, req, ReasonAutoRejected, now))
			rejected = append(rejected, req.ID)
			continue
		}

		fired := false
		if cfg.EscalateAfter > 0 && age >= cfg.EscalateAfter && !req.Sent(domain.TagEscalation) {
			req.NotificationsSent[domain.TagEscalation] = true
			events = append(events, q.eventLocked(EventEscalated, req, ReasonAge, now))
			fired = true
		}
		if cfg.CriticalAutoEscalate && req.Decision.Assessment.Level == domain.RiskCritical && !req.Sent(domain.TagCriticalEscalation) {
			req.NotificationsSent[domain.TagCriticalEscalation] = true
			events = append(events, q.eventLocked(EventEscalated, req, ReasonCritical, now))
			fired = true
		}
		if fired {
			escalated = append(escalated, req.Snapshot())
		}
	}
	if len(rejected) > 0 {
		events = append(events, q.sizeEventLocked(now))
	}
	q.mu.Unlock()

	for _, id := range rejected {
		q.logger.Warn("request %s %s", id, ReasonAutoRejected)
	}
	q.publish(events)
	return escalated
}

// Sweep runs expiration then escalation checks.
func (q *Queue) Sweep() (expired, escalated []*domain.ApprovalRequest) {
	expired = q.Expire()
	escalated = q.CheckEscalations()
	return expired, escalated
}

func escalationTag(reason string) string {
	switch reason {
	case ReasonCritical:
		return domain.TagCriticalEscalation
	case ReasonPattern:
		return domain.TagPatternEscalation
	default:
		return domain.TagEscalation
	}
}

func (q *Queue) expireLocked(e *entry, now time.Time) []Event {
	events := q.expireEventsLocked(e, now)
	return append(events, q.sizeEventLocked(now))
}

func (q *Queue) expireEventsLocked(e *entry, now time.Time) []Event {
	e.req.Status = domain.ApprovalExpired
	q.removeLocked(e.req.ID)
	return []Event{q.eventLocked(EventExpired, e.req, ReasonTTL, now)}
}

func (q *Queue) removeLocked(id string) {
	if e, ok := q.items[id]; ok {
		delete(q.byDecision, e.req.Decision.ID)
		delete(q.items, id)
	}
}

// lowestLocked picks the lowest priority; among equals the oldest.
func (q *Queue) lowestLocked() *entry {
	var victim *entry
	for _, e := range q.items {
		if victim == nil ||
			e.req.Priority < victim.req.Priority ||
			(e.req.Priority == victim.req.Priority && e.seq < victim.seq) {
			victim = e
		}
	}
	return victim
}

func (q *Queue) sortedLocked() []*entry {
	entries := make([]*entry, 0, len(q.items))
	for _, e := range q.items {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.req.Priority != b.req.Priority {
			return a.req.Priority > b.req.Priority
		}
		if !a.req.CreatedAt.Equal(b.req.CreatedAt) {
			return a.req.CreatedAt.Before(b.req.CreatedAt)
		}
		return a.seq < b.seq
	})
	return entries
}

func (q *Queue) eventLocked(t EventType, req *domain.ApprovalRequest, reason string, now time.Time) Event {
	return Event{
		Type:      t,
		Request:   req.Snapshot(),
		Reason:    reason,
		Size:      len(q.items),
		Timestamp: now,
	}
}

func (q *Queue) sizeEventLocked(now time.Time) Event {
	return Event{
		Type:      EventQueueSizeChanged,
		Size:      len(q.items),
		Timestamp: now,
	}
}

func (q *Queue) publish(events []Event) {
	for _, e := range events {
		q.bus.Publish(e)
	}
}

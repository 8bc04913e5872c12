package approval

import (
	"sync"
	"time"

	"github.com/kirillm/action-guard/internal/domain"
)

// EventType lifecycle event name.
type EventType string

const (
	EventAdded            EventType = "added"
	EventApproved         EventType = "approved"
	EventRejected         EventType = "rejected"
	EventExpired          EventType = "expired"
	EventEscalated        EventType = "escalated"
	EventQueueSizeChanged EventType = "queue-size-changed"
)

// Reasons carried by expired and escalated events.
const (
	ReasonTTL          = "ttl"
	ReasonEvicted      = "evicted"
	ReasonAge          = "age"
	ReasonCritical     = "critical"
	ReasonManual       = "manual"
	ReasonPattern      = "dangerous-pattern"
	ReasonAutoRejected = "auto-rejected due to age"
)

// Event is published after the queue state change it describes is complete.
// Request is a snapshot and is nil for queue-size-changed.
type Event struct {
	Type      EventType
	Request   *domain.ApprovalRequest
	Reason    string
	Size      int
	Timestamp time.Time
}

// Listener receives events synchronously on the publishing goroutine.
type Listener func(Event)

// Hooks observe bus internals.
type Hooks struct {
	OnPublish func(Event)
	OnDrop    func(Event)
	OnPanic   func(Event, interface{})
}

type subscription struct {
	id     uint64
	filter EventType // empty means all
	fn     Listener
}

// Bus fans events out to listeners in subscription order. A panicking
// listener is recovered and does not affect other listeners.
type Bus struct {
	mu     sync.RWMutex
	subs   []subscription
	nextID uint64
	hooks  Hooks
}

// NewBus creates an event bus.
func NewBus(hooks Hooks) *Bus {
	return &Bus{hooks: hooks}
}

// Subscribe registers fn for one event type. Returns an unsubscribe func.
func (b *Bus) Subscribe(t EventType, fn Listener) func() {
	return b.add(t, fn)
}

// SubscribeAll registers fn for every event type.
func (b *Bus) SubscribeAll(fn Listener) func() {
	return b.add("", fn)
}

func (b *Bus) add(filter EventType, fn Listener) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, filter: filter, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for i, s := range b.subs {
				if s.id == id {
					b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Stream returns a buffered channel receiving every event. Events are dropped
// (and reported to OnDrop) when the buffer is full. cancel closes the channel.
func (b *Bus) Stream(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 100
	}
	ch := make(chan Event, buffer)

	var mu sync.Mutex
	closed := false

	unsubscribe := b.SubscribeAll(func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case ch <- e:
		default:
			if b.hooks.OnDrop != nil {
				b.hooks.OnDrop(e)
			}
		}
	})

	cancel := func() {
		unsubscribe()
		mu.Lock()
		defer mu.Unlock()
		if !closed {
			closed = true
			close(ch)
		}
	}
	return ch, cancel
}

// Publish delivers e to matching listeners.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	subs := make([]subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	if b.hooks.OnPublish != nil {
		b.hooks.OnPublish(e)
	}

	for _, s := range subs {
		if s.filter != "" && s.filter != e.Type {
			continue
		}
		b.deliver(s.fn, e)
	}
}

func (b *Bus) deliver(fn Listener, e Event) {
	defer func() {
		if r := recover(); r != nil && b.hooks.OnPanic != nil {
			b.hooks.OnPanic(e, r)
		}
	}()
	fn(e)
}

package notify

import (
	"context"
	"sync"

	"github.com/kirillm/action-guard/internal/approval"
	"github.com/kirillm/action-guard/internal/domain"
	"github.com/kirillm/action-guard/pkg/utils"
)

// Notifier is the dispatcher surface the subscriber drives.
type Notifier interface {
	NotifyApprovalNeeded(ctx context.Context, req *domain.ApprovalRequest) bool
	NotifyEscalation(ctx context.Context, req *domain.ApprovalRequest) bool
	NotifyApprovalDecision(ctx context.Context, req *domain.ApprovalRequest, approved bool, reason string) bool
}

// Marker records delivered notification tags on a pending request.
type Marker interface {
	MarkNotified(id, tag string) bool
}

// Subscriber consumes queue events on its own goroutine so slow channels
// never hold up queue transitions.
type Subscriber struct {
	notifier Notifier
	marker   Marker
	logger   *utils.Logger

	events <-chan approval.Event
	cancel func()

	ctx     context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup
	closeMu sync.Once
}

// Attach subscribes n to bus. marker may be nil.
func Attach(bus *approval.Bus, n Notifier, marker Marker, buffer int, logger *utils.Logger) *Subscriber {
	if logger == nil {
		logger = utils.Default()
	}
	events, cancel := bus.Stream(buffer)
	ctx, stop := context.WithCancel(context.Background())

	s := &Subscriber{
		notifier: n,
		marker:   marker,
		logger:   logger.Component("notify-subscriber"),
		events:   events,
		cancel:   cancel,
		ctx:      ctx,
		stop:     stop,
	}

	s.wg.Add(1)
	go s.run()
	return s
}

// Close stops the subscription and waits for in-flight events to drain.
func (s *Subscriber) Close() {
	s.closeMu.Do(func() {
		s.cancel()
		s.wg.Wait()
		s.stop()
	})
}

func (s *Subscriber) run() {
	defer s.wg.Done()
	for e := range s.events {
		s.handle(e)
	}
}

func (s *Subscriber) handle(e approval.Event) {
	if e.Request == nil {
		return
	}

	switch e.Type {
	case approval.EventAdded:
		if s.notifier.NotifyApprovalNeeded(s.ctx, e.Request) && s.marker != nil {
			s.marker.MarkNotified(e.Request.ID, domain.TagApprovalNeeded)
		}
	case approval.EventEscalated:
		s.notifier.NotifyEscalation(s.ctx, e.Request)
	case approval.EventApproved:
		s.notifier.NotifyApprovalDecision(s.ctx, e.Request, true, e.Request.Feedback)
	case approval.EventRejected:
		s.notifier.NotifyApprovalDecision(s.ctx, e.Request, false, e.Request.Feedback)
	case approval.EventExpired:
		s.notifier.NotifyApprovalDecision(s.ctx, e.Request, false, "expired: "+e.Reason)
	default:
		s.logger.Debug("ignoring %s event", e.Type)
	}
}

package storage

import (
	"context"
	"sync"
	"time"

	"github.com/kirillm/action-guard/internal/approval"
	"github.com/kirillm/action-guard/internal/domain"
	"github.com/kirillm/action-guard/pkg/utils"
)

const recordTimeout = 5 * time.Second

// EventRecorder пишет события очереди в журнал в отдельной горутине,
// чтобы запись в БД не задерживала approve/reject.
type EventRecorder struct {
	repo   domain.ApprovalEventRepository
	logger *utils.Logger

	cancel func()
	done   chan struct{}
	once   sync.Once
}

// NewEventRecorder подписывается на bus. Событие queue-size-changed не пишется.
func NewEventRecorder(bus *approval.Bus, repo domain.ApprovalEventRepository, buffer int, logger *utils.Logger) *EventRecorder {
	if logger == nil {
		logger = utils.Default()
	}
	events, cancel := bus.Stream(buffer)
	r := &EventRecorder{
		repo:   repo,
		logger: logger.Component("audit"),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go r.run(events)
	return r
}

func (r *EventRecorder) run(events <-chan approval.Event) {
	defer close(r.done)
	for e := range events {
		rec, ok := EventRecord(e)
		if !ok {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		if err := r.repo.Save(ctx, rec); err != nil {
			r.logger.Warn("failed to save %s event for %s: %v", rec.EventType, rec.RequestID, err)
		}
		cancel()
	}
}

// Close отписывается и дожидается записи оставшихся событий
func (r *EventRecorder) Close() {
	r.once.Do(func() {
		r.cancel()
		<-r.done
	})
}

// EventRecord переводит событие очереди в строку журнала
func EventRecord(e approval.Event) (*domain.ApprovalEventRecord, bool) {
	if e.Request == nil {
		return nil, false
	}
	req := e.Request
	rec := &domain.ApprovalEventRecord{
		EventType: string(e.Type),
		RequestID: req.ID,
		Status:    string(req.Status),
		QueueSize: e.Size,
		CreatedAt: e.Timestamp,
	}
	if req.Decision != nil {
		rec.DecisionID = req.Decision.ID
	}
	if req.ReviewedBy != "" {
		by := req.ReviewedBy
		rec.Actor = &by
	}
	if e.Reason != "" {
		reason := e.Reason
		rec.Reason = &reason
	}
	return rec, true
}

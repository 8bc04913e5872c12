package approval

import (
	"context"
	"sync"
	"time"

	"github.com/kirillm/action-guard/pkg/utils"
)

// Sweeper periodically runs Queue.Sweep.
type Sweeper struct {
	queue    *Queue
	interval time.Duration
	logger   *utils.Logger

	mu       sync.Mutex
	stopChan chan struct{}
	done     chan struct{}
}

// NewSweeper creates a sweeper; interval <= 0 means hourly.
func NewSweeper(queue *Queue, interval time.Duration, logger *utils.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	if logger == nil {
		logger = utils.Default()
	}
	return &Sweeper{
		queue:    queue,
		interval: interval,
		logger:   logger.Component("sweeper"),
	}
}

// Start launches the sweep loop. Calling Start twice is a no-op.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopChan != nil {
		return
	}
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	go s.run(ctx, s.stopChan, s.done)
	s.logger.Info("queue sweeper started, interval=%s", s.interval)
}

// Stop halts the loop and waits for it to exit.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	stop, done := s.stopChan, s.done
	s.stopChan, s.done = nil, nil
	s.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
	s.logger.Info("queue sweeper stopped")
}

func (s *Sweeper) run(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			expired, escalated := s.queue.Sweep()
			if len(expired) > 0 || len(escalated) > 0 {
				s.logger.Info("sweep: expired=%d escalated=%d pending=%d", len(expired), len(escalated), s.queue.Size())
			}
		case <-stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

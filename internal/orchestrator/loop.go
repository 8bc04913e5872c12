package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/kirillm/action-guard/internal/domain"
)

// Start запускает фоновую проверку очереди и цикл дневной сводки
func (o *Orchestrator) Start(ctx context.Context) error {
	o.runMu.Lock()
	defer o.runMu.Unlock()
	if o.isRunning {
		return fmt.Errorf("orchestrator already running")
	}

	o.isRunning = true
	o.stopChan = make(chan struct{})
	o.done = make(chan struct{})
	o.sweeper.Start(ctx)
	go o.run(ctx, o.stopChan, o.done)

	o.logger.Info("🚀 Orchestrator started in %s mode", o.GetMode())
	return nil
}

// Stop останавливает orchestrator
func (o *Orchestrator) Stop() {
	o.runMu.Lock()
	if !o.isRunning {
		o.runMu.Unlock()
		return
	}
	o.isRunning = false
	stop, done := o.stopChan, o.done
	o.runMu.Unlock()

	o.logger.Info("🛑 Stopping orchestrator...")
	close(stop)
	<-done
	o.sweeper.Stop()
	o.logger.Info("✅ Orchestrator stopped")
}

// IsRunning проверяет запущен ли orchestrator
func (o *Orchestrator) IsRunning() bool {
	o.runMu.Lock()
	defer o.runMu.Unlock()
	return o.isRunning
}

// run ждет часа сводки; таймер перевзводится после каждой отправки
func (o *Orchestrator) run(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	for {
		wait := o.NextSummaryAt(o.clock.Now()).Sub(o.clock.Now())
		timer := time.NewTimer(wait)

		select {
		case <-timer.C:
			o.SendSummary(ctx)
		case <-stop:
			timer.Stop()
			return
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}

// NextSummaryAt момент следующей отправки сводки после now
func (o *Orchestrator) NextSummaryAt(now time.Time) time.Time {
	local := now.In(o.cfg.Location)
	at := time.Date(local.Year(), local.Month(), local.Day(), o.cfg.SummaryHour, 0, 0, 0, o.cfg.Location)
	if !at.After(now) {
		at = time.Date(local.Year(), local.Month(), local.Day()+1, o.cfg.SummaryHour, 0, 0, 0, o.cfg.Location)
	}
	return at
}

// SendSummary закрывает прошедший день и отправляет его сводку один раз.
// Возвращает true если сводка ушла хотя бы в один канал.
func (o *Orchestrator) SendSummary(ctx context.Context) bool {
	o.stats.Roll()

	o.mu.Lock()
	summary := o.lastClosed
	if summary.Date.IsZero() || summary.Date.Equal(o.summarySent) {
		o.mu.Unlock()
		return false
	}
	o.summarySent = summary.Date
	o.mu.Unlock()

	if o.summaries == nil {
		o.logger.Info("📊 Daily summary %s: auto=%d queued=%d approved=%d rejected=%d",
			summary.Date.Format("2006-01-02"), summary.AutoExecuted, summary.Queued, summary.Approved, summary.Rejected)
		return false
	}
	return o.summaries.SendDailySummary(ctx, summary)
}

func (o *Orchestrator) dayClosed(s domain.DailySummary) {
	o.mu.Lock()
	o.lastClosed = s
	o.mu.Unlock()
	o.logger.Info("day %s closed: %d actions", s.Date.Format("2006-01-02"), s.Total())
}

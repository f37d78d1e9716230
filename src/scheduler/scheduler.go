package scheduler

import (
	"context"
	"time"

	"github.com/plutusgrip/backend/src/logger"
	"github.com/plutusgrip/backend/src/services"
)

// Scheduler periodically runs the recurring-transaction due pass. It is the
// in-process stand-in for an external cron trigger; the due pass itself
// guards against overlapping invocations.
type Scheduler struct {
	recurringService *services.RecurringService
	checkInterval    time.Duration
	notifyCh         chan struct{}
}

func New(recurringService *services.RecurringService, checkInterval time.Duration) *Scheduler {
	return &Scheduler{
		recurringService: recurringService,
		checkInterval:    checkInterval,
		notifyCh:         make(chan struct{}, 1),
	}
}

// Notify triggers an immediate pass. Non-blocking if one is already pending.
func (s *Scheduler) Notify() {
	select {
	case s.notifyCh <- struct{}{}:
	default:
		// A notification is already pending, skip
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	logger.L.Info("Recurring transaction scheduler started", "interval", s.checkInterval.String())
	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	// Run the first pass shortly after startup, once migrations settled.
	select {
	case <-ctx.Done():
		return
	case <-time.After(2 * time.Second):
	}
	s.runPass()

	for {
		select {
		case <-ctx.Done():
			logger.L.Info("Recurring transaction scheduler stopped")
			return
		case <-ticker.C:
			s.runPass()
		case <-s.notifyCh:
			logger.L.Info("Recurring transaction scheduler triggered by notification")
			s.runPass()
		}
	}
}

func (s *Scheduler) runPass() {
	today := time.Now().Format("2006-01-02")
	created, err := s.recurringService.RunDuePass(today)
	if err != nil {
		// The pass is all-or-nothing; the next tick retries it.
		logger.L.Error("Recurring due pass failed", "date", today, "error", err)
		return
	}
	if created > 0 {
		logger.L.Info("Recurring transactions materialized", "date", today, "created", created)
	}
}

package housekeeping

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Scheduler runs the housekeeping sweep on a cron schedule.
type Scheduler struct {
	cron   *cron.Cron
	svc    *Service
	logger *slog.Logger
}

func NewScheduler(svc *Service, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		svc:    svc,
		logger: logger.With("component", "housekeeping-scheduler"),
	}
}

// Start registers the sweep under the given cron expression and starts the
// scheduler. An invalid expression is a startup error, not a skipped entry.
func (s *Scheduler) Start(schedule string) error {
	_, err := s.cron.AddFunc(schedule, func() {
		if _, err := s.svc.Sweep(context.Background()); err != nil {
			s.logger.Warn("scheduled sweep failed", "error", err)
		}
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("housekeeping scheduler started", "schedule", schedule)
	return nil
}

// Stop stops the scheduler; a sweep already in flight finishes.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.logger.Info("housekeeping scheduler stopped")
}

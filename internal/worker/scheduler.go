package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Scheduler runs named jobs on cron schedules. Jobs receive the context
// passed to Start.
type Scheduler struct {
	cron   *cron.Cron
	logger zerolog.Logger
	ctx    context.Context
}

// NewScheduler creates a stopped scheduler.
func NewScheduler(logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		logger: logger,
		ctx:    context.Background(),
	}
}

// Add schedules job under name. spec uses the standard five-field cron
// syntax or descriptors such as "@every 1m".
func (s *Scheduler) Add(name, spec string, job func(ctx context.Context)) error {
	_, err := s.cron.AddFunc(spec, func() {
		start := time.Now()
		s.logger.Debug().Str("job", name).Msg("cron job running")
		job(s.ctx)
		s.logger.Debug().Str("job", name).Dur("duration", time.Since(start)).Msg("cron job finished")
	})
	if err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}
	return nil
}

// Start begins running scheduled jobs in the background.
func (s *Scheduler) Start(ctx context.Context) {
	s.ctx = ctx
	s.cron.Start()
}

// Stop halts the schedule and waits for running jobs until ctx ends.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn().Msg("cron jobs still running at shutdown")
	}
}

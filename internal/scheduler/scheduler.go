// Package scheduler runs the pipeline periodically.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"
)

// Runner performs one complete refresh.
type Runner interface {
	RunOnce(ctx context.Context) error
}

// Scheduler runs a Runner at start and then every interval. Runs never
// overlap: a tick that fires while a run is in progress is skipped.
type Scheduler struct {
	scheduler *gocron.Scheduler
	runner    Runner
	interval  time.Duration
	logger    *slog.Logger
	cancel    context.CancelFunc
}

// New creates a Scheduler.
func New(interval time.Duration, runner Runner, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		runner:    runner,
		interval:  interval,
		logger:    logger,
	}
}

// Start schedules the job and starts the scheduler in the background. Runs
// receive a context derived from ctx that Stop cancels.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.interval <= 0 {
		return errors.New("scheduler: interval must be positive")
	}
	ctx, s.cancel = context.WithCancel(ctx)

	_, err := s.scheduler.Every(s.interval).SingletonMode().StartImmediately().Do(func() {
		start := time.Now()
		s.logger.Info("scheduled run starting")
		if err := s.runner.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				s.logger.Info("scheduled run interrupted", "reason", ctx.Err())
				return
			}
			s.logger.Error("scheduled run failed", "error", err)
			return
		}
		s.logger.Info("scheduled run finished", "elapsed", time.Since(start).Round(time.Millisecond).String())
	})
	if err != nil {
		s.cancel()
		return err
	}

	s.scheduler.StartAsync()
	s.logger.Info("scheduler started", "interval", s.interval.String())
	return nil
}

// Stop cancels the in-flight run and stops future ones.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.scheduler.Stop()
}

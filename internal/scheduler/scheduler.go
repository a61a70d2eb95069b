package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"skyhero/internal/infra"
)

// Runner is the pipeline surface driven on a schedule.
type Runner interface {
	RunMonitor(ctx context.Context) bool
	CreateBackup(ctx context.Context) error
}

// Scheduler fires the monitor and backup jobs. A job still running when its
// next tick arrives is skipped rather than queued.
type Scheduler struct {
	cron   *cron.Cron
	runner Runner
	logger zerolog.Logger
}

func New(runner Runner, loc *time.Location, logger zerolog.Logger) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	cl := infra.CronLogger{Logger: logger}
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		runner: runner,
		logger: logger,
	}
}

// Register adds both jobs. ctx bounds every run.
func (s *Scheduler) Register(ctx context.Context, monitorSpec, backupSpec string) error {
	if _, err := s.cron.AddFunc(monitorSpec, func() { s.monitor(ctx) }); err != nil {
		return fmt.Errorf("scheduler: monitor schedule %q: %w", monitorSpec, err)
	}
	if _, err := s.cron.AddFunc(backupSpec, func() { s.backup(ctx) }); err != nil {
		return fmt.Errorf("scheduler: backup schedule %q: %w", backupSpec, err)
	}
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info().Int("jobs", len(s.cron.Entries())).Msg("scheduler: started")
}

// Stop prevents new runs and waits for running jobs to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info().Msg("scheduler: stopped")
}

func (s *Scheduler) monitor(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if !s.runner.RunMonitor(ctx) {
		s.logger.Error().Msg("scheduler: monitor run failed")
	}
}

func (s *Scheduler) backup(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if err := s.runner.CreateBackup(ctx); err != nil {
		s.logger.Error().Err(err).Msg("scheduler: backup failed")
	}
}

package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type countingRunner struct {
	monitors atomic.Int32
	backups  atomic.Int32
	block    chan struct{}
}

func (r *countingRunner) RunMonitor(context.Context) bool {
	r.monitors.Add(1)
	if r.block != nil {
		<-r.block
	}
	return true
}

func (r *countingRunner) CreateBackup(context.Context) error {
	r.backups.Add(1)
	return errors.New("disk full")
}

func TestRegisterRejectsBadSchedule(t *testing.T) {
	s := New(&countingRunner{}, time.UTC, zerolog.Nop())
	if err := s.Register(context.Background(), "not a schedule", "0 3 * * *"); err == nil {
		t.Fatal("Register accepted an invalid monitor schedule")
	}
}

func TestJobsInvokeRunner(t *testing.T) {
	runner := &countingRunner{}
	s := New(runner, time.UTC, zerolog.Nop())
	if err := s.Register(context.Background(), "*/5 * * * *", "0 3 * * *"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	entries := s.cron.Entries()
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	for _, e := range entries {
		e.WrappedJob.Run()
	}
	if runner.monitors.Load() != 1 || runner.backups.Load() != 1 {
		t.Fatalf("monitors=%d backups=%d, want 1 each", runner.monitors.Load(), runner.backups.Load())
	}
}

func TestOverlappingMonitorIsSkipped(t *testing.T) {
	runner := &countingRunner{block: make(chan struct{})}
	s := New(runner, time.UTC, zerolog.Nop())
	if err := s.Register(context.Background(), "*/5 * * * *", "0 3 * * *"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	job := s.cron.Entries()[0].WrappedJob

	done := make(chan struct{})
	go func() {
		job.Run()
		close(done)
	}()
	for runner.monitors.Load() == 0 {
		time.Sleep(time.Millisecond)
	}
	job.Run() // returns immediately: first run still holds the slot
	close(runner.block)
	<-done
	if got := runner.monitors.Load(); got != 1 {
		t.Fatalf("monitor runs = %d, want 1", got)
	}
}

func TestCancelledContextSkipsRuns(t *testing.T) {
	runner := &countingRunner{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := New(runner, time.UTC, zerolog.Nop())
	if err := s.Register(ctx, "*/5 * * * *", "0 3 * * *"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	for _, e := range s.cron.Entries() {
		e.WrappedJob.Run()
	}
	if runner.monitors.Load() != 0 || runner.backups.Load() != 0 {
		t.Fatal("jobs ran after cancellation")
	}
}

package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is one periodic unit of work.
type Job func(ctx context.Context) error

// Scheduler runs named jobs on fixed intervals. Overlapping runs of the same
// job are allowed; jobs must tolerate that.
type Scheduler struct {
	cron    *cron.Cron
	baseCtx context.Context
}

// New creates a Scheduler whose jobs receive baseCtx.
func New(baseCtx context.Context) *Scheduler {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	return &Scheduler{cron: cron.New(), baseCtx: baseCtx}
}

// Every registers job to run every interval.
func (s *Scheduler) Every(name string, interval time.Duration, job Job) error {
	if interval <= 0 {
		return fmt.Errorf("scheduler.Every: %s: interval must be positive", name)
	}
	_, err := s.cron.AddFunc("@every "+interval.String(), func() {
		s.run(name, job)
	})
	if err != nil {
		return fmt.Errorf("scheduler.Every: %s: %w", name, err)
	}
	return nil
}

// RunOnce runs job immediately in the calling goroutine, logging its error
// the same way scheduled runs do.
func (s *Scheduler) RunOnce(name string, job Job) {
	s.run(name, job)
}

func (s *Scheduler) run(name string, job Job) {
	if s.baseCtx.Err() != nil {
		return
	}
	start := time.Now()
	if err := job(s.baseCtx); err != nil {
		slog.Error("scheduler: job failed", "job", name, "err", err, "elapsed", time.Since(start).Round(time.Millisecond))
		return
	}
	slog.Debug("scheduler: job done", "job", name, "elapsed", time.Since(start).Round(time.Millisecond))
}

// Start begins scheduling in the background.
func (s *Scheduler) Start() {
	slog.Info("scheduler: started", "jobs", len(s.cron.Entries()))
	s.cron.Start()
}

// Stop stops scheduling and waits for running jobs to return.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	slog.Info("scheduler: stopped")
}

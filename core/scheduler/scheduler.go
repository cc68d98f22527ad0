package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/kilianp07/bikeflow/core/logger"
	coremon "github.com/kilianp07/bikeflow/core/monitoring"
)

// Job is the work triggered on every tick.
type Job func(ctx context.Context) error

// ErrSkipped may be returned by a Job that declined to run, for instance
// because a previous run is still active. It is logged at debug level.
var ErrSkipped = errors.New("run skipped")

// Scheduler runs a Job periodically.
type Scheduler struct {
	cfg   Config
	job   Job
	log   logger.Logger
	every time.Duration
}

// New creates a Scheduler for job.
func New(cfg Config, job Job, log logger.Logger) *Scheduler {
	return &Scheduler{cfg: cfg, job: job, log: log, every: cfg.Interval()}
}

// Start launches the loop and returns a channel closed once it has stopped.
// A disabled scheduler returns an already closed channel.
func (s *Scheduler) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	if !s.cfg.Enabled || s.every <= 0 {
		close(done)
		return done
	}
	go func() {
		defer close(done)
		defer coremon.Recover()
		s.log.Infof("scheduler started: every %s", s.every)
		if s.cfg.RunOnStart {
			s.runOnce(ctx)
		}
		t := time.NewTicker(s.every)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				s.log.Infof("scheduler stopped")
				return
			case <-t.C:
				s.runOnce(ctx)
			}
		}
	}()
	return done
}

func (s *Scheduler) runOnce(ctx context.Context) {
	err := s.job(ctx)
	switch {
	case err == nil:
	case errors.Is(err, ErrSkipped):
		s.log.Debugf("scheduled run skipped: %v", err)
	case ctx.Err() != nil:
		s.log.Debugf("scheduled run interrupted: %v", err)
	default:
		s.log.Errorf("scheduled run failed: %v", err)
	}
}

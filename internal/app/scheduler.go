package app

import (
	"context"
	"sync"
	"time"

	"notetree/internal/tree"
)

// Scheduler tracks interval jobs without owning a timer. The caller (a CLI
// watch loop, a cron entry, a host application tick) decides when to call
// RunPending; the scheduler only answers "what is due" and "when is the
// next thing due".
type Scheduler struct {
	mu     sync.Mutex
	jobs   []*job
	logger tree.Logger
	clock  tree.Clock
}

type job struct {
	name     string
	interval time.Duration
	run      func(ctx context.Context) error
	lastRun  time.Time
}

func NewScheduler(logger tree.Logger, clock tree.Clock) *Scheduler {
	return &Scheduler{logger: logger, clock: clock}
}

// Schedule registers a job. The first run becomes due one full interval
// after registration.
func (s *Scheduler) Schedule(name string, interval time.Duration, run func(ctx context.Context) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, &job{
		name:     name,
		interval: interval,
		run:      run,
		lastRun:  s.clock.Now(),
	})
}

// Next returns the earliest time any job becomes due. ok is false when no
// jobs are registered.
func (s *Scheduler) Next() (next time.Time, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		due := j.lastRun.Add(j.interval)
		if !ok || due.Before(next) {
			next, ok = due, true
		}
	}
	return next, ok
}

// RunPending runs every job whose interval has elapsed and returns the
// number of jobs run. A failing job is logged and rescheduled for a full
// interval later; one bad job must not starve the rest.
func (s *Scheduler) RunPending(ctx context.Context) int {
	now := s.clock.Now()

	s.mu.Lock()
	var due []*job
	for _, j := range s.jobs {
		if !now.Before(j.lastRun.Add(j.interval)) {
			j.lastRun = now
			due = append(due, j)
		}
	}
	s.mu.Unlock()

	for _, j := range due {
		if err := j.run(ctx); err != nil {
			s.logger.Error("scheduled job failed", "job", j.name, "error", err)
			continue
		}
		s.logger.Info("scheduled job completed", "job", j.name)
	}
	return len(due)
}

package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"notetree/internal/testutil"
	"notetree/internal/tree"
)

func TestSchedulerRunPending(t *testing.T) {
	clock := testutil.FixedClock()
	s := NewScheduler(tree.NewNopLogger(), clock)

	var runs int
	s.Schedule("optimize", time.Hour, func(ctx context.Context) error {
		runs++
		return nil
	})

	if got := s.RunPending(context.Background()); got != 0 {
		t.Errorf("RunPending() before interval = %d jobs, want 0", got)
	}

	clock.Advance(time.Hour)
	if got := s.RunPending(context.Background()); got != 1 {
		t.Errorf("RunPending() after interval = %d jobs, want 1", got)
	}
	if runs != 1 {
		t.Errorf("job ran %d times, want 1", runs)
	}

	// The job was just run; it is not due again until another interval.
	if got := s.RunPending(context.Background()); got != 0 {
		t.Errorf("RunPending() immediately after run = %d jobs, want 0", got)
	}

	clock.Advance(time.Hour)
	s.RunPending(context.Background())
	if runs != 2 {
		t.Errorf("job ran %d times after second interval, want 2", runs)
	}
}

func TestSchedulerFailingJobDoesNotStarveOthers(t *testing.T) {
	clock := testutil.FixedClock()
	s := NewScheduler(tree.NewNopLogger(), clock)

	var okRuns int
	s.Schedule("bad", time.Hour, func(ctx context.Context) error {
		return errors.New("boom")
	})
	s.Schedule("good", time.Hour, func(ctx context.Context) error {
		okRuns++
		return nil
	})

	clock.Advance(time.Hour)
	if got := s.RunPending(context.Background()); got != 2 {
		t.Errorf("RunPending() = %d jobs, want 2", got)
	}
	if okRuns != 1 {
		t.Errorf("healthy job ran %d times, want 1", okRuns)
	}

	// The failed job waits a full interval before its retry.
	if got := s.RunPending(context.Background()); got != 0 {
		t.Errorf("RunPending() right after failure = %d jobs, want 0", got)
	}
}

func TestSchedulerNext(t *testing.T) {
	clock := testutil.FixedClock()
	s := NewScheduler(tree.NewNopLogger(), clock)

	if _, ok := s.Next(); ok {
		t.Error("Next() on empty scheduler reported a due time")
	}

	start := clock.Now()
	s.Schedule("daily", 24*time.Hour, func(ctx context.Context) error { return nil })
	s.Schedule("hourly", time.Hour, func(ctx context.Context) error { return nil })

	next, ok := s.Next()
	if !ok {
		t.Fatal("Next() found no jobs")
	}
	if want := start.Add(time.Hour); !next.Equal(want) {
		t.Errorf("Next() = %v, want %v", next, want)
	}
}

package tree

import "context"

// WriterLock serializes multi-step write operations (bulk inserts, rebuild,
// migration) against each other. Point reads never take it. The lock is a
// constructor-injected dependency rather than ambient state so tests can
// substitute NopLock for single-threaded runs.
type WriterLock interface {
	// Acquire blocks until the lock is held or ctx is done.
	Acquire(ctx context.Context) error
	// Release releases a held lock.
	Release()
}

// SemaphoreLock is a binary semaphore implementation of WriterLock.
type SemaphoreLock struct {
	ch chan struct{}
}

// NewSemaphoreLock creates a SemaphoreLock with one slot.
func NewSemaphoreLock() *SemaphoreLock {
	return &SemaphoreLock{ch: make(chan struct{}, 1)}
}

func (l *SemaphoreLock) Acquire(ctx context.Context) error {
	select {
	case l.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *SemaphoreLock) Release() {
	select {
	case <-l.ch:
	default:
		panic("release of unheld writer lock")
	}
}

// NopLock is a WriterLock that never blocks. Use in single-threaded tests.
type NopLock struct{}

func (NopLock) Acquire(context.Context) error { return nil }
func (NopLock) Release()                      {}

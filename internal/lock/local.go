// Package lock provides the per-show critical section used by the
// reservation engine.  Two implementations exist: a process-local
// locker for single-process deployments and tests, and a Redis-backed
// locker for deployments where several instances share one inventory
// database.  Both bound the acquisition wait and fail with
// engine.ErrContention instead of blocking indefinitely.
package lock

import (
	"context"
	"sync"
	"time"

	"github.com/rsahakyan/seatledger/internal/engine"
)

// DefaultWait is the acquisition bound applied when a locker is
// constructed with a non-positive wait.
const DefaultWait = 2 * time.Second

// LocalLocker serializes show access within a single process.  Each
// show gets a one-slot channel acting as a mutex that supports a
// bounded, context-aware wait.
type LocalLocker struct {
	mu    sync.Mutex
	slots map[uint64]chan struct{}
	wait  time.Duration
}

// NewLocalLocker returns a LocalLocker with the given acquisition
// bound.
func NewLocalLocker(wait time.Duration) *LocalLocker {
	if wait <= 0 {
		wait = DefaultWait
	}
	return &LocalLocker{slots: make(map[uint64]chan struct{}), wait: wait}
}

func (l *LocalLocker) slot(showID uint64) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.slots[showID]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[showID] = ch
	}
	return ch
}

// AcquireShow takes the show's critical section, waiting at most the
// configured bound.  It returns engine.ErrContention when the section
// stays busy and the context's error when the caller gives up first.
func (l *LocalLocker) AcquireShow(ctx context.Context, showID uint64) (func(), error) {
	ch := l.slot(showID)
	timer := time.NewTimer(l.wait)
	defer timer.Stop()
	select {
	case ch <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-ch }) }, nil
	case <-timer.C:
		return nil, engine.ErrContention
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

package repository

import (
	"context"
	"sync"
	"time"
)

// MemoryLocker is a per-process keyed lock. It honours context cancellation
// and the wait timeout while queued.
type MemoryLocker struct {
	mu    sync.Mutex
	slots map[int64]chan struct{}
	wait  time.Duration
}

func NewMemoryLocker(wait time.Duration) *MemoryLocker {
	return &MemoryLocker{slots: make(map[int64]chan struct{}), wait: wait}
}

func (l *MemoryLocker) slot(homestayID int64) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.slots[homestayID]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[homestayID] = ch
	}
	return ch
}

func (l *MemoryLocker) LockHomestay(ctx context.Context, homestayID int64) (func(), error) {
	ch := l.slot(homestayID)

	var timeout <-chan time.Time
	if l.wait > 0 {
		timer := time.NewTimer(l.wait)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case ch <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-ch }) }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timeout:
		return nil, ErrLockTimeout
	}
}

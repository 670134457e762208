package redisclient

import (
	"context"
	"sync"
	"time"
)

// localSlotLocker serializes critical sections per slot inside one process.
// It is the default when no Redis is configured.
type localSlotLocker struct {
	mu    sync.Mutex
	slots map[string]*slotSem
	wait  time.Duration
}

type slotSem struct {
	ch   chan struct{}
	refs int
}

func NewLocalSlotLocker(wait time.Duration) Locker {
	return &localSlotLocker{
		slots: make(map[string]*slotSem),
		wait:  wait,
	}
}

func (l *localSlotLocker) WithSlotLock(ctx context.Context, slotKey string, fn func(ctx context.Context) error) error {
	sem := l.ref(slotKey)
	defer l.unref(slotKey)

	timer := time.NewTimer(l.wait)
	defer timer.Stop()

	select {
	case sem.ch <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrLockNotAcquired
	}
	defer func() { <-sem.ch }()

	return fn(ctx)
}

func (l *localSlotLocker) ref(key string) *slotSem {
	l.mu.Lock()
	defer l.mu.Unlock()

	sem, ok := l.slots[key]
	if !ok {
		sem = &slotSem{ch: make(chan struct{}, 1)}
		l.slots[key] = sem
	}
	sem.refs++
	return sem
}

func (l *localSlotLocker) unref(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	sem := l.slots[key]
	sem.refs--
	if sem.refs == 0 {
		delete(l.slots, key)
	}
}

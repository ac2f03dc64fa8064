package memory

import (
	"context"
	"sync"
)

// keyLock is a plain mutual-exclusion lock whose acquisition can be abandoned
// when ctx is done. It is never re-entrant: whether a caller already holds a
// key across calls is answered by the ownerTracker, not by the lock.
type keyLock struct {
	sem chan struct{}
}

func newKeyLock() *keyLock {
	return &keyLock{sem: make(chan struct{}, 1)}
}

// tryLock acquires the lock without waiting.
func (l *keyLock) tryLock() bool {
	select {
	case l.sem <- struct{}{}:
		return true
	default:
		return false
	}
}

// lock blocks until the lock is acquired or ctx is done. There is no
// built-in timeout.
func (l *keyLock) lock(ctx context.Context) error {
	if l.tryLock() {
		return nil
	}
	select {
	case l.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *keyLock) unlock() {
	<-l.sem
}

// lockRegistry hands out exactly one keyLock per key, created on first use.
// LoadOrStore keeps creation race-free without a registry-wide mutex.
type lockRegistry struct {
	locks sync.Map // string -> *keyLock
}

func (r *lockRegistry) get(key string) *keyLock {
	if l, ok := r.locks.Load(key); ok {
		return l.(*keyLock)
	}
	l, _ := r.locks.LoadOrStore(key, newKeyLock())
	return l.(*keyLock)
}

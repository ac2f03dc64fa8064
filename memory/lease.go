package memory

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/tailored-agentic-units/memstore/observability"
)

// Lease is a held read of one key: the key stays locked for the lease's
// Owner until Commit or Release. Other accessors of the key block meanwhile.
//
// A Lease that becomes unreachable without being closed is released by the
// garbage collector eventually; callers must not rely on that and should
// always Commit or Release.
type Lease struct {
	mem     *Memory
	key     string
	owner   Owner
	value   any
	found   bool
	state   *leaseState
	cleanup runtime.Cleanup
}

type leaseState struct {
	mu     sync.Mutex
	closed bool
	owner  Owner
	key    string
}

// close ends the hold once. Reports false when the lease was already closed.
func (s *leaseState) close(ctx context.Context, m *Memory, source string, write func() error) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, nil
	}
	s.closed = true

	var err error
	if write != nil {
		err = write()
	}
	if m.owners.take(s.owner, s.key, holdLease) {
		m.release(ctx, s.key, source)
	}
	return true, err
}

// Hold acquires key for the Owner in ctx, or for a fresh Owner when ctx has
// none, and reads it under the given policy. Hold works in both consistency
// modes. Returns ErrAlreadyHeld when the Owner already holds key, by Recall
// or by another Lease.
func (m *Memory) Hold(ctx context.Context, key string, opts ...RecallOption) (*Lease, error) {
	staleness, err := recallStaleness(opts)
	if err != nil {
		return nil, err
	}

	owner, ok := OwnerFrom(ctx)
	if !ok {
		owner = NewOwner()
	}
	if _, held := m.owners.heldAs(owner, key); held {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyHeld, key)
	}

	if _, err := m.acquire(ctx, key); err != nil {
		return nil, err
	}
	m.owners.markHeld(owner, key, holdLease)
	m.stats.held.Add(1)
	m.emit(ctx, EventLockHeld, observability.LevelVerbose, "memory.Hold", map[string]any{
		"key":   key,
		"owner": owner.String(),
	})

	value, found := m.read(ctx, key, staleness)

	lease := &Lease{
		mem:   m,
		key:   key,
		owner: owner,
		value: value,
		found: found,
		state: &leaseState{owner: owner, key: key},
	}
	lease.cleanup = runtime.AddCleanup(lease, func(s *leaseState) {
		s.close(context.Background(), m, "memory.Lease.cleanup", nil)
	}, lease.state)

	return lease, nil
}

// Key returns the leased key.
func (l *Lease) Key() string {
	return l.key
}

// Owner returns the Owner holding the lease.
func (l *Lease) Owner() Owner {
	return l.owner
}

// Value returns the value read when the lease was acquired.
func (l *Lease) Value() (any, bool) {
	return l.value, l.found
}

// Commit writes value to the leased key and releases the lease. The lock is
// released even when the write fails. Returns ErrLeaseClosed when the lease
// was already committed or released.
func (l *Lease) Commit(ctx context.Context, value any, opts ...StoreOption) error {
	l.cleanup.Stop()
	closed, err := l.state.close(ctx, l.mem, "memory.Lease.Commit", func() error {
		return l.mem.write(ctx, l.key, l.mem.version(value, opts))
	})
	if !closed {
		return ErrLeaseClosed
	}
	return err
}

// Release gives up the lease without writing. Safe to call more than once
// and after Commit.
func (l *Lease) Release() {
	l.cleanup.Stop()
	l.state.close(context.Background(), l.mem, "memory.Lease.Release", nil)
}

// Package memory provides the shared, versioned key-value store that
// cooperating agents use to exchange state under concurrent access.
//
// Every key keeps its current value and an append-only history of
// (value, timestamp) versions. A Memory runs in one of two consistency modes,
// fixed at construction:
//
//   - Eventual: each Recall, Store and History call locks the key for the
//     duration of that call only.
//   - Strong: Recall retains the key lock for the calling Owner until that
//     Owner's next Store on the same key, making read-modify-write atomic.
//
// Owners are threaded explicitly through context.Context:
//
//	mem, _ := memory.New(memory.Strong)
//	ctx := memory.WithOwner(context.Background(), memory.NewOwner())
//	v, _, _ := mem.Recall(ctx, "counter")
//	_ = mem.Store(ctx, "counter", next(v))
//
// A strong-mode Recall that is never matched by a Store keeps the key locked
// and every other accessor of that key blocks. Nothing times out on its own:
// callers that need to give up pass a cancellable or deadline-bound context,
// and the blocked call returns ctx.Err(). Hold offers the same retention as an
// explicit Lease that must be committed or released.
package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/tailored-agentic-units/memstore/observability"
)

// Option configures a Memory at construction.
type Option func(*Memory)

// WithObserver sets the observer receiving memory events. Defaults to
// observability.NoOpObserver.
func WithObserver(o observability.Observer) Option {
	return func(m *Memory) {
		if o != nil {
			m.observer = o
		}
	}
}

// WithJournal persists every written version to j.
func WithJournal(j Journal) Option {
	return func(m *Memory) { m.journal = j }
}

// WithClock overrides the time source for default timestamps.
func WithClock(clock func() time.Time) Option {
	return func(m *Memory) {
		if clock != nil {
			m.clock = clock
		}
	}
}

// RecallOption configures a single read.
type RecallOption func(*recallOptions)

type recallOptions struct {
	staleness Staleness
}

// WithStaleness selects the read policy. Defaults to Any.
func WithStaleness(s Staleness) RecallOption {
	return func(o *recallOptions) { o.staleness = s }
}

// StoreOption configures a single write.
type StoreOption func(*storeOptions)

type storeOptions struct {
	timestamp time.Time
}

// WithTimestamp supplies the version timestamp instead of the clock's current
// time. Timestamps need not increase with insertion order.
func WithTimestamp(t time.Time) StoreOption {
	return func(o *storeOptions) { o.timestamp = t }
}

// Memory is the consistency controller over the per-key locks, the versioned
// records and the ownership tracker. Safe for concurrent use.
type Memory struct {
	consistency Consistency
	locks       lockRegistry
	records     recordStore
	owners      *ownerTracker
	journal     Journal
	observer    observability.Observer
	clock       func() time.Time
	stats       stats
}

// New creates an empty Memory in the given consistency mode.
func New(consistency Consistency, opts ...Option) (*Memory, error) {
	if !consistency.Valid() {
		return nil, ErrInvalidConsistency
	}

	m := &Memory{
		consistency: consistency,
		owners:      newOwnerTracker(),
		observer:    observability.NoOpObserver{},
		clock:       time.Now,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m, nil
}

// Consistency returns the mode fixed at construction.
func (m *Memory) Consistency() Consistency {
	return m.consistency
}

// Stats returns a snapshot of the memory's counters.
func (m *Memory) Stats() StatsSnapshot {
	return m.stats.snapshot()
}

// Keys returns every key with at least one version, sorted.
func (m *Memory) Keys() []string {
	return m.records.keys()
}

// Recall returns the value of key under the requested staleness policy, and
// whether one exists. Reading a key that was never written is not an error.
//
// Under Strong consistency ctx must carry an Owner (ErrNoOwner otherwise).
// The key lock is acquired and kept until the Owner's next Store or Release
// on key. A Recall by an Owner that already holds key reads under that hold.
// Under Eventual consistency the lock is held for this call only.
func (m *Memory) Recall(ctx context.Context, key string, opts ...RecallOption) (any, bool, error) {
	staleness, err := recallStaleness(opts)
	if err != nil {
		return nil, false, err
	}

	owner, hasOwner := OwnerFrom(ctx)
	if m.consistency == Strong && !hasOwner {
		return nil, false, ErrNoOwner
	}

	if _, held := m.owners.heldAs(owner, key); held {
		value, found := m.read(ctx, key, staleness)
		return value, found, nil
	}

	if m.consistency == Eventual {
		value, found, err := m.readOnce(ctx, key, staleness)
		return value, found, err
	}

	if _, err := m.acquire(ctx, key); err != nil {
		return nil, false, err
	}
	m.owners.markHeld(owner, key, holdRecall)
	m.stats.held.Add(1)
	m.emit(ctx, EventLockHeld, observability.LevelVerbose, "memory.Recall", map[string]any{
		"key":   key,
		"owner": owner.String(),
	})

	value, found := m.read(ctx, key, staleness)
	return value, found, nil
}

// Retrieve reads key like Recall but never retains the lock, in either mode,
// and needs no Owner. An Owner that already holds key reads under that hold.
func (m *Memory) Retrieve(ctx context.Context, key string, opts ...RecallOption) (any, bool, error) {
	staleness, err := recallStaleness(opts)
	if err != nil {
		return nil, false, err
	}

	owner, _ := OwnerFrom(ctx)
	if _, held := m.owners.heldAs(owner, key); held {
		value, found := m.read(ctx, key, staleness)
		return value, found, nil
	}

	return m.readOnce(ctx, key, staleness)
}

// Release ends the Owner's strong-mode Recall hold on key without writing.
// Returns ErrNotHeld when ctx's Owner holds no such hold.
func (m *Memory) Release(ctx context.Context, key string) error {
	owner, ok := OwnerFrom(ctx)
	if !ok {
		return ErrNoOwner
	}
	if !m.owners.take(owner, key, holdRecall) {
		return fmt.Errorf("%w: %s", ErrNotHeld, key)
	}
	m.release(ctx, key, "memory.Release")
	return nil
}

// Store appends value to key's history and makes it current.
//
// When the Owner in ctx holds key from a strong-mode Recall, the write
// completes that read-modify-write and the lock is released even if the
// write fails. An Owner holding key through a Lease must write with
// Lease.Commit (ErrLeaseHeld). Otherwise the lock is acquired for this call
// only.
func (m *Memory) Store(ctx context.Context, key string, value any, opts ...StoreOption) error {
	v := m.version(value, opts)
	owner, _ := OwnerFrom(ctx)

	if m.owners.take(owner, key, holdRecall) {
		err := m.write(ctx, key, v)
		m.release(ctx, key, "memory.Store")
		return err
	}
	if kind, held := m.owners.heldAs(owner, key); held && kind == holdLease {
		return fmt.Errorf("%w: %s", ErrLeaseHeld, key)
	}

	l, err := m.acquire(ctx, key)
	if err != nil {
		return err
	}
	defer l.unlock()

	return m.write(ctx, key, v)
}

// History returns a copy of key's versions in insertion order. An unknown key
// yields an empty slice. An Owner that holds key reads under that hold.
func (m *Memory) History(ctx context.Context, key string) ([]Version, error) {
	owner, _ := OwnerFrom(ctx)

	if _, held := m.owners.heldAs(owner, key); !held {
		l, err := m.acquire(ctx, key)
		if err != nil {
			return nil, err
		}
		defer l.unlock()
	}

	history := m.records.history(key)

	m.emit(ctx, EventHistory, observability.LevelVerbose, "memory.History", map[string]any{
		"key":      key,
		"versions": len(history),
	})

	return history, nil
}

// Restore replays the journal into an empty Memory and returns the number of
// versions loaded. The last replayed version of each key becomes current.
func (m *Memory) Restore(ctx context.Context) (int, error) {
	if m.journal == nil {
		return 0, nil
	}
	if len(m.records.keys()) > 0 {
		return 0, ErrNotEmpty
	}

	count := 0
	err := m.journal.Replay(ctx, func(key string, v Version) error {
		l, err := m.acquire(ctx, key)
		if err != nil {
			return err
		}
		m.records.write(key, v)
		l.unlock()
		count++
		return nil
	})
	if err != nil {
		m.emitError(ctx, "memory.Restore", "", err)
		return count, err
	}

	m.emit(ctx, EventRestore, observability.LevelInfo, "memory.Restore", map[string]any{
		"versions": count,
		"keys":     len(m.records.keys()),
	})

	return count, nil
}

func recallStaleness(opts []RecallOption) (Staleness, error) {
	o := recallOptions{staleness: Any}
	for _, opt := range opts {
		opt(&o)
	}
	if o.staleness != Any && o.staleness != Strict {
		return "", ErrInvalidStaleness
	}
	return o.staleness, nil
}

// readOnce locks key for a single read.
func (m *Memory) readOnce(ctx context.Context, key string, staleness Staleness) (any, bool, error) {
	l, err := m.acquire(ctx, key)
	if err != nil {
		return nil, false, err
	}
	defer l.unlock()

	value, found := m.read(ctx, key, staleness)
	return value, found, nil
}

func (m *Memory) version(value any, opts []StoreOption) Version {
	var o storeOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.timestamp.IsZero() {
		o.timestamp = m.clock()
	}
	return Version{Value: value, Timestamp: o.timestamp}
}

// acquire locks key, recording contention when it has to wait.
func (m *Memory) acquire(ctx context.Context, key string) (*keyLock, error) {
	l := m.locks.get(key)
	if l.tryLock() {
		return l, nil
	}

	m.stats.contended.Add(1)
	start := time.Now()

	if err := l.lock(ctx); err != nil {
		m.emitError(ctx, "memory.acquire", key, err)
		return nil, err
	}

	m.emit(ctx, EventLockWait, observability.LevelVerbose, "memory.acquire", map[string]any{
		"key":  key,
		"wait": time.Since(start),
	})

	return l, nil
}

// release drops a lock retained across calls. The caller has already ended
// the hold in the tracker.
func (m *Memory) release(ctx context.Context, key string, source string) {
	m.locks.get(key).unlock()
	m.stats.held.Add(-1)
	m.emit(ctx, EventLockRelease, observability.LevelVerbose, source, map[string]any{"key": key})
}

// read must be called with the key lock held, by this call or by a hold of
// the caller's Owner.
func (m *Memory) read(ctx context.Context, key string, staleness Staleness) (any, bool) {
	value, found := m.records.read(key, staleness)
	m.stats.recalls.Add(1)
	m.emit(ctx, EventRecall, observability.LevelVerbose, "memory.Recall", map[string]any{
		"key":       key,
		"staleness": string(staleness),
		"found":     found,
	})
	return value, found
}

// write must be called with the key lock held. A journal failure leaves the
// record untouched.
func (m *Memory) write(ctx context.Context, key string, v Version) error {
	if m.journal != nil {
		if err := m.journal.Append(ctx, key, m.records.length(key), v); err != nil {
			m.emitError(ctx, "memory.Store", key, err)
			return err
		}
	}

	seq := m.records.write(key, v)
	m.stats.stores.Add(1)

	m.emit(ctx, EventStore, observability.LevelVerbose, "memory.Store", map[string]any{
		"key":       key,
		"seq":       seq,
		"timestamp": v.Timestamp,
	})

	return nil
}

func (m *Memory) emit(ctx context.Context, t observability.EventType, level observability.Level, source string, data map[string]any) {
	m.observer.OnEvent(ctx, observability.NewEvent(t, level, source, data))
}

func (m *Memory) emitError(ctx context.Context, source, key string, err error) {
	m.emit(ctx, EventError, observability.LevelWarning, source, map[string]any{
		"key":   key,
		"error": err.Error(),
	})
}

// Close closes the journal, if any. Held locks are not released.
func (m *Memory) Close() error {
	if m.journal == nil {
		return nil
	}
	return m.journal.Close()
}

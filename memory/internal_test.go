package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockRegistry_OneLockPerKey(t *testing.T) {
	var r lockRegistry
	const n = 64

	got := make([]*keyLock, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := range n {
		go func() {
			defer wg.Done()
			got[i] = r.get("shared")
		}()
	}
	wg.Wait()

	for i := range got {
		assert.Same(t, got[0], got[i])
	}
	assert.NotSame(t, r.get("shared"), r.get("other"))
}

func TestKeyLock_Exclusive(t *testing.T) {
	l := newKeyLock()
	require.True(t, l.tryLock())
	assert.False(t, l.tryLock(), "second acquisition from the same goroutine")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, l.lock(ctx), context.DeadlineExceeded)

	l.unlock()
	assert.True(t, l.tryLock())
	l.unlock()
}

func TestOwnerTracker(t *testing.T) {
	tr := newOwnerTracker()

	tr.markHeld("a", "x", holdRecall)
	tr.markHeld("a", "y", holdLease)
	tr.markHeld("b", "x", holdRecall)

	kind, ok := tr.heldAs("a", "y")
	assert.True(t, ok)
	assert.Equal(t, holdLease, kind)
	_, ok = tr.heldAs("c", "x")
	assert.False(t, ok)
	_, ok = tr.heldAs("", "x")
	assert.False(t, ok)
	assert.Equal(t, 2, tr.count())

	assert.False(t, tr.take("a", "y", holdRecall), "kind must match")
	assert.True(t, tr.take("a", "x", holdRecall))
	assert.False(t, tr.take("a", "x", holdRecall), "a hold is taken once")

	assert.True(t, tr.take("a", "y", holdLease))
	assert.Equal(t, 1, tr.count(), "owner with no keys is removed")

	assert.False(t, tr.take("nobody", "x", holdRecall))
	assert.Equal(t, 1, tr.count())
}

func TestOwnerTracker_TakeIsExclusive(t *testing.T) {
	tr := newOwnerTracker()
	tr.markHeld("a", "k", holdRecall)

	const n = 32
	var wins atomic.Int32
	var wg sync.WaitGroup
	wg.Add(n)
	for range n {
		go func() {
			defer wg.Done()
			if tr.take("a", "k", holdRecall) {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}

func TestRecordStore_CurrentFollowsInsertion(t *testing.T) {
	var s recordStore
	base := time.Unix(0, 0)

	_, ok := s.readCurrent("k")
	assert.False(t, ok)

	assert.Equal(t, 0, s.write("k", Version{Value: "late", Timestamp: base.Add(time.Hour)}))
	assert.Equal(t, 1, s.write("k", Version{Value: "early", Timestamp: base}))

	v, _ := s.readCurrent("k")
	assert.Equal(t, "early", v)
	v, _ = s.readStrict("k")
	assert.Equal(t, "late", v)
	assert.Equal(t, 2, s.length("k"))
	assert.Equal(t, []string{"k"}, s.keys())
}

package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Owner identifies an execution context for lock ownership. Under Strong
// consistency a Recall and its matching Store must carry the same Owner.
// The zero Owner means "no owner".
type Owner string

// NewOwner returns a unique Owner backed by a UUIDv7.
func NewOwner() Owner {
	return Owner(uuid.Must(uuid.NewV7()).String())
}

func (o Owner) String() string {
	return string(o)
}

type ownerKey struct{}

// WithOwner returns a copy of ctx carrying owner. Callers thread the returned
// context through every Recall/Store that belongs to the same logical caller.
func WithOwner(ctx context.Context, owner Owner) context.Context {
	return context.WithValue(ctx, ownerKey{}, owner)
}

// OwnerFrom extracts the Owner carried by ctx. It reports false when ctx has
// no owner or carries the zero Owner.
func OwnerFrom(ctx context.Context) (Owner, bool) {
	owner, ok := ctx.Value(ownerKey{}).(Owner)
	if !ok || owner == "" {
		return "", false
	}
	return owner, true
}

// holdKind records how an owner came to retain a key lock.
type holdKind uint8

const (
	holdRecall holdKind = iota + 1 // strong-mode Recall, ended by Store or Release
	holdLease                      // Hold, ended by Lease.Commit or Lease.Release
)

// ownerTracker records which keys each owner retains across calls. It is the
// only place "already held by me" is decided; the key locks themselves are
// not re-entrant. An owner is present only while it holds at least one key.
type ownerTracker struct {
	mu   sync.Mutex
	held map[Owner]map[string]holdKind
}

func newOwnerTracker() *ownerTracker {
	return &ownerTracker{held: make(map[Owner]map[string]holdKind)}
}

func (t *ownerTracker) markHeld(owner Owner, key string, kind holdKind) {
	t.mu.Lock()
	defer t.mu.Unlock()

	keys, ok := t.held[owner]
	if !ok {
		keys = make(map[string]holdKind)
		t.held[owner] = keys
	}
	keys[key] = kind
}

// take removes owner's hold on key if it is of the given kind and reports
// whether it did. Concurrent callers sharing an owner race here, so exactly
// one of them ends a given hold.
func (t *ownerTracker) take(owner Owner, key string, kind holdKind) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	keys, ok := t.held[owner]
	if !ok || keys[key] != kind {
		return false
	}
	delete(keys, key)
	if len(keys) == 0 {
		delete(t.held, owner)
	}
	return true
}

// heldAs returns the kind of owner's hold on key, if any. The zero Owner
// never holds anything.
func (t *ownerTracker) heldAs(owner Owner, key string) (holdKind, bool) {
	if owner == "" {
		return 0, false
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	kind, ok := t.held[owner][key]
	return kind, ok
}

// count returns the number of owners currently holding at least one key.
func (t *ownerTracker) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.held)
}

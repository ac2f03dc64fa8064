package memory

import (
	"slices"
	"sort"
	"sync"
)

// record is the per-key state: the current value and its append-only history.
// Writers hold the key lock. mu additionally guards reads made under an
// existing hold, which skip the key lock.
type record struct {
	mu      sync.RWMutex
	current any
	written bool
	history []Version
}

// recordStore holds one record per key. It does not lock keys itself: write
// assumes the caller holds the key lock, so history indexes are unique.
type recordStore struct {
	records sync.Map // string -> *record
}

func (s *recordStore) get(key string) *record {
	if r, ok := s.records.Load(key); ok {
		return r.(*record)
	}
	r, _ := s.records.LoadOrStore(key, &record{})
	return r.(*record)
}

func (s *recordStore) lookup(key string) (*record, bool) {
	r, ok := s.records.Load(key)
	if !ok {
		return nil, false
	}
	return r.(*record), true
}

// write appends v to the key's history and makes it current. Returns the
// history index v was stored at.
func (s *recordStore) write(key string, v Version) int {
	r := s.get(key)
	r.mu.Lock()
	defer r.mu.Unlock()

	r.history = append(r.history, v)
	r.current = v.Value
	r.written = true
	return len(r.history) - 1
}

// length returns the number of history entries for key.
func (s *recordStore) length(key string) int {
	r, ok := s.lookup(key)
	if !ok {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.history)
}

func (s *recordStore) readCurrent(key string) (any, bool) {
	r, ok := s.lookup(key)
	if !ok {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current, r.written
}

// readStrict scans the whole history for the greatest timestamp. Insertion
// order does not imply timestamp order.
func (s *recordStore) readStrict(key string) (any, bool) {
	r, ok := s.lookup(key)
	if !ok {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.history) == 0 {
		return nil, false
	}
	best := r.history[0]
	for _, v := range r.history[1:] {
		if v.Timestamp.After(best.Timestamp) {
			best = v
		}
	}
	return best.Value, true
}

func (s *recordStore) read(key string, staleness Staleness) (any, bool) {
	if staleness == Strict {
		return s.readStrict(key)
	}
	return s.readCurrent(key)
}

func (s *recordStore) history(key string) []Version {
	r, ok := s.lookup(key)
	if !ok {
		return []Version{}
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.history)
}

// keys returns every key that has at least one version, sorted.
func (s *recordStore) keys() []string {
	var keys []string
	s.records.Range(func(k, _ any) bool {
		keys = append(keys, k.(string))
		return true
	})
	sort.Strings(keys)
	return keys
}

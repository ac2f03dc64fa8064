package memory

import "sync/atomic"

// StatsSnapshot is a point-in-time copy of a Memory's counters.
type StatsSnapshot struct {
	Recalls   int64 // Completed Recall calls.
	Stores    int64 // Completed Store and Lease.Commit calls.
	Contended int64 // Lock acquisitions that had to wait.
	Held      int64 // Locks currently retained across calls (strong recalls and leases).
}

type stats struct {
	recalls   atomic.Int64
	stores    atomic.Int64
	contended atomic.Int64
	held      atomic.Int64
}

func (s *stats) snapshot() StatsSnapshot {
	return StatsSnapshot{
		Recalls:   s.recalls.Load(),
		Stores:    s.stores.Load(),
		Contended: s.contended.Load(),
		Held:      s.held.Load(),
	}
}

package memory

import "github.com/tailored-agentic-units/memstore/observability"

// Memory event types.
const (
	EventRecall      observability.EventType = "memory.recall"
	EventStore       observability.EventType = "memory.store"
	EventHistory     observability.EventType = "memory.history"
	EventLockWait    observability.EventType = "memory.lock.wait"
	EventLockHeld    observability.EventType = "memory.lock.held"
	EventLockRelease observability.EventType = "memory.lock.release"
	EventRestore     observability.EventType = "memory.restore"
	EventError       observability.EventType = "memory.error"
)

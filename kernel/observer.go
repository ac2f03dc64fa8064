package kernel

import "github.com/tailored-agentic-units/memstore/observability"

// Kernel event types.
const (
	EventStart      observability.EventType = "kernel.start"
	EventServeStart observability.EventType = "kernel.serve.start"
	EventServeStop  observability.EventType = "kernel.serve.stop"
	EventBench      observability.EventType = "kernel.bench"
	EventError      observability.EventType = "kernel.error"
)

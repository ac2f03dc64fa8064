// Package observability carries memstore's event pipeline. The memory,
// the RPC layer and the kernel each emit Events; Observers turn them into log
// lines, Prometheus series or OpenTelemetry instruments. Level numbers follow
// OTel SeverityNumber so no exporter needs a mapping table.
package observability

import (
	"context"
	"log/slog"
	"time"
)

// Level is the severity of an Event, numbered on the OTel SeverityNumber
// scale.
type Level int

const (
	LevelVerbose Level = 5  // lock waits, reads, history scans
	LevelInfo    Level = 9  // stores, restores, lifecycle
	LevelWarning Level = 13 // failed requests
	LevelError   Level = 17 // journal and replay failures
)

// severityNames holds the upper bound of each OTel severity band.
var severityNames = []struct {
	max  Level
	name string
}{
	{4, "TRACE"},
	{8, "DEBUG"},
	{12, "INFO"},
	{16, "WARN"},
	{20, "ERROR"},
}

func (l Level) String() string {
	for _, band := range severityNames {
		if l <= band.max {
			return band.name
		}
	}
	return "FATAL"
}

// SlogLevel maps this level to the corresponding slog.Level for log emission.
func (l Level) SlogLevel() slog.Level {
	switch {
	case l <= 8:
		return slog.LevelDebug
	case l <= 12:
		return slog.LevelInfo
	case l <= 16:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

// EventType names what happened, namespaced by the emitting package, for
// example "memory.lock.wait" or "rpc.request".
type EventType string

// Event describes one occurrence inside memstore. Data holds telemetry such
// as keys, owners and durations, never stored values.
type Event struct {
	Type      EventType
	Level     Level
	Timestamp time.Time
	Source    string
	Data      map[string]any
}

// NewEvent stamps an Event with the current time.
func NewEvent(t EventType, level Level, source string, data map[string]any) Event {
	return Event{
		Type:      t,
		Level:     level,
		Timestamp: time.Now(),
		Source:    source,
		Data:      data,
	}
}

// Observer consumes Events. OnEvent is called inline on the emitting
// goroutine, often while a key lock is held, so it must return quickly and be
// safe for concurrent use.
type Observer interface {
	OnEvent(ctx context.Context, event Event)
}

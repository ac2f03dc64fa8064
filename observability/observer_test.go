package observability_test

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tailored-agentic-units/memstore/observability"
)

func TestLevel_String(t *testing.T) {
	tests := []struct {
		name  string
		level observability.Level
		want  string
	}{
		{name: "trace range", level: 1, want: "TRACE"},
		{name: "verbose maps to DEBUG", level: observability.LevelVerbose, want: "DEBUG"},
		{name: "info maps to INFO", level: observability.LevelInfo, want: "INFO"},
		{name: "warning maps to WARN", level: observability.LevelWarning, want: "WARN"},
		{name: "error maps to ERROR", level: observability.LevelError, want: "ERROR"},
		{name: "fatal range", level: 21, want: "FATAL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.level.String())
		})
	}
}

func TestLevel_SlogLevel(t *testing.T) {
	tests := []struct {
		name  string
		level observability.Level
		want  slog.Level
	}{
		{name: "verbose maps to Debug", level: observability.LevelVerbose, want: slog.LevelDebug},
		{name: "info maps to Info", level: observability.LevelInfo, want: slog.LevelInfo},
		{name: "warning maps to Warn", level: observability.LevelWarning, want: slog.LevelWarn},
		{name: "error maps to Error", level: observability.LevelError, want: slog.LevelError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.level.SlogLevel())
		})
	}
}

func TestMultiObserver_FansOut(t *testing.T) {
	a, b, c := &captureObserver{}, &captureObserver{}, &captureObserver{}
	inner := observability.NewMultiObserver(b, observability.NoOpObserver{})
	multi := observability.NewMultiObserver(a, nil, inner, c)
	require.Equal(t, 3, multi.Len(), "nested observers are flattened and no-ops dropped")

	multi.OnEvent(context.Background(), observability.NewEvent("memory.store", observability.LevelVerbose, "memory.Store", nil))

	for _, obs := range []*captureObserver{a, b, c} {
		require.Len(t, obs.all(), 1)
		assert.Equal(t, observability.EventType("memory.store"), obs.all()[0].Type)
	}
}

func TestNewEvent(t *testing.T) {
	before := time.Now()
	e := observability.NewEvent("rpc.request", observability.LevelWarning, "/svc/Store", map[string]any{"code": "ok"})

	assert.Equal(t, observability.EventType("rpc.request"), e.Type)
	assert.Equal(t, observability.LevelWarning, e.Level)
	assert.Equal(t, "/svc/Store", e.Source)
	assert.Equal(t, "ok", e.Data["code"])
	assert.False(t, e.Timestamp.Before(before))
}

func TestOrNoOp(t *testing.T) {
	assert.IsType(t, observability.NoOpObserver{}, observability.OrNoOp(nil))
	c := &captureObserver{}
	assert.Same(t, c, observability.OrNoOp(c))
}

func TestSlogObserver_LevelMapping(t *testing.T) {
	tests := []struct {
		name      string
		level     observability.Level
		minLevel  slog.Level
		expectLog bool
	}{
		{name: "verbose at debug handler", level: observability.LevelVerbose, minLevel: slog.LevelDebug, expectLog: true},
		{name: "verbose at info handler", level: observability.LevelVerbose, minLevel: slog.LevelInfo, expectLog: false},
		{name: "warning at warn handler", level: observability.LevelWarning, minLevel: slog.LevelWarn, expectLog: true},
		{name: "info at warn handler", level: observability.LevelInfo, minLevel: slog.LevelWarn, expectLog: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: tt.minLevel}))

			observability.NewSlogObserver(logger).OnEvent(context.Background(), observability.Event{
				Type:      "memory.recall",
				Level:     tt.level,
				Timestamp: time.Now(),
				Source:    "memory.Recall",
			})

			assert.Equal(t, tt.expectLog, buf.Len() > 0, buf.String())
		})
	}
}

func TestSlogObserver_SortedAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	observability.NewSlogObserver(logger).OnEvent(context.Background(), observability.Event{
		Type:   "memory.store",
		Level:  observability.LevelInfo,
		Source: "memory.Store",
		Data:   map[string]any{"seq": 3, "key": "counter"},
	})

	out := buf.String()
	assert.Contains(t, out, "msg=memory.store")
	assert.Contains(t, out, "source=memory.Store")
	assert.Less(t, strings.Index(out, "key=counter"), strings.Index(out, "seq=3"))
}

func TestRegistry(t *testing.T) {
	t.Run("builtin observers", func(t *testing.T) {
		for _, name := range []string{"noop", "slog"} {
			obs, err := observability.GetObserver(name)
			require.NoError(t, err)
			assert.NotNil(t, obs)
		}
	})

	t.Run("unknown observer", func(t *testing.T) {
		_, err := observability.GetObserver("nonexistent")
		assert.ErrorIs(t, err, observability.ErrUnknownObserver)
	})

	t.Run("register and resolve", func(t *testing.T) {
		custom := &captureObserver{}
		observability.RegisterObserver("test-capture", custom)
		assert.Contains(t, observability.Names(), "test-capture")

		obs, err := observability.Resolve("test-capture")
		require.NoError(t, err)
		obs.OnEvent(context.Background(), observability.Event{Type: "memory.history"})
		assert.Len(t, custom.all(), 1)
	})

	t.Run("resolve combinations", func(t *testing.T) {
		none, err := observability.Resolve()
		require.NoError(t, err)
		assert.IsType(t, observability.NoOpObserver{}, none)

		many, err := observability.Resolve("noop", "slog")
		require.NoError(t, err)
		assert.IsType(t, &observability.MultiObserver{}, many)

		_, err = observability.Resolve("noop", "missing")
		assert.ErrorIs(t, err, observability.ErrUnknownObserver)
	})
}

type captureObserver struct {
	mu     sync.Mutex
	events []observability.Event
}

func (c *captureObserver) OnEvent(_ context.Context, event observability.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *captureObserver) all() []observability.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]observability.Event(nil), c.events...)
}

// Package kernel composes the memory, its journal, the agent registry and the
// observers from configuration, and serves the memory over RPC.
//
// The kernel initializes from configuration via New, creating all subsystems
// internally. Functional options allow test overrides of any subsystem.
//
//	k, err := kernel.New(ctx, &cfg)
//	defer k.Close()
//	err = k.Serve(ctx)
package kernel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/tailored-agentic-units/memstore/agent"
	"github.com/tailored-agentic-units/memstore/memory"
	"github.com/tailored-agentic-units/memstore/observability"
	"github.com/tailored-agentic-units/memstore/rpc"
	"github.com/tailored-agentic-units/memstore/storage/badger"
)

const shutdownTimeout = 5 * time.Second

// Option configures a Kernel after config-driven initialization.
// Overrides replace config-created defaults.
type Option func(*options)

type options struct {
	observer observability.Observer
	journal  memory.Journal
	memory   *memory.Memory
	logger   *slog.Logger
}

// WithObserver overrides the config-selected observers.
func WithObserver(o observability.Observer) Option {
	return func(opts *options) { opts.observer = o }
}

// WithJournal overrides the config-created journal.
func WithJournal(j memory.Journal) Option {
	return func(opts *options) { opts.journal = j }
}

// WithMemory supplies a ready memory. Journal configuration and restore are
// skipped.
func WithMemory(m *memory.Memory) Option {
	return func(opts *options) { opts.memory = m }
}

// WithLogger sets the logger handed to the journal backend.
func WithLogger(l *slog.Logger) Option {
	return func(opts *options) { opts.logger = l }
}

// Kernel owns the shared memory and everything wired around it.
type Kernel struct {
	memory   *memory.Memory
	registry *agent.Registry
	observer observability.Observer
	metrics  *prometheus.Registry
	address  string
}

// New creates a Kernel from configuration. The configured journal is opened
// and replayed into the memory before New returns.
func New(ctx context.Context, cfg *Config, opts ...Option) (*Kernel, error) {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	k := &Kernel{address: cfg.Server.Address}

	if o.observer == nil {
		observer, metrics, err := newObserver(&cfg.Observability)
		if err != nil {
			return nil, err
		}
		o.observer, k.metrics = observer, metrics
	}
	k.observer = o.observer

	if o.memory == nil {
		mem, err := newMemory(ctx, &cfg.Memory, &o)
		if err != nil {
			return nil, err
		}
		o.memory = mem
	}
	k.memory = o.memory

	k.registry = agent.NewRegistry(k.memory)
	for name, agentCfg := range cfg.Agents {
		if err := k.registry.Register(name, agentCfg); err != nil {
			k.memory.Close()
			return nil, fmt.Errorf("failed to register agent %q: %w", name, err)
		}
	}

	k.observer.OnEvent(ctx, observability.NewEvent(EventStart, observability.LevelInfo, "kernel.New", map[string]any{
		"consistency": string(k.memory.Consistency()),
		"keys":        len(k.memory.Keys()),
		"agents":      len(cfg.Agents),
	}))

	return k, nil
}

func newObserver(cfg *ObservabilityConfig) (observability.Observer, *prometheus.Registry, error) {
	base, err := observability.Resolve(cfg.Observers...)
	if err != nil {
		return nil, nil, err
	}

	observers := []observability.Observer{base}

	var metrics *prometheus.Registry
	if cfg.Metrics {
		metrics = prometheus.NewRegistry()
		observers = append(observers, observability.NewPrometheusObserver(metrics))
	}
	if cfg.OTel {
		otelObs, err := observability.NewOTelObserver(nil)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create otel observer: %w", err)
		}
		observers = append(observers, otelObs)
	}

	if len(observers) == 1 {
		return base, metrics, nil
	}
	return observability.NewMultiObserver(observers...), metrics, nil
}

func newJournal(cfg *memory.JournalConfig, logger *slog.Logger) (memory.Journal, error) {
	switch cfg.Backend {
	case memory.JournalNone:
		return nil, nil
	case memory.JournalFile:
		return memory.NewFileJournal(cfg.Path), nil
	case memory.JournalBadger:
		bcfg := badger.DefaultConfig()
		if cfg.InMemory {
			bcfg = badger.InMemoryConfig()
		}
		bcfg.Path = cfg.Path
		bcfg.SyncWrites = cfg.SyncWrites
		bcfg.Logger = logger
		j, err := badger.OpenJournal(bcfg)
		if err != nil {
			return nil, err
		}
		return j, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownJournal, cfg.Backend)
	}
}

func newMemory(ctx context.Context, cfg *memory.Config, o *options) (*memory.Memory, error) {
	journal := o.journal
	if journal == nil {
		j, err := newJournal(&cfg.Journal, o.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open journal: %w", err)
		}
		journal = j
	}

	consistency, err := memory.ParseConsistency(cfg.Consistency)
	if err != nil {
		if journal != nil {
			journal.Close()
		}
		return nil, err
	}

	memOpts := []memory.Option{memory.WithObserver(o.observer)}
	if journal != nil {
		memOpts = append(memOpts, memory.WithJournal(journal))
	}

	mem, err := memory.New(consistency, memOpts...)
	if err != nil {
		if journal != nil {
			journal.Close()
		}
		return nil, err
	}

	if _, err := mem.Restore(ctx); err != nil {
		mem.Close()
		return nil, fmt.Errorf("failed to restore memory: %w", err)
	}

	return mem, nil
}

// Memory returns the shared memory.
func (k *Kernel) Memory() *memory.Memory {
	return k.memory
}

// Registry returns the kernel's agent registry.
func (k *Kernel) Registry() *agent.Registry {
	return k.registry
}

// Metrics returns the Prometheus registry, or nil when metrics are disabled.
func (k *Kernel) Metrics() *prometheus.Registry {
	return k.metrics
}

// Handler returns the HTTP handler serving the memory and, when enabled, the
// metrics endpoint.
func (k *Kernel) Handler() http.Handler {
	var gatherer prometheus.Gatherer
	if k.metrics != nil {
		gatherer = k.metrics
	}
	return rpc.NewMux(k.memory, gatherer, rpc.WithObserver(k.observer))
}

// Serve listens on the configured address until ctx is cancelled.
func (k *Kernel) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", k.address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", k.address, err)
	}
	return k.ServeListener(ctx, ln)
}

// ServeListener serves on ln until ctx is cancelled, then shuts down
// gracefully.
func (k *Kernel) ServeListener(ctx context.Context, ln net.Listener) error {
	srv := rpc.NewServer(ln.Addr().String(), k.Handler())

	k.observer.OnEvent(ctx, observability.NewEvent(EventServeStart, observability.LevelInfo, "kernel.Serve", map[string]any{
		"address": ln.Addr().String(),
	}))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err := g.Wait()

	event := observability.NewEvent(EventServeStop, observability.LevelInfo, "kernel.Serve", nil)
	if err != nil {
		event.Type = EventError
		event.Level = observability.LevelError
		event.Data = map[string]any{"error": err.Error()}
	}
	k.observer.OnEvent(context.WithoutCancel(ctx), event)

	return err
}

// Close closes the memory and its journal.
func (k *Kernel) Close() error {
	return k.memory.Close()
}

// Package agent provides named collaborators that share one memory. Each agent
// is its own lock owner, so under strong consistency an agent's Recall and the
// Store that follows it form one atomic read-modify-write.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/tailored-agentic-units/memstore/memory"
)

// Config describes an agent at registration time.
type Config struct {
	// Owner fixes the agent's lock identity. Empty generates one.
	Owner string `json:"owner,omitempty" yaml:"owner,omitempty"`

	// Staleness is the agent's default read policy ("any" or "strict").
	Staleness string `json:"staleness,omitempty" yaml:"staleness,omitempty"`
}

// Agent reads and writes a shared memory under its own Owner.
type Agent struct {
	id        string
	name      string
	owner     memory.Owner
	staleness memory.Staleness

	mu  sync.RWMutex
	mem *memory.Memory
}

// New creates an agent with no memory attached.
func New(name string, cfg *Config) (*Agent, error) {
	if name == "" {
		return nil, ErrEmptyAgentName
	}

	staleness, err := memory.ParseStaleness(cfg.Staleness)
	if err != nil {
		return nil, err
	}

	owner := memory.Owner(cfg.Owner)
	if owner == "" {
		owner = memory.NewOwner()
	}

	return &Agent{
		id:        uuid.Must(uuid.NewV7()).String(),
		name:      name,
		owner:     owner,
		staleness: staleness,
	}, nil
}

func (a *Agent) ID() string          { return a.id }
func (a *Agent) Name() string        { return a.name }
func (a *Agent) Owner() memory.Owner { return a.owner }

// AttachMemory connects the agent to mem, replacing any previous memory.
func (a *Agent) AttachMemory(mem *memory.Memory) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.mem = mem
}

// Memory returns the attached memory, or nil.
func (a *Agent) Memory() *memory.Memory {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.mem
}

// Context returns ctx carrying the agent's Owner.
func (a *Agent) Context(ctx context.Context) context.Context {
	return memory.WithOwner(ctx, a.owner)
}

func (a *Agent) memory() (*memory.Memory, error) {
	mem := a.Memory()
	if mem == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoMemory, a.name)
	}
	return mem, nil
}

// Recall reads key with the agent's default staleness unless opts override it.
func (a *Agent) Recall(ctx context.Context, key string, opts ...memory.RecallOption) (any, bool, error) {
	mem, err := a.memory()
	if err != nil {
		return nil, false, err
	}
	opts = append([]memory.RecallOption{memory.WithStaleness(a.staleness)}, opts...)
	return mem.Recall(a.Context(ctx), key, opts...)
}

func (a *Agent) Store(ctx context.Context, key string, value any, opts ...memory.StoreOption) error {
	mem, err := a.memory()
	if err != nil {
		return err
	}
	return mem.Store(a.Context(ctx), key, value, opts...)
}

// Release ends the agent's strong-mode hold on key without writing. A key the
// agent does not hold is left alone.
func (a *Agent) Release(ctx context.Context, key string) error {
	mem, err := a.memory()
	if err != nil {
		return err
	}
	if err := mem.Release(a.Context(ctx), key); err != nil && !errors.Is(err, memory.ErrNotHeld) {
		return err
	}
	return nil
}

func (a *Agent) History(ctx context.Context, key string) ([]memory.Version, error) {
	mem, err := a.memory()
	if err != nil {
		return nil, err
	}
	return mem.History(a.Context(ctx), key)
}

// Increment adds delta to the numeric value under key through a's Recall and
// Store, treating a missing key as zero. It is atomic only when the memory
// runs with strong consistency.
func Increment(ctx context.Context, a *Agent, key string, delta float64) (float64, error) {
	v, found, err := a.Recall(ctx, key)
	if err != nil {
		return 0, err
	}

	var current float64
	if found {
		current, err = toFloat(v)
		if err != nil {
			if rerr := a.Release(ctx, key); rerr != nil {
				return 0, rerr
			}
			return 0, fmt.Errorf("%w: %s", err, key)
		}
	}

	next := current + delta
	if err := a.Store(ctx, key, next); err != nil {
		return 0, err
	}
	return next, nil
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	default:
		return 0, fmt.Errorf("%w: %T", ErrNotNumeric, v)
	}
}

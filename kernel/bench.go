package kernel

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tailored-agentic-units/memstore/agent"
	"github.com/tailored-agentic-units/memstore/memory"
	"github.com/tailored-agentic-units/memstore/observability"
)

// BenchConfig sizes a concurrent increment run.
type BenchConfig struct {
	Agents     int
	Increments int
	Key        string
}

// DefaultBenchConfig returns a small contended workload.
func DefaultBenchConfig() BenchConfig {
	return BenchConfig{Agents: 8, Increments: 200, Key: "counter"}
}

// BenchResult reports the outcome of one run. Lost counts increments that
// were overwritten by a concurrent read-modify-write.
type BenchResult struct {
	Consistency memory.Consistency
	Expected    int64
	Final       int64
	Lost        int64
	Duration    time.Duration
	Stats       memory.StatsSnapshot
}

// Bench runs cfg.Agents agents that each increment cfg.Key cfg.Increments
// times against a fresh memory in the given mode.
func Bench(ctx context.Context, consistency memory.Consistency, cfg BenchConfig, obs observability.Observer) (*BenchResult, error) {
	obs = observability.OrNoOp(obs)

	mem, err := memory.New(consistency, memory.WithObserver(obs))
	if err != nil {
		return nil, err
	}
	defer mem.Close()

	reg := agent.NewRegistry(mem)
	agents := make([]*agent.Agent, 0, cfg.Agents)
	for i := range cfg.Agents {
		name := fmt.Sprintf("agent-%02d", i)
		if err := reg.Register(name, agent.Config{}); err != nil {
			return nil, err
		}
		a, err := reg.Get(name)
		if err != nil {
			return nil, err
		}
		agents = append(agents, a)
	}

	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	for _, a := range agents {
		g.Go(func() error {
			for range cfg.Increments {
				if _, err := agent.Increment(gctx, a, cfg.Key, 1); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &BenchResult{
		Consistency: consistency,
		Expected:    int64(cfg.Agents * cfg.Increments),
		Duration:    time.Since(start),
	}

	v, _, err := mem.Retrieve(ctx, cfg.Key)
	if err != nil {
		return nil, err
	}

	if f, ok := v.(float64); ok {
		result.Final = int64(f)
	}
	result.Lost = result.Expected - result.Final
	result.Stats = mem.Stats()

	obs.OnEvent(ctx, observability.NewEvent(EventBench, observability.LevelInfo, "kernel.Bench", map[string]any{
		"consistency": string(consistency),
		"expected":    result.Expected,
		"final":       result.Final,
		"lost":        result.Lost,
		"duration":    result.Duration,
	}))

	return result, nil
}

package agent

import (
	"fmt"
	"sort"
	"sync"

	"github.com/tailored-agentic-units/memstore/memory"
)

// AgentInfo describes a registered agent.
type AgentInfo struct {
	Name  string
	Owner memory.Owner
}

// Registry manages named agents that share one memory. Configs are stored at
// registration time; agents are created and attached on first Get.
// Thread-safe for concurrent access.
type Registry struct {
	mu      sync.RWMutex
	mem     *memory.Memory
	configs map[string]Config
	agents  map[string]*Agent
}

// NewRegistry creates an empty Registry whose agents share mem.
func NewRegistry(mem *memory.Memory) *Registry {
	return &Registry{
		mem:     mem,
		configs: make(map[string]Config),
		agents:  make(map[string]*Agent),
	}
}

// Get retrieves a named agent, instantiating it lazily on first access.
func (r *Registry) Get(name string) (*Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cfg, registered := r.configs[name]
	if !registered {
		return nil, fmt.Errorf("%w: %s", ErrAgentNotFound, name)
	}

	if a, exists := r.agents[name]; exists {
		return a, nil
	}

	a, err := New(name, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create agent %q: %w", name, err)
	}
	a.AttachMemory(r.mem)

	r.agents[name] = a
	return a, nil
}

// List returns all registered agents sorted by name. Owners are reported only
// for agents that have been instantiated or have a fixed owner.
func (r *Registry) List() []AgentInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]AgentInfo, 0, len(r.configs))
	for name, cfg := range r.configs {
		info := AgentInfo{Name: name, Owner: memory.Owner(cfg.Owner)}
		if a, ok := r.agents[name]; ok {
			info.Owner = a.Owner()
		}
		infos = append(infos, info)
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Name < infos[j].Name
	})

	return infos
}

// Register adds a named agent configuration to the registry.
func (r *Registry) Register(name string, cfg Config) error {
	if name == "" {
		return ErrEmptyAgentName
	}
	if _, err := memory.ParseStaleness(cfg.Staleness); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.configs[name]; exists {
		return fmt.Errorf("%w: %s", ErrAgentExists, name)
	}

	r.configs[name] = cfg
	return nil
}

// Unregister removes a named agent from the registry.
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.configs[name]; !exists {
		return fmt.Errorf("%w: %s", ErrAgentNotFound, name)
	}

	delete(r.configs, name)
	delete(r.agents, name)
	return nil
}

package kernel

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tailored-agentic-units/memstore/agent"
	"github.com/tailored-agentic-units/memstore/memory"
)

const defaultAddress = "127.0.0.1:7420"

// ServerConfig configures the RPC listener.
type ServerConfig struct {
	Address string `json:"address,omitempty" yaml:"address,omitempty"`
}

// ObservabilityConfig selects where events go.
type ObservabilityConfig struct {
	// Observers names registered observers ("slog", "noop", ...).
	Observers []string `json:"observers,omitempty" yaml:"observers,omitempty"`
	// Metrics enables the Prometheus observer and the /metrics endpoint.
	Metrics bool `json:"metrics,omitempty" yaml:"metrics,omitempty"`
	// OTel records events on the global OpenTelemetry meter.
	OTel bool `json:"otel,omitempty" yaml:"otel,omitempty"`
}

// Config holds initialization parameters for all subsystems.
type Config struct {
	Memory        memory.Config           `json:"memory" yaml:"memory"`
	Agents        map[string]agent.Config `json:"agents,omitempty" yaml:"agents,omitempty"`
	Server        ServerConfig            `json:"server" yaml:"server"`
	Observability ObservabilityConfig     `json:"observability" yaml:"observability"`
}

// DefaultConfig returns a Config with sensible defaults for all subsystems.
func DefaultConfig() Config {
	return Config{
		Memory: memory.DefaultConfig(),
		Server: ServerConfig{Address: defaultAddress},
		Observability: ObservabilityConfig{
			Observers: []string{"slog"},
		},
	}
}

// Merge applies non-zero values from source into c, delegating to each
// subsystem's Merge method.
func (c *Config) Merge(source *Config) {
	c.Memory.Merge(&source.Memory)

	if len(source.Agents) > 0 {
		c.Agents = source.Agents
	}
	if source.Server.Address != "" {
		c.Server.Address = source.Server.Address
	}
	if len(source.Observability.Observers) > 0 {
		c.Observability.Observers = source.Observability.Observers
	}
	if source.Observability.Metrics {
		c.Observability.Metrics = true
	}
	if source.Observability.OTel {
		c.Observability.OTel = true
	}
}

// LoadConfig reads a config file, merges it with defaults, and returns the
// resulting Config. Files ending in .yaml or .yml are parsed as YAML, anything
// else as JSON.
func LoadConfig(filename string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var loaded Config
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &loaded)
	default:
		err = json.Unmarshal(data, &loaded)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	cfg.Merge(&loaded)
	return &cfg, nil
}

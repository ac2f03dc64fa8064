package memory

// Journal backends understood by JournalConfig.
const (
	JournalNone   = ""
	JournalFile   = "file"
	JournalBadger = "badger"
)

// JournalConfig selects where written versions are persisted.
type JournalConfig struct {
	Backend    string `json:"backend,omitempty" yaml:"backend,omitempty"`         // "", "file" or "badger".
	Path       string `json:"path,omitempty" yaml:"path,omitempty"`               // Directory for file or badger data.
	InMemory   bool   `json:"in_memory,omitempty" yaml:"in_memory,omitempty"`     // Badger only; no disk persistence.
	SyncWrites bool   `json:"sync_writes,omitempty" yaml:"sync_writes,omitempty"` // Badger only.
}

// Config holds memory initialization parameters.
type Config struct {
	Consistency string        `json:"consistency,omitempty" yaml:"consistency,omitempty"`
	Journal     JournalConfig `json:"journal" yaml:"journal"`
}

// DefaultConfig returns the default memory configuration: eventual
// consistency, no journal.
func DefaultConfig() Config {
	return Config{Consistency: string(Eventual)}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.Consistency != "" {
		c.Consistency = source.Consistency
	}
	if source.Journal.Backend != "" {
		c.Journal.Backend = source.Journal.Backend
	}
	if source.Journal.Path != "" {
		c.Journal.Path = source.Journal.Path
	}
	if source.Journal.InMemory {
		c.Journal.InMemory = true
	}
	if source.Journal.SyncWrites {
		c.Journal.SyncWrites = true
	}
}

// NewFromConfig creates a Memory from configuration. Only the "file" journal
// backend is built here; other backends are supplied with WithJournal.
func NewFromConfig(cfg *Config, opts ...Option) (*Memory, error) {
	consistency, err := ParseConsistency(cfg.Consistency)
	if err != nil {
		return nil, err
	}

	if cfg.Journal.Backend == JournalFile && cfg.Journal.Path != "" {
		opts = append([]Option{WithJournal(NewFileJournal(cfg.Journal.Path))}, opts...)
	}

	return New(consistency, opts...)
}

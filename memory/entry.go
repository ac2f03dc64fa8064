package memory

import (
	"fmt"
	"time"
)

// Consistency selects how Recall and Store coordinate across calls. It is
// fixed when a Memory is constructed.
type Consistency string

const (
	// Eventual makes every Recall and Store independently atomic. A
	// read-then-write pair is not atomic.
	Eventual Consistency = "eventual"
	// Strong retains the key lock from Recall until the matching Store by the
	// same owner, making read-modify-write sequences atomic per key.
	Strong Consistency = "strong"
)

// Valid reports whether c names a supported consistency mode.
func (c Consistency) Valid() bool {
	return c == Eventual || c == Strong
}

// ParseConsistency converts a configuration string into a Consistency.
// An empty string selects Eventual.
func ParseConsistency(s string) (Consistency, error) {
	if s == "" {
		return Eventual, nil
	}
	c := Consistency(s)
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidConsistency, s)
	}
	return c, nil
}

// Staleness chooses which version a read returns.
type Staleness string

const (
	// Any returns the most recently inserted value.
	Any Staleness = "any"
	// Strict returns the value carrying the greatest timestamp. Ties resolve
	// to the earliest inserted of the tied entries.
	Strict Staleness = "strict"
)

// ParseStaleness converts a request string into a Staleness. An empty string
// selects Any.
func ParseStaleness(s string) (Staleness, error) {
	switch Staleness(s) {
	case "", Any:
		return Any, nil
	case Strict:
		return Strict, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStaleness, s)
	}
}

// Version is one immutable entry of a key's history.
type Version struct {
	Value     any       `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

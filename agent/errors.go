package agent

import "errors"

var (
	ErrAgentExists    = errors.New("agent already registered")
	ErrAgentNotFound  = errors.New("agent not found")
	ErrEmptyAgentName = errors.New("agent name must not be empty")
	ErrNoMemory       = errors.New("agent has no memory attached")
	ErrNotNumeric     = errors.New("value is not numeric")
)

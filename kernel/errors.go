package kernel

import "errors"

var (
	ErrInvalidConfig  = errors.New("failed to parse config file")
	ErrUnknownJournal = errors.New("unknown journal backend")
)

package memory

import "errors"

// Sentinel errors for memory operations.
var (
	ErrInvalidConsistency = errors.New("invalid consistency mode")
	ErrInvalidStaleness   = errors.New("invalid staleness policy")
	ErrNoOwner            = errors.New("no owner in context")
	ErrLeaseClosed        = errors.New("lease already closed")
	ErrJournalAppend      = errors.New("journal append failed")
	ErrJournalReplay      = errors.New("journal replay failed")
	ErrNotEmpty           = errors.New("memory is not empty")
	ErrNotHeld            = errors.New("key not held by owner")
	ErrLeaseHeld          = errors.New("key held by a lease of this owner")
	ErrAlreadyHeld        = errors.New("key already held by owner")
)

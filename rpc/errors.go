package rpc

import (
	"context"
	"errors"

	"connectrpc.com/connect"

	"github.com/tailored-agentic-units/memstore/memory"
)

var (
	ErrMissingKey       = errors.New("key is required")
	ErrInvalidTimestamp = errors.New("timestamp must be RFC3339")
	ErrInvalidValue     = errors.New("value is not representable")
)

// connectError maps memory and request errors onto connect codes.
func connectError(err error) *connect.Error {
	var ce *connect.Error
	if errors.As(err, &ce) {
		return ce
	}

	switch {
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	case errors.Is(err, memory.ErrNoOwner),
		errors.Is(err, memory.ErrInvalidStaleness),
		errors.Is(err, ErrMissingKey),
		errors.Is(err, ErrInvalidTimestamp),
		errors.Is(err, ErrInvalidValue):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, memory.ErrNotHeld),
		errors.Is(err, memory.ErrLeaseHeld),
		errors.Is(err, memory.ErrAlreadyHeld):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	case errors.Is(err, memory.ErrJournalAppend):
		return connect.NewError(connect.CodeUnavailable, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}

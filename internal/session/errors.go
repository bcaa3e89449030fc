package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/containerd/errdefs"
)

// Kind classifies why an action failed.
type Kind string

const (
	KindBusy               Kind = "busy"
	KindServiceUnavailable Kind = "service_unavailable"
	KindInvalidCase        Kind = "invalid_case"
	KindMalformedResponse  Kind = "malformed_response"
	KindUnknown            Kind = "unknown"
)

// ErrBusy is returned when an action is attempted while another is in flight.
var ErrBusy = fmt.Errorf("another action is in flight: %w", errdefs.ErrConflict)

// Error is returned by every failing coordinator action.
type Error struct {
	Op   string // "load_case" or "send_message"
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf maps an error onto the session taxonomy. Errors that already carry a
// Kind keep it; anything else is classified through its errdefs category.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	switch {
	case errors.Is(err, ErrBusy), errdefs.IsConflict(err):
		return KindBusy
	case errdefs.IsUnavailable(err), errors.Is(err, context.DeadlineExceeded):
		return KindServiceUnavailable
	case errdefs.IsInvalidArgument(err), errdefs.IsNotFound(err):
		return KindInvalidCase
	case errdefs.IsDataLoss(err):
		return KindMalformedResponse
	default:
		return KindUnknown
	}
}

func wrap(op string, err error) *Error {
	return &Error{Op: op, Kind: KindOf(err), Err: err}
}

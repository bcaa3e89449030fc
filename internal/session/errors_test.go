package session

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/containerd/errdefs"
)

func TestKindOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "nil", err: nil, want: ""},
		{name: "busy", err: ErrBusy, want: KindBusy},
		{name: "unavailable", err: fmt.Errorf("x: %w", errdefs.ErrUnavailable), want: KindServiceUnavailable},
		{name: "deadline", err: context.DeadlineExceeded, want: KindServiceUnavailable},
		{name: "invalid", err: fmt.Errorf("x: %w", errdefs.ErrInvalidArgument), want: KindInvalidCase},
		{name: "not found", err: errdefs.ErrNotFound, want: KindInvalidCase},
		{name: "data loss", err: fmt.Errorf("x: %w", errdefs.ErrDataLoss), want: KindMalformedResponse},
		{name: "plain", err: errors.New("boom"), want: KindUnknown},
		{name: "wrapped session error", err: fmt.Errorf("outer: %w", &Error{Op: "load_case", Kind: KindInvalidCase}), want: KindInvalidCase},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}

func TestErrorMessage(t *testing.T) {
	t.Parallel()

	err := &Error{Op: "send_message", Kind: KindUnknown, Err: errors.New("boom")}
	if got := err.Error(); got != "send_message: unknown: boom" {
		t.Fatalf("unexpected message %q", got)
	}
}

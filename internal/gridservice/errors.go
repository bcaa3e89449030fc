package gridservice

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/containerd/errdefs"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	errEmptyResponse = errors.New("empty response text")
	errMissingStats  = errors.New("response has no stats")
)

// unknownCaseMarker is how the backend reports a case it cannot build.
const unknownCaseMarker = "unknown network name"

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, errdefs.ErrUnavailable, err)
}

func malformed(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, errdefs.ErrDataLoss, err)
}

// classifyTransport wraps a transport-level failure (no response received).
func classifyTransport(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return unavailable(op, err)
}

// classifyStatus maps an HTTP status and error detail to an errdefs category.
func classifyStatus(op string, code int, detail string) error {
	msg := strings.TrimSpace(detail)
	if msg == "" {
		msg = http.StatusText(code)
	}
	switch {
	case code == http.StatusBadGateway, code == http.StatusServiceUnavailable, code == http.StatusGatewayTimeout:
		return fmt.Errorf("%s: %w: %s", op, errdefs.ErrUnavailable, msg)
	case code == http.StatusBadRequest, code == http.StatusNotFound, code == http.StatusUnprocessableEntity:
		return fmt.Errorf("%s: %w: %s", op, errdefs.ErrInvalidArgument, msg)
	case code == http.StatusInternalServerError && strings.Contains(strings.ToLower(msg), unknownCaseMarker):
		return fmt.Errorf("%s: %w: %s", op, errdefs.ErrInvalidArgument, msg)
	default:
		return fmt.Errorf("%s: %w: status %d: %s", op, errdefs.ErrUnknown, code, msg)
	}
}

// classifyGrpc maps a gRPC status onto the same categories as classifyStatus.
func classifyGrpc(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", op, err)
	}
	st, ok := status.FromError(err)
	if !ok {
		return unavailable(op, err)
	}
	switch st.Code() {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted:
		return fmt.Errorf("%s: %w: %s", op, errdefs.ErrUnavailable, st.Message())
	case codes.InvalidArgument, codes.NotFound, codes.FailedPrecondition:
		return fmt.Errorf("%s: %w: %s", op, errdefs.ErrInvalidArgument, st.Message())
	case codes.DataLoss:
		return fmt.Errorf("%s: %w: %s", op, errdefs.ErrDataLoss, st.Message())
	case codes.Canceled:
		return fmt.Errorf("%s: %w", op, context.Canceled)
	default:
		if strings.Contains(strings.ToLower(st.Message()), unknownCaseMarker) {
			return fmt.Errorf("%s: %w: %s", op, errdefs.ErrInvalidArgument, st.Message())
		}
		return fmt.Errorf("%s: %w: %s: %s", op, errdefs.ErrUnknown, st.Code(), st.Message())
	}
}

// Package gridservice provides clients for the remote grid simulation and assistant service.
package gridservice

import (
	"context"

	"github.com/ashureev/gridassist/internal/domain"
)

// LoadResult is returned by a successful case load.
type LoadResult struct {
	Stats   domain.GridStatistics
	Message string
}

// ChatResult is returned by a successful chat turn.
// Stats is nil when the service did not report fresh statistics.
type ChatResult struct {
	ResponseText string
	Stats        *domain.GridStatistics
}

// Service is the contract the session coordinator consumes.
// Both calls block until the service answers or ctx ends; failures wrap an
// errdefs category (ErrUnavailable, ErrInvalidArgument, ErrDataLoss, ErrUnknown).
type Service interface {
	// LoadCase loads a named case and returns its initial statistics.
	LoadCase(ctx context.Context, caseName string) (LoadResult, error)

	// SendMessage forwards an operator message to the assistant.
	SendMessage(ctx context.Context, text string) (ChatResult, error)
}

// CaseLister is implemented by services that can enumerate loadable cases.
type CaseLister interface {
	ListCases(ctx context.Context) ([]string, error)
}

// Pinger is implemented by services with a health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Client is a Service that also lists cases, checks health and holds resources.
type Client interface {
	Service
	CaseLister
	Pinger
	Close() error
}

// Ensure both transports implement Client.
var (
	_ Client = (*HTTPClient)(nil)
	_ Client = (*GrpcClient)(nil)
)

// Package store provides persistence for the session registry.
package store

import (
	"context"
	"time"

	"github.com/ashureev/gridassist/internal/domain"
)

// Repository defines the interface for persisting session lifecycle records.
// Conversation logs and grid statistics are never stored here.
type Repository interface {
	// CreateSession inserts a new session record.
	CreateSession(ctx context.Context, rec *domain.SessionRecord) error

	// GetSession retrieves a session by id. Returns nil, nil when absent.
	GetSession(ctx context.Context, sessionID string) (*domain.SessionRecord, error)

	// TouchSession updates the last_active_at timestamp of an active session.
	TouchSession(ctx context.Context, sessionID string, at time.Time) error

	// UpdateSessionCase records the case currently loaded in a session.
	UpdateSessionCase(ctx context.Context, sessionID string, caseName string) error

	// EndSession marks a session as ended. Ending an ended session is a no-op.
	EndSession(ctx context.Context, sessionID string, at time.Time) error

	// GetExpiredSessions retrieves active sessions idle for longer than ttl.
	GetExpiredSessions(ctx context.Context, ttl time.Duration) ([]*domain.SessionRecord, error)

	// EndOrphanedSessions marks every active session as ended. Called at
	// startup because in-memory session state does not survive a restart.
	EndOrphanedSessions(ctx context.Context) (int64, error)

	// PurgeEndedSessions deletes ended sessions older than retention.
	PurgeEndedSessions(ctx context.Context, retention time.Duration) (int64, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}

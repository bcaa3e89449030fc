package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/containerd/errdefs"
	_ "modernc.org/sqlite"

	"github.com/ashureev/gridassist/internal/domain"
	"github.com/ashureev/gridassist/internal/shared"
)

const (
	maxRetries     = 3
	retryBaseDelay = 100 * time.Millisecond
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// WAL mode lets the reaper read while handlers write.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS sessions (
		session_id TEXT PRIMARY KEY,
		operator_id TEXT NOT NULL,
		tab_id TEXT NOT NULL,
		current_case TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		last_active_at INTEGER NOT NULL,
		ended_at INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_active ON sessions(last_active_at) WHERE ended_at IS NULL;
	CREATE INDEX IF NOT EXISTS idx_sessions_operator ON sessions(operator_id, tab_id);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateSession inserts a new session record.
func (s *SQLiteStore) CreateSession(ctx context.Context, rec *domain.SessionRecord) error {
	if rec == nil || rec.SessionID == "" {
		return fmt.Errorf("create session: %w", errdefs.ErrInvalidArgument)
	}
	query := `
	INSERT INTO sessions (session_id, operator_id, tab_id, current_case, created_at, last_active_at, ended_at)
	VALUES (?, ?, ?, ?, ?, ?, NULL)`

	return withRetry(ctx, "create session", func() error {
		_, err := s.db.ExecContext(ctx, query,
			rec.SessionID, rec.OperatorID, rec.TabID, rec.CurrentCase,
			rec.CreatedAt.Unix(), rec.LastActiveAt.Unix(),
		)
		return err
	})
}

// GetSession retrieves a session by id.
func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (*domain.SessionRecord, error) {
	query := `
		SELECT session_id, operator_id, tab_id, current_case,
		       created_at, last_active_at, ended_at
		FROM sessions WHERE session_id = ?`

	rec, err := scanSession(s.db.QueryRowContext(ctx, query, sessionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan session row: %w", err)
	}
	return rec, nil
}

// TouchSession updates the last_active_at timestamp of an active session.
func (s *SQLiteStore) TouchSession(ctx context.Context, sessionID string, at time.Time) error {
	query := `UPDATE sessions SET last_active_at = ? WHERE session_id = ? AND ended_at IS NULL`
	var rows int64
	err := withRetry(ctx, "touch session", func() error {
		result, err := s.db.ExecContext(ctx, query, at.Unix(), sessionID)
		if err != nil {
			return err
		}
		rows, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return err
	}
	if rows == 0 {
		slog.Warn("TouchSession affected 0 rows", "session_id", sessionID)
		return fmt.Errorf("session %s: %w", sessionID, errdefs.ErrNotFound)
	}
	return nil
}

// UpdateSessionCase records the case currently loaded in a session.
func (s *SQLiteStore) UpdateSessionCase(ctx context.Context, sessionID string, caseName string) error {
	query := `UPDATE sessions SET current_case = ? WHERE session_id = ?`
	var rows int64
	err := withRetry(ctx, "update session case", func() error {
		result, err := s.db.ExecContext(ctx, query, caseName, sessionID)
		if err != nil {
			return err
		}
		rows, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("session %s: %w", sessionID, errdefs.ErrNotFound)
	}
	return nil
}

// EndSession marks a session as ended.
func (s *SQLiteStore) EndSession(ctx context.Context, sessionID string, at time.Time) error {
	query := `UPDATE sessions SET ended_at = ? WHERE session_id = ? AND ended_at IS NULL`
	return withRetry(ctx, "end session", func() error {
		_, err := s.db.ExecContext(ctx, query, at.Unix(), sessionID)
		return err
	})
}

// GetExpiredSessions retrieves active sessions idle for longer than ttl.
func (s *SQLiteStore) GetExpiredSessions(ctx context.Context, ttl time.Duration) ([]*domain.SessionRecord, error) {
	threshold := time.Now().Add(-ttl).Unix()
	query := `
		SELECT session_id, operator_id, tab_id, current_case,
		       created_at, last_active_at, ended_at
		FROM sessions WHERE ended_at IS NULL AND last_active_at < ?
		ORDER BY last_active_at`

	rows, err := s.db.QueryContext(ctx, query, threshold)
	if err != nil {
		return nil, fmt.Errorf("query expired sessions: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close expired sessions rows", "error", closeErr)
		}
	}()

	var out []*domain.SessionRecord
	for rows.Next() {
		rec, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expired session row: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expired sessions: %w", err)
	}
	return out, nil
}

// EndOrphanedSessions marks every active session as ended.
func (s *SQLiteStore) EndOrphanedSessions(ctx context.Context) (int64, error) {
	var n int64
	err := withRetry(ctx, "end orphaned sessions", func() error {
		result, err := s.db.ExecContext(ctx,
			`UPDATE sessions SET ended_at = ? WHERE ended_at IS NULL`, time.Now().Unix())
		if err != nil {
			return err
		}
		n, err = result.RowsAffected()
		return err
	})
	return n, err
}

// PurgeEndedSessions deletes ended sessions older than retention.
func (s *SQLiteStore) PurgeEndedSessions(ctx context.Context, retention time.Duration) (int64, error) {
	threshold := time.Now().Add(-retention).Unix()
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE ended_at IS NOT NULL AND ended_at < ?`, threshold)
	if err != nil {
		return 0, fmt.Errorf("purge ended sessions: %w", err)
	}
	return result.RowsAffected()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.SessionRecord, error) {
	var rec domain.SessionRecord
	var createdAt, lastActive int64
	var endedAt sql.NullInt64

	if err := row.Scan(
		&rec.SessionID, &rec.OperatorID, &rec.TabID, &rec.CurrentCase,
		&createdAt, &lastActive, &endedAt,
	); err != nil {
		return nil, err
	}

	rec.CreatedAt = time.Unix(createdAt, 0)
	rec.LastActiveAt = time.Unix(lastActive, 0)
	if endedAt.Valid {
		ts := time.Unix(endedAt.Int64, 0)
		rec.EndedAt = &ts
	}
	return &rec, nil
}

// withRetry runs fn, retrying with exponential backoff on SQLite lock contention.
func withRetry(ctx context.Context, op string, fn func() error) error {
	var err error
	for i := range maxRetries {
		err = fn()
		if err == nil {
			return nil
		}
		if !shared.IsSQLiteConflictError(err) || i == maxRetries-1 {
			break
		}
		delay := retryBaseDelay * time.Duration(1<<i) // 100ms, 200ms, 400ms
		slog.Debug("sqlite busy, retrying", "op", op, "attempt", i+1, "delay", delay)
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s: %w", op, ctx.Err())
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("%s: %w", op, shared.AsConflict(err))
}

var _ Repository = (*SQLiteStore)(nil)

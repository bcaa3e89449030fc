// Package shared classifies SQLite driver errors for the session repository.
//
//nolint:revive // "shared" is an intentional package name for cross-cutting helpers.
package shared

import (
	"errors"
	"fmt"
	"strings"

	"github.com/containerd/errdefs"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// IsSQLiteConflictError reports whether err is lock contention (SQLITE_BUSY
// or SQLITE_LOCKED, including extended codes) that is worth retrying.
// Errors that lost their driver type are matched on the message.
func IsSQLiteConflictError(err error) bool {
	if err == nil {
		return false
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return true
		default:
			return false
		}
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// AsConflict tags contention errors with errdefs.ErrConflict so callers can
// classify them without knowing about SQLite. Other errors pass through.
func AsConflict(err error) error {
	if !IsSQLiteConflictError(err) || errdefs.IsConflict(err) {
		return err
	}
	return fmt.Errorf("%w: %w", errdefs.ErrConflict, err)
}

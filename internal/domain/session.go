package domain

import "time"

// SessionRecord is the persisted registry row for a live or ended session.
// Conversation and statistics are never stored; the row only tracks lifecycle.
type SessionRecord struct {
	SessionID    string
	OperatorID   string
	TabID        string
	CurrentCase  string
	CreatedAt    time.Time
	LastActiveAt time.Time
	EndedAt      *time.Time
}

// Active reports whether the session has not been ended.
func (r *SessionRecord) Active() bool {
	return r.EndedAt == nil
}

// TimeToExpiry returns how long until an idle session exceeds ttl.
// Returns 0 for ended or already expired sessions.
func (r *SessionRecord) TimeToExpiry(ttl time.Duration, now time.Time) time.Duration {
	if !r.Active() {
		return 0
	}
	left := r.LastActiveAt.Add(ttl).Sub(now)
	if left < 0 {
		return 0
	}
	return left
}

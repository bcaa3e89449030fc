package registry

import (
	"context"
	"time"
)

const endedRetention = 7 * 24 * time.Hour

// RunReaper ends idle sessions every interval until ctx is done.
func (r *Registry) RunReaper(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	r.logger.Info("Session reaper started", "interval", interval, "ttl", r.ttl)

	for {
		select {
		case <-ticker.C:
			r.Reap(ctx)
		case <-ctx.Done():
			r.logger.Info("Session reaper shutting down", "reason", ctx.Err())
			return nil
		}
	}
}

// Reap ends sessions idle longer than the TTL and returns how many it ended.
// Sessions with an action in flight are never reaped.
func (r *Registry) Reap(ctx context.Context) int {
	expired, err := r.repo.GetExpiredSessions(ctx, r.ttl)
	if err != nil {
		r.logger.Error("Reaper failed to get expired sessions", "error", err)
		return 0
	}

	now := r.now()
	ended := 0
	for _, rec := range expired {
		key := Key{OperatorID: rec.OperatorID, TabID: rec.TabID}

		r.mu.Lock()
		s, live := r.sessions[key]
		if live && s.ID != rec.SessionID {
			// The row belongs to an earlier session for the same tab.
			live = false
			s = nil
		}
		if live && s.Store().IsProcessing() {
			s.touch(now)
		}
		if live && now.Sub(s.LastActive()) < r.ttl {
			r.mu.Unlock()
			s.persistActivity(ctx)
			continue
		}
		if live {
			delete(r.sessions, key)
		}
		r.mu.Unlock()

		if live {
			if err := r.finish(ctx, s, ReasonExpired); err != nil {
				r.logger.Warn("Reaper failed to end session", "session_id", rec.SessionID, "error", err)
			}
		} else if err := r.repo.EndSession(ctx, rec.SessionID, now); err != nil {
			r.logger.Warn("Reaper failed to end stale session row", "session_id", rec.SessionID, "error", err)
		}
		ended++
	}

	if ended > 0 {
		r.logger.Info("Reaper ended idle sessions", "count", ended)
	}

	if purged, err := r.repo.PurgeEndedSessions(ctx, endedRetention); err != nil {
		r.logger.Error("Reaper failed to purge ended sessions", "error", err)
	} else if purged > 0 {
		r.logger.Info("Reaper purged ended sessions", "count", purged)
	}
	return ended
}

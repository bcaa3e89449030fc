package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/containerd/errdefs"

	"github.com/ashureev/gridassist/internal/domain"
	"github.com/ashureev/gridassist/internal/session"
	"github.com/ashureev/gridassist/internal/store"
	"github.com/ashureev/gridassist/internal/transcript"
)

// ErrSessionEnded is returned by actions on a session that has already ended.
var ErrSessionEnded = fmt.Errorf("session ended: %w", errdefs.ErrNotFound)

// Session is one live operator session.
type Session struct {
	ID        string
	Key       Key
	CreatedAt time.Time

	coordinator *session.Coordinator
	repo        store.Repository
	transcript  *transcript.SessionObserver
	logger      *slog.Logger
	now         func() time.Time

	lastActive atomic.Int64
	closed     atomic.Bool
}

// Store returns the session state for read-only use by surfaces.
func (s *Session) Store() *session.Store {
	return s.coordinator.Store()
}

// Snapshot returns the current session state.
func (s *Session) Snapshot() session.Snapshot {
	return s.coordinator.Store().Snapshot()
}

// LastActive returns when the session last served a request.
func (s *Session) LastActive() time.Time {
	return time.Unix(0, s.lastActive.Load())
}

// Closed reports whether the session has ended.
func (s *Session) Closed() bool {
	return s.closed.Load()
}

// LoadCase delegates to the coordinator and records the loaded case.
// Ended sessions refuse without calling the grid service.
func (s *Session) LoadCase(ctx context.Context, caseName string) (domain.GridStatistics, error) {
	if s.Closed() {
		return domain.GridStatistics{}, fmt.Errorf("load case in %s: %w", s.ID, ErrSessionEnded)
	}
	s.touch(s.now())
	stats, err := s.coordinator.LoadCase(ctx, caseName)
	if err != nil {
		return stats, err
	}
	if perr := s.repo.UpdateSessionCase(ctx, s.ID, caseName); perr != nil {
		s.logger.Warn("Failed to record session case", "case", caseName, "error", perr)
	}
	s.persistActivity(ctx)
	return stats, nil
}

// SendMessage delegates to the coordinator.
func (s *Session) SendMessage(ctx context.Context, text string) (string, error) {
	if s.Closed() {
		return "", fmt.Errorf("send message in %s: %w", s.ID, ErrSessionEnded)
	}
	s.touch(s.now())
	reply, err := s.coordinator.SendMessage(ctx, text)
	s.persistActivity(ctx)
	return reply, err
}

// Touch marks the session active, for reads that do not go through an action.
func (s *Session) Touch(ctx context.Context) {
	s.touch(s.now())
	s.persistActivity(ctx)
}

func (s *Session) touch(at time.Time) {
	s.lastActive.Store(at.UnixNano())
}

func (s *Session) persistActivity(ctx context.Context) {
	if s.Closed() {
		return
	}
	// The request context may already be canceled once a slow action returns.
	ctx = context.WithoutCancel(ctx)
	if err := s.repo.TouchSession(ctx, s.ID, s.LastActive()); err != nil {
		s.logger.Debug("Failed to persist session activity", "error", err)
	}
}

func (s *Session) close() {
	if s.closed.CompareAndSwap(false, true) {
		s.coordinator.Store().Close()
	}
}

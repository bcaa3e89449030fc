// Package registry owns the live operator sessions of a server process.
// Each (operator, tab) pair gets its own Store and Coordinator.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/containerd/errdefs"
	"github.com/google/uuid"

	"github.com/ashureev/gridassist/internal/domain"
	"github.com/ashureev/gridassist/internal/gridservice"
	"github.com/ashureev/gridassist/internal/session"
	"github.com/ashureev/gridassist/internal/store"
	"github.com/ashureev/gridassist/internal/transcript"
)

// Key identifies a session by operator and browser tab.
type Key struct {
	OperatorID string
	TabID      string
}

// End reasons recorded in transcripts and logs.
const (
	ReasonClosed   = "closed"
	ReasonExpired  = "expired"
	ReasonShutdown = "shutdown"
)

// EndHook runs after a session has been removed from the registry.
type EndHook func(s *Session, reason string)

// Registry maps identities to live sessions.
type Registry struct {
	repo        store.Repository
	service     gridservice.Service
	metrics     *session.Metrics
	transcripts *transcript.Logger
	logger      *slog.Logger
	now         func() time.Time
	ttl         time.Duration

	mu       sync.Mutex
	sessions map[Key]*Session
	onEnd    []EndHook
}

// Option configures a Registry.
type Option func(*Registry)

// WithMetrics attaches shared coordinator metrics.
func WithMetrics(m *session.Metrics) Option {
	return func(r *Registry) { r.metrics = m }
}

// WithTranscripts attaches a transcript logger.
func WithTranscripts(l *transcript.Logger) Option {
	return func(r *Registry) { r.transcripts = l }
}

// WithLogger sets the base logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// New creates a registry. ttl is the idle time after which the reaper ends a session.
func New(repo store.Repository, service gridservice.Service, ttl time.Duration, opts ...Option) *Registry {
	r := &Registry{
		repo:     repo,
		service:  service,
		logger:   slog.Default(),
		now:      time.Now,
		ttl:      ttl,
		sessions: make(map[Key]*Session),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// OnEnd registers a hook run whenever a session ends.
func (r *Registry) OnEnd(h EndHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onEnd = append(r.onEnd, h)
}

// Recover marks sessions left active by a previous process as ended.
// Their in-memory state is gone and is never restored.
func (r *Registry) Recover(ctx context.Context) error {
	n, err := r.repo.EndOrphanedSessions(ctx)
	if err != nil {
		return fmt.Errorf("end orphaned sessions: %w", err)
	}
	if n > 0 {
		r.logger.Info("Ended sessions orphaned by previous run", "count", n)
	}
	return nil
}

// Acquire returns the live session for key, creating it on first use.
func (r *Registry) Acquire(ctx context.Context, key Key) (*Session, error) {
	if key.OperatorID == "" || key.TabID == "" {
		return nil, fmt.Errorf("acquire session: %w", errdefs.ErrInvalidArgument)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[key]; ok {
		s.touch(r.now())
		return s, nil
	}

	s := r.newSession(key)
	rec := &domain.SessionRecord{
		SessionID:    s.ID,
		OperatorID:   key.OperatorID,
		TabID:        key.TabID,
		CreatedAt:    s.CreatedAt,
		LastActiveAt: s.CreatedAt,
	}
	if err := r.repo.CreateSession(ctx, rec); err != nil {
		s.close()
		return nil, fmt.Errorf("persist session: %w", err)
	}

	r.sessions[key] = s
	if r.metrics != nil {
		r.metrics.SessionOpened()
	}
	if s.transcript != nil {
		s.transcript.Started()
	}
	s.logger.Info("Session started")
	return s, nil
}

// Lookup returns the live session for key without creating one.
func (r *Registry) Lookup(key Key) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[key]
	return s, ok
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// End terminates the session for key. Ending an unknown key returns an
// errdefs not-found error.
func (r *Registry) End(ctx context.Context, key Key) error {
	r.mu.Lock()
	s, ok := r.sessions[key]
	if ok {
		delete(r.sessions, key)
	}
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("session for tab %s: %w", key.TabID, errdefs.ErrNotFound)
	}
	return r.finish(ctx, s, ReasonClosed)
}

// Shutdown ends every live session.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	live := make([]*Session, 0, len(r.sessions))
	for key, s := range r.sessions {
		live = append(live, s)
		delete(r.sessions, key)
	}
	r.mu.Unlock()

	var errs []error
	for _, s := range live {
		if err := r.finish(ctx, s, ReasonShutdown); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Registry) newSession(key Key) *Session {
	id := uuid.NewString()
	now := r.now()
	logger := r.logger.With("session_id", id, "operator_id", key.OperatorID)

	st := session.NewStore()
	var observers session.Observers
	if r.metrics != nil {
		observers = append(observers, r.metrics)
	}
	var tr *transcript.SessionObserver
	if r.transcripts.Enabled() {
		tr = r.transcripts.ForSession(key.OperatorID, id)
		observers = append(observers, tr)
	}

	opts := []session.Option{session.WithLogger(logger)}
	if len(observers) > 0 {
		opts = append(opts, session.WithObserver(observers))
	}

	s := &Session{
		ID:          id,
		Key:         key,
		CreatedAt:   now,
		coordinator: session.NewCoordinator(st, r.service, opts...),
		repo:        r.repo,
		transcript:  tr,
		logger:      logger,
		now:         r.now,
	}
	s.touch(now)
	return s
}

func (r *Registry) finish(ctx context.Context, s *Session, reason string) error {
	s.close()
	if r.metrics != nil {
		r.metrics.SessionClosed()
	}
	if s.transcript != nil {
		s.transcript.Ended(reason)
	}

	r.mu.Lock()
	hooks := append([]EndHook(nil), r.onEnd...)
	r.mu.Unlock()
	for _, h := range hooks {
		h(s, reason)
	}

	s.logger.Info("Session ended", "reason", reason)
	if err := r.repo.EndSession(ctx, s.ID, r.now()); err != nil {
		return fmt.Errorf("persist session end: %w", err)
	}
	return nil
}

package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ashureev/gridassist/internal/domain"
	"github.com/ashureev/gridassist/internal/gridservice"
	"github.com/containerd/errdefs"
)

// Action names a user-facing coordinator operation.
type Action string

const (
	ActionLoadCase    Action = "load_case"
	ActionSendMessage Action = "send_message"
)

// Coordinator is the only caller of the grid service for one session. It
// brackets every call with the processing flag and maps each outcome onto
// exactly one set of store mutations.
//
// While an action is in flight, new actions are rejected immediately with
// KindBusy; nothing is queued.
type Coordinator struct {
	store    *Store
	service  gridservice.Service
	observer Observer
	logger   *slog.Logger

	gate     sync.Mutex
	inFlight bool
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithObserver attaches action and conversation hooks.
func WithObserver(o Observer) Option {
	return func(c *Coordinator) {
		if o != nil {
			c.observer = o
		}
	}
}

// WithLogger sets the logger; attributes such as session_id should already be attached.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewCoordinator creates a coordinator that owns writes to store.
func NewCoordinator(store *Store, service gridservice.Service, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:    store,
		service:  service,
		observer: nopObserver{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Store returns the store this coordinator writes to. Surfaces use it read-only.
func (c *Coordinator) Store() *Store {
	return c.store
}

// LoadCase loads caseName and makes its statistics current. Failures leave the
// session exactly as it was and are returned as *Error; they are not logged to
// the conversation because a load is not a chat turn.
func (c *Coordinator) LoadCase(ctx context.Context, caseName string) (domain.GridStatistics, error) {
	const op = string(ActionLoadCase)

	if strings.TrimSpace(caseName) == "" {
		c.observer.ActionRejected(ActionLoadCase, KindInvalidCase)
		return domain.GridStatistics{}, wrap(op, fmt.Errorf("case name is empty: %w", errdefs.ErrInvalidArgument))
	}

	if !c.begin(nil) {
		c.observer.ActionRejected(ActionLoadCase, KindBusy)
		return domain.GridStatistics{}, wrap(op, ErrBusy)
	}
	defer c.end()

	finish := c.track(ActionLoadCase)
	kind := KindUnknown
	defer func() { finish(kind) }()

	res, err := c.service.LoadCase(ctx, caseName)
	if err == nil {
		if verr := res.Stats.Validate(); verr != nil {
			err = fmt.Errorf("%w: %w", errdefs.ErrDataLoss, verr)
		}
	}
	if err != nil {
		serr := wrap(op, err)
		kind = serr.Kind
		c.logger.Warn("Case load failed", "case", caseName, "kind", serr.Kind, "error", err)
		return domain.GridStatistics{}, serr
	}

	c.store.SetStats(res.Stats)
	c.store.SetCurrentCase(caseName)
	kind = ""
	c.logger.Info("Case loaded", "case", caseName, "buses", res.Stats.BusCount)
	return res.Stats, nil
}

// SendMessage records text as a user turn, asks the assistant, and records
// the reply. Blank text is a no-op returning ("", nil). On failure an error
// turn is appended and the error is also returned.
func (c *Coordinator) SendMessage(ctx context.Context, text string) (string, error) {
	const op = string(ActionSendMessage)

	if strings.TrimSpace(text) == "" {
		return "", nil
	}

	userEntry := domain.NewEntry(domain.RoleUser, text)
	if !c.begin(func() { c.append(userEntry) }) {
		c.observer.ActionRejected(ActionSendMessage, KindBusy)
		return "", wrap(op, ErrBusy)
	}
	defer c.end()

	finish := c.track(ActionSendMessage)
	kind := KindUnknown
	defer func() { finish(kind) }()

	res, err := c.service.SendMessage(ctx, text)
	if err == nil && res.Stats != nil {
		if verr := res.Stats.Validate(); verr != nil {
			err = fmt.Errorf("%w: %w", errdefs.ErrDataLoss, verr)
		}
	}
	if err != nil {
		serr := wrap(op, err)
		kind = serr.Kind
		c.append(domain.NewEntry(domain.RoleError, domain.ChatFailureText))
		c.logger.Warn("Chat turn failed", "kind", serr.Kind, "error", err)
		return "", serr
	}

	if res.Stats != nil {
		c.store.SetStats(*res.Stats)
	}
	c.append(domain.NewEntry(domain.RoleAssistant, res.ResponseText))
	kind = ""
	c.logger.Info("Chat turn completed", "response_length", len(res.ResponseText), "stats_updated", res.Stats != nil)
	return res.ResponseText, nil
}

// begin enters the processing state unless an action is already in flight.
// before runs inside the same critical section, ahead of the flag flip.
func (c *Coordinator) begin(before func()) bool {
	c.gate.Lock()
	defer c.gate.Unlock()
	if c.inFlight {
		return false
	}
	c.inFlight = true
	if before != nil {
		before()
	}
	c.store.SetProcessing(true)
	return true
}

// track reports the action as started and returns the matching finish call.
// Callers defer it so the observer sees a finish even if the service panics;
// the kind is then KindUnknown.
func (c *Coordinator) track(a Action) func(Kind) {
	start := time.Now()
	c.observer.ActionStarted(a)
	return func(k Kind) {
		c.observer.ActionFinished(a, k, time.Since(start))
	}
}

func (c *Coordinator) end() {
	c.gate.Lock()
	defer c.gate.Unlock()
	c.store.SetProcessing(false)
	c.inFlight = false
}

func (c *Coordinator) append(entry domain.ConversationEntry) {
	c.store.AppendEntry(entry)
	c.observer.EntryAppended(entry)
}

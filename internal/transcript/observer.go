package transcript

import (
	"time"

	"github.com/ashureev/gridassist/internal/domain"
	"github.com/ashureev/gridassist/internal/session"
)

// SessionObserver records one session's coordinator events.
type SessionObserver struct {
	log        *Logger
	operatorID string
	sessionID  string
}

// ForSession returns an observer bound to one session.
func (l *Logger) ForSession(operatorID, sessionID string) *SessionObserver {
	return &SessionObserver{log: l, operatorID: operatorID, sessionID: sessionID}
}

func (o *SessionObserver) event(eventType string) Event {
	return Event{
		OperatorID: o.operatorID,
		SessionID:  o.sessionID,
		EventType:  eventType,
	}
}

// Started records the session opening.
func (o *SessionObserver) Started() {
	o.log.Log(o.event(EventSessionStarted))
}

// Ended records the session closing and releases its file.
func (o *SessionObserver) Ended(reason string) {
	ev := o.event(EventSessionEnded)
	ev.ContentRaw = reason
	o.log.Log(ev)
}

// ActionStarted implements session.Observer.
func (o *SessionObserver) ActionStarted(a session.Action) {
	ev := o.event(EventActionStarted)
	ev.Action = string(a)
	o.log.Log(ev)
}

// ActionFinished implements session.Observer.
func (o *SessionObserver) ActionFinished(a session.Action, k session.Kind, elapsed time.Duration) {
	ev := o.event(EventActionFinished)
	ev.Action = string(a)
	ev.Kind = string(k)
	ev.DurationMS = elapsed.Milliseconds()
	o.log.Log(ev)
}

// ActionRejected implements session.Observer.
func (o *SessionObserver) ActionRejected(a session.Action, k session.Kind) {
	ev := o.event(EventActionRejected)
	ev.Action = string(a)
	ev.Kind = string(k)
	o.log.Log(ev)
}

// EntryAppended implements session.Observer.
func (o *SessionObserver) EntryAppended(e domain.ConversationEntry) {
	ev := o.event(EventEntry)
	ev.Timestamp = e.At
	ev.Role = string(e.Role)
	ev.ContentRaw = e.Text
	o.log.Log(ev)
}

var _ session.Observer = (*SessionObserver)(nil)

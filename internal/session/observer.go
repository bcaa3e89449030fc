package session

import (
	"time"

	"github.com/ashureev/gridassist/internal/domain"
)

// Observer receives coordinator lifecycle events. Implementations must not
// block and must not call back into the coordinator.
type Observer interface {
	ActionStarted(action Action)
	// ActionFinished reports the outcome; kind is empty on success.
	ActionFinished(action Action, kind Kind, elapsed time.Duration)
	// ActionRejected reports an action refused before any service call.
	ActionRejected(action Action, kind Kind)
	EntryAppended(entry domain.ConversationEntry)
}

type nopObserver struct{}

func (nopObserver) ActionStarted(Action) {}
func (nopObserver) ActionFinished(Action, Kind, time.Duration) {}
func (nopObserver) ActionRejected(Action, Kind) {}
func (nopObserver) EntryAppended(domain.ConversationEntry) {}

// Observers fans events out to several observers in order.
type Observers []Observer

func (obs Observers) ActionStarted(a Action) {
	for _, o := range obs {
		o.ActionStarted(a)
	}
}

func (obs Observers) ActionFinished(a Action, k Kind, d time.Duration) {
	for _, o := range obs {
		o.ActionFinished(a, k, d)
	}
}

func (obs Observers) ActionRejected(a Action, k Kind) {
	for _, o := range obs {
		o.ActionRejected(a, k)
	}
}

func (obs Observers) EntryAppended(e domain.ConversationEntry) {
	for _, o := range obs {
		o.EntryAppended(e)
	}
}

package session

import (
	"time"

	"github.com/ashureev/gridassist/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records coordinator activity across all sessions.
type Metrics struct {
	actions  *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inFlight prometheus.Gauge
	sessions prometheus.Gauge
	entries  *prometheus.CounterVec
}

// NewMetrics creates and registers the collectors on reg.
// A nil reg leaves them unregistered, which tests rely on.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		actions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gridassist_actions_total",
				Help: "Coordinator actions by outcome",
			},
			[]string{"action", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gridassist_action_duration_seconds",
				Help:    "Duration of grid service calls made by the coordinator",
				Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"action"},
		),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gridassist_actions_in_flight",
			Help: "Actions currently waiting on the grid service",
		}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gridassist_sessions_active",
			Help: "Live operator sessions",
		}),
		entries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gridassist_conversation_entries_total",
				Help: "Conversation entries appended by role",
			},
			[]string{"role"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.actions, m.duration, m.inFlight, m.sessions, m.entries)
	}
	return m
}

// ActionStarted implements Observer.
func (m *Metrics) ActionStarted(Action) {
	m.inFlight.Inc()
}

// ActionFinished implements Observer.
func (m *Metrics) ActionFinished(a Action, k Kind, elapsed time.Duration) {
	m.inFlight.Dec()
	m.duration.WithLabelValues(string(a)).Observe(elapsed.Seconds())
	m.actions.WithLabelValues(string(a), outcome(k)).Inc()
}

// ActionRejected implements Observer.
func (m *Metrics) ActionRejected(a Action, k Kind) {
	m.actions.WithLabelValues(string(a), outcome(k)).Inc()
}

// EntryAppended implements Observer.
func (m *Metrics) EntryAppended(e domain.ConversationEntry) {
	m.entries.WithLabelValues(string(e.Role)).Inc()
}

// SessionOpened increments the live session gauge.
func (m *Metrics) SessionOpened() { m.sessions.Inc() }

// SessionClosed decrements the live session gauge.
func (m *Metrics) SessionClosed() { m.sessions.Dec() }

func outcome(k Kind) string {
	if k == "" {
		return "ok"
	}
	return string(k)
}

package session

import (
	"context"
	"fmt"
	"testing"

	"github.com/ashureev/gridassist/internal/gridservice"
	"github.com/containerd/errdefs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsObserveOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	fail := true
	svc := &fakeService{
		chatFn: func(context.Context, string) (gridservice.ChatResult, error) {
			if fail {
				return gridservice.ChatResult{}, fmt.Errorf("%w: down", errdefs.ErrUnavailable)
			}
			return gridservice.ChatResult{ResponseText: "ok"}, nil
		},
	}
	c, _ := newTestCoordinator(svc, WithObserver(m))

	_, _ = c.SendMessage(context.Background(), "one")
	fail = false
	_, _ = c.SendMessage(context.Background(), "two")
	_, _ = c.LoadCase(context.Background(), "")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.actions.WithLabelValues("send_message", "service_unavailable")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.actions.WithLabelValues("send_message", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.actions.WithLabelValues("load_case", "invalid_case")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.inFlight))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.entries.WithLabelValues("user")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.entries.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.entries.WithLabelValues("assistant")))
}

func TestObserversFanOut(t *testing.T) {
	a, b := NewMetrics(nil), NewMetrics(nil)
	obs := Observers{a, b}

	obs.ActionRejected(ActionLoadCase, KindBusy)

	assert.Equal(t, 1.0, testutil.ToFloat64(a.actions.WithLabelValues("load_case", "busy")))
	assert.Equal(t, 1.0, testutil.ToFloat64(b.actions.WithLabelValues("load_case", "busy")))
}

func TestMetricsSettleWhenServicePanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	svc := &fakeService{
		chatFn: func(context.Context, string) (gridservice.ChatResult, error) {
			panic("grid backend exploded")
		},
	}
	c, store := newTestCoordinator(svc, WithObserver(m))

	assert.Panics(t, func() { _, _ = c.SendMessage(context.Background(), "boom") })

	assert.Equal(t, 0.0, testutil.ToFloat64(m.inFlight))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.actions.WithLabelValues("send_message", "unknown")))
	assert.False(t, store.IsProcessing())

	svc.chatFn = func(context.Context, string) (gridservice.ChatResult, error) {
		return gridservice.ChatResult{ResponseText: "back"}, nil
	}
	reply, err := c.SendMessage(context.Background(), "again")
	assert.NoError(t, err)
	assert.Equal(t, "back", reply)
}

//nolint:revive // "api" package name is intentionally concise for this layer.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/containerd/errdefs"

	"github.com/ashureev/gridassist/internal/session"
)

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]string{"foo": "bar"}

	JSON(w, http.StatusOK, data)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	var got map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if got["foo"] != "bar" {
		t.Errorf("Expected foo=bar, got %v", got["foo"])
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"busy", session.ErrBusy, http.StatusConflict},
		{"unavailable", fmt.Errorf("dial: %w", errdefs.ErrUnavailable), http.StatusServiceUnavailable},
		{"invalid case", &session.Error{Op: "load_case", Kind: session.KindInvalidCase, Err: errdefs.ErrNotFound}, http.StatusUnprocessableEntity},
		{"malformed", fmt.Errorf("decode: %w", errdefs.ErrDataLoss), http.StatusBadGateway},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
		{"no session", fmt.Errorf("tab: %w", errdefs.ErrNotFound), http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.want {
				t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

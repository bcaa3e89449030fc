// Package api provides HTTP handlers for the gridassist API.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/containerd/errdefs"

	"github.com/ashureev/gridassist/internal/gridservice"
	"github.com/ashureev/gridassist/internal/identity"
	"github.com/ashureev/gridassist/internal/registry"
	"github.com/ashureev/gridassist/internal/session"
)

// Handler provides common handler utilities.
type Handler struct {
	reg     *registry.Registry
	service gridservice.Service
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(reg *registry.Registry, service gridservice.Service) *Handler {
	return &Handler{reg: reg, service: service}
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error      string       `json:"error"`
	Kind       session.Kind `json:"kind,omitempty"`
	Suggestion string       `json:"suggestion,omitempty"`
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, errorBody{Error: message})
}

// ActionError writes err using the session failure taxonomy.
func ActionError(w http.ResponseWriter, err error, suggestion string) {
	kind := session.KindOf(err)
	JSON(w, statusFor(err), errorBody{
		Error:      err.Error(),
		Kind:       kind,
		Suggestion: suggestion,
	})
}

// statusFor maps an error onto an HTTP status.
func statusFor(err error) int {
	var se *session.Error
	if !errors.As(err, &se) && errdefs.IsNotFound(err) {
		return http.StatusNotFound
	}
	switch session.KindOf(err) {
	case session.KindBusy:
		return http.StatusConflict
	case session.KindInvalidCase:
		return http.StatusUnprocessableEntity
	case session.KindServiceUnavailable:
		return http.StatusServiceUnavailable
	case session.KindMalformedResponse:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func keyFromRequest(r *http.Request) registry.Key {
	return registry.Key{
		OperatorID: identity.OperatorIDFromContext(r.Context()),
		TabID:      identity.TabIDFromContext(r.Context()),
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(v)
}

package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/gridassist/internal/domain"
	"github.com/ashureev/gridassist/internal/gridservice"
	"github.com/ashureev/gridassist/internal/identity"
	"github.com/ashureev/gridassist/internal/registry"
	"github.com/ashureev/gridassist/internal/session"
)

// SessionHandler serves the per-tab session endpoints.
type SessionHandler struct {
	*Handler
}

// NewSessionHandler creates a session handler.
func NewSessionHandler(base *Handler) *SessionHandler {
	return &SessionHandler{Handler: base}
}

// RegisterRoutes registers session and catalog routes.
func (h *SessionHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/config", h.GetConfig)
		r.Get("/cases", h.ListCases)
		r.Route("/session", func(r chi.Router) {
			r.Get("/", h.GetSession)
			r.Delete("/", h.EndSession)
			r.Post("/load", h.LoadCase)
			r.Post("/chat", h.SendMessage)
		})
	})
}

type sessionResponse struct {
	SessionID string `json:"session_id"`
	session.Snapshot
}

type loadRequest struct {
	CaseName string `json:"case_name"`
}

type loadResponse struct {
	SessionID string                `json:"session_id"`
	Case      string                `json:"case"`
	Stats     domain.GridStatistics `json:"stats"`
}

type chatRequest struct {
	Message string `json:"message"`
}

// chatResponse carries the session's stats after the turn, whether or not
// the reply itself changed them.
type chatResponse struct {
	SessionID    string                 `json:"session_id"`
	Response     string                 `json:"response"`
	CurrentStats *domain.GridStatistics `json:"current_stats,omitempty"`
}

// GetConfig returns what the browser needs to talk to this server.
func (h *SessionHandler) GetConfig(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, map[string]any{
		"tab_header":      identity.TabHeaderName,
		"stream_path":     "/ws/session",
		"default_case_id": domain.DefaultCaseID,
	})
}

// ListCases returns the loadable cases, preferring the service's own list.
func (h *SessionHandler) ListCases(w http.ResponseWriter, r *http.Request) {
	cases, remote := gridservice.Catalog(r.Context(), h.service)
	source := "builtin"
	if remote {
		source = "service"
	}
	JSON(w, http.StatusOK, map[string]any{
		"cases":   cases,
		"default": domain.DefaultCaseID,
		"source":  source,
	})
}

// GetSession returns the session snapshot, starting a session on first use.
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.reg.Acquire(r.Context(), keyFromRequest(r))
	if err != nil {
		slog.Error("Failed to acquire session", "error", err, "operator_id", identity.OperatorIDFromContext(r.Context()))
		Error(w, http.StatusInternalServerError, "failed to start session")
		return
	}
	s.Touch(r.Context())
	JSON(w, http.StatusOK, sessionResponse{SessionID: s.ID, Snapshot: s.Snapshot()})
}

// EndSession discards the session; the next request starts a fresh one.
func (h *SessionHandler) EndSession(w http.ResponseWriter, r *http.Request) {
	if err := h.reg.End(r.Context(), keyFromRequest(r)); err != nil {
		if statusFor(err) == http.StatusNotFound {
			JSON(w, http.StatusOK, map[string]string{"status": "ended"})
			return
		}
		slog.Error("Failed to end session", "error", err)
		Error(w, http.StatusInternalServerError, "failed to end session")
		return
	}
	JSON(w, http.StatusOK, map[string]string{"status": "ended"})
}

// LoadCase loads a case into the session.
func (h *SessionHandler) LoadCase(w http.ResponseWriter, r *http.Request) {
	var req loadRequest
	if err := decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	caseName := strings.TrimSpace(req.CaseName)

	s, err := h.reg.Acquire(r.Context(), keyFromRequest(r))
	if err != nil {
		slog.Error("Failed to acquire session", "error", err)
		Error(w, http.StatusInternalServerError, "failed to start session")
		return
	}

	stats, err := s.LoadCase(r.Context(), caseName)
	if err != nil {
		suggestion := ""
		if session.KindOf(err) == session.KindInvalidCase && !errors.Is(err, registry.ErrSessionEnded) {
			suggestion = domain.SuggestCase(caseName)
		}
		ActionError(w, err, suggestion)
		return
	}

	JSON(w, http.StatusOK, loadResponse{SessionID: s.ID, Case: caseName, Stats: stats})
}

// SendMessage sends an operator message to the assistant.
func (h *SessionHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s, err := h.reg.Acquire(r.Context(), keyFromRequest(r))
	if err != nil {
		slog.Error("Failed to acquire session", "error", err)
		Error(w, http.StatusInternalServerError, "failed to start session")
		return
	}

	reply, err := s.SendMessage(r.Context(), req.Message)
	if err != nil {
		ActionError(w, err, "")
		return
	}

	var stats *domain.GridStatistics
	if st, ok := s.Store().CurrentStats(); ok {
		stats = &st
	}
	JSON(w, http.StatusOK, chatResponse{SessionID: s.ID, Response: reply, CurrentStats: stats})
}

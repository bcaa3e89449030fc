package stream

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/ashureev/gridassist/internal/domain"
	"github.com/ashureev/gridassist/internal/identity"
	"github.com/ashureev/gridassist/internal/registry"
	"github.com/ashureev/gridassist/internal/session"
)

const writeTimeout = 10 * time.Second

// Handler upgrades /ws/session requests and streams snapshots of the
// caller's session. Clients may also send actions over the socket.
type Handler struct {
	reg           *registry.Registry
	conns         *ConnManager
	allowedOrigin string
	isDev         bool
}

// NewHandler creates a stream handler.
func NewHandler(reg *registry.Registry, conns *ConnManager, allowedOrigin string, isDev bool) *Handler {
	return &Handler{
		reg:           reg,
		conns:         conns,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
	}
}

// clientMessage is sent by browsers.
type clientMessage struct {
	Type     string `json:"type"`
	CaseName string `json:"case_name,omitempty"`
	Message  string `json:"message,omitempty"`
}

// serverMessage is sent to browsers.
type serverMessage struct {
	Type       string            `json:"type"`
	SessionID  string            `json:"session_id,omitempty"`
	Snapshot   *session.Snapshot `json:"snapshot,omitempty"`
	Action     string            `json:"action,omitempty"`
	Kind       session.Kind      `json:"kind,omitempty"`
	Error      string            `json:"error,omitempty"`
	Suggestion string            `json:"suggestion,omitempty"`
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := registry.Key{
		OperatorID: identity.OperatorIDFromContext(r.Context()),
		TabID:      identity.TabIDFromContext(r.Context()),
	}
	slog.Info("Stream connection request", "operator_id", key.OperatorID, "tab_id", key.TabID, "ip", identity.IPFromRequest(r))

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	s, err := h.reg.Acquire(r.Context(), key)
	if err != nil {
		slog.Error("Failed to acquire session for stream", "error", err, "operator_id", key.OperatorID)
		http.Error(w, "failed to start session", http.StatusInternalServerError)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "operator_id", key.OperatorID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "stream ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "session_id", s.ID)
		}
	}()

	h.conns.Register(key, ws)
	defer h.conns.Unregister(key, ws)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	updates, unsubscribe := s.Store().Subscribe()
	defer unsubscribe()

	// Outgoing writes are serialized through this channel.
	out := make(chan serverMessage, 8)

	go func() {
		defer cancel()
		h.inputLoop(ctx, ws, s, out)
	}()

	h.outputLoop(ctx, ws, s, updates, out)
	slog.Info("Stream ended", "session_id", s.ID)
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" || origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

func (h *Handler) inputLoop(ctx context.Context, ws *websocket.Conn, s *registry.Session, out chan<- serverMessage) {
	for {
		var msg clientMessage
		if err := wsjson.Read(ctx, ws, &msg); err != nil {
			if websocket.CloseStatus(err) != -1 || ctx.Err() != nil {
				slog.Debug("WebSocket closed", "session_id", s.ID)
			} else {
				slog.Warn("WebSocket read error", "error", err, "session_id", s.ID)
			}
			return
		}

		switch msg.Type {
		case "ping":
			send(ctx, out, serverMessage{Type: "pong"})
		case "load":
			// Actions run detached so the socket keeps reading; results arrive as snapshots.
			go func(caseName string) {
				caseName = strings.TrimSpace(caseName)
				if _, err := s.LoadCase(ctx, caseName); err != nil {
					msg := actionError(session.ActionLoadCase, err)
					if msg.Kind == session.KindInvalidCase && !errors.Is(err, registry.ErrSessionEnded) {
						msg.Suggestion = domain.SuggestCase(caseName)
					}
					send(ctx, out, msg)
				}
			}(msg.CaseName)
		case "chat":
			go func(text string) {
				if _, err := s.SendMessage(ctx, text); err != nil {
					send(ctx, out, actionError(session.ActionSendMessage, err))
				}
			}(msg.Message)
		default:
			send(ctx, out, serverMessage{Type: "error", Error: "unknown message type " + msg.Type})
		}
	}
}

func (h *Handler) outputLoop(ctx context.Context, ws *websocket.Conn, s *registry.Session, updates <-chan session.Snapshot, out <-chan serverMessage) {
	snap := s.Snapshot()
	if err := write(ctx, ws, serverMessage{Type: "snapshot", SessionID: s.ID, Snapshot: &snap}); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-updates:
			if !ok {
				_ = write(ctx, ws, serverMessage{Type: "ended", SessionID: s.ID})
				return
			}
			if err := write(ctx, ws, serverMessage{Type: "snapshot", SessionID: s.ID, Snapshot: &snap}); err != nil {
				return
			}
		case msg := <-out:
			if err := write(ctx, ws, msg); err != nil {
				return
			}
		}
	}
}

func actionError(a session.Action, err error) serverMessage {
	return serverMessage{
		Type:   "error",
		Action: string(a),
		Kind:   session.KindOf(err),
		Error:  err.Error(),
	}
}

func send(ctx context.Context, out chan<- serverMessage, msg serverMessage) {
	select {
	case out <- msg:
	case <-ctx.Done():
	}
}

func write(ctx context.Context, ws *websocket.Conn, msg serverMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := ws.Write(wctx, websocket.MessageText, data); err != nil {
		slog.Debug("WebSocket write error", "error", err)
		return err
	}
	return nil
}

package stream

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/containerd/errdefs"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/gridassist/internal/domain"
	"github.com/ashureev/gridassist/internal/gridservice"
	"github.com/ashureev/gridassist/internal/identity"
	"github.com/ashureev/gridassist/internal/registry"
	"github.com/ashureev/gridassist/internal/store"
)

const operatorID = "anon_0123456789abcdef0123456789abcdef"

type grid struct{}

func (grid) LoadCase(_ context.Context, caseName string) (gridservice.LoadResult, error) {
	if _, ok := domain.LookupCase(caseName); !ok {
		return gridservice.LoadResult{}, fmt.Errorf("case %q: %w", caseName, errdefs.ErrNotFound)
	}
	return gridservice.LoadResult{Stats: domain.GridStatistics{
		TotalLoadMW: 259, TotalGenMW: 272.4, BusCount: 14, MaxLineLoadingPct: 61.2,
	}}, nil
}

func (grid) SendMessage(_ context.Context, text string) (gridservice.ChatResult, error) {
	return gridservice.ChatResult{ResponseText: "re: " + text}, nil
}

func setup(t *testing.T) (*httptest.Server, *registry.Registry, *ConnManager) {
	t.Helper()
	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "gridassist.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	reg := registry.New(repo, grid{}, time.Hour)
	conns := NewConnManager()
	reg.OnEnd(conns.CloseKey)

	r := chi.NewRouter()
	r.Use(identity.Middleware(true))
	r.Get("/ws/session", NewHandler(reg, conns, "*", true).ServeHTTP)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	t.Cleanup(func() { _ = reg.Shutdown(context.Background()) })
	return srv, reg, conns
}

func dial(t *testing.T, ctx context.Context, srv *httptest.Server, tab string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/session?session_id=" + tab
	header := http.Header{}
	header.Add("Cookie", identity.OperatorCookieName+"="+operatorID)
	ws, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{HTTPHeader: header})
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.CloseNow() })
	return ws
}

// readUntil reads messages until match returns true.
func readUntil(t *testing.T, ctx context.Context, ws *websocket.Conn, match func(serverMessage) bool) serverMessage {
	t.Helper()
	for {
		var msg serverMessage
		require.NoError(t, wsjson.Read(ctx, ws, &msg))
		if match(msg) {
			return msg
		}
	}
}

func TestStreamSendsSnapshotsAndActions(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv, _, _ := setup(t)
	ws := dial(t, ctx, srv, "tab-1")

	first := readUntil(t, ctx, ws, func(m serverMessage) bool { return m.Type == "snapshot" })
	require.NotNil(t, first.Snapshot)
	assert.NotEmpty(t, first.SessionID)
	require.Len(t, first.Snapshot.Conversation, 1)
	assert.Equal(t, domain.WelcomeText, first.Snapshot.Conversation[0].Text)

	require.NoError(t, wsjson.Write(ctx, ws, clientMessage{Type: "load", CaseName: "case14"}))
	loaded := readUntil(t, ctx, ws, func(m serverMessage) bool {
		return m.Type == "snapshot" && m.Snapshot.CurrentCase == "case14" && !m.Snapshot.Processing
	})
	require.NotNil(t, loaded.Snapshot.CurrentStats)
	assert.Equal(t, 14, loaded.Snapshot.CurrentStats.BusCount)
	assert.Greater(t, loaded.Snapshot.Version, first.Snapshot.Version)

	require.NoError(t, wsjson.Write(ctx, ws, clientMessage{Type: "chat", Message: "hi"}))
	chatted := readUntil(t, ctx, ws, func(m serverMessage) bool {
		return m.Type == "snapshot" && len(m.Snapshot.Conversation) == 3 && !m.Snapshot.Processing
	})
	assert.Equal(t, "re: hi", chatted.Snapshot.Conversation[2].Text)

	require.NoError(t, wsjson.Write(ctx, ws, clientMessage{Type: "ping"}))
	readUntil(t, ctx, ws, func(m serverMessage) bool { return m.Type == "pong" })
}

func TestStreamReportsInvalidCase(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv, _, _ := setup(t)
	ws := dial(t, ctx, srv, "tab-1")

	require.NoError(t, wsjson.Write(ctx, ws, clientMessage{Type: "load", CaseName: "case75"}))
	msg := readUntil(t, ctx, ws, func(m serverMessage) bool { return m.Type == "error" })
	assert.Equal(t, "invalid_case", string(msg.Kind))
	assert.Equal(t, "load_case", msg.Action)
	assert.Equal(t, "case57", msg.Suggestion)
}

func TestStreamEndsWithSession(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv, reg, conns := setup(t)
	ws := dial(t, ctx, srv, "tab-1")
	readUntil(t, ctx, ws, func(m serverMessage) bool { return m.Type == "snapshot" })
	require.Eventually(t, func() bool { return conns.Count() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, reg.End(ctx, registry.Key{OperatorID: operatorID, TabID: "tab-1"}))

	for {
		var msg serverMessage
		if err := wsjson.Read(ctx, ws, &msg); err != nil {
			assert.NotEqual(t, -1, int(websocket.CloseStatus(err)), "expected a close frame, got %v", err)
			break
		}
	}
	assert.Eventually(t, func() bool { return conns.Count() == 0 }, time.Second, 10*time.Millisecond)
}

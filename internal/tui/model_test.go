package tui

import (
	"context"
	"fmt"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/containerd/errdefs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/gridassist/internal/domain"
	"github.com/ashureev/gridassist/internal/gridservice"
	"github.com/ashureev/gridassist/internal/session"
)

type scriptedGrid struct {
	loadErr error
	chatErr error
}

func (g *scriptedGrid) LoadCase(context.Context, string) (gridservice.LoadResult, error) {
	if g.loadErr != nil {
		return gridservice.LoadResult{}, g.loadErr
	}
	return gridservice.LoadResult{Stats: domain.GridStatistics{
		TotalLoadMW: 1250.8, TotalGenMW: 1278.3, BusCount: 57, MaxLineLoadingPct: 74.2,
	}}, nil
}

func (g *scriptedGrid) SendMessage(_ context.Context, text string) (gridservice.ChatResult, error) {
	if g.chatErr != nil {
		return gridservice.ChatResult{}, g.chatErr
	}
	return gridservice.ChatResult{ResponseText: "Bus 31 has the lowest voltage."}, nil
}

func newTestModel(t *testing.T, grid gridservice.Service) (*Model, *session.Coordinator) {
	t.Helper()
	coord := session.NewCoordinator(session.NewStore(), grid)
	m := New(context.Background(), coord, Config{Style: "notty"})
	t.Cleanup(m.Close)
	m.Update(tea.WindowSizeMsg{Width: 140, Height: 40})
	return m, coord
}

// run executes cmd and feeds its message and the latest snapshot back into m.
func run(t *testing.T, m *Model, coord *session.Coordinator, cmd tea.Cmd) {
	t.Helper()
	require.NotNil(t, cmd)
	m.Update(cmd())
	m.Update(snapshotMsg(coord.Store().Snapshot()))
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestInitialView(t *testing.T) {
	m, _ := newTestModel(t, &scriptedGrid{})

	view := m.View()
	assert.Contains(t, view, "Power System Control")
	assert.Contains(t, view, "IEEE Case 57")
	assert.Contains(t, view, "Power System Gemini Helper")
	assert.NotContains(t, view, "System Balance")
	assert.Equal(t, "case57", m.cases[m.caseIdx].ID, "default case is preselected")
}

func TestLoadCaseUpdatesDashboard(t *testing.T) {
	m, coord := newTestModel(t, &scriptedGrid{})

	_, cmd := m.Update(key("enter"))
	run(t, m, coord, cmd)

	view := m.View()
	assert.Contains(t, view, "1250.8 MW")
	assert.Contains(t, view, "1278.3 MW")
	assert.Contains(t, view, "74.2%")
	assert.Contains(t, view, "System Balance")
	assert.Empty(t, m.notice)
}

func TestCaseSelectorMovesAndClamps(t *testing.T) {
	m, _ := newTestModel(t, &scriptedGrid{})

	for range 5 {
		m.Update(key("down"))
	}
	assert.Equal(t, len(m.cases)-1, m.caseIdx)
	for range 5 {
		m.Update(key("k"))
	}
	assert.Equal(t, 0, m.caseIdx)
}

func TestLoadFailureShowsNotice(t *testing.T) {
	m, coord := newTestModel(t, &scriptedGrid{loadErr: fmt.Errorf("dial: %w", errdefs.ErrUnavailable)})

	_, cmd := m.Update(key("enter"))
	run(t, m, coord, cmd)

	assert.Contains(t, m.View(), "grid service unavailable")
	assert.Len(t, m.snap.Conversation, 1, "load failures stay out of the conversation")

	m.Update(clearNoticeMsg{seq: m.noticeSeq - 1})
	assert.NotEmpty(t, m.notice, "stale timers do not clear a newer notice")
	m.Update(clearNoticeMsg{seq: m.noticeSeq})
	assert.Empty(t, m.notice)
}

func TestChatTurn(t *testing.T) {
	m, coord := newTestModel(t, &scriptedGrid{})

	m.Update(key("tab"))
	assert.True(t, m.input.Focused())
	m.Update(key("which bus is weakest?"))
	_, cmd := m.Update(key("enter"))
	assert.Empty(t, m.input.Value())
	run(t, m, coord, cmd)

	require.Len(t, m.snap.Conversation, 3)
	assert.Contains(t, m.View(), "Bus 31 has the lowest voltage.")
}

func TestBlankChatIsIgnored(t *testing.T) {
	m, _ := newTestModel(t, &scriptedGrid{})

	m.Update(key("tab"))
	m.Update(key("   "))
	_, cmd := m.Update(key("enter"))
	assert.Nil(t, cmd)
}

func TestChatFailureIsInlineOnly(t *testing.T) {
	m, coord := newTestModel(t, &scriptedGrid{chatErr: fmt.Errorf("upstream: %w", errdefs.ErrUnavailable)})

	m.Update(key("tab"))
	m.Update(key("hello"))
	_, cmd := m.Update(key("enter"))
	run(t, m, coord, cmd)

	require.Len(t, m.snap.Conversation, 3)
	assert.Equal(t, domain.RoleError, m.snap.Conversation[2].Role)
	assert.Contains(t, m.View(), domain.ChatFailureText)
	assert.Empty(t, m.notice)
}

func TestProcessingDisablesInput(t *testing.T) {
	m, _ := newTestModel(t, &scriptedGrid{})
	m.Update(key("tab"))

	busy := m.snap
	busy.Version++
	busy.Processing = true
	m.Update(snapshotMsg(busy))

	assert.False(t, m.input.Focused())
	assert.Contains(t, m.View(), "Thinking...")
	assert.Contains(t, m.View(), inputBusy)

	_, cmd := m.Update(key("x"))
	assert.Nil(t, cmd)
	assert.Empty(t, m.input.Value())

	idle := busy
	idle.Version++
	idle.Processing = false
	m.Update(snapshotMsg(idle))
	assert.True(t, m.input.Focused())
}

func TestStaleSnapshotIgnored(t *testing.T) {
	m, _ := newTestModel(t, &scriptedGrid{})

	newer := m.snap
	newer.Version = 10
	newer.CurrentCase = "case118"
	m.Update(snapshotMsg(newer))

	older := newer
	older.Version = 4
	older.CurrentCase = "case14"
	m.Update(snapshotMsg(older))
	assert.Equal(t, "case118", m.snap.CurrentCase)
}

func TestStoreCloseQuits(t *testing.T) {
	m, _ := newTestModel(t, &scriptedGrid{})
	_, cmd := m.Update(storeClosedMsg{})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ashureev/gridassist/internal/session"
)

const noticeTTL = 5 * time.Second

type snapshotMsg session.Snapshot

type storeClosedMsg struct{}

type loadDoneMsg struct {
	caseID string
	err    error
}

type chatDoneMsg struct {
	err error
}

type clearNoticeMsg struct {
	seq int
}

// waitForSnapshot blocks until the store publishes a new version.
func waitForSnapshot(updates <-chan session.Snapshot) tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-updates
		if !ok {
			return storeClosedMsg{}
		}
		return snapshotMsg(snap)
	}
}

func loadCase(ctx context.Context, coord *session.Coordinator, caseID string) tea.Cmd {
	return func() tea.Msg {
		_, err := coord.LoadCase(ctx, caseID)
		return loadDoneMsg{caseID: caseID, err: err}
	}
}

func sendMessage(ctx context.Context, coord *session.Coordinator, text string) tea.Cmd {
	return func() tea.Msg {
		_, err := coord.SendMessage(ctx, text)
		return chatDoneMsg{err: err}
	}
}

func clearNoticeAfter(seq int) tea.Cmd {
	return tea.Tick(noticeTTL, func(time.Time) tea.Msg {
		return clearNoticeMsg{seq: seq}
	})
}

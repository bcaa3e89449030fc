// Package tui is the terminal surface: a dashboard pane and a chat pane over
// one in-process session.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/ashureev/gridassist/internal/domain"
	"github.com/ashureev/gridassist/internal/session"
)

const (
	dashboardWidth = 40
	inputIdle      = "Ask about the grid (e.g., 'Simulate outage on Line 5')..."
	inputBusy      = "Waiting for the assistant..."
)

type focusArea int

const (
	focusDashboard focusArea = iota
	focusChat
)

// Config configures the terminal UI.
type Config struct {
	// Cases populates the case selector; defaults to the built-in catalog.
	Cases []domain.Case
	// Style is a glamour style name ("dark", "light", "notty") or "auto".
	Style string
}

// Model is the bubbletea model for the terminal UI.
type Model struct {
	ctx     context.Context
	coord   *session.Coordinator
	updates <-chan session.Snapshot
	cancel  func()

	cases   []domain.Case
	caseIdx int
	snap    session.Snapshot

	input    textinput.Model
	chat     viewport.Model
	spinner  spinner.Model
	style    string
	renderer *glamour.TermRenderer

	focus     focusArea
	notice    string
	noticeSeq int
	width     int
	height    int
	styles    styles
}

// New creates a model over coord. The model subscribes to the coordinator's
// store; call Close when done if the program was never run.
func New(ctx context.Context, coord *session.Coordinator, cfg Config) *Model {
	cases := cfg.Cases
	if len(cases) == 0 {
		cases = domain.DefaultCases()
	}
	caseIdx := 0
	for i, c := range cases {
		if c.ID == domain.DefaultCaseID {
			caseIdx = i
			break
		}
	}
	if cfg.Style == "" {
		cfg.Style = "auto"
	}

	ti := textinput.New()
	ti.Placeholder = inputIdle
	ti.Prompt = "│ "
	ti.CharLimit = 4096

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	updates, cancel := coord.Store().Subscribe()

	m := &Model{
		ctx:     ctx,
		coord:   coord,
		updates: updates,
		cancel:  cancel,
		cases:   cases,
		caseIdx: caseIdx,
		snap:    coord.Store().Snapshot(),
		input:   ti,
		chat:    viewport.New(80, 20),
		spinner: sp,
		style:   cfg.Style,
		focus:   focusDashboard,
		styles:  defaultStyles(),
	}
	m.resize(120, 32)
	return m
}

// Close releases the store subscription.
func (m *Model) Close() {
	m.cancel()
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(waitForSnapshot(m.updates), m.spinner.Tick, textinput.Blink)
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case snapshotMsg:
		m.applySnapshot(session.Snapshot(msg))
		return m, waitForSnapshot(m.updates)

	case storeClosedMsg:
		return m, tea.Quit

	case loadDoneMsg:
		if msg.err != nil {
			return m, m.setNotice(loadFailureNotice(msg.caseID, msg.err))
		}
		return m, nil

	case chatDoneMsg:
		// Chat failures are already in the conversation; only a refused turn needs a notice.
		if session.KindOf(msg.err) == session.KindBusy {
			return m, m.setNotice("Busy: wait for the current request to finish")
		}
		return m, nil

	case clearNoticeMsg:
		if msg.seq == m.noticeSeq {
			m.notice = ""
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		return m, tea.Quit
	case "tab", "shift+tab":
		m.toggleFocus()
		return m, nil
	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.chat, cmd = m.chat.Update(msg)
		return m, cmd
	}

	if m.focus == focusDashboard {
		return m.handleDashboardKey(msg)
	}
	return m.handleChatKey(msg)
}

func (m *Model) handleDashboardKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.caseIdx > 0 {
			m.caseIdx--
		}
	case "down", "j":
		if m.caseIdx < len(m.cases)-1 {
			m.caseIdx++
		}
	case "enter", "l":
		if m.snap.Processing {
			return m, nil
		}
		return m, loadCase(m.ctx, m.coord, m.cases[m.caseIdx].ID)
	case "q":
		return m, tea.Quit
	}
	return m, nil
}

func (m *Model) handleChatKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.snap.Processing {
		return m, nil
	}
	if msg.Type == tea.KeyEnter {
		text := m.input.Value()
		if strings.TrimSpace(text) == "" {
			return m, nil
		}
		m.input.Reset()
		return m, sendMessage(m.ctx, m.coord, text)
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) toggleFocus() {
	if m.focus == focusDashboard {
		m.focus = focusChat
	} else {
		m.focus = focusDashboard
	}
	m.syncInput()
}

// syncInput disables the chat input while an action is in flight.
func (m *Model) syncInput() {
	if m.snap.Processing {
		m.input.Placeholder = inputBusy
		m.input.Blur()
		return
	}
	m.input.Placeholder = inputIdle
	if m.focus == focusChat {
		m.input.Focus()
	} else {
		m.input.Blur()
	}
}

func (m *Model) applySnapshot(snap session.Snapshot) {
	if snap.Version < m.snap.Version {
		return
	}
	m.snap = snap
	m.syncInput()
	m.refreshChat()
}

func (m *Model) setNotice(text string) tea.Cmd {
	m.noticeSeq++
	m.notice = text
	return clearNoticeAfter(m.noticeSeq)
}

func (m *Model) resize(width, height int) {
	m.width, m.height = width, height
	chatWidth := max(width-dashboardWidth-6, 20)
	chatHeight := max(height-9, 5)
	m.chat.Width = chatWidth
	m.chat.Height = chatHeight
	m.input.Width = chatWidth - 4
	m.renderer = newRenderer(m.style, chatWidth-2)
	m.refreshChat()
}

func (m *Model) refreshChat() {
	m.chat.SetContent(m.renderConversation())
	m.chat.GotoBottom()
}

func newRenderer(style string, wrap int) *glamour.TermRenderer {
	opts := []glamour.TermRendererOption{glamour.WithWordWrap(wrap)}
	if style == "auto" {
		opts = append(opts, glamour.WithAutoStyle())
	} else {
		opts = append(opts, glamour.WithStylePath(style))
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return nil
	}
	return r
}

func loadFailureNotice(caseID string, err error) string {
	switch session.KindOf(err) {
	case session.KindBusy:
		return "Busy: wait for the current request to finish"
	case session.KindInvalidCase:
		if s := domain.SuggestCase(caseID); s != "" {
			return fmt.Sprintf("Unknown case %q, did you mean %s?", caseID, s)
		}
		return fmt.Sprintf("Unknown case %q", caseID)
	case session.KindServiceUnavailable:
		return fmt.Sprintf("Failed to load %s: grid service unavailable", caseID)
	case session.KindMalformedResponse:
		return fmt.Sprintf("Failed to load %s: bad response from grid service", caseID)
	default:
		return fmt.Sprintf("Failed to load %s", caseID)
	}
}

// Run starts the terminal UI on the alternate screen and blocks until it exits.
func Run(ctx context.Context, coord *session.Coordinator, cfg Config) error {
	m := New(ctx, coord, cfg)
	defer m.Close()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run terminal ui: %w", err)
	}
	return nil
}

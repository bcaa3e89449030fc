package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ashureev/gridassist/internal/domain"
)

const barWidth = 24

// View implements tea.Model.
func (m *Model) View() string {
	body := lipgloss.JoinHorizontal(lipgloss.Top, m.dashboardView(), m.chatView())
	return lipgloss.JoinVertical(lipgloss.Left, body, m.footerView())
}

func (m *Model) paneStyle(area focusArea) lipgloss.Style {
	if m.focus == area {
		return m.styles.focusedPane
	}
	return m.styles.pane
}

func (m *Model) dashboardView() string {
	var b strings.Builder
	b.WriteString(m.styles.title.Render("⚡ Power System Control"))
	b.WriteString("\n\n")

	for i, c := range m.cases {
		marker := "  "
		line := c.Title
		if i == m.caseIdx {
			marker = m.styles.cursor.Render("▸ ")
			line = m.styles.cursor.Render(c.Title)
		}
		b.WriteString(marker + line + "\n")
	}

	button := "[ Load Case ]"
	if m.snap.Processing {
		button = "[ Loading... ]"
	}
	b.WriteString("\n" + m.styles.muted.Render(button))
	if m.snap.CurrentCase != "" {
		b.WriteString(m.styles.muted.Render("  current: " + m.snap.CurrentCase))
	}
	b.WriteString("\n\n")

	b.WriteString(m.statsView())

	if m.snap.CurrentStats != nil {
		b.WriteString("\n\n" + m.styles.title.Render("System Balance") + "\n")
		b.WriteString(m.balanceView(*m.snap.CurrentStats))
	}

	return m.paneStyle(focusDashboard).
		Width(dashboardWidth).
		Height(max(m.height-4, 10)).
		Render(b.String())
}

func (m *Model) statsView() string {
	var load, gen, buses, loading string
	if s := m.snap.CurrentStats; s != nil {
		load = formatMW(s.TotalLoadMW)
		gen = formatMW(s.TotalGenMW)
		buses = formatCount(s.BusCount)
		loading = formatPct(s.MaxLineLoadingPct)
	} else {
		load, gen, buses, loading = "-", "-", "-", "-"
	}

	card := func(style lipgloss.Style, label, value string) string {
		return style.Render(m.styles.cardLabel.Render(label) + "\n" + m.styles.cardValue.Render(value))
	}
	top := lipgloss.JoinHorizontal(lipgloss.Top,
		card(m.styles.card, "Total Load", load),
		card(m.styles.card, "Total Gen", gen),
	)
	bottom := lipgloss.JoinHorizontal(lipgloss.Top,
		card(m.styles.card, "Buses", buses),
		card(m.styles.warnCard, "Max Loading", loading),
	)
	return lipgloss.JoinVertical(lipgloss.Left, top, bottom)
}

func (m *Model) balanceView(s domain.GridStatistics) string {
	peak := max(s.TotalGenMW, s.TotalLoadMW)
	bar := func(v float64) int {
		if peak <= 0 {
			return 0
		}
		return int(v / peak * barWidth)
	}
	genLen, loadLen := bar(s.TotalGenMW), bar(s.TotalLoadMW)
	return fmt.Sprintf("%-10s %s\n%-10s %s",
		"Generation", m.styles.genBar.Render(strings.Repeat("█", genLen)),
		"Load", m.styles.loadBar.Render(strings.Repeat("█", loadLen)),
	)
}

func (m *Model) chatView() string {
	var b strings.Builder
	b.WriteString(m.styles.title.Render("Gemini Assistant"))
	b.WriteString("\n")
	b.WriteString(m.chat.View())
	b.WriteString("\n")
	if m.snap.Processing {
		b.WriteString(m.styles.thinking.Render(m.spinner.View() + " Thinking..."))
	}
	b.WriteString("\n")
	b.WriteString(m.input.View())

	return m.paneStyle(focusChat).
		Width(m.chat.Width + 2).
		Height(max(m.height-4, 10)).
		Render(b.String())
}

func (m *Model) footerView() string {
	help := m.styles.help.Render("tab switch pane • ↑/↓ pick case • enter load/send • pgup/pgdn scroll • esc quit")
	if m.notice == "" {
		return help
	}
	return m.styles.notice.Render(m.notice) + "  " + help
}

func (m *Model) renderConversation() string {
	var b strings.Builder
	for i, e := range m.snap.Conversation {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(m.roleLabel(e.Role))
		b.WriteString("\n")
		b.WriteString(m.renderMarkdown(e.Text))
	}
	return b.String()
}

func (m *Model) roleLabel(r domain.Role) string {
	switch r {
	case domain.RoleUser:
		return m.styles.roleUser.Render("You")
	case domain.RoleAssistant:
		return m.styles.roleAssist.Render("Assistant")
	case domain.RoleError:
		return m.styles.roleError.Render("Error")
	default:
		return m.styles.roleSystem.Render("System")
	}
}

func (m *Model) renderMarkdown(text string) string {
	if m.renderer == nil {
		return text
	}
	out, err := m.renderer.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(out, "\n")
}

// Zero values render as "-", matching the browser dashboard.
func formatMW(v float64) string {
	if v == 0 {
		return "-"
	}
	return fmt.Sprintf("%.1f MW", v)
}

func formatPct(v float64) string {
	if v == 0 {
		return "-"
	}
	return fmt.Sprintf("%.1f%%", v)
}

func formatCount(n int) string {
	if n == 0 {
		return "-"
	}
	return fmt.Sprintf("%d", n)
}

package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorBlue   = lipgloss.Color("#3b82f6")
	colorViolet = lipgloss.Color("#8b5cf6")
	colorMuted  = lipgloss.Color("#94a3b8")
	colorBorder = lipgloss.Color("#334155")
	colorWarn   = lipgloss.Color("#f59e0b")
	colorError  = lipgloss.Color("#ef4444")
)

type styles struct {
	title       lipgloss.Style
	pane        lipgloss.Style
	focusedPane lipgloss.Style
	card        lipgloss.Style
	warnCard    lipgloss.Style
	cardLabel   lipgloss.Style
	cardValue   lipgloss.Style
	cursor      lipgloss.Style
	muted       lipgloss.Style
	genBar      lipgloss.Style
	loadBar     lipgloss.Style
	roleUser    lipgloss.Style
	roleAssist  lipgloss.Style
	roleSystem  lipgloss.Style
	roleError   lipgloss.Style
	notice      lipgloss.Style
	thinking    lipgloss.Style
	help        lipgloss.Style
}

func defaultStyles() styles {
	pane := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorBorder).
		Padding(0, 1)
	card := lipgloss.NewStyle().
		Border(lipgloss.NormalBorder()).
		BorderForeground(colorBorder).
		Padding(0, 1).
		Width(16)

	return styles{
		title:       lipgloss.NewStyle().Bold(true).Foreground(colorBlue),
		pane:        pane,
		focusedPane: pane.BorderForeground(colorBlue),
		card:        card,
		warnCard:    card.BorderForeground(colorWarn),
		cardLabel:   lipgloss.NewStyle().Foreground(colorMuted),
		cardValue:   lipgloss.NewStyle().Bold(true),
		cursor:      lipgloss.NewStyle().Foreground(colorBlue).Bold(true),
		muted:       lipgloss.NewStyle().Foreground(colorMuted),
		genBar:      lipgloss.NewStyle().Foreground(colorBlue),
		loadBar:     lipgloss.NewStyle().Foreground(colorViolet),
		roleUser:    lipgloss.NewStyle().Bold(true).Foreground(colorBlue),
		roleAssist:  lipgloss.NewStyle().Bold(true).Foreground(colorViolet),
		roleSystem:  lipgloss.NewStyle().Bold(true).Foreground(colorMuted),
		roleError:   lipgloss.NewStyle().Bold(true).Foreground(colorError),
		notice:      lipgloss.NewStyle().Foreground(colorWarn).Bold(true),
		thinking:    lipgloss.NewStyle().Italic(true).Foreground(colorViolet),
		help:        lipgloss.NewStyle().Foreground(colorMuted),
	}
}

package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const panelMinWidth = 24

// Panel is a titled text area. It renders one of three states: a spinner
// while Loading, the Content when present, or the Placeholder.
type Panel struct {
	Title       string
	Flag        string
	Content     string
	Placeholder string
	Loading     bool
	ShowSpeak   bool
	Speaking    bool
	Width       int
	Height      int
}

// Render draws the panel; spinner is the current spinner frame.
func (p Panel) Render(spinner string) string {
	width := p.Width
	if width < panelMinWidth {
		width = panelMinWidth
	}
	inner := width - panelStyle.GetHorizontalFrameSize()

	header := panelTitleStyle.Render(strings.TrimSpace(p.Flag + " " + p.Title))
	if hint := p.speakHint(); hint != "" {
		gap := inner - lipgloss.Width(header) - lipgloss.Width(hint)
		if gap < 1 {
			gap = 1
		}
		header += strings.Repeat(" ", gap) + hint
	}

	var body string
	switch {
	case p.Loading:
		body = subtleStyle.Render(spinner + " Processing...")
	case p.Content != "":
		body = valueStyle.Width(inner).Render(p.Content)
	default:
		body = placeholderStyle.Width(inner).Render(p.Placeholder)
	}

	style := panelStyle.Width(width - panelStyle.GetHorizontalBorderSize())
	if p.Height > 0 {
		style = style.Height(p.Height)
	}
	return style.Render(lipgloss.JoinVertical(lipgloss.Left, header, "", body))
}

func (p Panel) speakHint() string {
	if !p.ShowSpeak || p.Content == "" {
		return ""
	}
	if p.Speaking {
		return speakHintStyle.Render("🔊 Speaking...")
	}
	return speakHintStyle.Render("🔊 Listen (p)")
}

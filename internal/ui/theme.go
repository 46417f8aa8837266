package ui

import "github.com/charmbracelet/lipgloss"

const (
	colorBrand     = "#8C52FF"
	colorViolet    = "#A78BFA"
	colorIndigo    = "#6366F1"
	colorSuccess   = "#10B981"
	colorInfo      = "#3B82F6"
	colorError     = "#EF4444"
	colorGray      = "#6B7280"
	colorLightGray = "#9CA3AF"
	colorText      = "#F3F4F6"
)

var (
	bannerStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorBrand))
	taglineStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color(colorLightGray)).Italic(true)
	labelStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color(colorViolet)).Bold(true)
	valueStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color(colorText))
	subtleStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color(colorGray))
	placeholderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(colorLightGray)).Italic(true)
	micIdleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorText)).Background(lipgloss.Color(colorIndigo)).Padding(0, 2)
	micLiveStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorText)).Background(lipgloss.Color(colorError)).Padding(0, 2)
	micOffStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color(colorLightGray)).Background(lipgloss.Color(colorGray)).Padding(0, 2)
	statusStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color(colorIndigo)).Bold(true)
	panelStyle       = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color(colorViolet)).Padding(0, 1)
	panelTitleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorText))
	speakHintStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color(colorInfo))
	unsupportedStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color(colorError)).Padding(1, 3)
	errorTitleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorError))
)

func toastStyle(level string) lipgloss.Style {
	color := colorInfo
	switch level {
	case "success":
		color = colorSuccess
	case "error":
		color = colorError
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(color))
}

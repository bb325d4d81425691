package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/insurecontent/internal/subscription"
)

const (
	colorTitle   = "#FF6B6B"
	colorAccent  = "#5B8DEF"
	colorSuccess = "#4CAF50"
	colorWarn    = "#F7B801"
	colorBorder  = "#444444"
	colorText    = "#AAAAAA"
	colorFooter  = "#888888"
	colorMuted   = "#999999"
	colorBody    = "#CCCCCC"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorAccent))
	labelStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#A0AEC0"))
	bodyStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color(colorBody))
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color(colorMuted))
	hintStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color(colorText))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color(colorTitle))
	successStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color(colorSuccess))
	warnStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color(colorWarn))
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorAccent))
)

var badgeColors = map[subscription.Variant]string{
	subscription.VariantDefault:     colorAccent,
	subscription.VariantSuccess:     colorSuccess,
	subscription.VariantDestructive: colorTitle,
}

func renderBadge(b subscription.Badge) string {
	if b.Label == "" {
		return ""
	}
	color, ok := badgeColors[b.Variant]
	if !ok {
		color = colorAccent
	}
	return lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(lipgloss.Color(color)).
		Padding(0, 1).
		Render(b.Label)
}

// cursorMark prefixes the selected row.
func cursorMark(selected bool) string {
	if selected {
		return selectedStyle.Render("▸ ")
	}
	return "  "
}

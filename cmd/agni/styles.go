package main

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/efebarandurmaz/agni/internal/prediction"
)

// Palette shared by every command.
const (
	colorBg     = "#0d1117"
	colorBorder = "#30363d"
	colorBlue   = "#58a6ff"
	colorGreen  = "#3fb950"
	colorRed    = "#f85149"
	colorYellow = "#d29922"
	colorGray   = "#8b949e"
	colorBright = "#f0f6fc"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(colorBright))

	ruleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorBorder))

	labelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(colorBlue))

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorGray)).
			Italic(true)

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color(colorGreen)).
		Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorYellow)).
			Bold(true)

	errStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorRed)).
			Bold(true)

	cardStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(colorBorder)).
			Padding(0, 1)
)

func badgeStyle(color string) lipgloss.Style {
	return lipgloss.NewStyle().
		Background(lipgloss.Color(color)).
		Foreground(lipgloss.Color(colorBg)).
		Padding(0, 1).
		Bold(true)
}

// outcomeBadge renders a parsed prediction green and a fallback yellow.
func outcomeBadge(o prediction.Outcome) string {
	if o == prediction.OutcomeFallback {
		return badgeStyle(colorYellow).Render("FALLBACK")
	}
	return badgeStyle(colorGreen).Render("PARSED")
}

func banner(title string) string {
	rule := ruleStyle.Render("============================================================")
	return rule + "\n" + titleStyle.Render(title) + "\n" + rule
}

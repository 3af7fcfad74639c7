package tui

import "github.com/charmbracelet/lipgloss"

var (
	successColor = lipgloss.Color("42")
	warningColor = lipgloss.Color("226")
	errorColor   = lipgloss.Color("196")
	mutedColor   = lipgloss.Color("245")
	accentColor  = lipgloss.Color("39")

	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	labelStyle = lipgloss.NewStyle().Bold(true).Foreground(mutedColor).Width(13)
	valueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))

	cardStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(accentColor).
			Padding(0, 2)

	successStyle  = lipgloss.NewStyle().Foreground(successColor).Bold(true)
	failureStyle  = lipgloss.NewStyle().Foreground(errorColor).Bold(true)
	mismatchStyle = lipgloss.NewStyle().Foreground(warningColor)

	warningBannerStyle = lipgloss.NewStyle().
				Foreground(warningColor).
				Bold(true).
				BorderStyle(lipgloss.NormalBorder()).
				BorderForeground(warningColor).
				Padding(0, 1).
				MarginTop(1)
)

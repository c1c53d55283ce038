package tui

import "github.com/charmbracelet/lipgloss"

var (
	primaryColor   = lipgloss.Color("#5FAFAF") // Teal accent
	secondaryColor = lipgloss.Color("#666666") // Gray for secondary text
	successColor   = lipgloss.Color("#87AF87") // Muted sage for success
	errorColor     = lipgloss.Color("#AF5F5F") // Muted terracotta for errors
	warnColor      = lipgloss.Color("#AFAF5F") // Muted amber for prompts

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor)

	subtleStyle = lipgloss.NewStyle().
			Foreground(secondaryColor)

	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor)

	successStyle = lipgloss.NewStyle().
			Foreground(successColor)

	errorStyle = lipgloss.NewStyle().
			Foreground(errorColor)

	promptStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(warnColor)

	outputBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(secondaryColor).
			Padding(0, 1)
)

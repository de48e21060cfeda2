package tui

import "github.com/charmbracelet/lipgloss"

// Colors used throughout the watch view.
var (
	colorRed    = lipgloss.Color("#FF5555")
	colorGreen  = lipgloss.Color("#50FA7B")
	colorYellow = lipgloss.Color("#F1FA8C")
	colorCyan   = lipgloss.Color("#8BE9FD")
	colorGray   = lipgloss.Color("#666666")
	colorWhite  = lipgloss.Color("#F8F8F2")
)

// Base styles reused by the view.
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorCyan)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorWhite)

	statusStyle = lipgloss.NewStyle().
			Foreground(colorGray)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorRed)

	sttStyle = lipgloss.NewStyle().
			Foreground(colorYellow)

	draftStyle = lipgloss.NewStyle().
			Foreground(colorCyan)

	readyStyle = lipgloss.NewStyle().
			Foreground(colorGreen)

	healthyStyle = lipgloss.NewStyle().
			Foreground(colorGreen)

	unhealthyStyle = lipgloss.NewStyle().
			Foreground(colorRed)
)

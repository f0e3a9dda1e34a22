package ui

import "github.com/charmbracelet/lipgloss"

// Semantic color palette.
var (
	colorPrimary = lipgloss.Color("#00BFFF") // Cyan: headings
	colorAccent  = lipgloss.Color("#FFD700") // Gold: warnings and skips
	colorSuccess = lipgloss.Color("#00E676") // Green: completed
	colorDanger  = lipgloss.Color("#FF5252") // Red: errors
	colorMuted   = lipgloss.Color("#8C8C8C") // Gray: secondary text
	colorBlue    = lipgloss.Color("#5B8DEF") // Blue: planned work
)

// Status icons.
const (
	iconDone    = "✓"
	iconFailed  = "✗"
	iconSkipped = "–"
	iconPlanned = "+"
	iconArrival = "◆"
)

var (
	styleHeading = lipgloss.NewStyle().Foreground(colorPrimary).Bold(true)
	styleSuccess = lipgloss.NewStyle().Foreground(colorSuccess).Bold(true)
	styleDanger  = lipgloss.NewStyle().Foreground(colorDanger).Bold(true)
	styleWarn    = lipgloss.NewStyle().Foreground(colorAccent)
	styleMuted   = lipgloss.NewStyle().Foreground(colorMuted)
	stylePlanned = lipgloss.NewStyle().Foreground(colorBlue)
	styleLabel   = lipgloss.NewStyle().Foreground(colorMuted).Width(14)
)

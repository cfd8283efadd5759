package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

var (
	accent = lipgloss.Color("#f472b6")
	green  = lipgloss.Color("#10B981")
	amber  = lipgloss.Color("#F59E0B")
	red    = lipgloss.Color("#EF4444")
	gray   = lipgloss.Color("#6B7280")
	light  = lipgloss.Color("#F9FAFB")
	dark   = lipgloss.Color("#111827")
)

var (
	// MutedStyle renders secondary detail such as transition reasons.
	MutedStyle = lipgloss.NewStyle().Foreground(gray)

	boldStyle    = lipgloss.NewStyle().Bold(true)
	spinnerStyle = lipgloss.NewStyle().Foreground(accent)
	successStyle = lipgloss.NewStyle().Foreground(green).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(amber)
	errorStyle   = lipgloss.NewStyle().Foreground(red).Bold(true)

	// roomBoxStyle frames the room code the host shares.
	roomBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(green).
			Padding(1, 2)
)

// Metadata table cells.
var (
	headerCellStyle = lipgloss.NewStyle().Bold(true).Foreground(accent).Align(lipgloss.Center)
	rowStyle        = lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("255"))
	altRowStyle     = rowStyle.Foreground(lipgloss.Color("245"))
)

// Session state badges, one per group of states.
var (
	badge               = lipgloss.NewStyle().Padding(0, 1)
	stateActiveStyle    = badge.Foreground(dark).Background(amber)
	stateConnectedStyle = badge.Foreground(dark).Background(green).Bold(true)
	stateEndedStyle     = badge.Foreground(light).Background(gray)
	stateFailedStyle    = badge.Foreground(light).Background(red).Bold(true)
)

const (
	IconSuccess  = "✅"
	IconError    = "❌"
	IconWarning  = "⚠️"
	IconInfo     = "ℹ️"
	IconConnect  = "🔌"
	IconWaiting  = "⏳"
	IconCopy     = "📋"
	IconWeb      = "🌐"
	IconGame     = "🎮"
	IconKeyboard = "⌨️"
	IconMouse    = "🖱️"
	IconStats    = "📊"
)

func PrintError(msg string) {
	fmt.Printf("%s %s\n", errorStyle.Render(IconError), errorStyle.Render(msg))
}

func PrintWarning(msg string) {
	fmt.Printf("%s %s\n", warningStyle.Render(IconWarning), warningStyle.Render(msg))
}

func PrintInfo(msg string) {
	fmt.Printf("%s %s\n", IconInfo, MutedStyle.Render(msg))
}

func formatError(err error) string {
	return fmt.Sprintf("%s %s", errorStyle.Render(IconError), errorStyle.Render(err.Error()))
}

// Package ui holds the lipgloss styles and small renderers of the TUI.
package ui

import "github.com/charmbracelet/lipgloss"

// Palette, adaptive for light and dark terminals.
var (
	ColorAccent   = lipgloss.AdaptiveColor{Light: "#00787A", Dark: "#3FD7D9"}
	ColorRecord   = lipgloss.AdaptiveColor{Light: "#C4161C", Dark: "#FF4D4F"}
	ColorWarn     = lipgloss.AdaptiveColor{Light: "#9A6700", Dark: "#F2C744"}
	ColorOK       = lipgloss.AdaptiveColor{Light: "#1A7F37", Dark: "#5FD068"}
	ColorWave     = lipgloss.AdaptiveColor{Light: "#2E6F40", Dark: "#4CAF6A"}
	ColorText     = lipgloss.AdaptiveColor{Light: "#1F2328", Dark: "#E6E6E6"}
	ColorMuted    = lipgloss.AdaptiveColor{Light: "#6E7781", Dark: "#7D8590"}
	ColorHairline = lipgloss.AdaptiveColor{Light: "#D0D7DE", Dark: "#3A3F44"}
)

func fg(c lipgloss.TerminalColor) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(c)
}

// Header and status line.
var (
	TitleStyle        = fg(ColorAccent).Bold(true)
	StatusStyle       = fg(ColorMuted)
	RecordingDotStyle = fg(ColorRecord).Bold(true)
	PausedStyle       = fg(ColorWarn).Bold(true)
	IdleDotStyle      = fg(ColorMuted)
	TimerStyle        = fg(ColorText).Bold(true)
	WaveStyle         = fg(ColorWave)
)

// Level meter cells.
var (
	LevelLowStyle   = fg(ColorOK)
	LevelHighStyle  = fg(ColorWarn)
	LevelEmptyStyle = fg(ColorHairline)
)

// Panels.
var (
	PanelTitleStyle       = fg(ColorText).Bold(true)
	PanelTitleActiveStyle = fg(ColorAccent).Bold(true).Underline(true)
	SelectedStyle         = fg(ColorAccent).Bold(true)
	DividerStyle          = fg(ColorHairline)
	DimStyle              = fg(ColorMuted)

	LiveBadgeStyle    = fg(ColorOK).Bold(true)
	ScrollBadgeStyle  = fg(ColorWarn).Bold(true)
	HistoryBadgeStyle = fg(ColorAccent).Bold(true)
)

// Transcript lines.
var (
	TimestampStyle   = fg(ColorMuted)
	PendingTextStyle = fg(ColorWarn).Italic(true)
	FailedTextStyle  = fg(ColorRecord).Italic(true)
)

// Errors and footer.
var (
	ErrorStyle      = fg(ColorRecord).Bold(true)
	ErrorTextStyle  = fg(ColorRecord)
	FooterKeyStyle  = fg(ColorWarn).Bold(true)
	FooterDescStyle = fg(ColorMuted)
)

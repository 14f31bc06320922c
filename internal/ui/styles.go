package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// ─── Color tokens ────────────────────────────────────────────────────────────

// Shared palette. Individual views alias these locally.
var (
	ColorPrimary = lipgloss.Color("#7C6AEF") // violet accent
	ColorText    = lipgloss.Color("#E6E6E6")
	ColorTextDim = lipgloss.Color("#A0A0B0")
	ColorMuted   = lipgloss.Color("#6B6B7B")
	ColorWarning = lipgloss.Color("#F5B83D")
	ColorError   = lipgloss.Color("#F25C54")
	ColorSuccess = lipgloss.Color("#4BC47D")
)

// ─── Icons ───────────────────────────────────────────────────────────────────

const (
	IconDiamond = "◆"
	IconChevron = "›"
	IconFolder  = "▸"
	IconWarning = "▲"
	IconError   = "✗"
	IconCheck   = "✓"
	IconBlock   = "█"
	IconPipe    = "│"
)

// ─── Reusable styles ─────────────────────────────────────────────────────────

func TagWarningStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color("#1A1A1A")).
		Background(ColorWarning).
		Bold(true)
}

func HintBarStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(ColorMuted)
}

// GradientBar renders a filled proportion bar of the given width. pct is
// clamped to [0, 1].
func GradientBar(pct float64, width int) string {
	if width <= 0 {
		return ""
	}
	if pct < 0 {
		pct = 0
	}
	if pct > 1 {
		pct = 1
	}
	filled := int(pct * float64(width))
	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().Foreground(ColorPrimary).
		Render(strings.Repeat(IconBlock, filled)))
	b.WriteString(lipgloss.NewStyle().Foreground(ColorMuted).
		Render(strings.Repeat("░", width-filled)))
	return b.String()
}

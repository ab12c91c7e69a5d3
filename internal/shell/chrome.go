// Package shell renders the status-bar chrome wrapped around an embedded
// Term prompt (spec §4.8): a mode indicator, activity status, contextual
// help, and a right-aligned script label — the terminal-first stand-in for
// the window chrome a GPU-rendered client would draw natively.
//
// Grounded on the teacher's internal/session/client/render.go (RenderBar,
// StatusLabel, ModeLabel, ModeBarStyle, HelpLabel, formatTokens/formatCost)
// and internal/session/virtualterminal/util.go (FormatIdleDuration), redone
// with lipgloss styling instead of hand-written ANSI escapes.
package shell

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/johnlindquist/scriptkit-gpui/internal/keys"
)

// Mode is the current chrome mode, mirroring the teacher's InputMode.
type Mode int

const (
	ModeNormal Mode = iota
	ModeActions
	ModeTermPassthrough
	ModeScroll
)

func (m Mode) Label() string {
	switch m {
	case ModeActions:
		return "Actions"
	case ModeTermPassthrough:
		return "Passthrough"
	case ModeScroll:
		return "Scroll"
	default:
		return "Default"
	}
}

func (m Mode) style() lipgloss.Style {
	base := lipgloss.NewStyle().Reverse(true)
	switch m {
	case ModeActions:
		return base.Foreground(lipgloss.Color("4"))
	case ModeTermPassthrough:
		return base.Foreground(lipgloss.Color("3"))
	case ModeScroll:
		return base.Foreground(lipgloss.Color("6"))
	default:
		return base.Foreground(lipgloss.Color("6"))
	}
}

// HelpFor returns mode-specific help text, adjusted for the detected
// keyboard protocol so Ctrl+Enter vs Ctrl+\ matches what the terminal
// actually sends.
func HelpFor(m Mode, proto keys.Protocol) string {
	h := keys.Help(proto)
	switch m {
	case ModeTermPassthrough:
		return h.Passthrough
	case ModeActions:
		return "esc exit"
	case ModeScroll:
		return "Up/Down scroll | Esc exit"
	default:
		return h.Normal
	}
}

// idleThreshold matches the teacher's 2s activity cutoff.
const idleThreshold = 2 * time.Second

// StatusLabel reports "Active" if output arrived within idleThreshold of
// now, otherwise "Idle <duration>".
func StatusLabel(lastOutput, now time.Time) string {
	if lastOutput.IsZero() {
		return "Active"
	}
	idleFor := now.Sub(lastOutput)
	if idleFor <= idleThreshold {
		return "Active"
	}
	return "Idle " + FormatIdleDuration(idleFor)
}

// FormatIdleDuration renders a duration compactly: "12s", "4m", "2h", "1d".
func FormatIdleDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		secs := int(d.Seconds())
		if secs < 1 {
			secs = 1
		}
		return fmt.Sprintf("%ds", secs)
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}

// FormatTokens renders a token count compactly for the AI chat cost HUD
// (e.g. "6k", "1.2M").
func FormatTokens(n int64) string {
	switch {
	case n < 1000:
		return fmt.Sprintf("%d", n)
	case n < 10000:
		return strings.TrimSuffix(fmt.Sprintf("%.1f", float64(n)/1000), ".0") + "k"
	case n < 1000000:
		return fmt.Sprintf("%dk", n/1000)
	case n < 10000000:
		return fmt.Sprintf("%.1fM", float64(n)/1000000)
	default:
		return fmt.Sprintf("%dM", n/1000000)
	}
}

// FormatCost renders a USD amount compactly, e.g. "$0.003", "$1.23".
func FormatCost(usd float64) string {
	if usd < 0.01 {
		return fmt.Sprintf("$%.3f", usd)
	}
	return fmt.Sprintf("$%.2f", usd)
}

// BarConfig describes one render of the status bar.
type BarConfig struct {
	Mode         Mode
	Protocol     keys.Protocol
	Status       string // from StatusLabel
	Right        string // e.g. script name
	QueueDepth   int
	QueuePaused  bool
	Cols         int
}

// RenderBar composes the styled status-bar line, truncating the label or
// dropping the right-aligned segment when the terminal is too narrow —
// matching the teacher's tight-on-space fallback in RenderBar.
func RenderBar(cfg BarConfig) string {
	label := " " + cfg.Mode.Label()
	if cfg.Mode != ModeActions {
		label += " | " + cfg.Status
	}
	if cfg.QueueDepth > 0 {
		if cfg.QueuePaused {
			label += fmt.Sprintf(" | [%d paused]", cfg.QueueDepth)
		} else {
			label += fmt.Sprintf(" | [%d queued]", cfg.QueueDepth)
		}
	}
	if help := HelpFor(cfg.Mode, cfg.Protocol); help != "" {
		label += " | " + help
	}

	right := cfg.Right
	if cfg.Cols > 0 && len(label)+len(right) > cfg.Cols {
		label = " " + cfg.Mode.Label()
		if cfg.Mode != ModeActions {
			label += " | " + cfg.Status
		}
		if len(label)+len(right) > cfg.Cols {
			if len(label) > cfg.Cols {
				label = label[:cfg.Cols]
			}
			right = ""
		}
	}

	gap := 0
	if cfg.Cols > len(label)+len(right) {
		gap = cfg.Cols - len(label) - len(right)
	}
	line := label + strings.Repeat(" ", gap) + right
	return cfg.Mode.style().Render(line)
}

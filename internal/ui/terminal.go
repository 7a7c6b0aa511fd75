package ui

import (
	"os"

	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// IsTerminal reports whether stdout is attached to a terminal.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// IsAgentMode reports whether output should stay plain and compact for
// programmatic consumers. Set SACKS_AGENT_MODE to any non-empty value to
// enable it.
func IsAgentMode() bool {
	return os.Getenv("SACKS_AGENT_MODE") != ""
}

// ShouldUseColor decides whether styled output is appropriate.
// Precedence follows the informal CLI color conventions:
//   - NO_COLOR set: never color, even when forced
//   - CLICOLOR_FORCE set (non-zero): color, even when stdout is not a TTY
//   - CLICOLOR=0: no color
//   - otherwise: color only when stdout is a TTY that supports it
func ShouldUseColor() bool {
	if termenv.EnvNoColor() {
		return false
	}
	if force := os.Getenv("CLICOLOR_FORCE"); force != "" && force != "0" {
		return true
	}
	if !IsTerminal() {
		return false
	}
	return termenv.ColorProfile() != termenv.Ascii
}

// ShouldUseEmoji reports whether emoji/icon glyphs are appropriate.
// SACKS_NO_EMOJI disables them for terminals with poor glyph support.
func ShouldUseEmoji() bool {
	if os.Getenv("SACKS_NO_EMOJI") != "" {
		return false
	}
	return IsTerminal()
}

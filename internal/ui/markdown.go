package ui

import (
	"os"

	"charm.land/glamour/v2"
	"golang.org/x/term"
)

// RenderMarkdown renders markdown through glamour for terminal display.
// Returns the raw markdown when styling is inappropriate (agent mode,
// colors disabled) or when rendering fails, so callers can print the
// result unconditionally.
func RenderMarkdown(markdown string) string {
	// Agent mode wants the raw text, not ANSI-decorated output
	if IsAgentMode() {
		return markdown
	}

	if !ShouldUseColor() {
		return markdown
	}

	// Wrap at terminal width, capped for readability on wide terminals
	const maxReadableWidth = 100
	wrapWidth := 80
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		wrapWidth = w
	}
	if wrapWidth > maxReadableWidth {
		wrapWidth = maxReadableWidth
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(wrapWidth),
	)
	if err != nil {
		return markdown
	}

	rendered, err := renderer.Render(markdown)
	if err != nil {
		return markdown
	}

	return rendered
}

package ui

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// Default truncation settings for long report fields.
const (
	DefaultMaxLines     = 15 // max lines before middle truncation kicks in
	DefaultContextLines = 5  // lines kept at each end when truncating
)

// TruncateSimple performs plain end truncation with a "..." suffix.
// UTF-8 safe.
func TruncateSimple(text string, maxLen int) string {
	if utf8.RuneCountInString(text) <= maxLen {
		return text
	}
	if maxLen <= 3 {
		return "..."
	}
	runes := []rune(text)
	return string(runes[:maxLen-3]) + "..."
}

// TruncateLines truncates text to maxLines, keeping contextLines from the
// beginning and end with a hidden-line marker in the middle. Text at or
// under maxLines is returned unchanged.
func TruncateLines(text string, maxLines, contextLines int) string {
	if text == "" {
		return text
	}

	lines := strings.Split(text, "\n")
	total := len(lines)
	if total <= maxLines {
		return text
	}

	if contextLines < 1 {
		contextLines = DefaultContextLines
	}
	// Not enough room for head+marker+tail, fall back to head-only
	if maxLines < contextLines*2+3 {
		return strings.Join(lines[:maxLines], "\n") + "\n..."
	}

	hidden := total - contextLines*2

	var b strings.Builder
	b.WriteString(strings.Join(lines[:contextLines], "\n"))
	b.WriteString("\n")
	b.WriteString(RenderMuted(strings.Repeat("─", 40)))
	b.WriteString("\n")
	b.WriteString(RenderMuted("... (" + strconv.Itoa(hidden) + " lines hidden)"))
	b.WriteString("\n")
	b.WriteString(RenderMuted(strings.Repeat("─", 40)))
	b.WriteString("\n")
	b.WriteString(strings.Join(lines[total-contextLines:], "\n"))

	return b.String()
}

// ShouldTruncate reports whether text exceeds the given thresholds.
// A threshold of 0 disables that check.
func ShouldTruncate(text string, maxLines, maxChars int) bool {
	if maxChars > 0 && utf8.RuneCountInString(text) > maxChars {
		return true
	}
	if maxLines > 0 && strings.Count(text, "\n")+1 > maxLines {
		return true
	}
	return false
}

// WrapText wraps text at word boundaries to fit within maxWidth.
// Preserves existing line breaks.
func WrapText(text string, maxWidth int) string {
	if maxWidth <= 0 {
		maxWidth = 80
	}

	var b strings.Builder
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(wrapLine(line, maxWidth))
	}

	return b.String()
}

// wrapLine wraps a single line at word boundaries. Words longer than
// maxWidth stay on their own line unbroken.
func wrapLine(line string, maxWidth int) string {
	if utf8.RuneCountInString(line) <= maxWidth {
		return line
	}

	var b strings.Builder
	currentLen := 0
	for _, word := range strings.Fields(line) {
		wordLen := utf8.RuneCountInString(word)

		if currentLen == 0 {
			b.WriteString(word)
			currentLen = wordLen
			continue
		}

		if currentLen+1+wordLen <= maxWidth {
			b.WriteString(" ")
			b.WriteString(word)
			currentLen += 1 + wordLen
		} else {
			b.WriteString("\n")
			b.WriteString(word)
			currentLen = wordLen
		}
	}

	return b.String()
}

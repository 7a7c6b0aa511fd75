package parser

import (
	"regexp"
	"sort"
	"strings"
)

// span marks a half-open byte range matched inside an input string.
type span struct {
	start, end int
}

var (
	emptyBracketPairs = regexp.MustCompile(`\(\s*\)|\[\s*\]|\{\s*\}`)
	whitespaceRuns    = regexp.MustCompile(`\s+`)
)

// cleanRemainder deletes the matched spans from input and tidies what is
// left. Waterfall chains read this remainder as <Key>.Clean, so pulling
// "100ml" out of "EDP (100ml)" must leave "EDP", not "EDP ()".
func cleanRemainder(input string, spans []span) string {
	if len(spans) == 0 {
		return tidy(input)
	}
	cut := make([]span, len(spans))
	copy(cut, spans)
	// delete right to left so earlier offsets stay valid
	sort.Slice(cut, func(i, j int) bool { return cut[i].start > cut[j].start })
	s := input
	for _, sp := range cut {
		if sp.start < 0 || sp.start > sp.end || sp.end > len(s) {
			continue
		}
		s = s[:sp.start] + s[sp.end:]
	}
	return tidy(s)
}

// tidy drops bracket pairs left empty by a removal, collapses whitespace
// runs to a single space, and trims the ends.
func tidy(s string) string {
	for {
		next := emptyBracketPairs.ReplaceAllString(s, " ")
		if next == s {
			break
		}
		s = next
	}
	return strings.TrimSpace(whitespaceRuns.ReplaceAllString(s, " "))
}

package ui

import (
	"os"
	"testing"
)

func TestRenderMarkdownPlainWhenColorDisabled(t *testing.T) {
	origNoColor := os.Getenv("NO_COLOR")
	defer setEnv("NO_COLOR", origNoColor)
	os.Setenv("NO_COLOR", "1")

	src := "# Suppliers\n\n- Acme\n- Fragrance World\n"
	if got := RenderMarkdown(src); got != src {
		t.Errorf("RenderMarkdown() with NO_COLOR should return input unchanged, got %q", got)
	}
}

func TestRenderMarkdownPlainInAgentMode(t *testing.T) {
	origAgent := os.Getenv("SACKS_AGENT_MODE")
	defer setEnv("SACKS_AGENT_MODE", origAgent)
	os.Setenv("SACKS_AGENT_MODE", "1")

	src := "## Column C\n\nwaterfall with 9 actions\n"
	if got := RenderMarkdown(src); got != src {
		t.Errorf("RenderMarkdown() in agent mode should return input unchanged, got %q", got)
	}
}

package ui

import (
	"os"
	"testing"
)

func TestShouldUseColor(t *testing.T) {
	origNoColor := os.Getenv("NO_COLOR")
	origCliColor := os.Getenv("CLICOLOR")
	origCliColorForce := os.Getenv("CLICOLOR_FORCE")
	defer func() {
		setEnv("NO_COLOR", origNoColor)
		setEnv("CLICOLOR", origCliColor)
		setEnv("CLICOLOR_FORCE", origCliColorForce)
	}()

	tests := []struct {
		name          string
		noColor       string
		cliColor      string
		cliColorForce string
		wantColor     bool
		envDecides    bool // outcome fixed by env alone, independent of TTY state
	}{
		{
			name:       "NO_COLOR disables color",
			noColor:    "1",
			wantColor:  false,
			envDecides: true,
		},
		{
			name:       "nothing set in non-TTY test run",
			wantColor:  false,
			envDecides: false,
		},
		{
			name:       "CLICOLOR=0 disables color",
			cliColor:   "0",
			wantColor:  false,
			envDecides: true,
		},
		{
			name:          "CLICOLOR_FORCE enables color even in non-TTY",
			cliColorForce: "1",
			wantColor:     true,
			envDecides:    true,
		},
		{
			name:          "NO_COLOR takes precedence over CLICOLOR_FORCE",
			noColor:       "1",
			cliColorForce: "1",
			wantColor:     false,
			envDecides:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Unsetenv("NO_COLOR")
			os.Unsetenv("CLICOLOR")
			os.Unsetenv("CLICOLOR_FORCE")

			if tt.noColor != "" {
				os.Setenv("NO_COLOR", tt.noColor)
			}
			if tt.cliColor != "" {
				os.Setenv("CLICOLOR", tt.cliColor)
			}
			if tt.cliColorForce != "" {
				os.Setenv("CLICOLOR_FORCE", tt.cliColorForce)
			}

			got := ShouldUseColor()
			if tt.envDecides && got != tt.wantColor {
				t.Errorf("ShouldUseColor() = %v, want %v", got, tt.wantColor)
			}
		})
	}
}

func TestShouldUseEmoji(t *testing.T) {
	origNoEmoji := os.Getenv("SACKS_NO_EMOJI")
	defer setEnv("SACKS_NO_EMOJI", origNoEmoji)

	tests := []struct {
		name      string
		noEmoji   string
		wantEmoji bool
	}{
		{
			name:      "SACKS_NO_EMOJI disables emoji",
			noEmoji:   "1",
			wantEmoji: false,
		},
		{
			name:      "unset falls back to TTY check",
			noEmoji:   "",
			wantEmoji: false, // test stdout is not a TTY
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Unsetenv("SACKS_NO_EMOJI")
			if tt.noEmoji != "" {
				os.Setenv("SACKS_NO_EMOJI", tt.noEmoji)
			}

			got := ShouldUseEmoji()
			if got != tt.wantEmoji {
				t.Errorf("ShouldUseEmoji() = %v, want %v", got, tt.wantEmoji)
			}
		})
	}
}

func TestIsAgentMode(t *testing.T) {
	origAgent := os.Getenv("SACKS_AGENT_MODE")
	defer setEnv("SACKS_AGENT_MODE", origAgent)

	os.Unsetenv("SACKS_AGENT_MODE")
	if IsAgentMode() {
		t.Error("IsAgentMode() = true with SACKS_AGENT_MODE unset")
	}

	os.Setenv("SACKS_AGENT_MODE", "1")
	if !IsAgentMode() {
		t.Error("IsAgentMode() = false with SACKS_AGENT_MODE set")
	}
}

func TestIsTerminal(t *testing.T) {
	// Under go test stdout is typically not a TTY; just verify no panic
	got := IsTerminal()
	t.Logf("IsTerminal() = %v (expected false in test environment)", got)
}

// setEnv sets or unsets an environment variable
func setEnv(key, value string) {
	if value == "" {
		os.Unsetenv(key)
	} else {
		os.Setenv(key, value)
	}
}

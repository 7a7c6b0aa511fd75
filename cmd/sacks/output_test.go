package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/sacksapp/sacks/internal/types"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, exitOk},
		{"duplicate offer", &types.DuplicateOfferError{Supplier: "Acme", OfferName: "Acme - list.xlsx"}, exitDuplicate},
		{"duplicate wrapped in processing failure", &types.ProcessingFailedError{Phase: "upsert", Err: &types.DuplicateOfferError{Supplier: "Acme", OfferName: "x"}}, exitDuplicate},
		{"argument", &types.ArgumentError{Name: "path", Value: "list.xls", Message: "unsupported extension"}, exitArgument},
		{"config", &types.ConfigError{File: "supplier-formats.json", Message: "parsing JSON"}, exitConfig},
		{"validation", &types.ValidationError{Supplier: "Acme", Message: "bad currency"}, exitConfig},
		{"fmt-wrapped config", fmt.Errorf("loading: %w", &types.ConfigError{Message: "boom"}), exitConfig},
		{"supplier not detected", &types.SupplierNotDetectedError{Path: "x.xlsx"}, exitFailed},
		{"plain error", errors.New("boom"), exitFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCode(tt.err); got != tt.want {
				t.Errorf("exitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestErrorTag(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"duplicate offer", &types.DuplicateOfferError{Supplier: "Acme", OfferName: "x"}, "duplicate_offer"},
		{"argument", &types.ArgumentError{Name: "since", Value: "???", Message: "unparseable"}, "argument"},
		{"config", &types.ConfigError{Message: "boom"}, "config"},
		{"validation", &types.ValidationError{Message: "boom"}, "config"},
		{"plain error", errors.New("boom"), "failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errorTag(tt.err); got != tt.want {
				t.Errorf("errorTag(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}

// Exit codes are a published contract; renumbering them breaks automation.
func TestExitCodeValues(t *testing.T) {
	if exitOk != 0 || exitFailed != 1 || exitDuplicate != 2 || exitArgument != 3 || exitConfig != 4 {
		t.Errorf("exit code contract changed: ok=%d failed=%d duplicate=%d argument=%d config=%d",
			exitOk, exitFailed, exitDuplicate, exitArgument, exitConfig)
	}
}

package config

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/sacksapp/sacks/internal/lookup"
	"github.com/sacksapp/sacks/internal/types"
)

// Validate runs the structural checks every document must pass regardless
// of which ops its rules use: names, currencies, lookup references,
// detection globs, and subtitle rule shapes. Op parameter contracts are
// checked by the parser when it compiles the document; the store runs both
// through its validation hook.
func (d *Document) Validate() error {
	if d.Version <= 0 {
		return &types.ConfigError{File: MainDocumentName, Message: "Version must be a positive integer"}
	}
	seen := make(map[string]string)
	for _, sup := range d.Suppliers {
		if err := d.validateSupplier(sup); err != nil {
			return err
		}
		key := strings.ToLower(sup.Name)
		if prev, dup := seen[key]; dup {
			return &types.ValidationError{Supplier: sup.Name,
				Message: fmt.Sprintf("duplicate supplier name (also defined as %q)", prev)}
		}
		seen[key] = sup.Name
	}
	return nil
}

func (d *Document) validateSupplier(sup *SupplierConfig) error {
	if strings.TrimSpace(sup.Name) == "" {
		return &types.ValidationError{Message: "supplier with empty Name"}
	}
	if !types.ValidCurrency(sup.Currency) {
		return &types.ValidationError{Supplier: sup.Name,
			Message: fmt.Sprintf("Currency %q: want 3 uppercase letters", sup.Currency)}
	}
	fs := sup.FileStructure
	if fs.DataStartRowIndex < 0 || fs.HeaderRowIndex < 0 {
		return &types.ValidationError{Supplier: sup.Name, Message: "row indexes cannot be negative"}
	}
	if len(fs.Detection.FileNamePatterns) == 0 {
		return &types.ValidationError{Supplier: sup.Name, Message: "Detection.FileNamePatterns is empty"}
	}
	for _, p := range fs.Detection.FileNamePatterns {
		if _, err := path.Match(strings.ToLower(p), "probe"); err != nil {
			return &types.ValidationError{Supplier: sup.Name,
				Message: fmt.Sprintf("detection pattern %q: %v", p, err)}
		}
	}
	lookups := d.LookupsFor(sup)
	for _, rule := range sup.ParserConfig.ColumnRules {
		if strings.TrimSpace(rule.Column) == "" {
			return &types.ValidationError{Supplier: sup.Name, Message: "ColumnRule with empty Column"}
		}
		for _, action := range rule.Actions {
			if err := validateActionRefs(lookups, sup.Name, rule.Column, &action); err != nil {
				return err
			}
		}
	}
	if sup.SubtitleHandling != nil {
		if err := validateSubtitles(lookups, sup); err != nil {
			return err
		}
	}
	return nil
}

// validateActionRefs checks only what the config layer owns: that every
// lookup table an action references actually exists for this supplier.
func validateActionRefs(lookups *lookup.Set, supplier, column string, action *ActionConfig) error {
	var tables []string
	if v, ok := action.Param("Table"); ok {
		tables = append(tables, v)
	}
	if v, ok := action.Param("Pattern"); ok && strings.HasPrefix(strings.ToLower(v), "lookup:") {
		tables = append(tables, v[len("lookup:"):])
	}
	for _, name := range tables {
		if _, ok := lookups.Table(name); !ok {
			return &types.ValidationError{Supplier: supplier, Column: column, Action: action.Op,
				Message: fmt.Sprintf("unknown lookup table %q", name)}
		}
	}
	return nil
}

func validateSubtitles(lookups *lookup.Set, sup *SupplierConfig) error {
	sh := sup.SubtitleHandling
	if sh.FallbackAction != "" && sh.FallbackAction != "skip" {
		return &types.ValidationError{Supplier: sup.Name,
			Message: fmt.Sprintf("subtitle FallbackAction %q: want empty or \"skip\"", sh.FallbackAction)}
	}
	for _, rule := range sh.Rules {
		if strings.TrimSpace(rule.Name) == "" {
			return &types.ValidationError{Supplier: sup.Name, Message: "subtitle rule with empty Name"}
		}
		switch rule.Method {
		case "columnCount":
			if rule.ExpectedColumnCount <= 0 {
				return &types.ValidationError{Supplier: sup.Name,
					Message: fmt.Sprintf("subtitle rule %q: columnCount needs ExpectedColumnCount > 0", rule.Name)}
			}
		case "pattern":
			if len(rule.ValidationPatterns) == 0 {
				return &types.ValidationError{Supplier: sup.Name,
					Message: fmt.Sprintf("subtitle rule %q: pattern method needs ValidationPatterns", rule.Name)}
			}
		case "hybrid":
			if rule.ExpectedColumnCount <= 0 || len(rule.ValidationPatterns) == 0 {
				return &types.ValidationError{Supplier: sup.Name,
					Message: fmt.Sprintf("subtitle rule %q: hybrid needs ExpectedColumnCount and ValidationPatterns", rule.Name)}
			}
		default:
			return &types.ValidationError{Supplier: sup.Name,
				Message: fmt.Sprintf("subtitle rule %q: unknown method %q", rule.Name, rule.Method)}
		}
		for _, p := range rule.ValidationPatterns {
			if _, err := regexp.Compile(p); err != nil {
				return &types.ValidationError{Supplier: sup.Name,
					Message: fmt.Sprintf("subtitle rule %q: pattern %q: %v", rule.Name, p, err)}
			}
		}
		if rule.Action != "" && rule.Action != "parse" && rule.Action != "skip" {
			return &types.ValidationError{Supplier: sup.Name,
				Message: fmt.Sprintf("subtitle rule %q: unknown action %q", rule.Name, rule.Action)}
		}
		for _, tr := range rule.Transforms {
			if tr.Type != "removePrefix" {
				return &types.ValidationError{Supplier: sup.Name,
					Message: fmt.Sprintf("subtitle rule %q: unknown transform %q", rule.Name, tr.Type)}
			}
			if _, err := regexp.Compile(tr.Pattern); err != nil {
				return &types.ValidationError{Supplier: sup.Name,
					Message: fmt.Sprintf("subtitle rule %q: transform pattern %q: %v", rule.Name, tr.Pattern, err)}
			}
		}
		for _, as := range rule.Assignments {
			if strings.TrimSpace(as.TargetProperty) == "" {
				return &types.ValidationError{Supplier: sup.Name,
					Message: fmt.Sprintf("subtitle rule %q: assignment with empty TargetProperty", rule.Name)}
			}
			if as.Lookup != "" {
				if _, ok := lookups.Table(as.Lookup); !ok {
					return &types.ValidationError{Supplier: sup.Name,
						Message: fmt.Sprintf("subtitle rule %q: unknown lookup table %q", rule.Name, as.Lookup)}
				}
			}
		}
	}
	return nil
}

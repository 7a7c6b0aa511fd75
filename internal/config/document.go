// Package config loads, validates, watches, and serves the supplier format
// configuration: the main document (version, shared lookup tables, embedded
// suppliers) plus any per-supplier JSON documents sitting next to it.
package config

import (
	"strings"

	"github.com/sacksapp/sacks/internal/lookup"
	"github.com/sacksapp/sacks/internal/types"
)

// MainDocumentName is the file every configuration directory must contain.
const MainDocumentName = "supplier-formats.json"

// Document is the merged configuration aggregate. One instance lives for
// the whole process; hot reload replaces its contents in place so holders
// of the pointer observe updates without re-resolving it.
type Document struct {
	Version   int                          `json:"Version"`
	Lookups   map[string]map[string]string `json:"Lookups,omitempty"`
	Suppliers []*SupplierConfig            `json:"Suppliers,omitempty"`
}

// SupplierConfig describes how one supplier's files are detected and parsed.
type SupplierConfig struct {
	Name             string                       `json:"Name"`
	Currency         string                       `json:"Currency"`
	Description      string                       `json:"Description,omitempty"`
	FileStructure    FileStructure                `json:"FileStructure"`
	ParserConfig     ParserConfig                 `json:"ParserConfig"`
	SubtitleHandling *SubtitleHandling            `json:"SubtitleHandling,omitempty"`
	Lookups          map[string]map[string]string `json:"Lookups,omitempty"` // shadow global tables by name
}

// FileStructure locates the data inside a supplier's files.
type FileStructure struct {
	DataStartRowIndex   int       `json:"DataStartRowIndex"`
	HeaderRowIndex      int       `json:"HeaderRowIndex"`
	ExpectedColumnCount int       `json:"ExpectedColumnCount,omitempty"`
	Detection           Detection `json:"Detection"`
}

// Detection holds the filename globs that route a file to this supplier.
type Detection struct {
	FileNamePatterns []string `json:"FileNamePatterns"`
}

// ParserConfig holds the per-column action rules and engine settings.
type ParserConfig struct {
	Settings    Settings     `json:"Settings"`
	ColumnRules []ColumnRule `json:"ColumnRules"`
}

// Settings are the engine policies for one supplier.
type Settings struct {
	StopOnFirstMatchPerColumn bool   `json:"StopOnFirstMatchPerColumn,omitempty"`
	PreferFirstAssignment     bool   `json:"PreferFirstAssignment,omitempty"`
	DefaultCulture            string `json:"DefaultCulture,omitempty"`
}

// ColumnRule binds an ordered action chain to one spreadsheet column.
// Column accepts a letter ("A", "AB") or a 0-based index ("0", "27").
type ColumnRule struct {
	Column  string         `json:"Column"`
	Actions []ActionConfig `json:"Actions"`
}

// ActionConfig is the declarative form of a single action. Parameters are
// op-specific; see the parser package for the per-op contracts. Assign
// defaults to true when omitted: most actions in a waterfall publish their
// result, and intermediates mark themselves with "Assign": false.
//
// Parameters keep the document's declaration order. Switch depends on it:
// its When:<k> branches are evaluated in the order they were written.
type ActionConfig struct {
	Op         string             `json:"Op"`
	Input      string             `json:"Input,omitempty"`
	Output     string             `json:"Output"`
	Assign     *bool              `json:"Assign,omitempty"`
	Condition  string             `json:"Condition,omitempty"`
	Parameters *types.PropertyMap `json:"Parameters,omitempty"`
}

// Assigns reports the effective Assign flag.
func (a *ActionConfig) Assigns() bool {
	return a.Assign == nil || *a.Assign
}

// Param returns the named parameter, case-insensitively.
func (a *ActionConfig) Param(name string) (string, bool) {
	if a.Parameters == nil {
		return "", false
	}
	if v, ok := a.Parameters.Get(name); ok {
		return v, true
	}
	for _, k := range a.Parameters.Keys() {
		if strings.EqualFold(k, name) {
			return a.Parameters.Get(k)
		}
	}
	return "", false
}

// ParamNames returns the parameter names in declaration order.
func (a *ActionConfig) ParamNames() []string {
	if a.Parameters == nil {
		return nil
	}
	return a.Parameters.Keys()
}

// SubtitleHandling configures detection and propagation of subtitle rows,
// the in-body grouping rows suppliers use instead of a proper column.
type SubtitleHandling struct {
	Rules              []SubtitleRule `json:"Rules"`
	FallbackAction     string         `json:"FallbackAction,omitempty"`     // "skip" drops structurally thin non-matching rows
	MinimumDataColumns int            `json:"MinimumDataColumns,omitempty"` // structural minimum for FallbackAction; default 2
}

// SubtitleRule describes one way to recognize a subtitle row and what to do
// with its value.
type SubtitleRule struct {
	Name                  string               `json:"Name"`
	Key                   string               `json:"Key,omitempty"` // capture key in SubtitleData; defaults to Name
	Method                string               `json:"Method"`        // columnCount | pattern | hybrid
	ExpectedColumnCount   int                  `json:"ExpectedColumnCount,omitempty"`
	ValidationPatterns    []string             `json:"ValidationPatterns,omitempty"`
	Transforms            []SubtitleTransform  `json:"Transforms,omitempty"`
	Action                string               `json:"Action,omitempty"` // parse (default) | skip
	ApplyToSubsequentRows bool                 `json:"ApplyToSubsequentRows,omitempty"`
	Assignments           []SubtitleAssignment `json:"Assignments,omitempty"`
}

// CaptureKey returns the SubtitleData key this rule writes.
func (r *SubtitleRule) CaptureKey() string {
	if r.Key != "" {
		return r.Key
	}
	return r.Name
}

// SubtitleTransform mutates the captured value before storage.
type SubtitleTransform struct {
	Type       string `json:"Type"` // removePrefix
	Pattern    string `json:"Pattern"`
	IgnoreCase bool   `json:"IgnoreCase,omitempty"`
}

// SubtitleAssignment maps a captured subtitle value onto a bag property of
// the rows that inherit it.
type SubtitleAssignment struct {
	SourceKey      string `json:"SourceKey,omitempty"` // defaults to the rule's capture key
	TargetProperty string `json:"TargetProperty"`
	Lookup         string `json:"Lookup,omitempty"` // optional table to translate through
	Overwrite      bool   `json:"Overwrite,omitempty"`
}

// FindSupplier returns the named supplier, case-insensitively.
func (d *Document) FindSupplier(name string) (*SupplierConfig, bool) {
	for _, s := range d.Suppliers {
		if strings.EqualFold(s.Name, name) {
			return s, true
		}
	}
	return nil, false
}

// LookupsFor builds the effective lookup set for a supplier: the shared
// tables with any supplier-level tables shadowing them by name.
func (d *Document) LookupsFor(sup *SupplierConfig) *lookup.Set {
	merged := make(map[string]map[string]string, len(d.Lookups))
	for name, entries := range d.Lookups {
		merged[name] = entries
	}
	if sup != nil {
		for name, entries := range sup.Lookups {
			merged[name] = entries
		}
	}
	return lookup.NewSet(merged)
}

// ReplaceFrom copies other's contents into d, preserving d's identity.
// Callers must hold the store's write lock.
func (d *Document) ReplaceFrom(other *Document) {
	d.Version = other.Version
	d.Lookups = other.Lookups
	d.Suppliers = other.Suppliers
}

// Clone returns a shallow snapshot: a new Document sharing the immutable
// supplier and lookup values. Good enough for a per-run view because loaded
// configuration is never mutated, only replaced wholesale.
func (d *Document) Clone() *Document {
	suppliers := make([]*SupplierConfig, len(d.Suppliers))
	copy(suppliers, d.Suppliers)
	lookups := make(map[string]map[string]string, len(d.Lookups))
	for k, v := range d.Lookups {
		lookups[k] = v
	}
	return &Document{Version: d.Version, Lookups: lookups, Suppliers: suppliers}
}

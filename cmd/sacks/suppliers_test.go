package main

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/sacksapp/sacks/internal/config"
	"github.com/sacksapp/sacks/internal/parser"
	"github.com/sacksapp/sacks/internal/types"
)

func TestSupplierFileName(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Acme", "acme.json"},
		{"Candle Factory", "candle-factory.json"},
		{"candle_factory GmbH", "candle-factory-gmbh.json"},
		{"  Spaced  Out  ", "spaced-out.json"},
		{"Überraschung", "berraschung.json"},
		{"ACME 2000", "acme-2000.json"},
		{"---", "supplier.json"},
		{"", "supplier.json"},
	}
	for _, tt := range tests {
		if got := supplierFileName(tt.name); got != tt.want {
			t.Errorf("supplierFileName(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestSplitList(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"a.xlsx, b-*.csv", []string{"a.xlsx", "b-*.csv"}},
		{"one", []string{"one"}},
		{" , ,", nil},
		{"", nil},
		{"a,,b", []string{"a", "b"}},
	}
	for _, tt := range tests {
		got := splitList(tt.in)
		if len(got) != len(tt.want) {
			t.Errorf("splitList(%q) = %v, want %v", tt.in, got, tt.want)
			continue
		}
		for i := range tt.want {
			if got[i] != tt.want[i] {
				t.Errorf("splitList(%q)[%d] = %q, want %q", tt.in, i, got[i], tt.want[i])
			}
		}
	}
}

func TestParseRowIndex(t *testing.T) {
	tests := []struct {
		in   string
		def  int
		want int
	}{
		{"", 1, 1},
		{"  ", 0, 0},
		{"3", 1, 3},
		{" 5 ", 0, 5},
		{"-1", 1, 1},
		{"abc", 2, 2},
	}
	for _, tt := range tests {
		if got := parseRowIndex(tt.in, tt.def); got != tt.want {
			t.Errorf("parseRowIndex(%q, %d) = %d, want %d", tt.in, tt.def, got, tt.want)
		}
	}
}

func TestSupplierMarkdown(t *testing.T) {
	params := types.NewPropertyMap()
	params.Set("Table", "Units")

	noAssign := false
	sup := &config.SupplierConfig{
		Name:        "Candle Factory",
		Currency:    "EUR",
		Description: "Monthly price list, prices in cents.",
		FileStructure: config.FileStructure{
			HeaderRowIndex:    0,
			DataStartRowIndex: 2,
			Detection:         config.Detection{FileNamePatterns: []string{"candle-*.xlsx"}},
		},
		ParserConfig: config.ParserConfig{
			ColumnRules: []config.ColumnRule{
				{Column: "A", Actions: []config.ActionConfig{
					{Op: "Assign", Input: "Text", Output: "Product.Name"},
				}},
				{Column: "C", Actions: []config.ActionConfig{
					{Op: "Map", Input: "Text", Output: "unit", Assign: &noAssign, Parameters: params},
				}},
			},
		},
		SubtitleHandling: &config.SubtitleHandling{
			Rules: []config.SubtitleRule{
				{Name: "Category", Method: "columnCount", ExpectedColumnCount: 1,
					ApplyToSubsequentRows: true,
					Assignments:           []config.SubtitleAssignment{{TargetProperty: "Product.Category"}}},
			},
		},
		Lookups: map[string]map[string]string{
			"Units": {"milliliter": "ml"},
		},
	}

	md := supplierMarkdown(sup)

	for _, want := range []string{
		"# Candle Factory",
		"Monthly price list",
		"Currency: EUR",
		"candle-*.xlsx",
		"Header row 0, data starts at row 2",
		"### Column A",
		"**Assign** on `Text` -> `Product.Name`",
		"### Column C",
		"(intermediate)",
		"Table: `Units`",
		"## Subtitle rules",
		"**Category** (columnCount): sets Product.Category, applies to following rows",
		"## Supplier lookup tables",
		"Units (1 entries)",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("supplierMarkdown output missing %q\n%s", want, md)
		}
	}
}

// The init starter document must load, validate, and compile, or the very
// first 'sacks validate-config' after 'sacks init' fails.
func TestStarterDocumentValid(t *testing.T) {
	var doc config.Document
	if err := json.Unmarshal([]byte(starterDocument), &doc); err != nil {
		t.Fatalf("starter document is not valid JSON: %v", err)
	}
	if doc.Version != 1 {
		t.Errorf("starter document Version = %d, want 1", doc.Version)
	}
	if err := doc.Validate(); err != nil {
		t.Errorf("starter document does not validate: %v", err)
	}
	if err := parser.CompileAll(&doc); err != nil {
		t.Errorf("starter document does not compile: %v", err)
	}
	if _, ok := doc.Lookups["Units"]; !ok {
		t.Error("starter document should carry the Units example lookup table")
	}
}

// The rule scaffolded by 'suppliers new' must compile as written.
func TestScaffoldedSupplierCompiles(t *testing.T) {
	sup := &config.SupplierConfig{
		Name:     "Scaffold",
		Currency: "EUR",
		FileStructure: config.FileStructure{
			DataStartRowIndex: 1,
			Detection:         config.Detection{FileNamePatterns: []string{"scaffold-*.xlsx"}},
		},
		ParserConfig: config.ParserConfig{
			ColumnRules: []config.ColumnRule{
				{Column: "A", Actions: []config.ActionConfig{
					{Op: "Assign", Input: "Text", Output: "Product.Name"},
				}},
			},
		},
	}
	doc := &config.Document{Version: 1, Suppliers: []*config.SupplierConfig{sup}}
	if err := doc.Validate(); err != nil {
		t.Fatalf("scaffolded supplier does not validate: %v", err)
	}
	if _, err := parser.Compile(sup, doc.LookupsFor(sup)); err != nil {
		t.Fatalf("scaffolded supplier does not compile: %v", err)
	}
}

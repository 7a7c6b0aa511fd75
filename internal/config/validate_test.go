package config

import (
	"strings"
	"testing"

	"github.com/sacksapp/sacks/internal/types"
)

func params(kv ...string) *types.PropertyMap {
	pm := types.NewPropertyMap()
	for i := 0; i+1 < len(kv); i += 2 {
		pm.Set(kv[i], kv[i+1])
	}
	return pm
}

func validDocument() *Document {
	return &Document{
		Version: 1,
		Lookups: map[string]map[string]string{
			"Gender": {"Wom": "Women"},
		},
		Suppliers: []*SupplierConfig{
			{
				Name:     "Acme",
				Currency: "EUR",
				FileStructure: FileStructure{
					DataStartRowIndex: 1,
					HeaderRowIndex:    0,
					Detection:         Detection{FileNamePatterns: []string{"acme_*.xlsx"}},
				},
				ParserConfig: ParserConfig{
					ColumnRules: []ColumnRule{
						{Column: "A", Actions: []ActionConfig{
							{Op: "Map", Input: "Text", Output: "Product.Gender",
								Parameters: params("Table", "Gender")},
						}},
					},
				},
			},
		},
	}
}

func TestValidateAcceptsValidDocument(t *testing.T) {
	if err := validDocument().Validate(); err != nil {
		t.Fatalf("valid document rejected: %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Document)
		errMsg string
	}{
		{
			"zero version",
			func(d *Document) { d.Version = 0 },
			"Version",
		},
		{
			"empty supplier name",
			func(d *Document) { d.Suppliers[0].Name = "  " },
			"empty Name",
		},
		{
			"bad currency",
			func(d *Document) { d.Suppliers[0].Currency = "euros" },
			"Currency",
		},
		{
			"negative data start",
			func(d *Document) { d.Suppliers[0].FileStructure.DataStartRowIndex = -1 },
			"cannot be negative",
		},
		{
			"no detection patterns",
			func(d *Document) { d.Suppliers[0].FileStructure.Detection.FileNamePatterns = nil },
			"FileNamePatterns is empty",
		},
		{
			"malformed detection glob",
			func(d *Document) { d.Suppliers[0].FileStructure.Detection.FileNamePatterns = []string{"[unclosed"} },
			"detection pattern",
		},
		{
			"unknown lookup table in Map",
			func(d *Document) { d.Suppliers[0].ParserConfig.ColumnRules[0].Actions[0].Parameters.Set("Table", "Nope") },
			"unknown lookup table",
		},
		{
			"unknown lookup table in Find pattern",
			func(d *Document) {
				d.Suppliers[0].ParserConfig.ColumnRules[0].Actions = []ActionConfig{
					{Op: "Find", Input: "Text", Output: "B",
						Parameters: params("Pattern", "lookup:Missing")},
				}
			},
			"unknown lookup table",
		},
		{
			"empty column",
			func(d *Document) { d.Suppliers[0].ParserConfig.ColumnRules[0].Column = "" },
			"empty Column",
		},
		{
			"duplicate supplier name",
			func(d *Document) {
				dup := *d.Suppliers[0]
				dup.Name = "ACME"
				d.Suppliers = append(d.Suppliers, &dup)
			},
			"duplicate supplier",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := validDocument()
			tt.mutate(doc)
			err := doc.Validate()
			if err == nil {
				t.Fatalf("expected error containing %q", tt.errMsg)
			}
			if !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("error = %q, want it to contain %q", err.Error(), tt.errMsg)
			}
		})
	}
}

func TestValidateSubtitleRules(t *testing.T) {
	withSubtitles := func(sh *SubtitleHandling) *Document {
		doc := validDocument()
		doc.Suppliers[0].SubtitleHandling = sh
		return doc
	}

	ok := withSubtitles(&SubtitleHandling{
		Rules: []SubtitleRule{
			{Name: "BrandSubtitle", Key: "Brand", Method: "columnCount", ExpectedColumnCount: 1,
				ApplyToSubsequentRows: true,
				Assignments: []SubtitleAssignment{
					{SourceKey: "Brand", TargetProperty: "Product.Brand", Overwrite: true},
				}},
			{Name: "Category", Method: "pattern", ValidationPatterns: []string{`(?i)^category:`},
				Transforms: []SubtitleTransform{{Type: "removePrefix", Pattern: `(?i)^category:\s*`}}},
		},
		FallbackAction: "skip",
	})
	if err := ok.Validate(); err != nil {
		t.Fatalf("valid subtitle config rejected: %v", err)
	}

	tests := []struct {
		name   string
		sh     *SubtitleHandling
		errMsg string
	}{
		{
			"unknown method",
			&SubtitleHandling{Rules: []SubtitleRule{{Name: "X", Method: "regex"}}},
			"unknown method",
		},
		{
			"columnCount without count",
			&SubtitleHandling{Rules: []SubtitleRule{{Name: "X", Method: "columnCount"}}},
			"ExpectedColumnCount",
		},
		{
			"pattern without patterns",
			&SubtitleHandling{Rules: []SubtitleRule{{Name: "X", Method: "pattern"}}},
			"needs ValidationPatterns",
		},
		{
			"bad validation pattern",
			&SubtitleHandling{Rules: []SubtitleRule{{Name: "X", Method: "pattern", ValidationPatterns: []string{"("}}}},
			"pattern",
		},
		{
			"bad fallback",
			&SubtitleHandling{FallbackAction: "drop"},
			"FallbackAction",
		},
		{
			"assignment without target",
			&SubtitleHandling{Rules: []SubtitleRule{{Name: "X", Method: "columnCount", ExpectedColumnCount: 1,
				Assignments: []SubtitleAssignment{{SourceKey: "X"}}}}},
			"empty TargetProperty",
		},
		{
			"assignment with unknown lookup",
			&SubtitleHandling{Rules: []SubtitleRule{{Name: "X", Method: "columnCount", ExpectedColumnCount: 1,
				Assignments: []SubtitleAssignment{{SourceKey: "X", TargetProperty: "Product.Brand", Lookup: "Nope"}}}}},
			"unknown lookup table",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := withSubtitles(tt.sh).Validate()
			if err == nil {
				t.Fatalf("expected error containing %q", tt.errMsg)
			}
			if !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("error = %q, want it to contain %q", err.Error(), tt.errMsg)
			}
		})
	}
}

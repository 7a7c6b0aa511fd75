package grid

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/sacksapp/sacks/internal/types"
)

func writeWorkbook(t *testing.T, cells map[string]any) string {
	t.Helper()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	for ref, v := range cells {
		if err := f.SetCellValue("Sheet1", ref, v); err != nil {
			t.Fatalf("SetCellValue(%s): %v", ref, err)
		}
	}
	path := filepath.Join(t.TempDir(), "list.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}
	return path
}

func TestExcelReaderReadsRawValues(t *testing.T) {
	path := writeWorkbook(t, map[string]any{
		"A1": "EAN", "B1": "Name", "C1": "Price",
		"A2": "3012345678901", "B2": "Devotion Intense 100ml", "C2": 24.9,
	})

	data, err := ExcelReader{}.Read(context.Background(), path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if data.FilePath != path {
		t.Errorf("FilePath = %q", data.FilePath)
	}
	if len(data.Rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(data.Rows))
	}
	if got := data.Rows[1].CellValue(0); got != "3012345678901" {
		t.Errorf("EAN cell = %q", got)
	}
	// numeric cells arrive invariant, dot-separated
	if got := data.Rows[1].CellValue(2); got != "24.9" {
		t.Errorf("price cell = %q, want 24.9", got)
	}
}

func TestCSVReaderCommaAndSemicolon(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"comma", "EAN,Name,Price\n3012345678901,Scent,24.90\n"},
		{"semicolon", "EAN;Name;Price\n3012345678901;Scent;24.90\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "list.csv")
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}
			data, err := CSVReader{}.Read(context.Background(), path)
			if err != nil {
				t.Fatalf("Read: %v", err)
			}
			if len(data.Rows) != 2 {
				t.Fatalf("rows = %d, want 2", len(data.Rows))
			}
			if got := data.Rows[1].CellValue(1); got != "Scent" {
				t.Errorf("name cell = %q", got)
			}
		})
	}
}

func TestCSVReaderRaggedRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ragged.csv")
	content := "A,B,C\nonly,two\n1,2,3,4\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	data, err := CSVReader{}.Read(context.Background(), path)
	if err != nil {
		t.Fatalf("ragged rows rejected: %v", err)
	}
	if len(data.Rows[1].Cells) != 2 || len(data.Rows[2].Cells) != 4 {
		t.Errorf("cell counts = %d, %d", len(data.Rows[1].Cells), len(data.Rows[2].Cells))
	}
}

func TestForPathDispatch(t *testing.T) {
	if _, err := ForPath("/in/list.xlsx"); err != nil {
		t.Errorf("xlsx rejected: %v", err)
	}
	if _, err := ForPath("/in/list.XLSM"); err != nil {
		t.Errorf("uppercase xlsm rejected: %v", err)
	}
	if _, err := ForPath("/in/list.csv"); err != nil {
		t.Errorf("csv rejected: %v", err)
	}

	for _, p := range []string{"/in/list.xls", "/in/list.pdf", "/in/list"} {
		_, err := ForPath(p)
		if err == nil {
			t.Errorf("ForPath(%q) accepted", p)
			continue
		}
		var fe *types.FileError
		if !errors.As(err, &fe) {
			t.Errorf("ForPath(%q) error type = %T", p, err)
		}
	}
}

func TestRowHelpers(t *testing.T) {
	row := &Row{Index: 0, Cells: []Cell{
		{Index: 0, Value: "  "},
		{Index: 1, Value: "CHANEL"},
		{Index: 2, Value: ""},
		{Index: 3, Value: "No. 5"},
	}}

	if !row.HasData() {
		t.Error("HasData = false")
	}
	if got := row.NonBlankCount(); got != 2 {
		t.Errorf("NonBlankCount = %d, want 2", got)
	}
	if got := row.FirstNonBlank(); got != "CHANEL" {
		t.Errorf("FirstNonBlank = %q", got)
	}
	if got := row.JoinedText(); got != "CHANEL No. 5" {
		t.Errorf("JoinedText = %q", got)
	}
	if got := row.CellValue(9); got != "" {
		t.Errorf("CellValue(9) = %q, want empty", got)
	}

	empty := &Row{Index: 1, Cells: []Cell{{Index: 0, Value: " "}}}
	if empty.HasData() {
		t.Error("blank row reports data")
	}
}

func TestReadersHonorCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := (CSVReader{}).Read(ctx, "/nonexistent.csv"); !errors.Is(err, context.Canceled) {
		t.Errorf("csv err = %v, want context.Canceled", err)
	}
	if _, err := (ExcelReader{}).Read(ctx, "/nonexistent.xlsx"); !errors.Is(err, context.Canceled) {
		t.Errorf("excel err = %v, want context.Canceled", err)
	}
}

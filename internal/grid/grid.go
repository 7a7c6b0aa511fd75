// Package grid reads supplier spreadsheets into a uniform in-memory model.
// Cell values are raw strings: numbers keep their invariant form instead of
// the display formatting, so "24.9" never arrives as "24,90 €".
package grid

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sacksapp/sacks/internal/types"
)

// Cell is one spreadsheet cell.
type Cell struct {
	Index int
	Value string
}

// Row is one spreadsheet row plus the subtitle bookkeeping attached while
// the file flows through the pipeline.
type Row struct {
	Index int
	Cells []Cell

	IsSubtitleRow    bool
	SubtitleRuleName string
	// SubtitleData carries the captured or inherited subtitle values,
	// keyed by rule capture key. Shared between rows; never mutated after
	// the subtitle pass.
	SubtitleData map[string]string
}

// HasData reports whether any cell is non-blank.
func (r *Row) HasData() bool {
	for _, c := range r.Cells {
		if strings.TrimSpace(c.Value) != "" {
			return true
		}
	}
	return false
}

// NonBlankCount returns how many cells contain non-blank text.
func (r *Row) NonBlankCount() int {
	n := 0
	for _, c := range r.Cells {
		if strings.TrimSpace(c.Value) != "" {
			n++
		}
	}
	return n
}

// FirstNonBlank returns the first non-blank cell value, trimmed.
func (r *Row) FirstNonBlank() string {
	for _, c := range r.Cells {
		if v := strings.TrimSpace(c.Value); v != "" {
			return v
		}
	}
	return ""
}

// CellValue returns the value at column index i, or "" past the row's end.
func (r *Row) CellValue(i int) string {
	if i < 0 || i >= len(r.Cells) {
		return ""
	}
	return r.Cells[i].Value
}

// JoinedText concatenates the non-blank cells with single spaces, the form
// subtitle pattern rules match against.
func (r *Row) JoinedText() string {
	var parts []string
	for _, c := range r.Cells {
		if v := strings.TrimSpace(c.Value); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, " ")
}

// FileData is one file read into memory.
type FileData struct {
	FilePath string
	Rows     []*Row
}

// Reader turns a file on disk into FileData.
type Reader interface {
	Read(ctx context.Context, path string) (*FileData, error)
}

// allowedExtensions is the closed set of inputs we accept. Legacy .xls is
// deliberately absent: the BIFF format needs a converter pass first.
var allowedExtensions = map[string]bool{
	".xlsx": true,
	".xlsm": true,
	".csv":  true,
}

// SupportedExtension reports whether path's extension is in the allow-list.
func SupportedExtension(path string) bool {
	return allowedExtensions[strings.ToLower(filepath.Ext(path))]
}

// ForPath selects a reader by file extension.
func ForPath(path string) (Reader, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".xlsx", ".xlsm":
		return ExcelReader{}, nil
	case ".csv":
		return CSVReader{}, nil
	case ".xls":
		return nil, &types.FileError{Path: path,
			Err: fmt.Errorf("legacy .xls is not supported, convert the file to .xlsx")}
	default:
		return nil, &types.FileError{Path: path,
			Err: fmt.Errorf("unsupported extension %q", ext)}
	}
}

package grid

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/sacksapp/sacks/internal/types"
)

// ExcelReader reads .xlsx/.xlsm workbooks. Only the first sheet is read;
// suppliers that ship multi-sheet workbooks put the price list first.
type ExcelReader struct{}

// Read loads the first sheet of the workbook at path.
func (ExcelReader) Read(ctx context.Context, path string) (*FileData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, &types.FileError{Path: path, Err: err}
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &types.FileError{Path: path, Err: fmt.Errorf("workbook has no sheets")}
	}

	// RawCellValue keeps numbers in invariant form instead of the cell's
	// display format.
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, &types.FileError{Path: path, Err: fmt.Errorf("reading sheet %q: %w", sheets[0], err)}
	}

	data := &FileData{FilePath: path, Rows: make([]*Row, 0, len(rows))}
	for i, cells := range rows {
		row := &Row{Index: i, Cells: make([]Cell, len(cells))}
		for j, v := range cells {
			row.Cells[j] = Cell{Index: j, Value: v}
		}
		data.Rows = append(data.Rows, row)
	}
	return data, nil
}

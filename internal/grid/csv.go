package grid

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"os"

	"github.com/sacksapp/sacks/internal/types"
)

// CSVReader reads .csv exports. Suppliers ship both comma and semicolon
// flavors, so the delimiter is sniffed from the first line.
type CSVReader struct{}

// Read loads the CSV file at path.
func (CSVReader) Read(ctx context.Context, path string) (*FileData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &types.FileError{Path: path, Err: err}
	}

	r := csv.NewReader(bytes.NewReader(raw))
	r.Comma = sniffDelimiter(raw)
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	data := &FileData{FilePath: path}
	for i := 0; ; i++ {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &types.FileError{Path: path, Err: err}
		}
		row := &Row{Index: i, Cells: make([]Cell, len(record))}
		for j, v := range record {
			row.Cells[j] = Cell{Index: j, Value: v}
		}
		data.Rows = append(data.Rows, row)
	}
	return data, nil
}

// sniffDelimiter picks ';' over ',' when the first line contains more of
// them; European exports usually use semicolons.
func sniffDelimiter(raw []byte) rune {
	line := raw
	if i := bytes.IndexByte(raw, '\n'); i >= 0 {
		line = raw[:i]
	}
	if bytes.Count(line, []byte{';'}) > bytes.Count(line, []byte{','}) {
		return ';'
	}
	return ','
}

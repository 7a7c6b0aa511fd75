package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// defaultBatchSize caps both IN-clause parameter lists and multi-row insert
// chunks. MySQL tolerates far more placeholders, but very large statements
// cost memory on both ends for no throughput gain.
const defaultBatchSize = 500

// queryer is the subset of sql.DB / sql.Tx needed by read helpers.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// batchIN runs a parameterized IN query in chunks so a huge input file cannot
// produce an oversized statement. queryTemplate must contain exactly one %s,
// which receives the placeholder list. Results are keyed by scanRow's first
// return value; a later duplicate key overwrites an earlier one.
func batchIN[V any](
	ctx context.Context,
	q queryer,
	ids []string,
	batchSize int,
	queryTemplate string,
	scanRow func(rows *sql.Rows) (string, V, error),
) (map[string]V, error) {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	out := make(map[string]V, len(ids))
	for start := 0; start < len(ids); start += batchSize {
		chunk := ids[start:min(start+batchSize, len(ids))]

		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(chunk)), ",")
		//nolint:gosec // G201: only the placeholder list is interpolated
		query := fmt.Sprintf(queryTemplate, placeholders)

		args := make([]any, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}

		err := func() error {
			rows, err := q.QueryContext(ctx, query, args...)
			if err != nil {
				return err
			}
			defer rows.Close()

			for rows.Next() {
				key, val, err := scanRow(rows)
				if err != nil {
					return err
				}
				out[key] = val
			}
			return rows.Err()
		}()
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

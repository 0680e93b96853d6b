package engine

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kasuganosora/lakebase/pkg/catalog"
)

// Engine runs SQL over table snapshots. Implementations decide how a table
// becomes scannable: the duckdb engine scans the table's committed metadata
// in place, the sqlite engine materializes the rows first.
type Engine interface {
	// ScanSource prepares the table for scanning and returns the SQL
	// fragment that reads it, usable in a FROM clause.
	ScanSource(ctx context.Context, table catalog.Table) (string, error)

	// Query runs a statement with ? bind parameters and returns all rows.
	Query(ctx context.Context, sqlText string, args []interface{}) ([]map[string]interface{}, error)

	// Exec runs a statement that returns no rows.
	Exec(ctx context.Context, sqlText string, args []interface{}) error

	Close() error
}

// RowSource is implemented by tables that can hand their raw rows to an
// engine. Needed by engines that cannot scan the warehouse directly.
type RowSource interface {
	ReadRows(ctx context.Context) ([]catalog.Row, error)
}

// CollectRows drains a result set into generic maps.
func CollectRows(rows *sql.Rows) ([]map[string]interface{}, error) {
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("cannot read result columns: %w", err)
	}

	out := []map[string]interface{}{}
	for rows.Next() {
		values := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("cannot scan result row: %w", err)
		}
		row := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("result iteration failed: %w", err)
	}
	return out, nil
}

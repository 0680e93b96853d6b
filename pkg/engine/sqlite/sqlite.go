// Package sqlite is a query engine that materializes table snapshots into an
// in-memory SQLite database before scanning them. It backs local development
// and tests, where no warehouse is reachable.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kasuganosora/lakebase/pkg/catalog"
	"github.com/kasuganosora/lakebase/pkg/engine"
)

// Engine materializes snapshots into tables named after the metadata
// location, so a re-query of an unchanged snapshot reuses the loaded data.
type Engine struct {
	db *sql.DB

	mu     sync.Mutex
	loaded map[string]string // metadata location -> materialized table name
	seq    int
}

var _ engine.Engine = (*Engine)(nil)

var dbSeq int64

// New opens a shared in-memory SQLite database. Each engine gets its own
// database so independent instances never see each other's tables.
func New() (*Engine, error) {
	dsn := fmt.Sprintf("file:lakebase_%d?mode=memory&cache=shared", atomic.AddInt64(&dbSeq, 1))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("cannot open sqlite: %w", err)
	}
	// 共享内存库随最后一个连接关闭而消失，固定单连接保住数据
	db.SetMaxOpenConns(1)
	return &Engine{db: db, loaded: make(map[string]string)}, nil
}

// ScanSource loads the table's rows into a materialized table keyed by the
// current metadata location and returns its name. The table must expose its
// raw rows through engine.RowSource.
func (e *Engine) ScanSource(ctx context.Context, table catalog.Table) (string, error) {
	source, ok := table.(engine.RowSource)
	if !ok {
		return "", fmt.Errorf("table %s cannot be materialized: no row source", table.Identifier())
	}

	location := table.MetadataLocation()

	e.mu.Lock()
	if name, ok := e.loaded[location]; ok {
		e.mu.Unlock()
		return name, nil
	}
	e.seq++
	name := fmt.Sprintf("snap_%d", e.seq)
	e.mu.Unlock()

	rows, err := source.ReadRows(ctx)
	if err != nil {
		return "", fmt.Errorf("cannot read rows of %s: %w", table.Identifier(), err)
	}

	if err := e.materialize(ctx, name, table.Schema(), rows); err != nil {
		return "", err
	}

	e.mu.Lock()
	e.loaded[location] = name
	e.mu.Unlock()
	return name, nil
}

func (e *Engine) materialize(ctx context.Context, name string, schema *catalog.Schema, rows []catalog.Row) error {
	columns := schema.FieldNames()

	var ddl strings.Builder
	ddl.WriteString("CREATE TABLE ")
	ddl.WriteString(name)
	ddl.WriteString(" (")
	for i, col := range columns {
		if i > 0 {
			ddl.WriteString(", ")
		}
		ddl.WriteString(`"`)
		ddl.WriteString(col)
		ddl.WriteString(`" `)
		ddl.WriteString(sqliteType(schema.Fields[i].Type))
	}
	ddl.WriteString(")")
	if _, err := e.db.ExecContext(ctx, ddl.String()); err != nil {
		return fmt.Errorf("cannot create materialized table %s: %w", name, err)
	}

	if len(rows) == 0 {
		return nil
	}

	placeholders := "(" + strings.Repeat("?, ", len(columns)-1) + "?)"
	quoted := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = `"` + col + `"`
	}
	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", name, strings.Join(quoted, ", "), placeholders)

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("cannot begin load transaction: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("cannot prepare load statement: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		values := make([]interface{}, len(columns))
		for i, col := range columns {
			values[i] = sqliteValue(row[col])
		}
		if _, err := stmt.ExecContext(ctx, values...); err != nil {
			tx.Rollback()
			return fmt.Errorf("cannot load row into %s: %w", name, err)
		}
	}
	return tx.Commit()
}

// Query runs a statement and collects all rows.
func (e *Engine) Query(ctx context.Context, sqlText string, args []interface{}) ([]map[string]interface{}, error) {
	rows, err := e.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite query failed: %w", err)
	}
	return engine.CollectRows(rows)
}

// Exec runs a statement that returns no rows.
func (e *Engine) Exec(ctx context.Context, sqlText string, args []interface{}) error {
	if _, err := e.db.ExecContext(ctx, sqlText, args...); err != nil {
		return fmt.Errorf("sqlite exec failed: %w", err)
	}
	return nil
}

// Close shuts down the database.
func (e *Engine) Close() error {
	return e.db.Close()
}

func sqliteType(t string) string {
	switch t {
	case catalog.TypeInt32, catalog.TypeInt64, catalog.TypeBool:
		return "INTEGER"
	case catalog.TypeFloat32, catalog.TypeFloat64, catalog.TypeDecimal:
		return "REAL"
	case catalog.TypeBinary:
		return "BLOB"
	default:
		return "TEXT"
	}
}

func sqliteValue(v interface{}) interface{} {
	switch n := v.(type) {
	case bool:
		if n {
			return 1
		}
		return 0
	case int32:
		return int64(n)
	case float32:
		return float64(n)
	case time.Time:
		return n.UTC().Format(time.RFC3339Nano)
	default:
		return v
	}
}

// Package duckdb runs queries through an embedded DuckDB instance that scans
// table metadata in the warehouse directly.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/kasuganosora/lakebase/pkg/catalog"
	"github.com/kasuganosora/lakebase/pkg/config"
	"github.com/kasuganosora/lakebase/pkg/engine"
)

// Engine is the DuckDB-backed query engine. One in-memory database is shared
// by all requests; database/sql serializes access per connection.
type Engine struct {
	db  *sql.DB
	cfg *config.Config
}

var _ engine.Engine = (*Engine)(nil)

// New opens an in-memory DuckDB database, loads the iceberg and httpfs
// extensions and points the S3 settings at the configured warehouse bucket.
func New(cfg *config.Config) (*Engine, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("cannot open duckdb: %w", err)
	}

	e := &Engine{db: db, cfg: cfg}
	if err := e.bootstrap(); err != nil {
		db.Close()
		return nil, err
	}

	log.Printf("[DuckDB] engine ready, memory_limit=%s threads=%d", cfg.DuckDB.MemoryLimit, cfg.DuckDB.Threads)
	return e, nil
}

func (e *Engine) bootstrap() error {
	statements := []string{
		fmt.Sprintf("SET home_directory='%s'", e.cfg.DuckDB.HomeDir),
		fmt.Sprintf("SET memory_limit='%s'", e.cfg.DuckDB.MemoryLimit),
		fmt.Sprintf("SET threads=%d", e.cfg.DuckDB.Threads),
		"INSTALL iceberg",
		"LOAD iceberg",
		"INSTALL httpfs",
		"LOAD httpfs",
	}
	for _, stmt := range statements {
		if _, err := e.db.Exec(stmt); err != nil {
			return fmt.Errorf("duckdb bootstrap failed on %q: %w", stmt, err)
		}
	}

	if e.cfg.S3.Region != "" {
		if _, err := e.db.Exec(fmt.Sprintf("SET s3_region='%s'", e.cfg.S3.Region)); err != nil {
			return fmt.Errorf("cannot set s3 region: %w", err)
		}
	}
	if e.cfg.S3.AccessKeyID != "" {
		if _, err := e.db.Exec(fmt.Sprintf("SET s3_access_key_id='%s'", e.cfg.S3.AccessKeyID)); err != nil {
			return fmt.Errorf("cannot set s3 credentials: %w", err)
		}
		if _, err := e.db.Exec(fmt.Sprintf("SET s3_secret_access_key='%s'", e.cfg.S3.SecretAccessKey)); err != nil {
			return fmt.Errorf("cannot set s3 credentials: %w", err)
		}
	}
	if e.cfg.S3.Endpoint != "" {
		if _, err := e.db.Exec(fmt.Sprintf("SET s3_endpoint='%s'", e.cfg.S3.Endpoint)); err != nil {
			return fmt.Errorf("cannot set s3 endpoint: %w", err)
		}
	}
	return nil
}

// ScanSource returns the scan expression for the table's current metadata
// pointer. No state is registered in the engine, so concurrent queries on
// different snapshots cannot interfere.
func (e *Engine) ScanSource(ctx context.Context, table catalog.Table) (string, error) {
	location := table.MetadataLocation()
	if location == "" {
		return "", fmt.Errorf("table %s has no metadata location", table.Identifier())
	}
	return fmt.Sprintf("iceberg_scan('%s')", quoteLiteral(location)), nil
}

// quoteLiteral escapes a string for embedding in a single-quoted SQL literal.
func quoteLiteral(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// Query runs a statement and collects all rows.
func (e *Engine) Query(ctx context.Context, sqlText string, args []interface{}) ([]map[string]interface{}, error) {
	rows, err := e.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("duckdb query failed: %w", err)
	}
	return engine.CollectRows(rows)
}

// Exec runs a statement that returns no rows.
func (e *Engine) Exec(ctx context.Context, sqlText string, args []interface{}) error {
	if _, err := e.db.ExecContext(ctx, sqlText, args...); err != nil {
		return fmt.Errorf("duckdb exec failed: %w", err)
	}
	return nil
}

// Close shuts down the embedded database.
func (e *Engine) Close() error {
	return e.db.Close()
}

package operations

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/kasuganosora/lakebase/pkg/cache"
	"github.com/kasuganosora/lakebase/pkg/sqlbuilder"
	"github.com/kasuganosora/lakebase/pkg/types"
)

// Query runs the versioned read path: result cache first, then metadata
// cache, then one SQL statement over the current snapshot. A missing table
// is an empty result, not an error, so readers never race table creation.
func (s *Service) Query(ctx context.Context, req *types.QueryRequest) *types.Response {
	started := s.clock.Now()

	digest, err := cache.RequestDigest(req.TenantID, req.Namespace, req.Table, req)
	if err != nil {
		return failFromError(types.ErrCodeQuery, err)
	}

	if rows, ok := s.resultCache.Get(digest); ok {
		return types.OK(&types.QueryData{
			Records: rows,
			Query: &types.QueryMetadata{
				RowCount:        len(rows),
				ExecutionTimeMs: s.clock.Since(started).Seconds() * 1000,
				CacheHit:        true,
				QueryID:         uuid.NewString(),
			},
		})
	}

	meta, err := s.loadTableMeta(ctx, req.TenantID, req.Namespace, req.Table)
	if err != nil {
		if isTableNotFound(err) {
			return types.OK(&types.QueryData{
				Records: []map[string]interface{}{},
				Query: &types.QueryMetadata{
					ExecutionTimeMs: s.clock.Since(started).Seconds() * 1000,
					QueryID:         uuid.NewString(),
					TableMissing:    true,
				},
			})
		}
		return failFromError(types.ErrCodeQuery, err)
	}

	rows, err := s.runQuery(ctx, meta, req)
	if err != nil {
		return failFromError(types.ErrCodeQuery, err)
	}

	s.resultCache.Put(digest, rows)
	return types.OK(&types.QueryData{
		Records: rows,
		Query: &types.QueryMetadata{
			RowCount:        len(rows),
			ExecutionTimeMs: s.clock.Since(started).Seconds() * 1000,
			QueryID:         uuid.NewString(),
			ScannedSnapshot: meta.SnapshotID,
		},
	})
}

// runQuery compiles and executes one query request against the table's
// current snapshot.
func (s *Service) runQuery(ctx context.Context, meta *cache.TableMeta, req *types.QueryRequest) ([]map[string]interface{}, error) {
	source, err := s.engine.ScanSource(ctx, meta.Table)
	if err != nil {
		return nil, err
	}
	sqlText, args, err := sqlbuilder.BuildQuerySQL(source, meta.Schema.FieldNames(), req)
	if err != nil {
		return nil, err
	}
	return s.engine.Query(ctx, sqlText, args)
}

// ExportCsv runs a query and renders the rows as CSV text. Column order
// follows the projection when one is given, the table schema otherwise.
func (s *Service) ExportCsv(ctx context.Context, req *types.ExportCsvRequest) *types.Response {
	query := &types.QueryRequest{
		Projection:     req.Projection,
		Filters:        req.Filters,
		Sort:           req.Sort,
		Limit:          req.Limit,
		IncludeDeleted: req.IncludeDeleted,
	}
	query.TenantID = req.TenantID
	query.Namespace = req.Namespace
	query.Table = req.Table

	meta, err := s.loadTableMeta(ctx, req.TenantID, req.Namespace, req.Table)
	if err != nil {
		return failFromError(types.ErrCodeExport, err)
	}

	rows, err := s.runQuery(ctx, meta, query)
	if err != nil {
		return failFromError(types.ErrCodeExport, err)
	}

	columns := exportColumns(req, meta)
	csvText, err := renderCsv(columns, rows, req)
	if err != nil {
		return failFromError(types.ErrCodeExport, err)
	}

	log.Printf("[Operations] exported %d rows from %s/%s/%s", len(rows), req.TenantID, req.Namespace, req.Table)
	return types.OK(&types.ExportCsvData{Csv: csvText, RowCount: len(rows)})
}

func exportColumns(req *types.ExportCsvRequest, meta *cache.TableMeta) []string {
	if len(req.Projection) > 0 {
		columns := make([]string, len(req.Projection))
		for i, p := range req.Projection {
			switch {
			case p.Expr != nil && p.Expr.Alias != "":
				columns[i] = p.Expr.Alias
			case p.Expr != nil:
				columns[i] = p.Expr.Field
			default:
				columns[i] = p.Column
			}
		}
		return columns
	}
	return meta.Schema.FieldNames()
}

func renderCsv(columns []string, rows []map[string]interface{}, req *types.ExportCsvRequest) (string, error) {
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	if req.Delimiter != "" {
		writer.Comma = rune(req.Delimiter[0])
	}

	if req.IncludeHeader() {
		if err := writer.Write(columns); err != nil {
			return "", err
		}
	}

	record := make([]string, len(columns))
	for _, row := range rows {
		for i, col := range columns {
			value := row[col]
			if value == nil {
				record[i] = ""
			} else {
				record[i] = fmt.Sprintf("%v", value)
			}
		}
		if err := writer.Write(record); err != nil {
			return "", err
		}
	}
	writer.Flush()
	return buf.String(), writer.Error()
}

package operations

import (
	"context"
	"errors"
	"log"
	"sort"

	"github.com/kasuganosora/lakebase/pkg/cache"
	"github.com/kasuganosora/lakebase/pkg/catalog"
	"github.com/kasuganosora/lakebase/pkg/sqlbuilder"
	"github.com/kasuganosora/lakebase/pkg/types"
)

// CreateTable creates a table with the six system columns in front of the
// user fields. Idempotent by default: an existing table is a success unless
// the client opted out with if_not_exists=false.
func (s *Service) CreateTable(ctx context.Context, req *types.CreateTableRequest) *types.Response {
	schema, err := schemaFromDefinition(req.Schema)
	if err != nil {
		return failFromError(types.ErrCodeValidation, err)
	}

	ident := catalog.NewTableIdentifier(req.TenantID, req.Namespace, req.Table)
	if err := s.catalog.CreateNamespace(ctx, ident.Namespace); err != nil {
		return failFromError(types.ErrCodeCreate, err)
	}

	_, err = s.catalog.CreateTable(ctx, ident, schema)
	if err != nil {
		var exists *catalog.ErrTableExists
		if errors.As(err, &exists) {
			if req.TableIfNotExists() {
				return types.OK(&types.CreateTableData{
					TableCreated: false,
					TableExisted: true,
					Namespace:    req.Namespace,
					Table:        req.Table,
				})
			}
			return failFromError(types.ErrCodeCreate, err)
		}
		return failFromError(types.ErrCodeCreate, err)
	}

	log.Printf("[Operations] created table %s", ident)
	return types.OK(&types.CreateTableData{
		TableCreated: true,
		Namespace:    req.Namespace,
		Table:        req.Table,
	})
}

// ListTables lists the tables in the tenant's namespace.
func (s *Service) ListTables(ctx context.Context, req *types.ListTablesRequest) *types.Response {
	namespace := catalog.NamespaceFor(req.TenantID, req.Namespace)
	idents, err := s.catalog.ListTables(ctx, namespace)
	if err != nil {
		return failFromError(types.ErrCodeList, err)
	}

	tables := make([]types.TableInfo, len(idents))
	for i, ident := range idents {
		tables[i] = types.TableInfo{Namespace: req.Namespace, Table: ident.Name}
	}
	sort.Slice(tables, func(i, j int) bool { return tables[i].Table < tables[j].Table })

	return types.OK(&types.ListTablesData{Tables: tables, Count: len(tables)})
}

// DescribeTable returns the schema, live row count, file statistics and
// snapshot history of one table.
func (s *Service) DescribeTable(ctx context.Context, req *types.DescribeTableRequest) *types.Response {
	meta, err := s.loadTableMeta(ctx, req.TenantID, req.Namespace, req.Table)
	if err != nil {
		return failFromError(types.ErrCodeDescribe, err)
	}

	columns := make([]types.ColumnInfo, len(meta.Schema.Fields))
	for i, f := range meta.Schema.Fields {
		columns[i] = types.ColumnInfo{
			Name:     f.Name,
			Type:     f.Type,
			Required: f.Required,
			System:   catalog.IsSystemColumn(f.Name),
		}
	}

	data := &types.DescribeTableData{
		Namespace:        req.Namespace,
		Table:            req.Table,
		Columns:          columns,
		MetadataLocation: meta.MetadataLocation,
	}

	if files, err := meta.Table.PlanFiles(ctx); err == nil {
		data.FileCount = len(files)
		data.TotalSizeBytes = totalSize(files)
	}
	if history, err := meta.Table.History(ctx); err == nil {
		data.Snapshots = make([]types.SnapshotInfo, len(history))
		for i, snap := range history {
			data.Snapshots[i] = types.SnapshotInfo{
				SnapshotID:  snap.ID,
				TimestampMs: snap.TimestampMs,
				Operation:   snap.Operation,
			}
		}
	}

	if count, err := s.liveRowCount(ctx, meta, req.TenantID); err == nil {
		data.RowCount = int64(count)
	}
	return types.OK(data)
}

func (s *Service) liveRowCount(ctx context.Context, meta *cache.TableMeta, tenantID string) (int, error) {
	source, err := s.engine.ScanSource(ctx, meta.Table)
	if err != nil {
		return 0, err
	}
	sqlText, args, err := sqlbuilder.BuildCountSQL(source, tenantID, nil, false)
	if err != nil {
		return 0, err
	}
	rows, err := s.engine.Query(ctx, sqlText, args)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return intValue(rows[0]["cnt"]), nil
}

// DropTable drops one table, purging data files by default. Catalogs that
// cannot purge fall back to a metadata-only drop. A missing table is a
// success, not an error.
func (s *Service) DropTable(ctx context.Context, req *types.DropTableRequest) *types.Response {
	ident := catalog.NewTableIdentifier(req.TenantID, req.Namespace, req.Table)

	purge := req.ShouldPurge()
	err := s.catalog.DropTable(ctx, ident, purge)
	if err != nil {
		if isTableNotFound(err) {
			return types.OK(&types.DropTableData{TableDropped: false, TableExisted: false})
		}
		var unsupported *catalog.ErrPurgeUnsupported
		if purge && errors.As(err, &unsupported) {
			log.Printf("[Operations] catalog cannot purge, dropping %s without purge", ident)
			purge = false
			err = s.catalog.DropTable(ctx, ident, false)
		}
		if err != nil {
			return failFromError(types.ErrCodeDropTable, err)
		}
	}

	s.invalidateTable(req.TenantID, req.Namespace, req.Table)
	return types.OK(&types.DropTableData{TableDropped: true, TableExisted: true, Purged: purge})
}

// DropNamespace drops the tenant's namespace; it must be empty. A missing
// namespace is a success, not an error.
func (s *Service) DropNamespace(ctx context.Context, req *types.DropNamespaceRequest) *types.Response {
	namespace := catalog.NamespaceFor(req.TenantID, req.Namespace)
	if err := s.catalog.DropNamespace(ctx, namespace); err != nil {
		var notFound *catalog.ErrNamespaceNotFound
		if errors.As(err, &notFound) {
			return types.OK(&types.DropNamespaceData{
				NamespaceDropped: false,
				NamespaceExisted: false,
				Namespace:        req.Namespace,
			})
		}
		return failFromError(types.ErrCodeDropNamespace, err)
	}
	return types.OK(&types.DropNamespaceData{
		NamespaceDropped: true,
		NamespaceExisted: true,
		Namespace:        req.Namespace,
	})
}

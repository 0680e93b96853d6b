package operations

import (
	"context"
	"fmt"
	"log"

	"github.com/kasuganosora/lakebase/pkg/cache"
	"github.com/kasuganosora/lakebase/pkg/catalog"
	"github.com/kasuganosora/lakebase/pkg/types"
)

// Write lands a batch of records. Missing tables are created on the fly,
// from the request schema when present or inferred from the first record.
func (s *Service) Write(ctx context.Context, req *types.WriteRequest) *types.Response {
	if req.Mode == types.WriteModeUpsert {
		upsert := &types.UpsertRequest{Records: req.Records}
		upsert.TenantID = req.TenantID
		upsert.Namespace = req.Namespace
		upsert.Table = req.Table
		resp := s.Upsert(ctx, upsert)
		if resp.Error != nil {
			return resp
		}
		data := resp.Data.(*types.UpsertData)
		resp.Data = &types.WriteData{
			RecordsWritten: data.TotalAffected,
			Mode:           types.WriteModeUpsert,
		}
		return resp
	}

	meta, created, err := s.ensureTable(ctx, req)
	if err != nil {
		return failFromError(types.ErrCodeWrite, err)
	}

	now := s.clock.Now().UTC()
	enriched := make([]catalog.Row, len(req.Records))
	recordIDs := make([]string, len(req.Records))
	for i, record := range req.Records {
		row := enrichRecord(record, req.TenantID, now)
		enriched[i] = row
		recordIDs[i], _ = row[catalog.ColRecordID].(string)
	}

	batch, err := catalog.PrepareBatch(meta.Schema, enriched)
	if err != nil {
		return failFromError(types.ErrCodeValidation, err)
	}

	switch req.Mode {
	case types.WriteModeOverwrite:
		err = meta.Table.Overwrite(ctx, batch)
	default:
		err = meta.Table.Append(ctx, batch)
	}
	if err != nil {
		return failFromError(types.ErrCodeWrite, err)
	}

	s.invalidateTable(req.TenantID, req.Namespace, req.Table)
	recommended, smallFiles := s.checkCompaction(ctx, req.TenantID, req.Namespace, req.Table, meta.Table)

	data := &types.WriteData{
		RecordsWritten:        len(batch.Rows),
		Mode:                  req.Mode,
		TableCreated:          created,
		RecordIDs:             recordIDs,
		CompactionRecommended: recommended,
		SmallFilesCount:       smallFiles,
	}
	if history, err := meta.Table.History(ctx); err == nil && len(history) > 0 {
		data.SnapshotID = history[len(history)-1].ID
	}
	return types.OK(data)
}

// ensureTable loads the target table, creating it when absent.
func (s *Service) ensureTable(ctx context.Context, req *types.WriteRequest) (*cache.TableMeta, bool, error) {
	meta, err := s.loadTableMeta(ctx, req.TenantID, req.Namespace, req.Table)
	if err == nil {
		return meta, false, nil
	}
	if !isTableNotFound(err) {
		return nil, false, err
	}

	schema, err := s.schemaForWrite(req)
	if err != nil {
		return nil, false, err
	}

	ident := catalog.NewTableIdentifier(req.TenantID, req.Namespace, req.Table)
	if err := s.catalog.CreateNamespace(ctx, ident.Namespace); err != nil {
		return nil, false, err
	}
	tbl, err := s.catalog.CreateTable(ctx, ident, schema)
	if err != nil {
		// 并发写者先建了表，直接加载
		var exists *catalog.ErrTableExists
		if asErr(err, &exists) {
			meta, err := s.loadTableMeta(ctx, req.TenantID, req.Namespace, req.Table)
			return meta, false, err
		}
		return nil, false, err
	}

	log.Printf("[Operations] created table %s on write", ident)
	return &cache.TableMeta{
		Table:            tbl,
		MetadataLocation: tbl.MetadataLocation(),
		Schema:           tbl.Schema(),
	}, true, nil
}

func (s *Service) schemaForWrite(req *types.WriteRequest) (*catalog.Schema, error) {
	if req.Schema != nil {
		return schemaFromDefinition(req.Schema)
	}
	if len(req.Records) == 0 {
		return nil, fmt.Errorf("cannot infer schema from empty records")
	}
	return inferSchema(req.Records[0])
}

func schemaFromDefinition(def *types.SchemaDefinition) (*catalog.Schema, error) {
	fields := make(map[string]catalog.Field, len(def.Fields))
	for name, fd := range def.Fields {
		fields[name] = catalog.Field{Name: name, Type: fd.Type, Required: fd.Required}
	}
	return catalog.NewSchema(fields)
}

package operations

import (
	"context"
	"fmt"

	"github.com/kasuganosora/lakebase/pkg/cache"
	"github.com/kasuganosora/lakebase/pkg/catalog"
	"github.com/kasuganosora/lakebase/pkg/sqlbuilder"
	"github.com/kasuganosora/lakebase/pkg/types"
)

// Update writes a new version of every current row matching the filters,
// with the patch applied. Old versions stay in place; reads keep seeing
// only the highest version per record.
func (s *Service) Update(ctx context.Context, req *types.UpdateRequest) *types.Response {
	meta, err := s.loadTableMeta(ctx, req.TenantID, req.Namespace, req.Table)
	if err != nil {
		return failFromError(types.ErrCodeUpdate, err)
	}

	if err := s.validateUpdateColumns(meta, req.Updates); err != nil {
		return failFromError(types.ErrCodeValidation, err)
	}

	count, newVersion, err := s.writeNewVersions(ctx, meta, req.TenantID, req.Filters, req.Updates, false)
	if err != nil {
		return failFromError(types.ErrCodeUpdate, err)
	}

	if count > 0 {
		s.invalidateTable(req.TenantID, req.Namespace, req.Table)
	}
	return types.OK(&types.UpdateData{RecordsUpdated: count, NewVersion: newVersion})
}

// Delete soft-deletes matching rows: a new version is written with the
// deletion sentinels set, so the data remains recoverable until a hard
// delete or compaction of history.
func (s *Service) Delete(ctx context.Context, req *types.DeleteRequest) *types.Response {
	meta, err := s.loadTableMeta(ctx, req.TenantID, req.Namespace, req.Table)
	if err != nil {
		return failFromError(types.ErrCodeDelete, err)
	}

	updates := map[string]interface{}{
		catalog.ColDeleted:   true,
		catalog.ColDeletedAt: s.clock.Now().UTC(),
	}
	count, _, err := s.writeNewVersions(ctx, meta, req.TenantID, req.Filters, updates, false)
	if err != nil {
		return failFromError(types.ErrCodeDelete, err)
	}

	if count > 0 {
		s.invalidateTable(req.TenantID, req.Namespace, req.Table)
	}
	return types.OK(&types.DeleteData{RecordsDeleted: count})
}

// Upsert updates matching rows and inserts the rest. Two addressing modes:
// record payloads keyed by _record_id, or a filter set with one patch.
func (s *Service) Upsert(ctx context.Context, req *types.UpsertRequest) *types.Response {
	meta, err := s.loadTableMeta(ctx, req.TenantID, req.Namespace, req.Table)
	if err != nil {
		if isTableNotFound(err) && len(req.Records) > 0 {
			// 表不存在时整批退化为普通写入
			write := &types.WriteRequest{Records: req.Records}
			write.TenantID = req.TenantID
			write.Namespace = req.Namespace
			write.Table = req.Table
			resp := s.Write(ctx, write)
			if resp.Error != nil {
				return resp
			}
			data := resp.Data.(*types.WriteData)
			return types.OK(&types.UpsertData{
				RecordsInserted: data.RecordsWritten,
				TotalAffected:   data.RecordsWritten,
			})
		}
		return failFromError(types.ErrCodeUpdate, err)
	}

	if len(req.Records) > 0 {
		return s.upsertRecords(ctx, meta, req)
	}
	return s.upsertByFilter(ctx, meta, req)
}

func (s *Service) upsertRecords(ctx context.Context, meta *cache.TableMeta, req *types.UpsertRequest) *types.Response {
	now := s.clock.Now().UTC()

	ids := make([]interface{}, len(req.Records))
	for i, record := range req.Records {
		if given, ok := record[catalog.ColRecordID].(string); ok && given != "" {
			ids[i] = given
		} else {
			ids[i] = RecordID(record)
		}
	}

	existing, err := s.currentRowsByFilter(ctx, meta, req.TenantID,
		[]types.Filter{{Field: catalog.ColRecordID, Operator: "in", Value: ids}}, true)
	if err != nil {
		return failFromError(types.ErrCodeUpdate, err)
	}
	byID := make(map[string]map[string]interface{}, len(existing))
	for _, row := range existing {
		if id, ok := row[catalog.ColRecordID].(string); ok {
			byID[id] = row
		}
	}

	var rows []catalog.Row
	updated, inserted := 0, 0
	for i, record := range req.Records {
		id := ids[i].(string)
		if current, ok := byID[id]; ok {
			merged := make(catalog.Row, len(current)+len(record))
			for k, v := range current {
				merged[k] = v
			}
			for k, v := range record {
				merged[k] = v
			}
			merged[catalog.ColRecordID] = id
			merged[catalog.ColVersion] = rowVersion(current) + 1
			merged[catalog.ColTimestamp] = now
			// upsert 复活软删行
			merged[catalog.ColDeleted] = false
			merged[catalog.ColDeletedAt] = nil
			rows = append(rows, merged)
			updated++
		} else {
			row := enrichRecord(record, req.TenantID, now)
			row[catalog.ColRecordID] = id
			rows = append(rows, row)
			inserted++
		}
	}

	if err := s.appendRows(ctx, meta, rows); err != nil {
		return failFromError(types.ErrCodeUpdate, err)
	}
	s.invalidateTable(req.TenantID, req.Namespace, req.Table)
	return types.OK(&types.UpsertData{
		RecordsUpdated:  updated,
		RecordsInserted: inserted,
		TotalAffected:   updated + inserted,
	})
}

func (s *Service) upsertByFilter(ctx context.Context, meta *cache.TableMeta, req *types.UpsertRequest) *types.Response {
	count, _, err := s.writeNewVersions(ctx, meta, req.TenantID, req.Filters, req.Updates, false)
	if err != nil {
		return failFromError(types.ErrCodeUpdate, err)
	}
	if count > 0 {
		s.invalidateTable(req.TenantID, req.Namespace, req.Table)
		return types.OK(&types.UpsertData{RecordsUpdated: count, TotalAffected: count})
	}

	// 无匹配行：由等值过滤条件加补丁拼出一条新记录
	record := make(map[string]interface{}, len(req.Filters)+len(req.Updates))
	for _, f := range req.Filters {
		if f.Operator == "eq" {
			record[f.Field] = f.Value
		}
	}
	for k, v := range req.Updates {
		record[k] = v
	}

	row := enrichRecord(record, req.TenantID, s.clock.Now().UTC())
	if err := s.appendRows(ctx, meta, []catalog.Row{row}); err != nil {
		return failFromError(types.ErrCodeUpdate, err)
	}
	s.invalidateTable(req.TenantID, req.Namespace, req.Table)
	return types.OK(&types.UpsertData{RecordsInserted: 1, TotalAffected: 1})
}

// writeNewVersions reads the current rows matching the filters, applies the
// patch and appends the bumped versions. Returns the affected row count and
// the version the first affected row got.
func (s *Service) writeNewVersions(ctx context.Context, meta *cache.TableMeta, tenantID string, filters []types.Filter, updates map[string]interface{}, includeDeleted bool) (int, int32, error) {
	current, err := s.currentRowsByFilter(ctx, meta, tenantID, filters, includeDeleted)
	if err != nil {
		return 0, 0, err
	}
	if len(current) == 0 {
		return 0, 0, nil
	}

	now := s.clock.Now().UTC()
	rows := make([]catalog.Row, len(current))
	var firstVersion int32
	for i, row := range current {
		next := make(catalog.Row, len(row)+len(updates))
		for k, v := range row {
			next[k] = v
		}
		for k, v := range updates {
			next[k] = v
		}
		version := rowVersion(row) + 1
		next[catalog.ColVersion] = version
		next[catalog.ColTimestamp] = now
		if i == 0 {
			firstVersion = version
		}
		rows[i] = next
	}

	if err := s.appendRows(ctx, meta, rows); err != nil {
		return 0, 0, err
	}
	return len(rows), firstVersion, nil
}

// currentRowsByFilter reads the current version of every row matching the
// filters.
func (s *Service) currentRowsByFilter(ctx context.Context, meta *cache.TableMeta, tenantID string, filters []types.Filter, includeDeleted bool) ([]map[string]interface{}, error) {
	source, err := s.engine.ScanSource(ctx, meta.Table)
	if err != nil {
		return nil, err
	}
	sqlText, args, err := sqlbuilder.BuildSelectAllSQL(source, meta.Schema.FieldNames(), tenantID, filters, includeDeleted)
	if err != nil {
		return nil, err
	}
	return s.engine.Query(ctx, sqlText, args)
}

func (s *Service) appendRows(ctx context.Context, meta *cache.TableMeta, rows []catalog.Row) error {
	batch, err := catalog.PrepareBatch(meta.Schema, rows)
	if err != nil {
		return err
	}
	return meta.Table.Append(ctx, batch)
}

func (s *Service) validateUpdateColumns(meta *cache.TableMeta, updates map[string]interface{}) error {
	for name := range updates {
		if _, ok := meta.Schema.Field(name); !ok {
			return fmt.Errorf("unknown column in updates: %s", name)
		}
	}
	return nil
}

// rowVersion reads _version out of an engine row, whatever integer type the
// driver produced.
func rowVersion(row map[string]interface{}) int32 {
	switch v := row[catalog.ColVersion].(type) {
	case int32:
		return v
	case int64:
		return int32(v)
	case int:
		return int32(v)
	case float64:
		return int32(v)
	}
	return 1
}


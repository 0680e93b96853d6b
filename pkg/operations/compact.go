package operations

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/kasuganosora/lakebase/pkg/cache"
	"github.com/kasuganosora/lakebase/pkg/catalog"
	"github.com/kasuganosora/lakebase/pkg/types"
)

// Compact merges the table's data files into one and optionally expires old
// snapshots. Readers on the pre-compaction snapshot are unaffected until
// expiration removes their snapshot.
func (s *Service) Compact(ctx context.Context, req *types.CompactRequest) *types.Response {
	started := s.clock.Now()

	meta, err := s.loadTableMeta(ctx, req.TenantID, req.Namespace, req.Table)
	if err != nil {
		return failFromError(types.ErrCodeCompact, err)
	}

	before, err := meta.Table.PlanFiles(ctx)
	if err != nil {
		return failFromError(types.ErrCodeCompact, err)
	}

	thresholdMB := s.cfg.Iceberg.Compaction.ThresholdMB
	if req.TargetFileSizeMB > 0 {
		thresholdMB = req.TargetFileSizeMB
	}
	maxFiles := s.cfg.Iceberg.Compaction.MaxFiles
	if req.MaxFiles > 0 {
		maxFiles = req.MaxFiles
	}

	stats := &types.CompactionStats{
		FilesBefore: len(before),
		BytesBefore: totalSize(before),
	}

	if len(before) == 0 {
		stats.Reason = "No files to compact"
		return types.OK(stats)
	}
	if len(before) > maxFiles {
		stats.Reason = fmt.Sprintf("%d files exceed max_files %d for a single round", len(before), maxFiles)
		stats.FilesAfter = stats.FilesBefore
		stats.BytesAfter = stats.BytesBefore
		stats.SmallFilesRemaining = countSmall(before, thresholdMB)
		return types.OK(stats)
	}
	if !req.Force {
		if reason := s.skipReason(before, thresholdMB); reason != "" {
			stats.Reason = reason
			stats.FilesAfter = stats.FilesBefore
			stats.BytesAfter = stats.BytesBefore
			stats.SmallFilesRemaining = countSmall(before, thresholdMB)
			return types.OK(stats)
		}
	}

	// 读出全部存储行（所有版本、含软删行），压缩不改变数据语义
	rows, err := s.readAllRows(ctx, meta)
	if err != nil {
		return failFromError(types.ErrCodeCompact, err)
	}

	batch, err := catalog.PrepareBatch(meta.Schema, rows)
	if err != nil {
		return failFromError(types.ErrCodeCompact, err)
	}
	if err := meta.Table.Overwrite(ctx, batch); err != nil {
		return failFromError(types.ErrCodeCompact, err)
	}
	stats.Compacted = true
	stats.RecordsRewritten = len(rows)
	stats.FilesCompacted = len(before)
	stats.FilesRemoved = len(before)

	if req.ShouldExpireSnapshots() {
		olderThan := s.clock.Now()
		if hours := req.RetentionHours(); hours > 0 {
			olderThan = olderThan.Add(-time.Duration(hours) * time.Hour)
		}
		expired, err := meta.Table.ExpireSnapshots(ctx, olderThan)
		if err != nil {
			log.Printf("[Operations] snapshot expiration failed for %s/%s/%s: %v",
				req.TenantID, req.Namespace, req.Table, err)
		} else {
			stats.SnapshotsExpired = expired
		}
	}

	after, err := meta.Table.PlanFiles(ctx)
	if err == nil {
		stats.FilesAfter = len(after)
		stats.BytesAfter = totalSize(after)
		stats.SmallFilesRemaining = countSmall(after, thresholdMB)
	}
	stats.BytesSaved = stats.BytesBefore - stats.BytesAfter
	stats.CompactionTimeMs = s.clock.Since(started).Seconds() * 1000

	s.invalidateTable(req.TenantID, req.Namespace, req.Table)
	log.Printf("[Operations] compacted %s/%s/%s: %d files -> %d files, %d records",
		req.TenantID, req.Namespace, req.Table, stats.FilesBefore, stats.FilesAfter, stats.RecordsRewritten)
	return types.OK(stats)
}

// skipReason decides whether an unforced compaction is worthwhile.
func (s *Service) skipReason(files []catalog.ScanFile, thresholdMB int) string {
	minFiles := s.cfg.Iceberg.Compaction.MinFiles
	if len(files) < minFiles {
		return fmt.Sprintf("only %d files, need at least %d", len(files), minFiles)
	}
	small := countSmall(files, thresholdMB)
	if small < minFiles {
		return fmt.Sprintf("only %d small files, need at least %d", small, minFiles)
	}
	return ""
}

// countSmall counts files below the small-file threshold.
func countSmall(files []catalog.ScanFile, thresholdMB int) int {
	threshold := int64(thresholdMB) * 1024 * 1024
	small := 0
	for _, f := range files {
		if f.SizeBytes < threshold {
			small++
		}
	}
	return small
}

// readAllRows reads every stored row of the table, all versions included.
func (s *Service) readAllRows(ctx context.Context, meta *cache.TableMeta) ([]catalog.Row, error) {
	source, err := s.engine.ScanSource(ctx, meta.Table)
	if err != nil {
		return nil, err
	}

	columns := ""
	for i, name := range meta.Schema.FieldNames() {
		if i > 0 {
			columns += ", "
		}
		columns += `"` + name + `"`
	}
	raw, err := s.engine.Query(ctx, fmt.Sprintf("SELECT %s FROM %s", columns, source), nil)
	if err != nil {
		return nil, err
	}

	rows := make([]catalog.Row, len(raw))
	for i, r := range raw {
		rows[i] = catalog.Row(r)
	}
	return rows, nil
}

// checkCompaction is the opportunistic check on the write path: every Nth
// write per table, look at the file plan and hand the table to the
// compaction trigger when it has degraded. Returns the recommendation and
// the small-file count when the check ran. Check failures never fail the
// write that triggered them.
func (s *Service) checkCompaction(ctx context.Context, tenantID, namespace, table string, tbl catalog.Table) (bool, *int) {
	cc := s.cfg.Iceberg.Compaction
	if !cc.Enabled {
		return false, nil
	}
	key := cache.TableKey(tenantID, namespace, table)

	s.mu.Lock()
	s.writeCounts[key]++
	due := s.writeCounts[key]%cc.CheckInterval == 0
	s.mu.Unlock()
	if !due {
		return false, nil
	}

	files, err := tbl.PlanFiles(ctx)
	if err != nil {
		log.Printf("[Operations] compaction check failed for %s: %v", key, err)
		return false, nil
	}
	small := countSmall(files, cc.ThresholdMB)
	if small < cc.MinFiles {
		return false, &small
	}

	log.Printf("[Operations] table %s needs compaction (%d small files)", key, small)
	if s.OnCompactNeeded != nil && s.markCompactTriggered(key) {
		s.OnCompactNeeded(tenantID, namespace, table)
	}
	return true, &small
}

// markCompactTriggered limits the auto-compaction trigger to one firing per
// table per hour. The recommendation in the response is not limited.
func (s *Service) markCompactTriggered(key string) bool {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	if last, ok := s.lastCompactTrigger[key]; ok && now.Sub(last) < time.Hour {
		return false
	}
	s.lastCompactTrigger[key] = now
	return true
}

func totalSize(files []catalog.ScanFile) int64 {
	var total int64
	for _, f := range files {
		total += f.SizeBytes
	}
	return total
}

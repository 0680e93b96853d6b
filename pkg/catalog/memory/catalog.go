// Package memory 提供内存目录实现，用于本地开发与测试。
// 语义与仓库目录一致：每次提交生成新快照并前进元数据指针。
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kasuganosora/lakebase/pkg/catalog"
	"github.com/kasuganosora/lakebase/pkg/utils"
)

// Catalog 内存目录
type Catalog struct {
	mu         sync.RWMutex
	namespaces map[string]map[string]*Table
	clock      utils.TimeProvider
	snapshotID int64
}

var _ catalog.Catalog = (*Catalog)(nil)

// NewCatalog 创建内存目录
func NewCatalog() *Catalog {
	return NewCatalogWithClock(utils.NewSystemTimeProvider())
}

// NewCatalogWithClock 创建使用指定时钟的内存目录（测试用）
func NewCatalogWithClock(clock utils.TimeProvider) *Catalog {
	return &Catalog{
		namespaces: make(map[string]map[string]*Table),
		clock:      clock,
	}
}

// CreateNamespace 创建命名空间，已存在时为空操作
func (c *Catalog) CreateNamespace(ctx context.Context, namespace string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.namespaces[namespace]; !ok {
		c.namespaces[namespace] = make(map[string]*Table)
	}
	return nil
}

// CreateTable 创建表
func (c *Catalog) CreateTable(ctx context.Context, ident catalog.TableIdentifier, schema *catalog.Schema) (catalog.Table, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	tables, ok := c.namespaces[ident.Namespace]
	if !ok {
		tables = make(map[string]*Table)
		c.namespaces[ident.Namespace] = tables
	}
	if _, ok := tables[ident.Name]; ok {
		return nil, catalog.NewErrTableExists(ident.String())
	}

	table := &Table{
		catalog: c,
		ident:   ident,
		schema:  schema,
		version: 1,
	}
	table.commitLocked("append") // 初始空快照
	tables[ident.Name] = table
	return table, nil
}

// LoadTable 加载表句柄
func (c *Catalog) LoadTable(ctx context.Context, ident catalog.TableIdentifier) (catalog.Table, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	tables, ok := c.namespaces[ident.Namespace]
	if !ok {
		return nil, catalog.NewErrTableNotFound(ident.String())
	}
	table, ok := tables[ident.Name]
	if !ok {
		return nil, catalog.NewErrTableNotFound(ident.String())
	}
	return table, nil
}

// ListTables 列出命名空间下的所有表
func (c *Catalog) ListTables(ctx context.Context, namespace string) ([]catalog.TableIdentifier, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	tables, ok := c.namespaces[namespace]
	if !ok {
		return nil, nil
	}
	idents := make([]catalog.TableIdentifier, 0, len(tables))
	for name := range tables {
		idents = append(idents, catalog.TableIdentifier{Namespace: namespace, Name: name})
	}
	return idents, nil
}

// DropTable 删除表。内存目录数据随表结构一起释放，purge 恒可用。
func (c *Catalog) DropTable(ctx context.Context, ident catalog.TableIdentifier, purge bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	tables, ok := c.namespaces[ident.Namespace]
	if !ok {
		return catalog.NewErrTableNotFound(ident.String())
	}
	if _, ok := tables[ident.Name]; !ok {
		return catalog.NewErrTableNotFound(ident.String())
	}
	delete(tables, ident.Name)
	return nil
}

// DropNamespace 删除空命名空间
func (c *Catalog) DropNamespace(ctx context.Context, namespace string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	tables, ok := c.namespaces[namespace]
	if !ok {
		return catalog.NewErrNamespaceNotFound(namespace)
	}
	if len(tables) > 0 {
		return &catalog.ErrNamespaceNotEmpty{Namespace: namespace, Tables: len(tables)}
	}
	delete(c.namespaces, namespace)
	return nil
}

func (c *Catalog) nextSnapshotID() int64 {
	return atomic.AddInt64(&c.snapshotID, 1)
}

// dataFile 一个不可变数据文件
type dataFile struct {
	path      string
	rows      []catalog.Row
	sizeBytes int64
}

// Table 内存表。互斥锁串行化提交，模拟目录侧的乐观并发控制。
type Table struct {
	catalog *Catalog
	ident   catalog.TableIdentifier
	schema  *catalog.Schema

	mu        sync.RWMutex
	files     []*dataFile
	snapshots []catalog.Snapshot
	version   int
	fileSeq   int
}

var _ catalog.Table = (*Table)(nil)

// Identifier 返回表标识
func (t *Table) Identifier() catalog.TableIdentifier {
	return t.ident
}

// MetadataLocation 返回当前元数据指针
func (t *Table) MetadataLocation() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return fmt.Sprintf("memory://%s/metadata/v%d.json", t.ident.String(), t.version)
}

// Schema 返回表结构
func (t *Table) Schema() *catalog.Schema {
	return t.schema
}

// Append 追加一批记录，生成一个新数据文件和新快照
func (t *Table) Append(ctx context.Context, batch *catalog.Batch) error {
	rows := copyBatchRows(batch)

	t.mu.Lock()
	defer t.mu.Unlock()

	t.fileSeq++
	t.files = append(t.files, &dataFile{
		path:      fmt.Sprintf("memory://%s/data/%05d.parquet", t.ident.String(), t.fileSeq),
		rows:      rows,
		sizeBytes: estimateSize(rows),
	})
	t.version++
	t.commitLocked("append")
	return nil
}

// Overwrite 用一批记录替换全部数据，生成单个新文件
func (t *Table) Overwrite(ctx context.Context, batch *catalog.Batch) error {
	rows := copyBatchRows(batch)

	t.mu.Lock()
	defer t.mu.Unlock()

	t.fileSeq++
	t.files = []*dataFile{{
		path:      fmt.Sprintf("memory://%s/data/%05d.parquet", t.ident.String(), t.fileSeq),
		rows:      rows,
		sizeBytes: estimateSize(rows),
	}}
	t.version++
	t.commitLocked("overwrite")
	return nil
}

// Delete 按表达式行级删除，重写命中的文件。
// 没有任何行命中时不产生新快照。
func (t *Table) Delete(ctx context.Context, expr *catalog.Expression) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	changed := false
	rewritten := make([]*dataFile, 0, len(t.files))
	for _, file := range t.files {
		kept := make([]catalog.Row, 0, len(file.rows))
		for _, row := range file.rows {
			if !expr.Matches(row) {
				kept = append(kept, row)
			}
		}
		if len(kept) == len(file.rows) {
			rewritten = append(rewritten, file)
			continue
		}
		changed = true
		if len(kept) == 0 {
			continue
		}
		t.fileSeq++
		rewritten = append(rewritten, &dataFile{
			path:      fmt.Sprintf("memory://%s/data/%05d.parquet", t.ident.String(), t.fileSeq),
			rows:      kept,
			sizeBytes: estimateSize(kept),
		})
	}

	if !changed {
		return nil
	}
	t.files = rewritten
	t.version++
	t.commitLocked("delete")
	return nil
}

// PlanFiles 返回当前快照的文件清单
func (t *Table) PlanFiles(ctx context.Context) ([]catalog.ScanFile, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	plan := make([]catalog.ScanFile, len(t.files))
	for i, file := range t.files {
		plan[i] = catalog.ScanFile{
			Path:        file.path,
			SizeBytes:   file.sizeBytes,
			RecordCount: int64(len(file.rows)),
		}
	}
	return plan, nil
}

// History 按提交顺序返回快照历史
func (t *Table) History(ctx context.Context) ([]catalog.Snapshot, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	history := make([]catalog.Snapshot, len(t.snapshots))
	copy(history, t.snapshots)
	return history, nil
}

// ExpireSnapshots 过期早于 olderThan 的历史快照，至少保留最新快照
func (t *Table) ExpireSnapshots(ctx context.Context, olderThan time.Time) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.snapshots) <= 1 {
		return 0, nil
	}

	kept := make([]catalog.Snapshot, 0, len(t.snapshots))
	expired := 0
	for i, snap := range t.snapshots {
		// 最新快照永不过期
		if i == len(t.snapshots)-1 || !snap.Timestamp().Before(olderThan) {
			kept = append(kept, snap)
		} else {
			expired++
		}
	}
	t.snapshots = kept
	return expired, nil
}

// ReadRows 返回全部存储行的拷贝（所有版本、含软删行）
func (t *Table) ReadRows(ctx context.Context) ([]catalog.Row, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var rows []catalog.Row
	for _, file := range t.files {
		for _, row := range file.rows {
			rows = append(rows, row.Copy())
		}
	}
	return rows, nil
}

// commitLocked 记录一个新快照，调用方必须已持有写锁
func (t *Table) commitLocked(operation string) {
	t.snapshots = append(t.snapshots, catalog.Snapshot{
		ID:          t.catalog.nextSnapshotID(),
		TimestampMs: t.catalog.clock.Now().UnixMilli(),
		Operation:   operation,
	})
}

func copyBatchRows(batch *catalog.Batch) []catalog.Row {
	rows := make([]catalog.Row, len(batch.Rows))
	for i, row := range batch.Rows {
		rows[i] = row.Copy()
	}
	return rows
}

// estimateSize 以 JSON 编码长度近似文件大小，供压缩探测使用
func estimateSize(rows []catalog.Row) int64 {
	var total int64
	for _, row := range rows {
		if data, err := json.Marshal(row); err == nil {
			total += int64(len(data))
		}
	}
	return total
}

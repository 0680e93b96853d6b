package catalog

import (
	"context"
	"strings"
	"time"
)

// Catalog 表格式目录契约。
// 所有实现（REST 元数据服务、内存目录）都通过该接口接入操作引擎。
type Catalog interface {
	// CreateNamespace 创建命名空间（已存在时返回 nil）
	CreateNamespace(ctx context.Context, namespace string) error

	// CreateTable 创建表并返回表句柄
	CreateTable(ctx context.Context, ident TableIdentifier, schema *Schema) (Table, error)

	// LoadTable 加载表句柄；表不存在时返回 *ErrTableNotFound
	LoadTable(ctx context.Context, ident TableIdentifier) (Table, error)

	// ListTables 列出命名空间下的所有表
	ListTables(ctx context.Context, namespace string) ([]TableIdentifier, error)

	// DropTable 删除表；purge 为 true 时同时删除数据文件。
	// 目录不支持 purge 时返回 *ErrPurgeUnsupported，调用方可降级重试。
	DropTable(ctx context.Context, ident TableIdentifier, purge bool) error

	// DropNamespace 删除命名空间；非空时返回 *ErrNamespaceNotEmpty
	DropNamespace(ctx context.Context, namespace string) error
}

// Table 表句柄。每次成功的 Append/Overwrite/Delete 提交一个新快照，
// 当前元数据指针原子前进。
type Table interface {
	// Identifier 返回表标识
	Identifier() TableIdentifier

	// MetadataLocation 返回当前快照的元数据指针
	MetadataLocation() string

	// Schema 返回表结构
	Schema() *Schema

	// Append 追加一批记录，生成新快照
	Append(ctx context.Context, batch *Batch) error

	// Overwrite 用一批记录替换全部数据文件，生成新快照
	Overwrite(ctx context.Context, batch *Batch) error

	// Delete 按目录原生表达式做行级删除，重写受影响的文件
	Delete(ctx context.Context, expr *Expression) error

	// PlanFiles 返回当前快照需要扫描的文件清单
	PlanFiles(ctx context.Context) ([]ScanFile, error)

	// History 按时间顺序返回快照历史
	History(ctx context.Context) ([]Snapshot, error)

	// ExpireSnapshots 过期早于 olderThan 的快照并删除孤儿文件，
	// 返回过期的快照数
	ExpireSnapshots(ctx context.Context, olderThan time.Time) (int, error)
}

// TableIdentifier 表标识：{tenant}_{namespace}.{table}
type TableIdentifier struct {
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
}

// String 返回 "namespace.name" 形式的完整标识
func (id TableIdentifier) String() string {
	return id.Namespace + "." + id.Name
}

// NewTableIdentifier 由租户、命名空间、表名构造表标识。
// 租户 ID 中的连字符替换为下划线以保证标识符合法。
func NewTableIdentifier(tenantID, namespace, table string) TableIdentifier {
	return TableIdentifier{
		Namespace: NamespaceFor(tenantID, namespace),
		Name:      table,
	}
}

// NamespaceFor 由租户和逻辑命名空间构造目录命名空间
func NamespaceFor(tenantID, namespace string) string {
	return strings.ReplaceAll(tenantID+"_"+namespace, "-", "_")
}

// ScanFile 扫描计划中的一个数据文件
type ScanFile struct {
	Path        string `json:"path"`
	SizeBytes   int64  `json:"size_bytes"`
	RecordCount int64  `json:"record_count"`
}

// Snapshot 快照历史中的一项
type Snapshot struct {
	ID          int64  `json:"id"`
	TimestampMs int64  `json:"timestamp_ms"`
	Operation   string `json:"operation"` // append / overwrite / delete / expire
}

// Timestamp 返回快照提交时间
func (s Snapshot) Timestamp() time.Time {
	return time.UnixMilli(s.TimestampMs)
}

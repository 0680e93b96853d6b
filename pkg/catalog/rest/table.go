package rest

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kasuganosora/lakebase/pkg/catalog"
)

// Table REST 目录的表句柄。写路径分两步：先把 parquet 数据文件上传到
// 仓库，再向目录提交文件清单；目录侧以乐观并发控制仲裁提交冲突。
type Table struct {
	catalog *Catalog
	ident   catalog.TableIdentifier
	schema  *catalog.Schema

	mu               sync.RWMutex
	metadataLocation string
	snapshots        []catalog.Snapshot
	files            []catalog.ScanFile
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
	return t.metadataLocation
}

// Schema 返回表结构
func (t *Table) Schema() *catalog.Schema {
	return t.schema
}

// commitRequest 向目录提交一次快照变更
type commitRequest struct {
	Operation  string              `json:"operation"`
	Files      []catalog.ScanFile  `json:"files,omitempty"`
	Expression *catalog.Expression `json:"expression,omitempty"`
}

type commitResponse struct {
	MetadataLocation string             `json:"metadata_location"`
	Snapshots        []catalog.Snapshot `json:"snapshots"`
	Files            []catalog.ScanFile `json:"files"`
}

// Append 上传一个数据文件并提交 append 快照
func (t *Table) Append(ctx context.Context, batch *catalog.Batch) error {
	file, err := t.uploadDataFile(ctx, batch)
	if err != nil {
		return err
	}
	return t.commit(ctx, &commitRequest{Operation: "append", Files: []catalog.ScanFile{file}})
}

// Overwrite 上传一个数据文件并提交 overwrite 快照，替换全部旧文件
func (t *Table) Overwrite(ctx context.Context, batch *catalog.Batch) error {
	file, err := t.uploadDataFile(ctx, batch)
	if err != nil {
		return err
	}
	return t.commit(ctx, &commitRequest{Operation: "overwrite", Files: []catalog.ScanFile{file}})
}

// Delete 提交目录原生表达式删除，由目录侧重写受影响文件
func (t *Table) Delete(ctx context.Context, expr *catalog.Expression) error {
	return t.commit(ctx, &commitRequest{Operation: "delete", Expression: expr})
}

// PlanFiles 返回当前快照的文件清单
func (t *Table) PlanFiles(ctx context.Context) ([]catalog.ScanFile, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	plan := make([]catalog.ScanFile, len(t.files))
	copy(plan, t.files)
	return plan, nil
}

// History 返回快照历史
func (t *Table) History(ctx context.Context) ([]catalog.Snapshot, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	history := make([]catalog.Snapshot, len(t.snapshots))
	copy(history, t.snapshots)
	return history, nil
}

// ExpireSnapshots 请求目录过期旧快照并清理孤儿文件
func (t *Table) ExpireSnapshots(ctx context.Context, olderThan time.Time) (int, error) {
	var resp struct {
		Expired   int                `json:"expired"`
		Snapshots []catalog.Snapshot `json:"snapshots"`
	}
	err := t.catalog.client.doJSON(ctx, http.MethodPost,
		t.path()+"/snapshots/expire",
		map[string]interface{}{"older_than_ms": olderThan.UnixMilli()}, &resp)
	if err != nil {
		return 0, fmt.Errorf("cannot expire snapshots of %s: %w", t.ident, err)
	}

	t.mu.Lock()
	t.snapshots = resp.Snapshots
	t.mu.Unlock()
	return resp.Expired, nil
}

// uploadDataFile 把一批记录编码为 parquet 并上传到仓库
func (t *Table) uploadDataFile(ctx context.Context, batch *catalog.Batch) (catalog.ScanFile, error) {
	data, err := encodeParquet(t.schema, batch.Rows)
	if err != nil {
		return catalog.ScanFile{}, fmt.Errorf("cannot encode data file for %s: %w", t.ident, err)
	}

	key := fmt.Sprintf("%s/%s/%s/data/%s.parquet",
		t.catalog.warehouse, t.ident.Namespace, t.ident.Name, uuid.NewString())
	if err := t.catalog.store.Upload(ctx, key, data); err != nil {
		return catalog.ScanFile{}, err
	}

	return catalog.ScanFile{
		Path:        key,
		SizeBytes:   int64(len(data)),
		RecordCount: int64(len(batch.Rows)),
	}, nil
}

func (t *Table) commit(ctx context.Context, req *commitRequest) error {
	var resp commitResponse
	err := t.catalog.client.doJSON(ctx, http.MethodPost, t.path()+"/commits", req, &resp)
	if err != nil {
		var apiErr *apiError
		if isStatus(err, http.StatusConflict, &apiErr) {
			return catalog.NewErrCommitConflict(t.ident.String(), apiErr.Message)
		}
		return fmt.Errorf("cannot commit %s on %s: %w", req.Operation, t.ident, err)
	}

	t.mu.Lock()
	t.metadataLocation = resp.MetadataLocation
	t.snapshots = resp.Snapshots
	t.files = resp.Files
	t.mu.Unlock()
	return nil
}

func (t *Table) path() string {
	return "/v1/namespaces/" + escapePath(t.ident.Namespace) + "/tables/" + escapePath(t.ident.Name)
}

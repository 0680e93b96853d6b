// Package operations implements the database operations on top of the
// catalog and the query engine: the write path, the versioned read path,
// mutations, hard deletes, compaction and the DDL surface.
package operations

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kasuganosora/lakebase/pkg/cache"
	"github.com/kasuganosora/lakebase/pkg/catalog"
	"github.com/kasuganosora/lakebase/pkg/config"
	"github.com/kasuganosora/lakebase/pkg/engine"
	"github.com/kasuganosora/lakebase/pkg/storage"
	"github.com/kasuganosora/lakebase/pkg/types"
	"github.com/kasuganosora/lakebase/pkg/utils"
)

// Presigner is the slice of the object store the URL operations need.
type Presigner interface {
	PresignUpload(ctx context.Context, tenantID, key, contentType string, expiry time.Duration) (string, string, error)
	PresignDownload(ctx context.Context, tenantID, key string, expiry time.Duration) (string, string, error)
}

// Service executes database operations. One instance serves all tenants;
// isolation happens through per-tenant namespaces and the mandatory
// _tenant_id predicate on every scan.
type Service struct {
	catalog catalog.Catalog
	engine  engine.Engine
	store   Presigner
	cfg     *config.Config
	clock   utils.TimeProvider

	metaCache   *cache.MetadataCache
	resultCache *cache.ResultCache

	// OnCompactNeeded, when set, is called instead of compacting inline
	// whenever the opportunistic check finds a table worth compacting.
	OnCompactNeeded func(tenantID, namespace, table string)

	mu          sync.Mutex
	writeCounts map[string]int
	// 每张表最近一次自动压缩触发时间，限频一小时一次
	lastCompactTrigger map[string]time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock injects a time source, used by tests.
func WithClock(clock utils.TimeProvider) Option {
	return func(s *Service) { s.clock = clock }
}

// WithPresigner wires the object store used by the URL operations.
func WithPresigner(store Presigner) Option {
	return func(s *Service) { s.store = store }
}

// NewService builds the operation service.
func NewService(cat catalog.Catalog, eng engine.Engine, cfg *config.Config, opts ...Option) *Service {
	s := &Service{
		catalog:            cat,
		engine:             eng,
		cfg:                cfg,
		clock:              utils.NewSystemTimeProvider(),
		writeCounts:        make(map[string]int),
		lastCompactTrigger: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.metaCache = cache.NewMetadataCache(cfg.Cache.MetadataTTL(), s.clock)
	s.resultCache = cache.NewResultCache(cfg.Cache.ResultTTL(), cfg.Cache.ResultMaxSize, s.clock)
	return s
}

// Execute runs one operation and wraps the outcome in the response
// envelope. Every call gets a request id and a deadline derived from the
// configured query timeout; callers with a tighter budget pass it via ctx.
func (s *Service) Execute(ctx context.Context, req types.Request) *types.Response {
	requestID := uuid.NewString()
	started := time.Now()

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Performance.QueryTimeout())
		defer cancel()
	}

	resp := s.dispatch(ctx, req)

	if resp.Error != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		resp.Error = &types.ErrorDetail{
			Code:    types.ErrCodeTimeout,
			Message: fmt.Sprintf("operation %s timed out", req.Operation()),
		}
	}

	resp.Metadata = &types.ResponseMetadata{
		RequestID:       requestID,
		ExecutionTimeMs: time.Since(started).Milliseconds(),
	}
	if resp.Error != nil {
		log.Printf("[Operations] %s failed request_id=%s code=%s: %s",
			req.Operation(), requestID, resp.Error.Code, resp.Error.Message)
	}
	return resp
}

func (s *Service) dispatch(ctx context.Context, req types.Request) *types.Response {
	switch r := req.(type) {
	case *types.QueryRequest:
		return s.Query(ctx, r)
	case *types.WriteRequest:
		return s.Write(ctx, r)
	case *types.UpdateRequest:
		return s.Update(ctx, r)
	case *types.DeleteRequest:
		return s.Delete(ctx, r)
	case *types.HardDeleteRequest:
		return s.HardDelete(ctx, r)
	case *types.UpsertRequest:
		return s.Upsert(ctx, r)
	case *types.CompactRequest:
		return s.Compact(ctx, r)
	case *types.CreateTableRequest:
		return s.CreateTable(ctx, r)
	case *types.ListTablesRequest:
		return s.ListTables(ctx, r)
	case *types.DescribeTableRequest:
		return s.DescribeTable(ctx, r)
	case *types.DropTableRequest:
		return s.DropTable(ctx, r)
	case *types.DropNamespaceRequest:
		return s.DropNamespace(ctx, r)
	case *types.ExportCsvRequest:
		return s.ExportCsv(ctx, r)
	case *types.GetUploadURLRequest:
		return s.GetUploadURL(ctx, r)
	case *types.GetDownloadURLRequest:
		return s.GetDownloadURL(ctx, r)
	}
	return types.Fail(types.ErrCodeValidation, fmt.Sprintf("unknown operation: %s", req.Operation()))
}

// loadTableMeta resolves a table through the metadata cache.
func (s *Service) loadTableMeta(ctx context.Context, tenantID, namespace, table string) (*cache.TableMeta, error) {
	key := cache.TableKey(tenantID, namespace, table)
	if meta := s.metaCache.Get(key); meta != nil {
		return meta, nil
	}

	ident := catalog.NewTableIdentifier(tenantID, namespace, table)
	tbl, err := s.catalog.LoadTable(ctx, ident)
	if err != nil {
		return nil, err
	}

	meta := &cache.TableMeta{
		Table:            tbl,
		MetadataLocation: tbl.MetadataLocation(),
		Schema:           tbl.Schema(),
	}
	if history, err := tbl.History(ctx); err == nil && len(history) > 0 {
		meta.SnapshotID = history[len(history)-1].ID
	}
	s.metaCache.Put(key, meta)
	return meta, nil
}

// invalidateTable drops both caches for a table after any mutation.
func (s *Service) invalidateTable(tenantID, namespace, table string) {
	key := cache.TableKey(tenantID, namespace, table)
	s.metaCache.Invalidate(key)
	s.resultCache.InvalidateTable(key)
}

func isTableNotFound(err error) bool {
	var notFound *catalog.ErrTableNotFound
	return errors.As(err, &notFound)
}

var _ Presigner = (*storage.Store)(nil)

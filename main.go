package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kasuganosora/lakebase/pkg/catalog"
	"github.com/kasuganosora/lakebase/pkg/catalog/memory"
	"github.com/kasuganosora/lakebase/pkg/catalog/rest"
	"github.com/kasuganosora/lakebase/pkg/config"
	"github.com/kasuganosora/lakebase/pkg/engine"
	"github.com/kasuganosora/lakebase/pkg/engine/duckdb"
	"github.com/kasuganosora/lakebase/pkg/engine/sqlite"
	"github.com/kasuganosora/lakebase/pkg/operations"
	"github.com/kasuganosora/lakebase/pkg/storage"
	"github.com/kasuganosora/lakebase/pkg/types"
	"github.com/kasuganosora/lakebase/server/httpapi"
)

func main() {
	// 加载配置
	cfg := config.LoadConfigOrDefault()
	log.Printf("[Main] environment=%s catalog=%s listen=%s", cfg.Environment, cfg.Catalog.Type, cfg.GetListenAddress())

	ctx := context.Background()

	var (
		cat   catalog.Catalog
		eng   engine.Engine
		store *storage.Store
		err   error
	)

	switch cfg.Catalog.Type {
	case "rest":
		store, err = storage.New(ctx, cfg)
		if err != nil {
			log.Fatalf("[Main] 对象存储初始化失败: %v", err)
		}
		cat = rest.NewCatalog(cfg, store)
		eng, err = duckdb.New(cfg)
		if err != nil {
			log.Fatalf("[Main] 查询引擎初始化失败: %v", err)
		}
	default:
		// 本地开发：内存目录 + sqlite 引擎，无需外部依赖
		cat = memory.NewCatalog()
		eng, err = sqlite.New()
		if err != nil {
			log.Fatalf("[Main] 查询引擎初始化失败: %v", err)
		}
	}
	defer eng.Close()

	opts := []operations.Option{}
	if store != nil {
		opts = append(opts, operations.WithPresigner(store))
	}
	ops := operations.NewService(cat, eng, cfg, opts...)

	// 本地部署直接在后台压缩
	ops.OnCompactNeeded = func(tenantID, namespace, table string) {
		go func() {
			req := &types.CompactRequest{}
			req.TenantID = tenantID
			req.Namespace = namespace
			req.Table = table
			resp := ops.Compact(context.Background(), req)
			if resp.Error != nil {
				log.Printf("[Main] 后台压缩失败 %s/%s/%s: %s", tenantID, namespace, table, resp.Error.Message)
			}
		}()
	}

	srv := httpapi.NewServer(ops, cfg)

	stopCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("[Main] 服务器退出: %v", err)
			os.Exit(1)
		}
	case <-stopCtx.Done():
		log.Printf("[Main] 收到退出信号，开始优雅关闭")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("[Main] 优雅关闭失败: %v", err)
		}
	}
}

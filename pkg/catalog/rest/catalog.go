package rest

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/kasuganosora/lakebase/pkg/catalog"
	"github.com/kasuganosora/lakebase/pkg/config"
	"github.com/kasuganosora/lakebase/pkg/storage"
)

// Catalog REST 目录实现
type Catalog struct {
	client    *client
	store     *storage.Store
	warehouse string
}

var _ catalog.Catalog = (*Catalog)(nil)

// NewCatalog 创建 REST 目录
func NewCatalog(cfg *config.Config, store *storage.Store) *Catalog {
	return &Catalog{
		client:    newClient(cfg.Catalog.URI, cfg.Catalog.Token, cfg.Performance.MaxRetries),
		store:     store,
		warehouse: cfg.Catalog.Warehouse,
	}
}

// 线上目录返回的表元数据
type tableResponse struct {
	MetadataLocation string             `json:"metadata_location"`
	Schema           *catalog.Schema    `json:"schema"`
	Snapshots        []catalog.Snapshot `json:"snapshots"`
	Files            []catalog.ScanFile `json:"files"`
}

// CreateNamespace 创建命名空间，已存在视为成功
func (c *Catalog) CreateNamespace(ctx context.Context, namespace string) error {
	err := c.client.doJSON(ctx, http.MethodPost, "/v1/namespaces",
		map[string]interface{}{"namespace": namespace}, nil)
	var apiErr *apiError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict {
		return nil
	}
	return err
}

// CreateTable 创建表
func (c *Catalog) CreateTable(ctx context.Context, ident catalog.TableIdentifier, schema *catalog.Schema) (catalog.Table, error) {
	var resp tableResponse
	err := c.client.doJSON(ctx, http.MethodPost,
		"/v1/namespaces/"+escapePath(ident.Namespace)+"/tables",
		map[string]interface{}{"name": ident.Name, "schema": schema}, &resp)
	var apiErr *apiError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict {
		return nil, catalog.NewErrTableExists(ident.String())
	}
	if err != nil {
		return nil, fmt.Errorf("cannot create table %s: %w", ident, err)
	}
	return c.newTable(ident, &resp), nil
}

// LoadTable 加载表句柄
func (c *Catalog) LoadTable(ctx context.Context, ident catalog.TableIdentifier) (catalog.Table, error) {
	var resp tableResponse
	err := c.client.doJSON(ctx, http.MethodGet,
		"/v1/namespaces/"+escapePath(ident.Namespace)+"/tables/"+escapePath(ident.Name), nil, &resp)
	var apiErr *apiError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return nil, catalog.NewErrTableNotFound(ident.String())
	}
	if err != nil {
		return nil, fmt.Errorf("cannot load table %s: %w", ident, err)
	}
	return c.newTable(ident, &resp), nil
}

// ListTables 列出命名空间下的所有表
func (c *Catalog) ListTables(ctx context.Context, namespace string) ([]catalog.TableIdentifier, error) {
	var resp struct {
		Tables []string `json:"tables"`
	}
	err := c.client.doJSON(ctx, http.MethodGet,
		"/v1/namespaces/"+escapePath(namespace)+"/tables", nil, &resp)
	var apiErr *apiError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot list tables in %s: %w", namespace, err)
	}

	idents := make([]catalog.TableIdentifier, len(resp.Tables))
	for i, name := range resp.Tables {
		idents[i] = catalog.TableIdentifier{Namespace: namespace, Name: name}
	}
	return idents, nil
}

// DropTable 删除表
func (c *Catalog) DropTable(ctx context.Context, ident catalog.TableIdentifier, purge bool) error {
	path := "/v1/namespaces/" + escapePath(ident.Namespace) + "/tables/" + escapePath(ident.Name)
	if purge {
		path += "?purgeRequested=true"
	}
	err := c.client.doJSON(ctx, http.MethodDelete, path, nil, nil)
	var apiErr *apiError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusNotFound:
			return catalog.NewErrTableNotFound(ident.String())
		case http.StatusNotImplemented:
			return &catalog.ErrPurgeUnsupported{CatalogType: "rest"}
		}
	}
	return err
}

// DropNamespace 删除空命名空间
func (c *Catalog) DropNamespace(ctx context.Context, namespace string) error {
	err := c.client.doJSON(ctx, http.MethodDelete, "/v1/namespaces/"+escapePath(namespace), nil, nil)
	var apiErr *apiError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusNotFound:
			return catalog.NewErrNamespaceNotFound(namespace)
		case http.StatusConflict:
			return &catalog.ErrNamespaceNotEmpty{Namespace: namespace}
		}
	}
	return err
}

func (c *Catalog) newTable(ident catalog.TableIdentifier, resp *tableResponse) *Table {
	return &Table{
		catalog:          c,
		ident:            ident,
		schema:           resp.Schema,
		metadataLocation: resp.MetadataLocation,
		snapshots:        resp.Snapshots,
		files:            resp.Files,
	}
}

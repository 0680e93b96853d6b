package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kasuganosora/lakebase/pkg/catalog"
	"github.com/kasuganosora/lakebase/pkg/config"
)

func newTestCatalog(t *testing.T, handler http.Handler) *Catalog {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := config.DefaultConfig()
	cfg.Catalog.Type = "rest"
	cfg.Catalog.URI = server.URL
	cfg.Catalog.Token = "test-token"
	return NewCatalog(cfg, nil)
}

func TestLoadTable(t *testing.T) {
	var gotAuth string
	cat := newTestCatalog(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.Equal(t, "/v1/namespaces/t1_default/tables/users", r.URL.Path)
		json.NewEncoder(w).Encode(tableResponse{
			MetadataLocation: "s3://wh/t1_default/users/metadata/v3.json",
			Schema:           &catalog.Schema{Fields: catalog.SystemFields()},
			Snapshots:        []catalog.Snapshot{{ID: 3, Operation: "append"}},
		})
	}))

	tbl, err := cat.LoadTable(context.Background(), catalog.NewTableIdentifier("t1", "default", "users"))
	require.NoError(t, err)
	assert.Equal(t, "Bearer test-token", gotAuth)
	assert.Equal(t, "s3://wh/t1_default/users/metadata/v3.json", tbl.MetadataLocation())

	history, err := tbl.History(context.Background())
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, int64(3), history[0].ID)
}

func TestLoadTableNotFound(t *testing.T) {
	cat := newTestCatalog(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such table", http.StatusNotFound)
	}))

	_, err := cat.LoadTable(context.Background(), catalog.NewTableIdentifier("t1", "default", "ghost"))
	var notFound *catalog.ErrTableNotFound
	assert.ErrorAs(t, err, &notFound)
}

func TestCreateTableConflict(t *testing.T) {
	cat := newTestCatalog(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "table exists", http.StatusConflict)
	}))

	schema, err := catalog.NewSchema(map[string]catalog.Field{"name": {Name: "name", Type: "string"}})
	require.NoError(t, err)

	_, err = cat.CreateTable(context.Background(), catalog.NewTableIdentifier("t1", "default", "users"), schema)
	var exists *catalog.ErrTableExists
	assert.ErrorAs(t, err, &exists)
}

func TestCreateNamespaceConflictIsSuccess(t *testing.T) {
	cat := newTestCatalog(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "namespace exists", http.StatusConflict)
	}))

	assert.NoError(t, cat.CreateNamespace(context.Background(), "t1_default"))
}

func TestRetryOnServerError(t *testing.T) {
	var calls int32
	cat := newTestCatalog(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			http.Error(w, "temporarily down", http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"tables": []string{"users"}})
	}))

	idents, err := cat.ListTables(context.Background(), "t1_default")
	require.NoError(t, err)
	require.Len(t, idents, 1)
	assert.Equal(t, "users", idents[0].Name)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestNoRetryOnClientError(t *testing.T) {
	var calls int32
	cat := newTestCatalog(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "bad request", http.StatusBadRequest)
	}))

	_, err := cat.CreateTable(context.Background(),
		catalog.NewTableIdentifier("t1", "default", "users"),
		&catalog.Schema{Fields: catalog.SystemFields()})
	require.Error(t, err)
	// 4xx 是确定性失败，不重试
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestDropTablePurgeUnsupported(t *testing.T) {
	cat := newTestCatalog(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "true", r.URL.Query().Get("purgeRequested"))
		http.Error(w, "purge not supported", http.StatusNotImplemented)
	}))

	err := cat.DropTable(context.Background(), catalog.NewTableIdentifier("t1", "default", "users"), true)
	var unsupported *catalog.ErrPurgeUnsupported
	assert.ErrorAs(t, err, &unsupported)
}

func TestDropNamespaceNotEmpty(t *testing.T) {
	cat := newTestCatalog(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "namespace has tables", http.StatusConflict)
	}))

	err := cat.DropNamespace(context.Background(), "t1_default")
	var notEmpty *catalog.ErrNamespaceNotEmpty
	assert.ErrorAs(t, err, &notEmpty)
}

package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kasuganosora/lakebase/pkg/catalog/memory"
	"github.com/kasuganosora/lakebase/pkg/config"
	"github.com/kasuganosora/lakebase/pkg/engine/sqlite"
	"github.com/kasuganosora/lakebase/pkg/operations"
	"github.com/kasuganosora/lakebase/pkg/types"
)

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	cfg := config.DefaultConfig()
	eng, err := sqlite.New()
	require.NoError(t, err)
	t.Cleanup(func() { eng.Close() })
	ops := operations.NewService(memory.NewCatalog(), eng, cfg)
	return NewServer(ops, cfg).Handler()
}

func postDatabase(t *testing.T, handler http.Handler, body string) (*httptest.ResponseRecorder, *types.Response) {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/database", strings.NewReader(body))
	handler.ServeHTTP(rec, req)

	var resp types.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec, &resp
}

func TestHealthEndpoint(t *testing.T) {
	handler := newTestHandler(t)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var health HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, types.ServiceName, health.Service)
	assert.Equal(t, types.ServiceVersion, health.Version)
	assert.Equal(t, "development", health.Environment)
	assert.NotEmpty(t, health.RequestID)
}

func TestWriteQueryRoundtrip(t *testing.T) {
	handler := newTestHandler(t)

	rec, resp := postDatabase(t, handler,
		`{"operation":"WRITE","tenant_id":"t1","table":"users","records":[{"name":"alice","age":30}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, resp.Success)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec, resp = postDatabase(t, handler,
		`{"operation":"QUERY","tenant_id":"t1","table":"users"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, resp.Success)

	data := resp.Data.(map[string]interface{})
	records := data["records"].([]interface{})
	require.Len(t, records, 1)
	assert.Equal(t, "alice", records[0].(map[string]interface{})["name"])

	meta := data["query_metadata"].(map[string]interface{})
	assert.Equal(t, float64(1), meta["row_count"])
	assert.Equal(t, false, meta["cache_hit"])
	assert.NotEmpty(t, meta["query_id"])
}

func TestUnknownOperationIsBadRequest(t *testing.T) {
	handler := newTestHandler(t)

	rec, resp := postDatabase(t, handler, `{"operation":"TRUNCATE","tenant_id":"t1","table":"users"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, types.ErrCodeValidation, resp.Error.Code)
}

func TestMissingOperationIsBadRequest(t *testing.T) {
	handler := newTestHandler(t)

	rec, resp := postDatabase(t, handler, `{"tenant_id":"t1","table":"users"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, resp.Error)
	assert.Contains(t, resp.Error.Message, "operation")
}

func TestMalformedBodyIsBadRequest(t *testing.T) {
	handler := newTestHandler(t)

	rec, _ := postDatabase(t, handler, `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConfirmationRequiredIsBadRequest(t *testing.T) {
	handler := newTestHandler(t)

	_, resp := postDatabase(t, handler,
		`{"operation":"WRITE","tenant_id":"t1","table":"users","records":[{"name":"alice"}]}`)
	require.True(t, resp.Success)

	rec, resp := postDatabase(t, handler,
		`{"operation":"HARD_DELETE","tenant_id":"t1","table":"users","filters":[{"field":"name","operator":"eq","value":"alice"}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, types.ErrCodeConfirmationRequired, resp.Error.Code)
}

func TestOperationErrorIsBadRequest(t *testing.T) {
	handler := newTestHandler(t)

	// 执行期失败同样映射为 400，而不是 500
	rec, resp := postDatabase(t, handler,
		`{"operation":"DESCRIBE_TABLE","tenant_id":"t1","table":"ghost"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, types.ErrCodeDescribe, resp.Error.Code)
}

func TestStatusForErrorCodes(t *testing.T) {
	cases := []struct {
		code string
		want int
	}{
		{types.ErrCodeInitFailure, http.StatusServiceUnavailable},
		{types.ErrCodeTimeout, http.StatusGatewayTimeout},
		{types.ErrCodeInternal, http.StatusInternalServerError},
		{types.ErrCodeValidation, http.StatusBadRequest},
		{types.ErrCodeWrite, http.StatusBadRequest},
		{types.ErrCodeCompact, http.StatusBadRequest},
	}
	for _, tc := range cases {
		resp := types.Fail(tc.code, "x")
		assert.Equal(t, tc.want, statusFor(resp), tc.code)
	}
	assert.Equal(t, http.StatusOK, statusFor(&types.Response{Success: true}))
}

func TestDatabaseRejectsGet(t *testing.T) {
	handler := newTestHandler(t)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/database", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	handler := newTestHandler(t)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/database", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRecoveryMiddleware(t *testing.T) {
	boom := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})
	rec := httptest.NewRecorder()
	RecoveryMiddleware(boom).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "INTERNAL_ERROR")
}

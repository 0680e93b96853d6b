package funcurl

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kasuganosora/lakebase/pkg/catalog/memory"
	"github.com/kasuganosora/lakebase/pkg/config"
	"github.com/kasuganosora/lakebase/pkg/engine/sqlite"
	"github.com/kasuganosora/lakebase/pkg/operations"
	"github.com/kasuganosora/lakebase/pkg/types"
)

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	cfg := config.DefaultConfig()
	eng, err := sqlite.New()
	require.NoError(t, err)
	t.Cleanup(func() { eng.Close() })
	ops := operations.NewService(memory.NewCatalog(), eng, cfg)
	return NewHandler(ops, nil)
}

func decodeResponse(t *testing.T, proxy ProxyResponse) *types.Response {
	t.Helper()
	var resp types.Response
	require.NoError(t, json.Unmarshal([]byte(proxy.Body), &resp))
	return &resp
}

func TestHandleV2Event(t *testing.T) {
	h := newTestHandler(t)

	body := `{"operation":"WRITE","tenant_id":"t1","table":"users","records":[{"name":"alice"}]}`
	ev := fmt.Sprintf(`{"rawPath":"/database","requestContext":{"http":{"method":"POST"}},"body":%q}`, body)

	proxy := h.Handle(context.Background(), []byte(ev), time.Minute)
	require.Equal(t, http.StatusOK, proxy.StatusCode)
	resp := decodeResponse(t, proxy)
	assert.True(t, resp.Success)
	assert.NotEmpty(t, proxy.Headers["X-Request-ID"])
	assert.Equal(t, "application/json", proxy.Headers["Content-Type"])
}

func TestHandleClassicProxyEvent(t *testing.T) {
	h := newTestHandler(t)

	body := `{"operation":"QUERY","tenant_id":"t1","table":"users"}`
	ev := fmt.Sprintf(`{"httpMethod":"post","path":"/database","body":%q}`, body)

	proxy := h.Handle(context.Background(), []byte(ev), time.Minute)
	require.Equal(t, http.StatusOK, proxy.StatusCode)
	assert.True(t, decodeResponse(t, proxy).Success)
}

func TestHandleBase64Body(t *testing.T) {
	h := newTestHandler(t)

	body := `{"operation":"QUERY","tenant_id":"t1","table":"users"}`
	encoded := base64.StdEncoding.EncodeToString([]byte(body))
	ev := fmt.Sprintf(`{"httpMethod":"POST","path":"/database","body":%q,"isBase64Encoded":true}`, encoded)

	proxy := h.Handle(context.Background(), []byte(ev), time.Minute)
	require.Equal(t, http.StatusOK, proxy.StatusCode)
	assert.True(t, decodeResponse(t, proxy).Success)
}

func TestHandleDirectInvocation(t *testing.T) {
	h := newTestHandler(t)

	// 无 HTTP 字段的事件按直接调用处理，整个负载即请求体
	payload := `{"operation":"WRITE","tenant_id":"t1","table":"users","records":[{"name":"alice"}]}`
	proxy := h.Handle(context.Background(), []byte(payload), time.Minute)
	require.Equal(t, http.StatusOK, proxy.StatusCode)
	assert.True(t, decodeResponse(t, proxy).Success)
}

func TestHandleHealthAndOptions(t *testing.T) {
	h := newTestHandler(t)

	health := h.Handle(context.Background(),
		[]byte(`{"httpMethod":"GET","path":"/health"}`), time.Minute)
	assert.Equal(t, http.StatusOK, health.StatusCode)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(health.Body), &payload))
	assert.Equal(t, "ok", payload["status"])
	assert.Equal(t, types.ServiceName, payload["service"])
	assert.Equal(t, types.ServiceVersion, payload["version"])
	assert.NotEmpty(t, payload["request_id"])
	assert.Equal(t, "*", health.Headers["Access-Control-Allow-Origin"])

	options := h.Handle(context.Background(),
		[]byte(`{"httpMethod":"OPTIONS","path":"/database"}`), time.Minute)
	assert.Equal(t, http.StatusNoContent, options.StatusCode)
	assert.Equal(t, "*", options.Headers["Access-Control-Allow-Origin"])
	assert.Equal(t, "GET, POST, OPTIONS", options.Headers["Access-Control-Allow-Methods"])
	assert.Equal(t, "Content-Type, Authorization", options.Headers["Access-Control-Allow-Headers"])
}

func TestHandleOperationErrorIsBadRequest(t *testing.T) {
	h := newTestHandler(t)

	// 执行期失败映射为 400，而不是 500
	body := `{"operation":"DESCRIBE_TABLE","tenant_id":"t1","table":"ghost"}`
	proxy := h.Handle(context.Background(), []byte(body), time.Minute)
	assert.Equal(t, http.StatusBadRequest, proxy.StatusCode)
	resp := decodeResponse(t, proxy)
	require.NotNil(t, resp.Error)
	assert.Equal(t, types.ErrCodeDescribe, resp.Error.Code)
}

func TestHandleRejectsNonPost(t *testing.T) {
	h := newTestHandler(t)

	proxy := h.Handle(context.Background(),
		[]byte(`{"httpMethod":"PUT","path":"/database","body":"{}"}`), time.Minute)
	assert.Equal(t, http.StatusBadRequest, proxy.StatusCode)
}

func TestHandleMissingOperation(t *testing.T) {
	h := newTestHandler(t)

	ev := `{"httpMethod":"POST","path":"/database","body":"{\"tenant_id\":\"t1\"}"}`
	proxy := h.Handle(context.Background(), []byte(ev), time.Minute)
	assert.Equal(t, http.StatusBadRequest, proxy.StatusCode)
	resp := decodeResponse(t, proxy)
	require.NotNil(t, resp.Error)
	assert.Equal(t, types.ErrCodeValidation, resp.Error.Code)
}

func TestHandleInitFailure(t *testing.T) {
	h := NewHandler(nil, errors.New("catalog unreachable"))

	proxy := h.Handle(context.Background(), []byte(`{}`), time.Minute)
	assert.Equal(t, http.StatusServiceUnavailable, proxy.StatusCode)
	resp := decodeResponse(t, proxy)
	require.NotNil(t, resp.Error)
	assert.Equal(t, types.ErrCodeInitFailure, resp.Error.Code)
}

type recordingInvoker struct {
	payloads [][]byte
}

func (r *recordingInvoker) InvokeAsync(ctx context.Context, payload []byte) error {
	r.payloads = append(r.payloads, payload)
	return nil
}

func TestWireCompactionSelfInvokes(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Iceberg.Compaction.CheckInterval = 1
	cfg.Iceberg.Compaction.MinFiles = 2

	eng, err := sqlite.New()
	require.NoError(t, err)
	t.Cleanup(func() { eng.Close() })
	ops := operations.NewService(memory.NewCatalog(), eng, cfg)

	h := NewHandler(ops, nil)
	invoker := &recordingInvoker{}
	h.WireCompaction(invoker)

	for _, name := range []string{"alice", "bob"} {
		body := fmt.Sprintf(`{"operation":"WRITE","tenant_id":"t1","table":"users","records":[{"name":%q}]}`, name)
		proxy := h.Handle(context.Background(), []byte(body), time.Minute)
		require.Equal(t, http.StatusOK, proxy.StatusCode)
	}

	require.Len(t, invoker.payloads, 1)
	var compact map[string]interface{}
	require.NoError(t, json.Unmarshal(invoker.payloads[0], &compact))
	assert.Equal(t, "COMPACT", compact["operation"])
	assert.Equal(t, "t1", compact["tenant_id"])
	assert.Equal(t, "users", compact["table"])
}

func TestNormalizeEventInvalidJSON(t *testing.T) {
	_, err := normalizeEvent([]byte(`{broken`))
	assert.Error(t, err)

	_, err = normalizeEvent([]byte(`{"httpMethod":"POST","body":"x","isBase64Encoded":true}`))
	assert.Error(t, err)
}

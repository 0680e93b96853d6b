package funcurl

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/kasuganosora/lakebase/pkg/operations"
	"github.com/kasuganosora/lakebase/pkg/types"
)

// budgetMargin is shaved off the invocation's remaining time so the
// operation can still serialize its response before the runtime kills it.
const budgetMargin = 5 * time.Second

// Invoker fires a new invocation of this same function without waiting for
// the result. Used to hand background compaction its own time budget.
type Invoker interface {
	InvokeAsync(ctx context.Context, payload []byte) error
}

// Handler serves function-URL events. A failed service initialization is
// remembered: every request then answers 503 without touching the broken
// dependencies, which is cheaper than crash-looping the runtime.
type Handler struct {
	ops     *operations.Service
	initErr error
	invoker Invoker
}

// NewHandler creates a function-URL handler. initErr carries the service
// construction failure, if any.
func NewHandler(ops *operations.Service, initErr error) *Handler {
	return &Handler{ops: ops, initErr: initErr}
}

// WireCompaction routes opportunistic compaction through fire-and-forget
// self-invocation instead of spending the current request's budget on it.
func (h *Handler) WireCompaction(invoker Invoker) {
	h.invoker = invoker
	if h.ops == nil {
		return
	}
	h.ops.OnCompactNeeded = func(tenantID, namespace, table string) {
		payload, err := json.Marshal(map[string]interface{}{
			"operation": string(types.OperationCompact),
			"tenant_id": tenantID,
			"namespace": namespace,
			"table":     table,
		})
		if err != nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := h.invoker.InvokeAsync(ctx, payload); err != nil {
			log.Printf("[FuncURL] compaction self-invoke failed for %s/%s/%s: %v", tenantID, namespace, table, err)
		}
	}
}

// Handle processes one event. remaining is the invocation's remaining run
// time; the operation gets that minus a safety margin.
func (h *Handler) Handle(ctx context.Context, eventData []byte, remaining time.Duration) ProxyResponse {
	if h.initErr != nil {
		return proxyJSON(http.StatusServiceUnavailable, types.Fail(
			types.ErrCodeInitFailure,
			fmt.Sprintf("service failed to initialize: %v", h.initErr),
		), nil)
	}

	req, err := normalizeEvent(eventData)
	if err != nil {
		return proxyJSON(http.StatusBadRequest, types.Fail(types.ErrCodeValidation, err.Error()), nil)
	}

	if req.Method == http.MethodGet && req.Path == "/health" {
		return proxyJSON(http.StatusOK, map[string]interface{}{
			"status":            "ok",
			"service":           types.ServiceName,
			"version":           types.ServiceVersion,
			"request_id":        uuid.NewString(),
			"execution_time_ms": 0,
		}, nil)
	}
	if req.Method == http.MethodOptions {
		return ProxyResponse{StatusCode: http.StatusNoContent, Headers: corsHeaders()}
	}
	if req.Method != http.MethodPost {
		return proxyJSON(http.StatusBadRequest, types.Fail(types.ErrCodeValidation, "method not allowed, use POST"), nil)
	}

	var envelope struct {
		Operation string `json:"operation"`
	}
	if err := json.Unmarshal(req.Body, &envelope); err != nil || envelope.Operation == "" {
		return proxyJSON(http.StatusBadRequest, types.Fail(types.ErrCodeValidation, "operation is required"), nil)
	}

	opReq, err := types.ParseRequest(envelope.Operation, req.Body)
	if err != nil {
		return proxyJSON(http.StatusBadRequest, types.Fail(types.ErrCodeValidation, err.Error()), nil)
	}

	if remaining > budgetMargin {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, remaining-budgetMargin)
		defer cancel()
	}

	resp := h.ops.Execute(ctx, opReq)

	headers := map[string]string{}
	if resp.Metadata != nil {
		headers["X-Request-ID"] = resp.Metadata.RequestID
		headers["X-Execution-Time-Ms"] = fmt.Sprintf("%d", resp.Metadata.ExecutionTimeMs)
	}
	return proxyJSON(statusFor(resp), resp, headers)
}

// statusFor maps error codes onto HTTP status codes. Unavailable
// dependencies are 503, deadline overruns 504, uncaught crashes 500; every
// other failure, validation and operation errors alike, is 400.
func statusFor(resp *types.Response) int {
	if resp.Success {
		return http.StatusOK
	}
	if resp.Error == nil {
		return http.StatusInternalServerError
	}
	switch resp.Error.Code {
	case types.ErrCodeInitFailure:
		return http.StatusServiceUnavailable
	case types.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case types.ErrCodeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/kasuganosora/lakebase/pkg/operations"
	"github.com/kasuganosora/lakebase/pkg/types"
)

// DatabaseHandler serves the single operation endpoint: POST /database with
// an envelope carrying the operation name and its request fields.
type DatabaseHandler struct {
	ops *operations.Service
}

// NewDatabaseHandler creates the operation endpoint handler.
func NewDatabaseHandler(ops *operations.Service) *DatabaseHandler {
	return &DatabaseHandler{ops: ops}
}

// ServeHTTP implements http.Handler.
func (h *DatabaseHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeResponse(w, types.Fail(types.ErrCodeValidation, "method not allowed, use POST"))
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeResponse(w, types.Fail(types.ErrCodeValidation, "cannot read request body"))
		return
	}

	var envelope struct {
		Operation string `json:"operation"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		writeResponse(w, types.Fail(types.ErrCodeValidation, "request body must be JSON"))
		return
	}
	if envelope.Operation == "" {
		writeResponse(w, types.Fail(types.ErrCodeValidation, "operation is required"))
		return
	}

	req, err := types.ParseRequest(envelope.Operation, body)
	if err != nil {
		writeResponse(w, types.Fail(types.ErrCodeValidation, err.Error()))
		return
	}

	writeResponse(w, h.ops.Execute(r.Context(), req))
}

// writeResponse maps the envelope onto an HTTP status and emits it along
// with the bookkeeping headers.
func writeResponse(w http.ResponseWriter, resp *types.Response) {
	if resp.Metadata != nil {
		w.Header().Set("X-Request-ID", resp.Metadata.RequestID)
		w.Header().Set("X-Execution-Time-Ms", fmt.Sprintf("%d", resp.Metadata.ExecutionTimeMs))
	}
	writeJSON(w, statusFor(resp), resp)
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

package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// OperationType identifies a database operation in the request envelope.
type OperationType string

const (
	OperationQuery          OperationType = "QUERY"
	OperationWrite          OperationType = "WRITE"
	OperationUpdate         OperationType = "UPDATE"
	OperationDelete         OperationType = "DELETE"
	OperationHardDelete     OperationType = "HARD_DELETE"
	OperationUpsert         OperationType = "UPSERT"
	OperationCompact        OperationType = "COMPACT"
	OperationCreateTable    OperationType = "CREATE_TABLE"
	OperationListTables     OperationType = "LIST_TABLES"
	OperationDescribeTable  OperationType = "DESCRIBE_TABLE"
	OperationDropTable      OperationType = "DROP_TABLE"
	OperationDropNamespace  OperationType = "DROP_NAMESPACE"
	OperationExportCsv      OperationType = "EXPORT_CSV"
	OperationGetUploadURL   OperationType = "GET_UPLOAD_URL"
	OperationGetDownloadURL OperationType = "GET_DOWNLOAD_URL"
)

// String returns the string form of the operation type.
func (t OperationType) String() string {
	return string(t)
}

// Request is implemented by every typed operation request.
type Request interface {
	// Operation returns the operation type carried by the request
	Operation() OperationType

	// Validate checks the request shape; failures map to VALIDATION_ERROR
	Validate() error
}

// ParseRequest decodes a raw envelope body into the typed request for the
// given operation. The operation name is case-insensitive.
func ParseRequest(operation string, body []byte) (Request, error) {
	var req Request

	switch OperationType(strings.ToUpper(strings.TrimSpace(operation))) {
	case OperationQuery:
		req = &QueryRequest{}
	case OperationWrite:
		req = &WriteRequest{}
	case OperationUpdate:
		req = &UpdateRequest{}
	case OperationDelete:
		req = &DeleteRequest{}
	case OperationHardDelete:
		req = &HardDeleteRequest{}
	case OperationUpsert:
		req = &UpsertRequest{}
	case OperationCompact:
		req = &CompactRequest{}
	case OperationCreateTable:
		req = &CreateTableRequest{}
	case OperationListTables:
		req = &ListTablesRequest{}
	case OperationDescribeTable:
		req = &DescribeTableRequest{}
	case OperationDropTable:
		req = &DropTableRequest{}
	case OperationDropNamespace:
		req = &DropNamespaceRequest{}
	case OperationExportCsv:
		req = &ExportCsvRequest{}
	case OperationGetUploadURL:
		req = &GetUploadURLRequest{}
	case OperationGetDownloadURL:
		req = &GetDownloadURLRequest{}
	default:
		return nil, fmt.Errorf("unknown operation: %s", operation)
	}

	if err := json.Unmarshal(body, req); err != nil {
		return nil, fmt.Errorf("invalid request body: %w", err)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return req, nil
}

package types

// 服务标识，health 探针使用
const (
	ServiceName    = "lakebase"
	ServiceVersion = "1.0.0"
)

// Error codes returned in the response envelope.
const (
	ErrCodeValidation           = "VALIDATION_ERROR"
	ErrCodeTableExists          = "TABLE_EXISTS"
	ErrCodeConfirmationRequired = "CONFIRMATION_REQUIRED"
	ErrCodeWrite                = "WRITE_ERROR"
	ErrCodeQuery                = "QUERY_ERROR"
	ErrCodeUpdate               = "UPDATE_ERROR"
	ErrCodeDelete               = "DELETE_ERROR"
	ErrCodeHardDelete           = "HARD_DELETE_ERROR"
	ErrCodeCompact              = "COMPACT_ERROR"
	ErrCodeCreate               = "CREATE_ERROR"
	ErrCodeList                 = "LIST_ERROR"
	ErrCodeDescribe             = "DESCRIBE_ERROR"
	ErrCodeDropTable            = "DROP_TABLE_ERROR"
	ErrCodeDropNamespace        = "DROP_NAMESPACE_ERROR"
	ErrCodeExport               = "EXPORT_ERROR"
	ErrCodeStorage              = "STORAGE_ERROR"
	ErrCodeTimeout              = "TIMEOUT"
	ErrCodeInitFailure          = "INIT_FAILURE"
	ErrCodeInternal             = "INTERNAL_ERROR"
)

// ErrorDetail is the structured error block of a failed response.
type ErrorDetail struct {
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Field      string                 `json:"field,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Suggestion string                 `json:"suggestion,omitempty"`
}

// ResponseMetadata carries per-request bookkeeping.
type ResponseMetadata struct {
	RequestID       string `json:"request_id"`
	ExecutionTimeMs int64  `json:"execution_time_ms"`
}

// Response is the uniform operation response envelope.
type Response struct {
	Success  bool              `json:"success"`
	Data     interface{}       `json:"data,omitempty"`
	Metadata *ResponseMetadata `json:"metadata,omitempty"`
	Error    *ErrorDetail      `json:"error,omitempty"`
}

// OK builds a success response.
func OK(data interface{}) *Response {
	return &Response{Success: true, Data: data}
}

// Fail builds a failure response with the given code and message.
func Fail(code, message string) *Response {
	return &Response{Success: false, Error: &ErrorDetail{Code: code, Message: message}}
}

// FailDetail builds a failure response from a prepared error block.
func FailDetail(detail *ErrorDetail) *Response {
	return &Response{Success: false, Error: detail}
}

// QueryMetadata describes how a query result was produced.
type QueryMetadata struct {
	RowCount        int     `json:"row_count"`
	ExecutionTimeMs float64 `json:"execution_time_ms"`
	ScannedRows     int64   `json:"scanned_rows,omitempty"`
	ScannedBytes    int64   `json:"scanned_bytes,omitempty"`
	CacheHit        bool    `json:"cache_hit"`
	QueryID         string  `json:"query_id"`
	ScannedSnapshot int64   `json:"scanned_snapshot,omitempty"`
	TableMissing    bool    `json:"table_missing,omitempty"`
}

// QueryData is the QUERY payload.
type QueryData struct {
	Records []map[string]interface{} `json:"records"`
	Query   *QueryMetadata           `json:"query_metadata,omitempty"`
}

// WriteData is the WRITE payload.
type WriteData struct {
	RecordsWritten        int       `json:"records_written"`
	Mode                  WriteMode `json:"mode"`
	TableCreated          bool      `json:"table_created,omitempty"`
	SnapshotID            int64     `json:"snapshot_id,omitempty"`
	RecordIDs             []string  `json:"record_ids,omitempty"`
	CompactionRecommended bool      `json:"compaction_recommended"`
	SmallFilesCount       *int      `json:"small_files_count,omitempty"`
}

// UpdateData is the UPDATE payload.
type UpdateData struct {
	RecordsUpdated int   `json:"records_updated"`
	NewVersion     int32 `json:"new_version,omitempty"`
}

// DeleteData is the DELETE (soft delete) payload.
type DeleteData struct {
	RecordsDeleted int `json:"records_deleted"`
}

// HardDeleteData is the HARD_DELETE payload. FilesRewritten is the drop in
// file count caused by the rewrite (files_before - files_after).
type HardDeleteData struct {
	RecordsDeleted int `json:"records_deleted"`
	FilesRewritten int `json:"files_rewritten"`
}

// UpsertData is the UPSERT payload.
type UpsertData struct {
	RecordsUpdated  int `json:"records_updated"`
	RecordsInserted int `json:"records_inserted"`
	TotalAffected   int `json:"total_affected"`
}

// CompactionStats is the COMPACT payload.
type CompactionStats struct {
	Compacted           bool    `json:"compacted"`
	Reason              string  `json:"reason,omitempty"`
	FilesBefore         int     `json:"files_before"`
	FilesAfter          int     `json:"files_after"`
	FilesCompacted      int     `json:"files_compacted"`
	FilesRemoved        int     `json:"files_removed"`
	BytesBefore         int64   `json:"bytes_before"`
	BytesAfter          int64   `json:"bytes_after"`
	BytesSaved          int64   `json:"bytes_saved"`
	RecordsRewritten    int     `json:"records_rewritten"`
	SnapshotsExpired    int     `json:"snapshots_expired"`
	CompactionTimeMs    float64 `json:"compaction_time_ms"`
	SmallFilesRemaining int     `json:"small_files_remaining"`
}

// TableInfo is one LIST_TABLES entry.
type TableInfo struct {
	Namespace string `json:"namespace"`
	Table     string `json:"table"`
}

// ListTablesData is the LIST_TABLES payload.
type ListTablesData struct {
	Tables []TableInfo `json:"tables"`
	Count  int         `json:"count"`
}

// ColumnInfo is one DESCRIBE_TABLE schema entry.
type ColumnInfo struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Required bool   `json:"required"`
	System   bool   `json:"system"`
}

// SnapshotInfo is one DESCRIBE_TABLE history entry.
type SnapshotInfo struct {
	SnapshotID  int64  `json:"snapshot_id"`
	TimestampMs int64  `json:"timestamp_ms"`
	Operation   string `json:"operation"`
}

// DescribeTableData is the DESCRIBE_TABLE payload.
type DescribeTableData struct {
	Namespace        string         `json:"namespace"`
	Table            string         `json:"table"`
	Columns          []ColumnInfo   `json:"columns"`
	RowCount         int64          `json:"row_count"`
	FileCount        int            `json:"file_count"`
	TotalSizeBytes   int64          `json:"total_size_bytes"`
	Snapshots        []SnapshotInfo `json:"snapshots,omitempty"`
	MetadataLocation string         `json:"metadata_location,omitempty"`
}

// CreateTableData is the CREATE_TABLE payload.
type CreateTableData struct {
	TableCreated bool   `json:"table_created"`
	TableExisted bool   `json:"table_existed"`
	Namespace    string `json:"namespace"`
	Table        string `json:"table"`
}

// DropTableData is the DROP_TABLE payload.
type DropTableData struct {
	TableDropped bool `json:"table_dropped"`
	TableExisted bool `json:"table_existed"`
	Purged       bool `json:"purged,omitempty"`
}

// DropNamespaceData is the DROP_NAMESPACE payload.
type DropNamespaceData struct {
	NamespaceDropped bool   `json:"namespace_dropped"`
	NamespaceExisted bool   `json:"namespace_existed"`
	Namespace        string `json:"namespace"`
}

// ExportCsvData is the EXPORT_CSV payload.
type ExportCsvData struct {
	Csv      string `json:"csv"`
	RowCount int    `json:"row_count"`
}

// PresignedURLData is the GET_UPLOAD_URL / GET_DOWNLOAD_URL payload.
type PresignedURLData struct {
	URL       string `json:"url"`
	Key       string `json:"key"`
	Method    string `json:"method"`
	ExpiresIn int    `json:"expires_in"`
}

package types

import "fmt"

// WriteMode selects how a WRITE lands in the table.
type WriteMode string

const (
	WriteModeAppend    WriteMode = "append"
	WriteModeOverwrite WriteMode = "overwrite"
	WriteModeUpsert    WriteMode = "upsert"
)

// FieldDefinition describes one user column in a table schema.
type FieldDefinition struct {
	Type     string `json:"type"`
	Required bool   `json:"required,omitempty"`
}

// SchemaDefinition is the user-supplied table schema. System columns are
// always added in front of these fields.
type SchemaDefinition struct {
	Fields     map[string]FieldDefinition `json:"fields"`
	PrimaryKey []string                   `json:"primary_key,omitempty"`
}

// PartitionFieldConfig is one partition spec entry.
type PartitionFieldConfig struct {
	Field      string `json:"field"`
	Transform  string `json:"transform"` // identity, year, month, day, hour, bucket
	Name       string `json:"name,omitempty"`
	NumBuckets int    `json:"num_buckets,omitempty"`
}

// PartitionConfig is the table partitioning configuration.
type PartitionConfig struct {
	Partitions []PartitionFieldConfig `json:"partitions"`
}

// TableProperties carries optional table-level settings.
type TableProperties struct {
	Compression string `json:"compression,omitempty"`
	FileFormat  string `json:"file_format,omitempty"`
	Description string `json:"description,omitempty"`
}

// baseRequest carries the fields shared by every operation.
type baseRequest struct {
	TenantID  string `json:"tenant_id"`
	Namespace string `json:"namespace"`
	Table     string `json:"table"`
}

func (b *baseRequest) validateBase(needTable bool) error {
	if b.TenantID == "" {
		return fmt.Errorf("tenant_id is required")
	}
	if b.Namespace == "" {
		b.Namespace = "default"
	}
	if needTable && b.Table == "" {
		return fmt.Errorf("table is required")
	}
	return nil
}

// QueryRequest is the read-path request.
type QueryRequest struct {
	baseRequest

	Projection   []Projection     `json:"projection,omitempty"`
	Aggregations []AggregateField `json:"aggregations,omitempty"`
	Filters      []Filter         `json:"filters,omitempty"`
	GroupBy      []string         `json:"group_by,omitempty"`
	Having       []Filter         `json:"having,omitempty"`
	Sort         []SortField      `json:"sort,omitempty"`
	Distinct     bool             `json:"distinct,omitempty"`

	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`

	IncludeDeleted bool `json:"include_deleted,omitempty"`
}

// Operation implements Request.
func (r *QueryRequest) Operation() OperationType { return OperationQuery }

// Validate implements Request.
func (r *QueryRequest) Validate() error {
	if err := r.validateBase(true); err != nil {
		return err
	}
	for i := range r.Projection {
		if err := r.Projection[i].Validate(); err != nil {
			return err
		}
	}
	for i := range r.Aggregations {
		if err := r.Aggregations[i].Validate(); err != nil {
			return err
		}
	}
	if err := ValidateFilters(r.Filters); err != nil {
		return err
	}
	if len(r.Having) > 0 && len(r.GroupBy) == 0 {
		return fmt.Errorf("'having' clause requires 'group_by'")
	}
	if err := ValidateFilters(r.Having); err != nil {
		return err
	}
	for i := range r.Sort {
		if err := r.Sort[i].Validate(); err != nil {
			return err
		}
	}
	if r.Limit < 0 || r.Limit > 100000 {
		return fmt.Errorf("limit must be between 1 and 100000")
	}
	if r.Offset < 0 {
		return fmt.Errorf("offset must not be negative")
	}
	return nil
}

// WriteRequest is the write-path request.
type WriteRequest struct {
	baseRequest

	Records    []map[string]interface{} `json:"records"`
	Schema     *SchemaDefinition        `json:"schema,omitempty"`
	Mode       WriteMode                `json:"mode,omitempty"`
	Partition  *PartitionConfig         `json:"partition,omitempty"`
	Properties *TableProperties         `json:"properties,omitempty"`
}

// Operation implements Request.
func (r *WriteRequest) Operation() OperationType { return OperationWrite }

// Validate implements Request.
func (r *WriteRequest) Validate() error {
	if err := r.validateBase(true); err != nil {
		return err
	}
	if len(r.Records) == 0 {
		return fmt.Errorf("records are required")
	}
	switch r.Mode {
	case "":
		r.Mode = WriteModeAppend
	case WriteModeAppend, WriteModeOverwrite, WriteModeUpsert:
	default:
		return fmt.Errorf("invalid write mode '%s'. Must be append, overwrite or upsert", r.Mode)
	}
	return nil
}

// UpdateRequest bumps the version of every row matching the filters and
// applies the updates patch.
type UpdateRequest struct {
	baseRequest

	Updates map[string]interface{} `json:"updates"`
	Filters []Filter               `json:"filters"`
}

// Operation implements Request.
func (r *UpdateRequest) Operation() OperationType { return OperationUpdate }

// Validate implements Request.
func (r *UpdateRequest) Validate() error {
	if err := r.validateBase(true); err != nil {
		return err
	}
	if len(r.Updates) == 0 {
		return fmt.Errorf("updates are required")
	}
	for field := range r.Updates {
		if field == "_tenant_id" || field == "_record_id" || field == "_version" {
			return fmt.Errorf("system column %s cannot be updated", field)
		}
	}
	return ValidateFilters(r.Filters)
}

// DeleteRequest soft-deletes rows by writing a new version with the
// deletion sentinels set.
type DeleteRequest struct {
	baseRequest

	Filters []Filter `json:"filters"`
}

// Operation implements Request.
func (r *DeleteRequest) Operation() OperationType { return OperationDelete }

// Validate implements Request.
func (r *DeleteRequest) Validate() error {
	if err := r.validateBase(true); err != nil {
		return err
	}
	if len(r.Filters) == 0 {
		return fmt.Errorf("filters are required for delete")
	}
	return ValidateFilters(r.Filters)
}

// HardDeleteRequest physically removes all versions of matching rows.
type HardDeleteRequest struct {
	baseRequest

	Filters []Filter `json:"filters"`
	Confirm bool     `json:"confirm"`
}

// Operation implements Request.
func (r *HardDeleteRequest) Operation() OperationType { return OperationHardDelete }

// Validate implements Request.
func (r *HardDeleteRequest) Validate() error {
	if err := r.validateBase(true); err != nil {
		return err
	}
	if len(r.Filters) == 0 {
		return fmt.Errorf("filters are required for hard delete")
	}
	return ValidateFilters(r.Filters)
}

// UpsertRequest updates matching rows and inserts the rest. Either Records
// (digest-keyed) or Filters+Updates must be supplied.
type UpsertRequest struct {
	baseRequest

	Records []map[string]interface{} `json:"records,omitempty"`
	Filters []Filter                 `json:"filters,omitempty"`
	Updates map[string]interface{}   `json:"updates,omitempty"`
}

// Operation implements Request.
func (r *UpsertRequest) Operation() OperationType { return OperationUpsert }

// Validate implements Request.
func (r *UpsertRequest) Validate() error {
	if err := r.validateBase(true); err != nil {
		return err
	}
	hasRecords := len(r.Records) > 0
	hasFilterUpdate := len(r.Filters) > 0 && len(r.Updates) > 0
	if !hasRecords && !hasFilterUpdate {
		return fmt.Errorf("upsert requires either records or filters with updates")
	}
	if hasRecords && hasFilterUpdate {
		return fmt.Errorf("upsert accepts records or filters+updates, not both")
	}
	return ValidateFilters(r.Filters)
}

// CompactRequest merges small files and optionally expires old snapshots.
type CompactRequest struct {
	baseRequest

	Force            bool `json:"force,omitempty"`
	TargetFileSizeMB int  `json:"target_file_size_mb,omitempty"`
	MaxFiles         int  `json:"max_files,omitempty"`

	PartitionFilters []Filter `json:"partition_filters,omitempty"`

	ExpireSnapshots        *bool `json:"expire_snapshots,omitempty"` // default true
	SnapshotRetentionHours *int  `json:"snapshot_retention_hours,omitempty"` // default 168
}

// Operation implements Request.
func (r *CompactRequest) Operation() OperationType { return OperationCompact }

// Validate implements Request.
func (r *CompactRequest) Validate() error {
	if err := r.validateBase(true); err != nil {
		return err
	}
	if r.TargetFileSizeMB < 0 || r.MaxFiles < 0 {
		return fmt.Errorf("target_file_size_mb and max_files must not be negative")
	}
	if r.SnapshotRetentionHours != nil && *r.SnapshotRetentionHours < 0 {
		return fmt.Errorf("snapshot_retention_hours must not be negative")
	}
	return ValidateFilters(r.PartitionFilters)
}

// ShouldExpireSnapshots returns the expire flag with its default applied.
func (r *CompactRequest) ShouldExpireSnapshots() bool {
	if r.ExpireSnapshots == nil {
		return true
	}
	return *r.ExpireSnapshots
}

// RetentionHours returns the snapshot retention with its default applied.
func (r *CompactRequest) RetentionHours() int {
	if r.SnapshotRetentionHours == nil {
		return 168
	}
	return *r.SnapshotRetentionHours
}

// CreateTableRequest creates a table (idempotent unless if_not_exists=false).
type CreateTableRequest struct {
	baseRequest

	Schema      *SchemaDefinition `json:"schema"`
	Partition   *PartitionConfig  `json:"partition,omitempty"`
	Properties  *TableProperties  `json:"properties,omitempty"`
	IfNotExists *bool             `json:"if_not_exists,omitempty"` // default true
}

// Operation implements Request.
func (r *CreateTableRequest) Operation() OperationType { return OperationCreateTable }

// Validate implements Request.
func (r *CreateTableRequest) Validate() error {
	if err := r.validateBase(true); err != nil {
		return err
	}
	if r.Schema == nil || len(r.Schema.Fields) == 0 {
		return fmt.Errorf("schema with at least one field is required")
	}
	return nil
}

// TableIfNotExists returns the if_not_exists flag with its default applied.
func (r *CreateTableRequest) TableIfNotExists() bool {
	if r.IfNotExists == nil {
		return true
	}
	return *r.IfNotExists
}

// ListTablesRequest lists tables in the tenant's namespace.
type ListTablesRequest struct {
	baseRequest
}

// Operation implements Request.
func (r *ListTablesRequest) Operation() OperationType { return OperationListTables }

// Validate implements Request.
func (r *ListTablesRequest) Validate() error { return r.validateBase(false) }

// DescribeTableRequest returns schema and row count for one table.
type DescribeTableRequest struct {
	baseRequest
}

// Operation implements Request.
func (r *DescribeTableRequest) Operation() OperationType { return OperationDescribeTable }

// Validate implements Request.
func (r *DescribeTableRequest) Validate() error { return r.validateBase(true) }

// DropTableRequest drops one table.
type DropTableRequest struct {
	baseRequest

	Purge *bool `json:"purge,omitempty"` // default true
}

// Operation implements Request.
func (r *DropTableRequest) Operation() OperationType { return OperationDropTable }

// Validate implements Request.
func (r *DropTableRequest) Validate() error { return r.validateBase(true) }

// ShouldPurge returns the purge flag with its default applied.
func (r *DropTableRequest) ShouldPurge() bool {
	if r.Purge == nil {
		return true
	}
	return *r.Purge
}

// DropNamespaceRequest drops an empty namespace.
type DropNamespaceRequest struct {
	baseRequest
}

// Operation implements Request.
func (r *DropNamespaceRequest) Operation() OperationType { return OperationDropNamespace }

// Validate implements Request.
func (r *DropNamespaceRequest) Validate() error { return r.validateBase(false) }

// ExportCsvRequest runs a query and renders the result as CSV.
type ExportCsvRequest struct {
	baseRequest

	Projection     []Projection `json:"projection,omitempty"`
	Filters        []Filter     `json:"filters,omitempty"`
	Sort           []SortField  `json:"sort,omitempty"`
	Limit          int          `json:"limit,omitempty"`
	IncludeDeleted bool         `json:"include_deleted,omitempty"`

	Delimiter string `json:"delimiter,omitempty"` // default ","
	Header    *bool  `json:"header,omitempty"`    // default true
}

// Operation implements Request.
func (r *ExportCsvRequest) Operation() OperationType { return OperationExportCsv }

// Validate implements Request.
func (r *ExportCsvRequest) Validate() error {
	if err := r.validateBase(true); err != nil {
		return err
	}
	for i := range r.Projection {
		if err := r.Projection[i].Validate(); err != nil {
			return err
		}
	}
	if err := ValidateFilters(r.Filters); err != nil {
		return err
	}
	if len(r.Delimiter) > 1 {
		return fmt.Errorf("delimiter must be a single character")
	}
	return nil
}

// IncludeHeader returns the header flag with its default applied.
func (r *ExportCsvRequest) IncludeHeader() bool {
	if r.Header == nil {
		return true
	}
	return *r.Header
}

// GetUploadURLRequest presigns an object-store PUT.
type GetUploadURLRequest struct {
	baseRequest

	Key            string `json:"key"`
	ContentType    string `json:"content_type,omitempty"`
	ExpiresSeconds int    `json:"expires_seconds,omitempty"` // default 900
}

// Operation implements Request.
func (r *GetUploadURLRequest) Operation() OperationType { return OperationGetUploadURL }

// Validate implements Request.
func (r *GetUploadURLRequest) Validate() error {
	if err := r.validateBase(false); err != nil {
		return err
	}
	if r.Key == "" {
		return fmt.Errorf("key is required")
	}
	return nil
}

// GetDownloadURLRequest presigns an object-store GET.
type GetDownloadURLRequest struct {
	baseRequest

	Key            string `json:"key"`
	ExpiresSeconds int    `json:"expires_seconds,omitempty"` // default 900
}

// Operation implements Request.
func (r *GetDownloadURLRequest) Operation() OperationType { return OperationGetDownloadURL }

// Validate implements Request.
func (r *GetDownloadURLRequest) Validate() error {
	if err := r.validateBase(false); err != nil {
		return err
	}
	if r.Key == "" {
		return fmt.Errorf("key is required")
	}
	return nil
}

package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func marshalKeys(t *testing.T, v interface{}) map[string]interface{} {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestQueryDataWireFormat(t *testing.T) {
	data := &QueryData{
		Records: []map[string]interface{}{{"name": "alice"}},
		Query: &QueryMetadata{
			RowCount:        1,
			ExecutionTimeMs: 12.5,
			CacheHit:        true,
			QueryID:         "q-1",
		},
	}

	out := marshalKeys(t, data)
	records := out["records"].([]interface{})
	require.Len(t, records, 1)

	meta := out["query_metadata"].(map[string]interface{})
	assert.Equal(t, float64(1), meta["row_count"])
	assert.Equal(t, 12.5, meta["execution_time_ms"])
	assert.Equal(t, true, meta["cache_hit"])
	assert.Equal(t, "q-1", meta["query_id"])
}

func TestWriteDataWireFormat(t *testing.T) {
	small := 3
	out := marshalKeys(t, &WriteData{
		RecordsWritten:        2,
		Mode:                  WriteModeAppend,
		CompactionRecommended: true,
		SmallFilesCount:       &small,
	})
	assert.Equal(t, float64(2), out["records_written"])
	assert.Equal(t, true, out["compaction_recommended"])
	assert.Equal(t, float64(3), out["small_files_count"])

	// 未探测时省略 small_files_count，compaction_recommended 始终存在
	out = marshalKeys(t, &WriteData{RecordsWritten: 1, Mode: WriteModeAppend})
	assert.Equal(t, false, out["compaction_recommended"])
	_, present := out["small_files_count"]
	assert.False(t, present)
}

func TestMutationDataWireFormat(t *testing.T) {
	out := marshalKeys(t, &HardDeleteData{RecordsDeleted: 4, FilesRewritten: 2})
	assert.Equal(t, float64(4), out["records_deleted"])
	assert.Equal(t, float64(2), out["files_rewritten"])

	out = marshalKeys(t, &UpsertData{RecordsUpdated: 1, RecordsInserted: 2, TotalAffected: 3})
	assert.Equal(t, float64(3), out["total_affected"])
}

func TestDDLDataWireFormat(t *testing.T) {
	out := marshalKeys(t, &CreateTableData{TableCreated: true, Namespace: "default", Table: "users"})
	assert.Equal(t, true, out["table_created"])
	assert.Equal(t, false, out["table_existed"])

	out = marshalKeys(t, &DropTableData{TableDropped: false, TableExisted: false})
	assert.Equal(t, false, out["table_dropped"])
	assert.Equal(t, false, out["table_existed"])

	out = marshalKeys(t, &DropNamespaceData{NamespaceDropped: true, NamespaceExisted: true, Namespace: "default"})
	assert.Equal(t, true, out["namespace_dropped"])
	assert.Equal(t, true, out["namespace_existed"])
}

func TestCompactionStatsWireFormat(t *testing.T) {
	out := marshalKeys(t, &CompactionStats{
		Compacted:           true,
		FilesBefore:         5,
		FilesAfter:          1,
		FilesCompacted:      5,
		FilesRemoved:        5,
		BytesBefore:         1000,
		BytesAfter:          400,
		BytesSaved:          600,
		CompactionTimeMs:    8.25,
		SmallFilesRemaining: 1,
	})
	assert.Equal(t, float64(5), out["files_compacted"])
	assert.Equal(t, float64(5), out["files_removed"])
	assert.Equal(t, float64(1000), out["bytes_before"])
	assert.Equal(t, float64(400), out["bytes_after"])
	assert.Equal(t, float64(600), out["bytes_saved"])
	assert.Equal(t, 8.25, out["compaction_time_ms"])
	assert.Equal(t, float64(1), out["small_files_remaining"])
}

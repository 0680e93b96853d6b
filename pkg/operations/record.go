package operations

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/kasuganosora/lakebase/pkg/catalog"
)

// RecordID derives the stable identifier of a record from its user payload:
// the hex md5 of the canonical JSON form. Re-writing an identical payload
// produces the same id, which is what makes retried writes idempotent.
func RecordID(record map[string]interface{}) string {
	payload := make(map[string]interface{}, len(record))
	for k, v := range record {
		if len(k) > 0 && k[0] == '_' {
			continue
		}
		payload[k] = v
	}
	// json.Marshal sorts map keys, giving a canonical encoding
	data, err := json.Marshal(payload)
	if err != nil {
		data = []byte{}
	}
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

// enrichRecord fills the system columns of one incoming record. Caller
// values win for _record_id so clients can address rows explicitly.
func enrichRecord(record map[string]interface{}, tenantID string, now time.Time) map[string]interface{} {
	out := make(map[string]interface{}, len(record)+6)
	for k, v := range record {
		out[k] = v
	}

	if _, ok := out[catalog.ColRecordID]; !ok {
		out[catalog.ColRecordID] = RecordID(record)
	}
	out[catalog.ColTenantID] = tenantID
	if _, ok := out[catalog.ColTimestamp]; !ok {
		out[catalog.ColTimestamp] = now
	}
	if _, ok := out[catalog.ColVersion]; !ok {
		out[catalog.ColVersion] = int32(1)
	}
	if _, ok := out[catalog.ColDeleted]; !ok {
		out[catalog.ColDeleted] = false
	}
	if _, ok := out[catalog.ColDeletedAt]; !ok {
		out[catalog.ColDeletedAt] = nil
	}
	return out
}

// inferSchema derives a table schema from the first record of a write when
// the client did not send one. JSON numbers arrive as float64; whole values
// still map to float64 so later fractional writes keep fitting.
func inferSchema(record map[string]interface{}) (*catalog.Schema, error) {
	fields := make(map[string]catalog.Field, len(record))
	for name, value := range record {
		if len(name) > 0 && name[0] == '_' {
			continue
		}
		fields[name] = catalog.Field{Name: name, Type: inferType(value)}
	}
	return catalog.NewSchema(fields)
}

func inferType(value interface{}) string {
	switch value.(type) {
	case bool:
		return catalog.TypeBool
	case float64, float32:
		return catalog.TypeFloat64
	case int, int32, int64:
		return catalog.TypeInt64
	case time.Time:
		return catalog.TypeTimestamp
	default:
		return catalog.TypeString
	}
}

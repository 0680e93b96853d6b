package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// TableKey builds the cache key prefix for one table.
func TableKey(tenantID, namespace, table string) string {
	return fmt.Sprintf("%s/%s/%s", tenantID, namespace, table)
}

// RequestDigest builds a result-cache key: the table prefix followed by the
// sha256 of the canonical JSON form of the request. json.Marshal sorts map
// keys, so two requests that differ only in field order share a digest.
func RequestDigest(tenantID, namespace, table string, request interface{}) (string, error) {
	payload, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("cannot digest request: %w", err)
	}
	sum := sha256.Sum256(payload)
	return TableKey(tenantID, namespace, table) + ":" + hex.EncodeToString(sum[:]), nil
}

package duckdb

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuoteLiteral(t *testing.T) {
	assert.Equal(t, "s3://bucket/t/metadata.json", quoteLiteral("s3://bucket/t/metadata.json"))
	// 单引号翻倍，防止路径拼进 SQL 字面量时截断语句
	assert.Equal(t, "s3://bucket/o''brien/metadata.json", quoteLiteral("s3://bucket/o'brien/metadata.json"))
	assert.Equal(t, "''''", quoteLiteral("''"))
}

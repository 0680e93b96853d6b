package rest

import (
	"bytes"
	"fmt"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/kasuganosora/lakebase/pkg/catalog"
)

// encodeParquet 把一批记录编码为单个 parquet 文件。
// 列顺序与表结构一致，可空性由字段的 Required 决定。
func encodeParquet(schema *catalog.Schema, rows []catalog.Row) ([]byte, error) {
	group := parquet.Group{}
	for _, field := range schema.Fields {
		node, err := parquetNode(field.Type)
		if err != nil {
			return nil, err
		}
		if !field.Required {
			node = parquet.Optional(node)
		}
		group[field.Name] = node
	}

	buf := &bytes.Buffer{}
	writer := parquet.NewGenericWriter[map[string]interface{}](
		buf,
		parquet.NewSchema("record", group),
		parquet.Compression(&parquet.Zstd),
	)

	records := make([]map[string]interface{}, len(rows))
	for i, row := range rows {
		records[i] = normalizeRow(row)
	}
	if _, err := writer.Write(records); err != nil {
		return nil, fmt.Errorf("cannot write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("cannot finalize parquet file: %w", err)
	}
	return buf.Bytes(), nil
}

func parquetNode(fieldType string) (parquet.Node, error) {
	switch fieldType {
	case catalog.TypeString:
		return parquet.String(), nil
	case catalog.TypeInt32:
		return parquet.Int(32), nil
	case catalog.TypeInt64:
		return parquet.Int(64), nil
	case catalog.TypeFloat32:
		return parquet.Leaf(parquet.FloatType), nil
	case catalog.TypeFloat64:
		return parquet.Leaf(parquet.DoubleType), nil
	case catalog.TypeBool:
		return parquet.Leaf(parquet.BooleanType), nil
	case catalog.TypeDate:
		return parquet.Date(), nil
	case catalog.TypeTimestamp:
		return parquet.Timestamp(parquet.Microsecond), nil
	case catalog.TypeDecimal:
		return parquet.Decimal(9, 38, parquet.FixedLenByteArrayType(16)), nil
	case catalog.TypeBinary:
		return parquet.Leaf(parquet.ByteArrayType), nil
	}
	return nil, fmt.Errorf("unsupported parquet type: %s", fieldType)
}

// normalizeRow 统一行内的时间值，parquet 写入端接受 time.Time
func normalizeRow(row catalog.Row) map[string]interface{} {
	out := make(map[string]interface{}, len(row))
	for k, v := range row {
		switch t := v.(type) {
		case time.Time:
			out[k] = t.UTC()
		default:
			out[k] = v
		}
	}
	return out
}

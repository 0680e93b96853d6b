package catalog

// Row 一行记录
type Row map[string]interface{}

// Copy 返回行的浅拷贝
func (r Row) Copy() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Batch 一批按表结构整理好的记录
type Batch struct {
	Schema *Schema
	Rows   []Row
}

// PrepareBatch 将任意形状的行整理成符合表结构的批次：
//  1. 补齐批次中缺失的列（填 null）
//  2. 丢弃表结构之外的列并按结构顺序重排
//  3. 将每个值转换到字段类型（类型 + 可空性）
func PrepareBatch(schema *Schema, rows []Row) (*Batch, error) {
	prepared := make([]Row, 0, len(rows))

	for _, row := range rows {
		out := make(Row, len(schema.Fields))
		for _, field := range schema.Fields {
			value, ok := row[field.Name]
			if !ok {
				value = nil
			}
			cast, err := CastValue(field, value)
			if err != nil {
				return nil, err
			}
			out[field.Name] = cast
		}
		prepared = append(prepared, out)
	}

	return &Batch{Schema: schema, Rows: prepared}, nil
}

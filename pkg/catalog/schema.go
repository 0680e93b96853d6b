package catalog

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// 系统列。所有表都以这六列开头，用户列排在其后。
const (
	ColTenantID  = "_tenant_id"
	ColRecordID  = "_record_id"
	ColTimestamp = "_timestamp"
	ColVersion   = "_version"
	ColDeleted   = "_deleted"
	ColDeletedAt = "_deleted_at"
)

// Field 表字段
type Field struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Required bool   `json:"required"`
}

// Schema 表结构：字段有序，系统列在前
type Schema struct {
	Fields []Field `json:"fields"`
}

// SystemFields 返回系统列定义（固定顺序）
func SystemFields() []Field {
	return []Field{
		{Name: ColTenantID, Type: TypeString, Required: true},
		{Name: ColRecordID, Type: TypeString, Required: true},
		{Name: ColTimestamp, Type: TypeTimestamp, Required: true},
		{Name: ColVersion, Type: TypeInt32, Required: true},
		{Name: ColDeleted, Type: TypeBool, Required: false},
		{Name: ColDeletedAt, Type: TypeTimestamp, Required: false},
	}
}

// IsSystemColumn 判断列名是否为系统列
func IsSystemColumn(name string) bool {
	return strings.HasPrefix(name, "_")
}

// 支持的字段类型
const (
	TypeString    = "string"
	TypeInt32     = "int32"
	TypeInt64     = "int64"
	TypeFloat32   = "float32"
	TypeFloat64   = "float64"
	TypeBool      = "bool"
	TypeDate      = "date"
	TypeTimestamp = "timestamp"
	TypeDecimal   = "decimal(38,9)"
	TypeBinary    = "binary"
)

// 常见的类型别名，规范化到上表
var typeAliases = map[string]string{
	"integer": TypeInt32,
	"int":     TypeInt32,
	"long":    TypeInt64,
	"float":   TypeFloat32,
	"double":  TypeFloat64,
	"boolean": TypeBool,
	"decimal": TypeDecimal,
}

// NormalizeType 规范化字段类型名；不认识的类型返回错误。
// list<T>、map<K,V>、struct<...> 原样保留（容器内部类型由目录实现校验）。
func NormalizeType(t string) (string, error) {
	lt := strings.ToLower(strings.TrimSpace(t))
	if alias, ok := typeAliases[lt]; ok {
		return alias, nil
	}
	switch lt {
	case TypeString, TypeInt32, TypeInt64, TypeFloat32, TypeFloat64,
		TypeBool, TypeDate, TypeTimestamp, TypeDecimal, TypeBinary:
		return lt, nil
	}
	if strings.HasPrefix(lt, "list<") || strings.HasPrefix(lt, "map<") ||
		strings.HasPrefix(lt, "struct<") || strings.HasPrefix(lt, "decimal(") {
		return lt, nil
	}
	return "", fmt.Errorf("unsupported field type: %s", t)
}

// NewSchema 由用户字段构造完整表结构（系统列 + 用户列）。
// 用户字段按名称排序，保证同一定义生成同一结构。
func NewSchema(userFields map[string]Field) (*Schema, error) {
	fields := SystemFields()

	names := make([]string, 0, len(userFields))
	for name := range userFields {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if IsSystemColumn(name) {
			return nil, fmt.Errorf("column name %s is reserved", name)
		}
		f := userFields[name]
		normalized, err := NormalizeType(f.Type)
		if err != nil {
			return nil, err
		}
		fields = append(fields, Field{Name: name, Type: normalized, Required: f.Required})
	}

	return &Schema{Fields: fields}, nil
}

// FieldNames 按结构顺序返回全部列名
func (s *Schema) FieldNames() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// UserFields 返回用户列（跳过系统列）
func (s *Schema) UserFields() []Field {
	var fields []Field
	for _, f := range s.Fields {
		if !IsSystemColumn(f.Name) {
			fields = append(fields, f)
		}
	}
	return fields
}

// Field 按名称查找字段
func (s *Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// CastValue 将值转换到字段类型；nil 对可空字段合法。
// JSON 解码产生的 float64/string 在这里收敛到目录类型。
func CastValue(f Field, value interface{}) (interface{}, error) {
	if value == nil {
		if f.Required {
			return nil, &ErrTypeMismatch{Field: f.Name, Type: f.Type, Value: nil}
		}
		return nil, nil
	}

	switch f.Type {
	case TypeString:
		if s, ok := value.(string); ok {
			return s, nil
		}
		return fmt.Sprintf("%v", value), nil
	case TypeInt32:
		switch v := value.(type) {
		case int32:
			return v, nil
		case int:
			return int32(v), nil
		case int64:
			return int32(v), nil
		case float64:
			return int32(v), nil
		case float32:
			return int32(v), nil
		}
	case TypeInt64:
		switch v := value.(type) {
		case int64:
			return v, nil
		case int:
			return int64(v), nil
		case int32:
			return int64(v), nil
		case float64:
			return int64(v), nil
		}
	case TypeFloat32:
		switch v := value.(type) {
		case float32:
			return v, nil
		case float64:
			return float32(v), nil
		case int:
			return float32(v), nil
		case int64:
			return float32(v), nil
		}
	case TypeFloat64, TypeDecimal:
		switch v := value.(type) {
		case float64:
			return v, nil
		case float32:
			return float64(v), nil
		case int:
			return float64(v), nil
		case int32:
			return float64(v), nil
		case int64:
			return float64(v), nil
		case string:
			// decimal 以字符串传输时原样保留
			if f.Type == TypeDecimal {
				return v, nil
			}
		}
	case TypeBool:
		switch v := value.(type) {
		case bool:
			return v, nil
		// 引擎扫描结果里布尔列可能以 0/1 返回
		case int:
			return v != 0, nil
		case int64:
			return v != 0, nil
		case float64:
			return v != 0, nil
		}
	case TypeDate, TypeTimestamp:
		switch v := value.(type) {
		case time.Time:
			return v.UTC(), nil
		case string:
			// "NaT" 等哨兵值按 null 处理
			if v == "" || v == "NaT" {
				return nil, nil
			}
			for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
				if t, err := time.Parse(layout, v); err == nil {
					return t.UTC(), nil
				}
			}
		}
	case TypeBinary:
		switch v := value.(type) {
		case []byte:
			return v, nil
		case string:
			return []byte(v), nil
		}
	default:
		// list / map / struct：保留解码后的原生容器
		switch value.(type) {
		case []interface{}, map[string]interface{}:
			return value, nil
		}
	}

	return nil, &ErrTypeMismatch{Field: f.Name, Type: f.Type, Value: value}
}

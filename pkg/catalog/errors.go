package catalog

import "fmt"

// 目录领域错误

// ErrTableNotFound 表不存在错误
type ErrTableNotFound struct {
	Identifier string
}

func (e *ErrTableNotFound) Error() string {
	return fmt.Sprintf("table %s not found", e.Identifier)
}

// ErrTableExists 表已存在错误
type ErrTableExists struct {
	Identifier string
}

func (e *ErrTableExists) Error() string {
	return fmt.Sprintf("table %s already exists", e.Identifier)
}

// ErrNamespaceNotFound 命名空间不存在错误
type ErrNamespaceNotFound struct {
	Namespace string
}

func (e *ErrNamespaceNotFound) Error() string {
	return fmt.Sprintf("namespace %s not found", e.Namespace)
}

// ErrNamespaceNotEmpty 命名空间非空错误
type ErrNamespaceNotEmpty struct {
	Namespace string
	Tables    int
}

func (e *ErrNamespaceNotEmpty) Error() string {
	return fmt.Sprintf("namespace %s is not empty: %d tables remain", e.Namespace, e.Tables)
}

// ErrCommitConflict 提交冲突错误：并发写者抢先推进了元数据指针
type ErrCommitConflict struct {
	Identifier string
	Reason     string
}

func (e *ErrCommitConflict) Error() string {
	return fmt.Sprintf("commit conflict on table %s: %s", e.Identifier, e.Reason)
}

// ErrPurgeUnsupported 目录不支持 purge 删除
type ErrPurgeUnsupported struct {
	CatalogType string
}

func (e *ErrPurgeUnsupported) Error() string {
	return fmt.Sprintf("catalog %s does not support purge on drop", e.CatalogType)
}

// ErrTypeMismatch 值与字段类型不匹配错误
type ErrTypeMismatch struct {
	Field string
	Type  string
	Value interface{}
}

func (e *ErrTypeMismatch) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("field %s is required but value is null", e.Field)
	}
	return fmt.Sprintf("cannot cast value %v (%T) to %s for field %s", e.Value, e.Value, e.Type, e.Field)
}

// 辅助函数

// NewErrTableNotFound 创建表不存在错误
func NewErrTableNotFound(identifier string) *ErrTableNotFound {
	return &ErrTableNotFound{Identifier: identifier}
}

// NewErrTableExists 创建表已存在错误
func NewErrTableExists(identifier string) *ErrTableExists {
	return &ErrTableExists{Identifier: identifier}
}

// NewErrNamespaceNotFound 创建命名空间不存在错误
func NewErrNamespaceNotFound(namespace string) *ErrNamespaceNotFound {
	return &ErrNamespaceNotFound{Namespace: namespace}
}

// NewErrCommitConflict 创建提交冲突错误
func NewErrCommitConflict(identifier, reason string) *ErrCommitConflict {
	return &ErrCommitConflict{Identifier: identifier, Reason: reason}
}

package catalog

import (
	"fmt"
	"strings"
)

// ExprOp 目录原生过滤表达式支持的比较算子。
// 注意：不含 like，行级删除不支持模糊匹配。
type ExprOp string

const (
	OpEq  ExprOp = "eq"
	OpNe  ExprOp = "ne"
	OpGt  ExprOp = "gt"
	OpGte ExprOp = "gte"
	OpLt  ExprOp = "lt"
	OpLte ExprOp = "lte"
	OpIn  ExprOp = "in"
)

// Term 表达式中的一个原子条件
type Term struct {
	Field string      `json:"field"`
	Op    ExprOp      `json:"op"`
	Value interface{} `json:"value"`
}

// Expression 目录原生行过滤表达式：所有原子条件 AND 连接
type Expression struct {
	Terms []Term `json:"terms"`
}

// And 追加一个原子条件并返回自身
func (e *Expression) And(field string, op ExprOp, value interface{}) *Expression {
	e.Terms = append(e.Terms, Term{Field: field, Op: op, Value: value})
	return e
}

// String 返回表达式的可读形式（用于日志）
func (e *Expression) String() string {
	if e == nil || len(e.Terms) == 0 {
		return "<true>"
	}
	parts := make([]string, len(e.Terms))
	for i, t := range e.Terms {
		parts[i] = fmt.Sprintf("%s %s %v", t.Field, t.Op, t.Value)
	}
	return strings.Join(parts, " AND ")
}

// Matches 判断一行是否命中表达式。
// 目录实现用它来决定哪些行被行级删除重写。
func (e *Expression) Matches(row Row) bool {
	if e == nil {
		return true
	}
	for _, term := range e.Terms {
		if !term.matches(row) {
			return false
		}
	}
	return true
}

func (t Term) matches(row Row) bool {
	actual, ok := row[t.Field]
	if !ok || actual == nil {
		return false
	}

	switch t.Op {
	case OpEq:
		return compareValues(actual, t.Value) == 0
	case OpNe:
		return compareValues(actual, t.Value) != 0
	case OpGt:
		return compareValues(actual, t.Value) > 0
	case OpGte:
		return compareValues(actual, t.Value) >= 0
	case OpLt:
		return compareValues(actual, t.Value) < 0
	case OpLte:
		return compareValues(actual, t.Value) <= 0
	case OpIn:
		if values, ok := t.Value.([]interface{}); ok {
			for _, v := range values {
				if compareValues(actual, v) == 0 {
					return true
				}
			}
		}
		return false
	}
	return false
}

// compareValues 跨数值类型比较两个标量；非数值退化为字符串比较
func compareValues(a, b interface{}) int {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(fmt.Sprintf("%v", a), fmt.Sprintf("%v", b))
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

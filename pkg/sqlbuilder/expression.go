package sqlbuilder

import (
	"fmt"

	"github.com/kasuganosora/lakebase/pkg/catalog"
	"github.com/kasuganosora/lakebase/pkg/types"
)

// BuildExpression lowers request filters into the catalog's native row
// expression. Pattern matching cannot be expressed there, so like is
// rejected; callers must resolve it through a query first.
func BuildExpression(filters []types.Filter) (*catalog.Expression, error) {
	expr := &catalog.Expression{}
	for i := range filters {
		f := &filters[i]
		if !identifierPattern.MatchString(f.Field) {
			return nil, fmt.Errorf("invalid identifier: %q", f.Field)
		}
		var op catalog.ExprOp
		switch f.Operator {
		case "eq":
			op = catalog.OpEq
		case "ne":
			op = catalog.OpNe
		case "gt":
			op = catalog.OpGt
		case "gte":
			op = catalog.OpGte
		case "lt":
			op = catalog.OpLt
		case "lte":
			op = catalog.OpLte
		case "in":
			op = catalog.OpIn
		case "like":
			return nil, fmt.Errorf("operator like is not supported for row-level deletes; field %s", f.Field)
		default:
			return nil, fmt.Errorf("unsupported operator: %s", f.Operator)
		}
		expr.And(f.Field, op, f.Value)
	}
	return expr, nil
}

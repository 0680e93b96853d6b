package sqlbuilder

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/kasuganosora/lakebase/pkg/catalog"
	"github.com/kasuganosora/lakebase/pkg/types"
)

// identifierPattern is the only shape accepted for column names. Everything
// else is rejected before it can reach the SQL text; values always travel as
// bind parameters.
var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

var validCastTypes = map[string]string{
	"string":    "VARCHAR",
	"varchar":   "VARCHAR",
	"int":       "INTEGER",
	"integer":   "INTEGER",
	"int32":     "INTEGER",
	"bigint":    "BIGINT",
	"int64":     "BIGINT",
	"float":     "FLOAT",
	"double":    "DOUBLE",
	"decimal":   "DECIMAL(38,9)",
	"bool":      "BOOLEAN",
	"boolean":   "BOOLEAN",
	"date":      "DATE",
	"timestamp": "TIMESTAMP",
}

var validDateParts = map[string]bool{
	"year": true, "quarter": true, "month": true, "week": true,
	"day": true, "hour": true, "minute": true, "second": true,
	"dow": true, "doy": true,
}

// QueryBuilder accumulates SQL text and bind parameters in emission order.
type QueryBuilder struct {
	sql  strings.Builder
	args []interface{}
}

// BuildQuerySQL compiles a query request into one SQL statement over the
// given scan source. Versioned-read semantics: rows are deduplicated per
// _record_id keeping the highest _version, then soft-deleted rows are
// filtered out unless include_deleted is set. columns is the table's column
// list; when known it is projected explicitly so the window helper never
// leaks into results.
func BuildQuerySQL(scanSource string, columns []string, req *types.QueryRequest) (string, []interface{}, error) {
	b := &QueryBuilder{}

	currentCols := "*"
	if len(columns) > 0 {
		quoted := make([]string, len(columns))
		for i, col := range columns {
			q, err := quoteIdentifier(col)
			if err != nil {
				return "", nil, err
			}
			quoted[i] = q
		}
		currentCols = strings.Join(quoted, ", ")
	}

	b.sql.WriteString("WITH ranked AS (")
	b.sql.WriteString("SELECT *, ROW_NUMBER() OVER (PARTITION BY ")
	b.sql.WriteString(catalog.ColRecordID)
	b.sql.WriteString(" ORDER BY ")
	b.sql.WriteString(catalog.ColVersion)
	b.sql.WriteString(" DESC) AS rn FROM ")
	b.sql.WriteString(scanSource)
	b.sql.WriteString(" WHERE ")
	b.sql.WriteString(catalog.ColTenantID)
	b.sql.WriteString(" = ?")
	b.args = append(b.args, req.TenantID)
	b.sql.WriteString("), current AS (SELECT ")
	b.sql.WriteString(currentCols)
	b.sql.WriteString(" FROM ranked WHERE rn = 1")
	if !req.IncludeDeleted {
		b.sql.WriteString(" AND ")
		b.sql.WriteString(catalog.ColDeleted)
		b.sql.WriteString(" IS NOT TRUE")
	}
	b.sql.WriteString(") SELECT ")

	if req.Distinct {
		b.sql.WriteString("DISTINCT ")
	}

	if err := b.writeSelectList(req); err != nil {
		return "", nil, err
	}

	b.sql.WriteString(" FROM current")

	if err := b.writeWhere(req.Filters); err != nil {
		return "", nil, err
	}

	if len(req.GroupBy) > 0 {
		b.sql.WriteString(" GROUP BY ")
		for i, field := range req.GroupBy {
			if i > 0 {
				b.sql.WriteString(", ")
			}
			quoted, err := quoteIdentifier(field)
			if err != nil {
				return "", nil, err
			}
			b.sql.WriteString(quoted)
		}
	}

	if len(req.Having) > 0 {
		b.sql.WriteString(" HAVING ")
		if err := b.writeConditions(req.Having); err != nil {
			return "", nil, err
		}
	}

	if err := b.writeOrderBy(req.Sort); err != nil {
		return "", nil, err
	}

	if req.Limit > 0 {
		b.sql.WriteString(" LIMIT ?")
		b.args = append(b.args, req.Limit)
	}
	if req.Offset > 0 {
		b.sql.WriteString(" OFFSET ?")
		b.args = append(b.args, req.Offset)
	}

	return b.sql.String(), b.args, nil
}

// BuildCountSQL compiles a COUNT(*) over the current versions matching the
// filters. Used by hard delete to report how many rows will disappear.
func BuildCountSQL(scanSource, tenantID string, filters []types.Filter, includeDeleted bool) (string, []interface{}, error) {
	req := &types.QueryRequest{
		Filters:        filters,
		IncludeDeleted: includeDeleted,
		Aggregations: []types.AggregateField{
			{Function: "count", Alias: "cnt"},
		},
	}
	req.TenantID = tenantID
	return BuildQuerySQL(scanSource, nil, req)
}

// BuildSelectAllSQL compiles the statement used by mutation reads: every
// column of the current versions matching the filters.
func BuildSelectAllSQL(scanSource string, columns []string, tenantID string, filters []types.Filter, includeDeleted bool) (string, []interface{}, error) {
	req := &types.QueryRequest{
		Filters:        filters,
		IncludeDeleted: includeDeleted,
	}
	req.TenantID = tenantID
	return BuildQuerySQL(scanSource, columns, req)
}

func (b *QueryBuilder) writeSelectList(req *types.QueryRequest) error {
	if len(req.Aggregations) == 0 && len(req.Projection) == 0 {
		b.sql.WriteString("*")
		return nil
	}

	wrote := false
	write := func(expr string) {
		if wrote {
			b.sql.WriteString(", ")
		}
		b.sql.WriteString(expr)
		wrote = true
	}

	if len(req.Aggregations) > 0 {
		for i := range req.GroupBy {
			quoted, err := quoteIdentifier(req.GroupBy[i])
			if err != nil {
				return err
			}
			write(quoted)
		}
		for i := range req.Aggregations {
			expr, err := aggregateExpr(&req.Aggregations[i])
			if err != nil {
				return err
			}
			write(expr)
		}
		return nil
	}

	for i := range req.Projection {
		expr, args, err := projectionExpr(&req.Projection[i])
		if err != nil {
			return err
		}
		write(expr)
		b.args = append(b.args, args...)
	}
	return nil
}

func (b *QueryBuilder) writeWhere(filters []types.Filter) error {
	if len(filters) == 0 {
		return nil
	}
	b.sql.WriteString(" WHERE ")
	return b.writeConditions(filters)
}

func (b *QueryBuilder) writeConditions(filters []types.Filter) error {
	for i := range filters {
		if i > 0 {
			b.sql.WriteString(" AND ")
		}
		if err := b.writeCondition(&filters[i]); err != nil {
			return err
		}
	}
	return nil
}

func (b *QueryBuilder) writeCondition(f *types.Filter) error {
	quoted, err := quoteIdentifier(f.Field)
	if err != nil {
		return err
	}
	b.sql.WriteString(quoted)

	if f.Value == nil {
		switch f.Operator {
		case "eq":
			b.sql.WriteString(" IS NULL")
			return nil
		case "ne":
			b.sql.WriteString(" IS NOT NULL")
			return nil
		default:
			return fmt.Errorf("operator %s does not accept null for field %s", f.Operator, f.Field)
		}
	}

	switch f.Operator {
	case "eq":
		b.sql.WriteString(" = ?")
	case "ne":
		b.sql.WriteString(" != ?")
	case "gt":
		b.sql.WriteString(" > ?")
	case "gte":
		b.sql.WriteString(" >= ?")
	case "lt":
		b.sql.WriteString(" < ?")
	case "lte":
		b.sql.WriteString(" <= ?")
	case "like":
		b.sql.WriteString(" LIKE ?")
	case "in":
		values, ok := f.Value.([]interface{})
		if !ok || len(values) == 0 {
			return fmt.Errorf("in operator requires a non-empty list for field %s", f.Field)
		}
		b.sql.WriteString(" IN (")
		for i, v := range values {
			if i > 0 {
				b.sql.WriteString(", ")
			}
			b.sql.WriteString("?")
			b.args = append(b.args, v)
		}
		b.sql.WriteString(")")
		return nil
	default:
		return fmt.Errorf("unsupported operator: %s", f.Operator)
	}

	b.args = append(b.args, f.Value)
	return nil
}

func (b *QueryBuilder) writeOrderBy(sort []types.SortField) error {
	if len(sort) == 0 {
		return nil
	}
	b.sql.WriteString(" ORDER BY ")
	for i := range sort {
		if i > 0 {
			b.sql.WriteString(", ")
		}
		quoted, err := quoteIdentifier(sort[i].Field)
		if err != nil {
			return err
		}
		b.sql.WriteString(quoted)
		if sort[i].Order == "desc" {
			b.sql.WriteString(" DESC")
		} else {
			b.sql.WriteString(" ASC")
		}
		if sort[i].NullsFirst != nil {
			if *sort[i].NullsFirst {
				b.sql.WriteString(" NULLS FIRST")
			} else {
				b.sql.WriteString(" NULLS LAST")
			}
		}
	}
	return nil
}

// projectionExpr compiles one projection entry. Transformations nest from the
// inside out: trim, case, substring, date functions, cast.
func projectionExpr(p *types.Projection) (string, []interface{}, error) {
	if p.Expr == nil {
		quoted, err := quoteIdentifier(p.Column)
		if err != nil {
			return "", nil, err
		}
		return quoted, nil, nil
	}

	f := p.Expr
	expr, err := quoteIdentifier(f.Field)
	if err != nil {
		return "", nil, err
	}
	var args []interface{}

	if f.Trim {
		expr = fmt.Sprintf("TRIM(%s)", expr)
	}
	if f.Upper {
		expr = fmt.Sprintf("UPPER(%s)", expr)
	}
	if f.Lower {
		expr = fmt.Sprintf("LOWER(%s)", expr)
	}
	if len(f.Substring) == 2 {
		expr = fmt.Sprintf("SUBSTRING(%s, %d, %d)", expr, f.Substring[0], f.Substring[1])
	}
	if f.DateTrunc != "" {
		if !validDateParts[f.DateTrunc] {
			return "", nil, fmt.Errorf("invalid date_trunc part: %s", f.DateTrunc)
		}
		expr = fmt.Sprintf("DATE_TRUNC('%s', %s)", f.DateTrunc, expr)
	}
	if f.Extract != "" {
		if !validDateParts[f.Extract] {
			return "", nil, fmt.Errorf("invalid extract part: %s", f.Extract)
		}
		expr = fmt.Sprintf("EXTRACT(%s FROM %s)", f.Extract, expr)
	}
	if f.DateFormat != "" {
		expr = fmt.Sprintf("STRFTIME(%s, ?)", expr)
		args = append(args, f.DateFormat)
	}
	if f.Cast != "" {
		sqlType, ok := validCastTypes[strings.ToLower(f.Cast)]
		if !ok {
			return "", nil, fmt.Errorf("invalid cast type: %s", f.Cast)
		}
		expr = fmt.Sprintf("CAST(%s AS %s)", expr, sqlType)
	}

	alias := f.Alias
	if alias == "" {
		alias = f.Field
	}
	quotedAlias, err := quoteIdentifier(alias)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("%s AS %s", expr, quotedAlias), args, nil
}

func aggregateExpr(a *types.AggregateField) (string, error) {
	alias, err := quoteIdentifier(a.Alias)
	if err != nil {
		return "", err
	}

	if a.Function == "count" && (a.Field == nil || *a.Field == "") {
		return fmt.Sprintf("COUNT(*) AS %s", alias), nil
	}

	field, err := quoteIdentifier(*a.Field)
	if err != nil {
		return "", err
	}

	switch a.Function {
	case "count", "sum", "avg", "min", "max":
		fn := strings.ToUpper(a.Function)
		if a.Distinct {
			return fmt.Sprintf("%s(DISTINCT %s) AS %s", fn, field, alias), nil
		}
		return fmt.Sprintf("%s(%s) AS %s", fn, field, alias), nil
	case "median":
		return fmt.Sprintf("MEDIAN(%s) AS %s", field, alias), nil
	case "percentile":
		return fmt.Sprintf("PERCENTILE_CONT(%g) WITHIN GROUP (ORDER BY %s) AS %s", *a.PercentileValue, field, alias), nil
	}
	return "", fmt.Errorf("unsupported aggregate function: %s", a.Function)
}

// quoteIdentifier validates and double-quotes a column name.
func quoteIdentifier(name string) (string, error) {
	if !identifierPattern.MatchString(name) {
		return "", fmt.Errorf("invalid identifier: %q", name)
	}
	return `"` + name + `"`, nil
}

package sqlbuilder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kasuganosora/lakebase/pkg/types"
)

func queryReq(tenant string) *types.QueryRequest {
	req := &types.QueryRequest{}
	req.TenantID = tenant
	req.Namespace = "default"
	req.Table = "users"
	return req
}

func TestBuildQuerySQLBaseShape(t *testing.T) {
	req := queryReq("t1")
	sql, args, err := BuildQuerySQL("scan_src", []string{"_tenant_id", "_record_id", "_version", "_deleted", "name"}, req)
	require.NoError(t, err)

	assert.Contains(t, sql, "ROW_NUMBER() OVER (PARTITION BY _record_id ORDER BY _version DESC)")
	assert.Contains(t, sql, "FROM scan_src WHERE _tenant_id = ?")
	assert.Contains(t, sql, "rn = 1 AND _deleted IS NOT TRUE")
	assert.Equal(t, []interface{}{"t1"}, args)
}

func TestBuildQuerySQLIncludeDeleted(t *testing.T) {
	req := queryReq("t1")
	req.IncludeDeleted = true
	sql, _, err := BuildQuerySQL("s", nil, req)
	require.NoError(t, err)
	assert.NotContains(t, sql, "_deleted IS NOT TRUE")
}

func TestBuildQuerySQLFiltersAreParameterized(t *testing.T) {
	req := queryReq("t1")
	req.Filters = []types.Filter{
		{Field: "status", Operator: "eq", Value: "active"},
		{Field: "age", Operator: "gte", Value: 18},
		{Field: "name", Operator: "like", Value: "al%"},
	}
	sql, args, err := BuildQuerySQL("s", nil, req)
	require.NoError(t, err)

	assert.Contains(t, sql, `"status" = ?`)
	assert.Contains(t, sql, `"age" >= ?`)
	assert.Contains(t, sql, `"name" LIKE ?`)
	assert.Equal(t, []interface{}{"t1", "active", 18, "al%"}, args)
}

func TestBuildQuerySQLInjectionStaysInArgs(t *testing.T) {
	payload := "' OR 1=1 --"
	req := queryReq(payload)
	req.Filters = []types.Filter{{Field: "name", Operator: "eq", Value: payload}}

	sql, args, err := BuildQuerySQL("s", nil, req)
	require.NoError(t, err)
	assert.NotContains(t, sql, payload)
	assert.Equal(t, []interface{}{payload, payload}, args)
}

func TestBuildQuerySQLRejectsBadIdentifiers(t *testing.T) {
	req := queryReq("t1")
	req.Filters = []types.Filter{{Field: "name; DROP TABLE users", Operator: "eq", Value: "x"}}
	_, _, err := BuildQuerySQL("s", nil, req)
	assert.Error(t, err)

	req = queryReq("t1")
	req.Sort = []types.SortField{{Field: `a"b`}}
	_, _, err = BuildQuerySQL("s", nil, req)
	assert.Error(t, err)
}

func TestBuildQuerySQLInOperator(t *testing.T) {
	req := queryReq("t1")
	req.Filters = []types.Filter{{Field: "id", Operator: "in", Value: []interface{}{"a", "b", "c"}}}
	sql, args, err := BuildQuerySQL("s", nil, req)
	require.NoError(t, err)
	assert.Contains(t, sql, `"id" IN (?, ?, ?)`)
	assert.Equal(t, []interface{}{"t1", "a", "b", "c"}, args)
}

func TestBuildQuerySQLNullComparisons(t *testing.T) {
	req := queryReq("t1")
	req.Filters = []types.Filter{
		{Field: "a", Operator: "eq", Value: nil},
		{Field: "b", Operator: "ne", Value: nil},
	}
	sql, args, err := BuildQuerySQL("s", nil, req)
	require.NoError(t, err)
	assert.Contains(t, sql, `"a" IS NULL`)
	assert.Contains(t, sql, `"b" IS NOT NULL`)
	assert.Equal(t, []interface{}{"t1"}, args)
}

func TestBuildQuerySQLGroupByHaving(t *testing.T) {
	total := "amount"
	req := queryReq("t1")
	req.GroupBy = []string{"category"}
	req.Aggregations = []types.AggregateField{
		{Field: &total, Function: "sum", Alias: "total"},
	}
	req.Having = []types.Filter{{Field: "total", Operator: "gt", Value: 100}}

	sql, args, err := BuildQuerySQL("s", nil, req)
	require.NoError(t, err)
	assert.Contains(t, sql, `SELECT "category", SUM("amount") AS "total"`)
	assert.Contains(t, sql, `GROUP BY "category"`)
	assert.Contains(t, sql, `HAVING "total" > ?`)
	assert.Equal(t, []interface{}{"t1", 100}, args)
}

func TestBuildQuerySQLAggregates(t *testing.T) {
	field := "price"
	p := 0.95
	req := queryReq("t1")
	req.Aggregations = []types.AggregateField{
		{Function: "count", Alias: "n"},
		{Field: &field, Function: "count", Alias: "prices", Distinct: true},
		{Field: &field, Function: "median", Alias: "mid"},
		{Field: &field, Function: "percentile", Alias: "p95", PercentileValue: &p},
	}
	sql, _, err := BuildQuerySQL("s", nil, req)
	require.NoError(t, err)
	assert.Contains(t, sql, `COUNT(*) AS "n"`)
	assert.Contains(t, sql, `COUNT(DISTINCT "price") AS "prices"`)
	assert.Contains(t, sql, `MEDIAN("price") AS "mid"`)
	assert.Contains(t, sql, `PERCENTILE_CONT(0.95) WITHIN GROUP (ORDER BY "price") AS "p95"`)
}

func TestBuildQuerySQLProjectionTransforms(t *testing.T) {
	req := queryReq("t1")
	req.Projection = []types.Projection{
		{Column: "id"},
		{Expr: &types.ProjectionField{Field: "name", Upper: true, Alias: "upper_name"}},
		{Expr: &types.ProjectionField{Field: "note", Trim: true, Substring: []int{1, 5}}},
		{Expr: &types.ProjectionField{Field: "created", DateTrunc: "month", Alias: "m"}},
		{Expr: &types.ProjectionField{Field: "created", Extract: "year", Alias: "y"}},
		{Expr: &types.ProjectionField{Field: "amount", Cast: "decimal", Alias: "amt"}},
	}
	sql, _, err := BuildQuerySQL("s", nil, req)
	require.NoError(t, err)
	assert.Contains(t, sql, `UPPER("name") AS "upper_name"`)
	assert.Contains(t, sql, `SUBSTRING(TRIM("note"), 1, 5) AS "note"`)
	assert.Contains(t, sql, `DATE_TRUNC('month', "created") AS "m"`)
	assert.Contains(t, sql, `EXTRACT(year FROM "created") AS "y"`)
	assert.Contains(t, sql, `CAST("amount" AS DECIMAL(38,9)) AS "amt"`)
}

func TestBuildQuerySQLDateFormatParam(t *testing.T) {
	req := queryReq("t1")
	req.Projection = []types.Projection{
		{Expr: &types.ProjectionField{Field: "created", DateFormat: "%Y-%m", Alias: "ym"}},
	}
	req.Filters = []types.Filter{{Field: "x", Operator: "eq", Value: 1}}

	sql, args, err := BuildQuerySQL("s", nil, req)
	require.NoError(t, err)
	assert.Contains(t, sql, `STRFTIME("created", ?) AS "ym"`)
	// 参数顺序跟随 SQL 文本：租户、格式串、过滤值
	assert.Equal(t, []interface{}{"t1", "%Y-%m", 1}, args)
}

func TestBuildQuerySQLSortLimitOffset(t *testing.T) {
	nf := true
	req := queryReq("t1")
	req.Sort = []types.SortField{
		{Field: "age", Order: "desc"},
		{Field: "name", NullsFirst: &nf},
	}
	req.Limit = 10
	req.Offset = 20

	sql, args, err := BuildQuerySQL("s", nil, req)
	require.NoError(t, err)
	assert.Contains(t, sql, `ORDER BY "age" DESC, "name" ASC NULLS FIRST`)
	assert.Contains(t, sql, "LIMIT ? OFFSET ?")
	assert.Equal(t, []interface{}{"t1", 10, 20}, args)
}

func TestBuildQuerySQLDistinct(t *testing.T) {
	req := queryReq("t1")
	req.Distinct = true
	req.Projection = []types.Projection{{Column: "city"}}
	sql, _, err := BuildQuerySQL("s", nil, req)
	require.NoError(t, err)
	assert.Contains(t, sql, `SELECT DISTINCT "city"`)
}

func TestBuildCountSQL(t *testing.T) {
	sql, args, err := BuildCountSQL("s", "t1", []types.Filter{{Field: "a", Operator: "eq", Value: 1}}, true)
	require.NoError(t, err)
	assert.Contains(t, sql, `COUNT(*) AS "cnt"`)
	assert.NotContains(t, sql, "_deleted IS NOT TRUE")
	assert.Equal(t, []interface{}{"t1", 1}, args)
}

func TestBuildExpressionRejectsLike(t *testing.T) {
	_, err := BuildExpression([]types.Filter{{Field: "name", Operator: "like", Value: "a%"}})
	assert.Error(t, err)

	expr, err := BuildExpression([]types.Filter{
		{Field: "status", Operator: "eq", Value: "x"},
		{Field: "n", Operator: "in", Value: []interface{}{1, 2}},
	})
	require.NoError(t, err)
	assert.Len(t, expr.Terms, 2)
}

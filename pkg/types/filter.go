package types

import (
	"encoding/json"
	"fmt"
)

// Filter is a single filter condition. All filters in a request are ANDed
// together; there is no nesting and no OR.
type Filter struct {
	Field    string      `json:"field"`
	Operator string      `json:"operator"` // eq, ne, gt, gte, lt, lte, in, like
	Value    interface{} `json:"value"`
}

var validOperators = map[string]bool{
	"eq": true, "ne": true, "gt": true, "gte": true,
	"lt": true, "lte": true, "in": true, "like": true,
}

// Validate checks the filter's field and operator.
func (f *Filter) Validate() error {
	if f.Field == "" {
		return fmt.Errorf("filter field is required")
	}
	if !validOperators[f.Operator] {
		return fmt.Errorf("invalid operator '%s'. Must be one of: eq, ne, gt, gte, lt, lte, in, like", f.Operator)
	}
	if f.Operator == "in" {
		if _, ok := f.Value.([]interface{}); !ok {
			return fmt.Errorf("in operator requires a list value for field %s", f.Field)
		}
	}
	return nil
}

// ValidateFilters validates a filter list.
func ValidateFilters(filters []Filter) error {
	for i := range filters {
		if err := filters[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

// SortField describes one ORDER BY entry.
type SortField struct {
	Field      string `json:"field"`
	Order      string `json:"order"` // asc (default) or desc
	NullsFirst *bool  `json:"nulls_first,omitempty"`
}

// Validate checks the sort field.
func (s *SortField) Validate() error {
	if s.Field == "" {
		return fmt.Errorf("sort field is required")
	}
	switch s.Order {
	case "", "asc", "desc":
		return nil
	}
	return fmt.Errorf("invalid sort order '%s'. Must be asc or desc", s.Order)
}

// ProjectionField is a projection entry with alias and transformations.
type ProjectionField struct {
	Field string `json:"field"`
	Alias string `json:"alias,omitempty"`
	Cast  string `json:"cast,omitempty"`

	Upper     bool   `json:"upper,omitempty"`
	Lower     bool   `json:"lower,omitempty"`
	Trim      bool   `json:"trim,omitempty"`
	Substring []int  `json:"substring,omitempty"` // (start, length)

	DateFormat string `json:"date_format,omitempty"`
	DateTrunc  string `json:"date_trunc,omitempty"`
	Extract    string `json:"extract,omitempty"`
}

// Projection is either a plain column name or a ProjectionField object.
type Projection struct {
	Column string
	Expr   *ProjectionField
}

// UnmarshalJSON accepts both the string and the object form.
func (p *Projection) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		p.Column = s
		return nil
	}
	var f ProjectionField
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("projection must be a column name or a field object: %w", err)
	}
	p.Expr = &f
	return nil
}

// MarshalJSON writes back the original shape.
func (p Projection) MarshalJSON() ([]byte, error) {
	if p.Expr != nil {
		return json.Marshal(p.Expr)
	}
	return json.Marshal(p.Column)
}

// Validate checks the projection entry.
func (p *Projection) Validate() error {
	if p.Expr == nil {
		if p.Column == "" {
			return fmt.Errorf("projection column name is required")
		}
		return nil
	}
	if p.Expr.Field == "" {
		return fmt.Errorf("projection field is required")
	}
	if len(p.Expr.Substring) != 0 && len(p.Expr.Substring) != 2 {
		return fmt.Errorf("substring requires (start, length) for field %s", p.Expr.Field)
	}
	return nil
}

// AggregateField is one aggregation in the SELECT list.
type AggregateField struct {
	Field           *string  `json:"field"` // nil means COUNT(*)
	Function        string   `json:"function"`
	Alias           string   `json:"alias"`
	Distinct        bool     `json:"distinct,omitempty"`
	PercentileValue *float64 `json:"percentile_value,omitempty"`
}

var validAggregates = map[string]bool{
	"count": true, "sum": true, "avg": true, "min": true,
	"max": true, "median": true, "percentile": true,
}

// Validate checks the aggregation definition.
func (a *AggregateField) Validate() error {
	if !validAggregates[a.Function] {
		return fmt.Errorf("invalid function '%s'. Must be one of: count, sum, avg, min, max, median, percentile", a.Function)
	}
	if a.Alias == "" {
		return fmt.Errorf("aggregation alias is required")
	}
	if a.Function != "count" && (a.Field == nil || *a.Field == "") {
		return fmt.Errorf("%s requires a field", a.Function)
	}
	if a.Function == "percentile" {
		if a.PercentileValue == nil {
			return fmt.Errorf("percentile_value required for percentile function")
		}
		if *a.PercentileValue < 0 || *a.PercentileValue > 1 {
			return fmt.Errorf("percentile_value must be between 0 and 1")
		}
	}
	return nil
}

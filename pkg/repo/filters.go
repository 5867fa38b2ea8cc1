package repo

import (
	"fmt"
	"reflect"
	"strings"
)

// Filter renders a single comparison or boolean-combination expression
// against a column name, numbering its placeholders starting at argOffset,
// and exposes the values it carries in the same order they appear in the
// rendered string. The filter tree composes via And/Or the same way the
// Sigma detection tree (internal/services/detection) composes selections;
// the two are independent implementations of the same shape because one
// renders SQL and the other evaluates in memory.
type Filter interface {
	String(column string, argOffset int) string
	Value() []any
}

type comparisonFilter struct {
	op    string
	value any
}

func (f comparisonFilter) String(column string, argOffset int) string {
	return fmt.Sprintf("%s %s $%d", column, f.op, argOffset)
}

func (f comparisonFilter) Value() []any {
	return []any{f.value}
}

func Eq(v any) Filter     { return comparisonFilter{op: "=", value: v} }
func NotEq(v any) Filter  { return comparisonFilter{op: "!=", value: v} }
func Gt(v any) Filter     { return comparisonFilter{op: ">", value: v} }
func Gte(v any) Filter    { return comparisonFilter{op: ">=", value: v} }
func Lt(v any) Filter     { return comparisonFilter{op: "<", value: v} }
func Lte(v any) Filter    { return comparisonFilter{op: "<=", value: v} }
func Like(v any) Filter   { return comparisonFilter{op: "LIKE", value: v} }
func NotLike(v any) Filter { return comparisonFilter{op: "NOT LIKE", value: v} }

type inFilter struct {
	values []any
	not    bool
}

// In builds an `IN (...)` filter from any slice type; panics on a
// non-slice argument.
func In(values any) Filter { return newInFilter(values, false) }

// NotIn builds a `NOT IN (...)` filter.
func NotIn(values any) Filter { return newInFilter(values, true) }

func newInFilter(values any, not bool) Filter {
	rv := reflect.ValueOf(values)
	if rv.Kind() != reflect.Slice {
		panic("repo: In/NotIn requires a slice argument")
	}
	out := make([]any, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		out[i] = rv.Index(i).Interface()
	}
	return inFilter{values: out, not: not}
}

func (f inFilter) String(column string, argOffset int) string {
	placeholders := make([]string, len(f.values))
	for i := range f.values {
		placeholders[i] = fmt.Sprintf("$%d", argOffset+i)
	}
	op := "IN"
	if f.not {
		op = "NOT IN"
	}
	return fmt.Sprintf("%s %s (%s)", column, op, strings.Join(placeholders, ", "))
}

func (f inFilter) Value() []any {
	return f.values
}

type boolFilter struct {
	op      string
	filters []Filter
}

// And combines filters with AND, always wrapped in parentheses.
func And(filters ...Filter) Filter { return boolFilter{op: "AND", filters: filters} }

// Or combines filters with OR, always wrapped in parentheses.
func Or(filters ...Filter) Filter { return boolFilter{op: "OR", filters: filters} }

func (f boolFilter) String(column string, argOffset int) string {
	parts := make([]string, len(f.filters))
	for i, sub := range f.filters {
		parts[i] = sub.String(column, argOffset)
		argOffset += len(sub.Value())
	}
	return "(" + strings.Join(parts, " "+f.op+" ") + ")"
}

func (f boolFilter) Value() []any {
	var out []any
	for _, sub := range f.filters {
		out = append(out, sub.Value()...)
	}
	return out
}

// FieldFilter pairs a typed column identifier with the filter to apply to
// it, used by callers that build query-specific filter sets keyed by an
// enum of allowed columns rather than raw strings.
type FieldFilter[F ~string] struct {
	Column F
	Filter Filter
}

// SortField pairs a typed column identifier with a direction, resolved
// against a field->SQL-column mapping so callers never interpolate
// caller-controlled strings into ORDER BY.
type SortField[F ~string] struct {
	Column    F
	Ascending bool
}

// SortBy renders an ORDER BY clause from sort fields resolved through
// mapping; unknown fields are skipped rather than erroring, since an
// invalid sort key is a caller bug the query should quietly ignore.
func SortBy[F ~string](fields []SortField[F], mapping map[F]string) string {
	var parts []string
	for _, f := range fields {
		col, ok := mapping[f.Column]
		if !ok {
			continue
		}
		dir := "DESC"
		if f.Ascending {
			dir = "ASC"
		}
		parts = append(parts, col+" "+dir)
	}
	if len(parts) == 0 {
		return ""
	}
	return "ORDER BY " + strings.Join(parts, ", ")
}

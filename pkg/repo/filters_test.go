package repo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEqFilter(t *testing.T) {
	filter := Eq("test")
	assert.Equal(t, "column = $1", filter.String("column", 1))
	assert.Equal(t, []any{"test"}, filter.Value())
}

func TestInFilter(t *testing.T) {
	t.Run("with values", func(t *testing.T) {
		filter := In([]string{"a", "b", "c"})
		assert.Equal(t, "column IN ($1, $2, $3)", filter.String("column", 1))
		assert.Equal(t, []any{"a", "b", "c"}, filter.Value())
	})

	t.Run("panic on non-slice", func(t *testing.T) {
		assert.Panics(t, func() {
			In("not a slice")
		})
	})
}

func TestOrFilter(t *testing.T) {
	filter := Or(Eq("warn"), Eq("error"))
	assert.Equal(t, "(column = $1 OR column = $2)", filter.String("column", 1))
	assert.Equal(t, []any{"warn", "error"}, filter.Value())
}

func TestAndFilter(t *testing.T) {
	filter := And(Gte(10), Lte(20))
	assert.Equal(t, "(column >= $1 AND column <= $2)", filter.String("column", 1))
	assert.Equal(t, []any{10, 20}, filter.Value())
}

func TestComplexNestedFilters(t *testing.T) {
	filter := And(
		Or(Eq("error"), Eq("critical")),
		Gte(100),
	)
	assert.Equal(t, "((column = $1 OR column = $2) AND column >= $3)", filter.String("column", 1))
	assert.Equal(t, []any{"error", "critical", 100}, filter.Value())
}

func TestSortBy(t *testing.T) {
	type logField string
	const (
		fieldTime  logField = "time"
		fieldLevel logField = "level"
	)
	mapping := map[logField]string{
		fieldTime:  "logs.time",
		fieldLevel: "logs.level",
	}

	clause := SortBy([]SortField[logField]{
		{Column: fieldTime, Ascending: false},
		{Column: fieldLevel, Ascending: true},
	}, mapping)

	assert.Equal(t, "ORDER BY logs.time DESC, logs.level ASC", clause)
	assert.Equal(t, "", SortBy[logField](nil, mapping))
}

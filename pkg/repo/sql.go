// Package repo provides small, composable SQL-building helpers shared by
// the persistence layer: parameterized insert/update statement assembly,
// batch-insert value lists, limit/offset formatting, and a boolean filter
// expression tree. These are pure string/slice functions with no driver
// dependency so they can be unit tested without a live database.
package repo

import (
	"fmt"
	"strings"
)

// Insert builds a parameterized INSERT statement for tableName with the
// given fields, optionally returning columns.
func Insert(tableName string, fields []string, returning ...string) string {
	placeholders := make([]string, len(fields))
	for i := range fields {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	q := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		tableName, strings.Join(fields, ", "), strings.Join(placeholders, ", "),
	)
	if len(returning) > 0 {
		q += " RETURNING " + strings.Join(returning, ", ")
	}
	return q
}

// Update builds a parameterized UPDATE statement. where clauses are passed
// through verbatim (already carrying their own placeholder numbers) and
// ANDed together.
func Update(tableName string, fields []string, where ...string) string {
	sets := make([]string, len(fields))
	for i, f := range fields {
		sets[i] = fmt.Sprintf("%s = $%d", f, i+1)
	}
	q := fmt.Sprintf("UPDATE %s SET %s", tableName, strings.Join(sets, ", "))
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	return q
}

// BatchInsertQueryN appends a `($1,$2),($3,$4),...` VALUES list to
// baseQuery for the given rows, numbering placeholders across the whole
// batch, and returns the flattened argument list alongside it.
func BatchInsertQueryN(baseQuery string, rows [][]interface{}) (string, []interface{}) {
	if len(rows) == 0 {
		return baseQuery, nil
	}
	var args []interface{}
	groups := make([]string, len(rows))
	n := 1
	for i, row := range rows {
		placeholders := make([]string, len(row))
		for j := range row {
			placeholders[j] = fmt.Sprintf("$%d", n)
			n++
		}
		groups[i] = "(" + strings.Join(placeholders, ",") + ")"
		args = append(args, row...)
	}
	return baseQuery + " " + strings.Join(groups, ","), args
}

// FormatLimitOffset renders a LIMIT/OFFSET clause, omitting either piece
// that is non-positive.
func FormatLimitOffset(limit, offset int) string {
	var b strings.Builder
	if limit > 0 {
		fmt.Fprintf(&b, "LIMIT %d ", limit)
	}
	if offset > 0 {
		fmt.Fprintf(&b, "OFFSET %d ", offset)
	}
	return strings.TrimSpace(b.String())
}

package repo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInsert(t *testing.T) {
	tests := []struct {
		name      string
		tableName string
		fields    []string
		returning []string
		want      string
	}{
		{
			name:      "basic insert",
			tableName: "logs",
			fields:    []string{"project_id", "message", "level"},
			returning: []string{"id", "time"},
			want:      "INSERT INTO logs (project_id, message, level) VALUES ($1, $2, $3) RETURNING id, time",
		},
		{
			name:      "single field",
			tableName: "notifications",
			fields:    []string{"title"},
			returning: []string{"id"},
			want:      "INSERT INTO notifications (title) VALUES ($1) RETURNING id",
		},
		{
			name:      "no returning",
			tableName: "alert_history",
			fields:    []string{"rule_id", "window_start"},
			want:      "INSERT INTO alert_history (rule_id, window_start) VALUES ($1, $2)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Insert(tt.tableName, tt.fields, tt.returning...)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUpdate(t *testing.T) {
	tests := []struct {
		name      string
		tableName string
		fields    []string
		where     []string
		want      string
	}{
		{
			name:      "basic update",
			tableName: "api_keys",
			fields:    []string{"last_used_at"},
			where:     []string{"id = $2"},
			want:      "UPDATE api_keys SET last_used_at = $1 WHERE id = $2",
		},
		{
			name:      "multiple conditions",
			tableName: "sessions",
			fields:    []string{"expires_at", "user_agent"},
			where:     []string{"token = $3", "user_id = $4"},
			want:      "UPDATE sessions SET expires_at = $1, user_agent = $2 WHERE token = $3 AND user_id = $4",
		},
		{
			name:      "no conditions",
			tableName: "system_settings",
			fields:    []string{"value", "updated_at"},
			where:     []string{},
			want:      "UPDATE system_settings SET value = $1, updated_at = $2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Update(tt.tableName, tt.fields, tt.where...)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBatchInsertQueryN(t *testing.T) {
	tests := []struct {
		name      string
		baseQuery string
		rows      [][]interface{}
		wantQuery string
		wantArgs  []interface{}
	}{
		{
			name:      "empty rows",
			baseQuery: "INSERT INTO logs (project_id, message) VALUES",
			rows:      [][]interface{}{},
			wantQuery: "INSERT INTO logs (project_id, message) VALUES",
			wantArgs:  nil,
		},
		{
			name:      "single row",
			baseQuery: "INSERT INTO logs (project_id, message) VALUES",
			rows: [][]interface{}{
				{"p1", "boom"},
			},
			wantQuery: "INSERT INTO logs (project_id, message) VALUES ($1,$2)",
			wantArgs:  []interface{}{"p1", "boom"},
		},
		{
			name:      "multiple rows",
			baseQuery: "INSERT INTO logs (project_id, message) VALUES",
			rows: [][]interface{}{
				{"p1", "a"},
				{"p1", "b"},
				{"p1", "c"},
			},
			wantQuery: "INSERT INTO logs (project_id, message) VALUES ($1,$2),($3,$4),($5,$6)",
			wantArgs:  []interface{}{"p1", "a", "p1", "b", "p1", "c"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotQuery, gotArgs := BatchInsertQueryN(tt.baseQuery, tt.rows)
			assert.Equal(t, tt.wantQuery, gotQuery)
			assert.Equal(t, tt.wantArgs, gotArgs)
		})
	}
}

func TestFormatLimitOffset(t *testing.T) {
	assert.Equal(t, "LIMIT 10", FormatLimitOffset(10, 0))
	assert.Equal(t, "LIMIT 10 OFFSET 20", FormatLimitOffset(10, 20))
	assert.Equal(t, "", FormatLimitOffset(0, 0))
	assert.Equal(t, "OFFSET 5", FormatLimitOffset(0, 5))
}

package migrations

import (
	"reflect"
	"testing"
)

func TestSplitStatements(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			"single statement",
			"CREATE TABLE t (x Int64) ENGINE = MergeTree ORDER BY x;",
			[]string{"CREATE TABLE t (x Int64) ENGINE = MergeTree ORDER BY x"},
		},
		{
			"comments and blanks stripped",
			"-- header\n\nCREATE TABLE a (x Int64)\nORDER BY x;\n-- trailing\nCREATE TABLE b (y Int64);\n",
			[]string{"CREATE TABLE a (x Int64)\nORDER BY x", "CREATE TABLE b (y Int64)"},
		},
		{
			"empty input",
			"-- only a comment\n",
			nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := splitStatements(tt.input); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("splitStatements:\n got %q\nwant %q", got, tt.want)
			}
		})
	}
}

func TestDatabaseFromDSN(t *testing.T) {
	db, err := databaseFromDSN("clickhouse://localhost:9000/analytics")
	if err != nil {
		t.Fatalf("databaseFromDSN failed: %v", err)
	}
	if db != "analytics" {
		t.Errorf("Database: got %q, want analytics", db)
	}

	if _, err := databaseFromDSN("clickhouse://localhost:9000"); err == nil {
		t.Error("Expected error for DSN without a database")
	}
}

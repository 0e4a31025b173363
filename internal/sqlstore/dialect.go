// Package sqlstore is the shared database/sql engine behind the
// postgres, sqlite, and mysql State Store backends. Each backend needs
// one CRUD implementation with fmt.Sprintf-interpolated table names and
// driver-specific placeholder syntax; with a Store interface this large,
// triplicating that CRUD across three packages would be pure
// duplication. Dialect captures the one axis of real variation
// (placeholder syntax, autoincrement column syntax, upsert syntax) so
// the CRUD bodies are written once here and each store/<backend>
// package supplies only its Dialect and *sql.DB.
package sqlstore

import "strconv"

// Dialect isolates the SQL syntax differences between backends.
type Dialect struct {
	// Name identifies the dialect for logging and migration selection.
	Name string

	// Placeholder returns the parameter marker for the i'th bound
	// argument (1-indexed), e.g. "$1" for postgres, "?" for sqlite/mysql.
	Placeholder func(i int) string

	// AutoIncrementPK is the column type+constraint clause for the
	// state_changes surrogate key.
	AutoIncrementPK string

	// BooleanType is the column type used for tombstoned.
	BooleanType string

	// TimestampType is the column type used for all time.Time columns.
	TimestampType string

	// UpsertClause returns the ON CONFLICT / ON DUPLICATE KEY clause
	// appended to an INSERT INTO <table> (...) VALUES (...) statement to
	// make it an upsert over conflictCols, replacing every column not in
	// conflictCols with its excluded/proposed value.
	UpsertClause func(table string, conflictCols, allCols []string) string
}

// Postgres is the PostgreSQL dialect (lib/pq).
var Postgres = Dialect{
	Name:            "postgres",
	Placeholder:     func(i int) string { return "$" + strconv.Itoa(i) },
	AutoIncrementPK: "BIGSERIAL PRIMARY KEY",
	BooleanType:     "BOOLEAN",
	TimestampType:   "TIMESTAMPTZ",
	UpsertClause: func(table string, conflictCols, allCols []string) string {
		clause := "ON CONFLICT (" + join(conflictCols, ", ") + ") DO UPDATE SET "
		for i, c := range allCols {
			if i > 0 {
				clause += ", "
			}
			clause += c + " = EXCLUDED." + c
		}
		return clause
	},
}

// SQLite is the SQLite dialect (mattn/go-sqlite3).
var SQLite = Dialect{
	Name:            "sqlite",
	Placeholder:     func(int) string { return "?" },
	AutoIncrementPK: "INTEGER PRIMARY KEY AUTOINCREMENT",
	BooleanType:     "BOOLEAN",
	TimestampType:   "DATETIME",
	UpsertClause: func(table string, conflictCols, allCols []string) string {
		clause := "ON CONFLICT(" + join(conflictCols, ", ") + ") DO UPDATE SET "
		for i, c := range allCols {
			if i > 0 {
				clause += ", "
			}
			clause += c + " = excluded." + c
		}
		return clause
	},
}

// MySQL is the MySQL/MariaDB dialect (go-sql-driver/mysql).
var MySQL = Dialect{
	Name:            "mysql",
	Placeholder:     func(int) string { return "?" },
	AutoIncrementPK: "BIGINT PRIMARY KEY AUTO_INCREMENT",
	BooleanType:     "BOOLEAN",
	TimestampType:   "DATETIME",
	UpsertClause: func(table string, conflictCols, allCols []string) string {
		clause := "ON DUPLICATE KEY UPDATE "
		for i, c := range allCols {
			if i > 0 {
				clause += ", "
			}
			clause += c + " = VALUES(" + c + ")"
		}
		return clause
	},
}

func join(items []string, sep string) string {
	out := ""
	for i, it := range items {
		if i > 0 {
			out += sep
		}
		out += it
	}
	return out
}

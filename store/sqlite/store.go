// Package sqlite is the SQLite State Store backend (mattn/go-sqlite3),
// for single-node and development deployments where a full PostgreSQL
// or MySQL server is overkill. Built the same way as store/postgres:
// internal/sqlstore does the CRUD, this package only pins the dialect.
package sqlite

import (
	"database/sql"

	"github.com/vertexflow/coordinator/internal/sqlstore"
	"github.com/vertexflow/coordinator/store"
)

// TableConfig re-exports sqlstore.TableConfig.
type TableConfig = sqlstore.TableConfig

// DefaultTableConfig returns the default table configuration.
func DefaultTableConfig() TableConfig { return sqlstore.DefaultTableConfig() }

// MigrationUp returns the SQL to create every coordinator table.
func MigrationUp(config TableConfig) string { return sqlstore.MigrationUp(sqlstore.SQLite, config) }

// MigrationDown returns the SQL to drop every coordinator table.
func MigrationDown(config TableConfig) string { return sqlstore.MigrationDown(config) }

// New creates a SQLite store with default table names. db must be opened
// with the mattn/go-sqlite3 driver ("sqlite3").
func New(db *sql.DB) store.Store {
	return sqlstore.New(db, sqlstore.SQLite)
}

// NewWithConfig creates a SQLite store with custom table names.
func NewWithConfig(db *sql.DB, config TableConfig) store.Store {
	return sqlstore.NewWithConfig(db, sqlstore.SQLite, config)
}

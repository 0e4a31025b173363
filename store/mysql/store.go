// Package mysql is the MySQL/MariaDB State Store backend
// (go-sql-driver/mysql). Built the same way as store/postgres:
// internal/sqlstore does the CRUD, this package only pins the dialect.
package mysql

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
func MigrationUp(config TableConfig) string { return sqlstore.MigrationUp(sqlstore.MySQL, config) }

// MigrationDown returns the SQL to drop every coordinator table.
func MigrationDown(config TableConfig) string { return sqlstore.MigrationDown(config) }

// New creates a MySQL store with default table names. db must be opened
// with the go-sql-driver/mysql driver ("mysql"), with
// parseTime=true set in the DSN so DATETIME columns scan into
// time.Time.
func New(db *sql.DB) store.Store {
	return sqlstore.New(db, sqlstore.MySQL)
}

// NewWithConfig creates a MySQL store with custom table names.
func NewWithConfig(db *sql.DB, config TableConfig) store.Store {
	return sqlstore.NewWithConfig(db, sqlstore.MySQL, config)
}

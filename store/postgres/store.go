// Package postgres is the PostgreSQL State Store backend (lib/pq): a
// thin wrapper exposing a *sql.DB-backed constructor, with the actual
// CRUD supplied by internal/sqlstore.
package postgres

import (
	"database/sql"

	"github.com/vertexflow/coordinator/internal/sqlstore"
	"github.com/vertexflow/coordinator/store"
)

// New creates a PostgreSQL store with default table names. db must be
// opened with the lib/pq driver ("postgres").
func New(db *sql.DB) store.Store {
	return sqlstore.New(db, sqlstore.Postgres)
}

// NewWithConfig creates a PostgreSQL store with custom table names.
func NewWithConfig(db *sql.DB, config TableConfig) store.Store {
	return sqlstore.NewWithConfig(db, sqlstore.Postgres, config)
}

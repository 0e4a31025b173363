package postgres

import "github.com/vertexflow/coordinator/internal/sqlstore"

// TableConfig re-exports sqlstore.TableConfig so callers configuring a
// postgres.Store never need to import internal/sqlstore directly.
type TableConfig = sqlstore.TableConfig

// DefaultTableConfig returns the default table configuration.
func DefaultTableConfig() TableConfig { return sqlstore.DefaultTableConfig() }

// MigrationUp returns the SQL to create every coordinator table.
func MigrationUp(config TableConfig) string { return sqlstore.MigrationUp(sqlstore.Postgres, config) }

// MigrationDown returns the SQL to drop every coordinator table.
func MigrationDown(config TableConfig) string { return sqlstore.MigrationDown(config) }

// Package migrations generates SQL migration files for the coordination
// core's eight tables across PostgreSQL, MySQL/MariaDB, and SQLite,
// rendering them from internal/sqlstore's dialect-parameterized DDL
// rather than maintaining a second, independent copy of the schema.
package migrations

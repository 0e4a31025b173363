package migrations

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/vertexflow/coordinator/internal/sqlstore"
)

var identifierRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

// validateIdentifier ensures a table name contains only safe characters
// for SQL, since table names are interpolated into the generated SQL
// text rather than passed as bound parameters.
func validateIdentifier(name, fieldName string) error {
	if name == "" {
		return fmt.Errorf("%s cannot be empty", fieldName)
	}
	if !identifierRegex.MatchString(name) {
		return fmt.Errorf("%s must start with a letter and contain only letters, numbers, and underscores (got: %s)", fieldName, name)
	}
	return nil
}

func validateConfig(config *Config) error {
	fields := map[string]string{
		"Namespaces":     config.Tables.Namespaces,
		"Graphs":         config.Tables.Graphs,
		"Content":        config.Tables.Content,
		"Tasks":          config.Tables.Tasks,
		"Executors":      config.Tables.Executors,
		"StateChanges":   config.Tables.StateChanges,
		"SchedulerState": config.Tables.SchedulerState,
		"StreamOffsets":  config.Tables.StreamOffsets,
	}
	for field, name := range fields {
		if err := validateIdentifier(name, field); err != nil {
			return err
		}
	}
	return nil
}

// Config configures migration generation for the coordination core's
// eight tables.
type Config struct {
	// OutputFolder is the directory where the migration file will be written.
	OutputFolder string

	// OutputFilename is the name of the migration file.
	OutputFilename string

	// Tables names the eight tables the migration creates or drops.
	Tables sqlstore.TableConfig
}

// DefaultConfig returns the default configuration for coordinator
// migrations: sqlstore's default table names, written to
// ./migrations/<timestamp>_init_coordinator.sql.
func DefaultConfig() Config {
	timestamp := time.Now().Format("20060102150405")
	return Config{
		OutputFolder:   "migrations",
		OutputFilename: fmt.Sprintf("%s_init_coordinator.sql", timestamp),
		Tables:         sqlstore.DefaultTableConfig(),
	}
}

// dialectByName resolves the sqlstore.Dialect matching a driver name, so
// callers can select "postgres", "mysql", or "sqlite" without importing
// sqlstore's dialect variables directly.
func dialectByName(name string) (sqlstore.Dialect, error) {
	switch name {
	case "postgres":
		return sqlstore.Postgres, nil
	case "mysql":
		return sqlstore.MySQL, nil
	case "sqlite":
		return sqlstore.SQLite, nil
	default:
		return sqlstore.Dialect{}, fmt.Errorf("unknown dialect %q", name)
	}
}

// Generate writes an up-migration file for the named dialect
// ("postgres", "mysql", or "sqlite"), rendering it from
// sqlstore.MigrationUp rather than hand-authored SQL, so the generated
// file can never drift from the schema the Store backends actually run
// against. Use GenerateDown to produce the matching rollback file.
func Generate(dialectName string, config *Config) error {
	dialect, err := dialectByName(dialectName)
	if err != nil {
		return err
	}
	return write(config, fmt.Sprintf(`-- Coordination core schema migration (up)
-- Generated: %s
-- Database: %s

%s`, time.Now().Format(time.RFC3339), dialect.Name, sqlstore.MigrationUp(dialect, config.Tables)))
}

// GenerateDown writes the rollback file matching a prior Generate call,
// dropping every table Generate created, in dependency order.
func GenerateDown(config *Config) error {
	return write(config, fmt.Sprintf(`-- Coordination core schema migration (down)
-- Generated: %s

%s`, time.Now().Format(time.RFC3339), sqlstore.MigrationDown(config.Tables)))
}

func write(config *Config, sql string) error {
	if err := validateConfig(config); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := os.MkdirAll(config.OutputFolder, 0o755); err != nil {
		return fmt.Errorf("failed to create output folder: %w", err)
	}
	outputPath := filepath.Join(config.OutputFolder, config.OutputFilename)
	if err := os.WriteFile(outputPath, []byte(sql), 0o600); err != nil {
		return fmt.Errorf("failed to write migration file: %w", err)
	}
	return nil
}

// GeneratePostgres writes a PostgreSQL up-migration file.
func GeneratePostgres(config *Config) error { return Generate("postgres", config) }

// GenerateMySQL writes a MySQL/MariaDB up-migration file.
func GenerateMySQL(config *Config) error { return Generate("mysql", config) }

// GenerateSQLite writes a SQLite up-migration file.
func GenerateSQLite(config *Config) error { return Generate("sqlite", config) }

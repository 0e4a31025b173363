//go:build integration

package migrations_test

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/vertexflow/coordinator/internal/sqlstore"
	"github.com/vertexflow/coordinator/pkg/migrations"
)

func TestIntegrationPostgres(t *testing.T) {
	dbURL := os.Getenv("POSTGRES_URL")
	if dbURL == "" {
		t.Skip("POSTGRES_URL not set, skipping PostgreSQL integration test")
	}

	tmpDir := t.TempDir()
	config := migrations.Config{
		OutputFolder:   tmpDir,
		OutputFilename: "postgres_integration.sql",
		Tables:         sqlstore.DefaultTableConfig(),
	}
	if err := migrations.GeneratePostgres(&config); err != nil {
		t.Fatalf("failed to generate migration: %v", err)
	}
	migrationSQL, err := os.ReadFile(filepath.Join(tmpDir, config.OutputFilename))
	if err != nil {
		t.Fatalf("failed to read migration file: %v", err)
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		t.Fatalf("failed to connect to postgres: %v", err)
	}
	defer db.Close()

	if _, err := db.Exec(string(migrationSQL)); err != nil {
		t.Fatalf("failed to execute migration: %v", err)
	}
	defer db.Exec("DROP TABLE IF EXISTS " + config.Tables.StreamOffsets + ", " + config.Tables.SchedulerState + ", " +
		config.Tables.StateChanges + ", " + config.Tables.Executors + ", " + config.Tables.Tasks + ", " +
		config.Tables.Content + ", " + config.Tables.Graphs + ", " + config.Tables.Namespaces)

	if _, err := db.Exec("INSERT INTO "+config.Tables.Namespaces+" (name, created_at) VALUES ($1, NOW())", "docs"); err != nil {
		t.Fatalf("failed to insert namespace: %v", err)
	}
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM "+config.Tables.Namespaces+" WHERE name = $1", "docs").Scan(&count); err != nil {
		t.Fatalf("failed to query namespace: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 namespace row, got %d", count)
	}
}

func TestIntegrationMySQL(t *testing.T) {
	dbURL := os.Getenv("MYSQL_URL")
	if dbURL == "" {
		t.Skip("MYSQL_URL not set, skipping MySQL integration test")
	}

	tmpDir := t.TempDir()
	config := migrations.Config{
		OutputFolder:   tmpDir,
		OutputFilename: "mysql_integration.sql",
		Tables:         sqlstore.DefaultTableConfig(),
	}
	if err := migrations.GenerateMySQL(&config); err != nil {
		t.Fatalf("failed to generate migration: %v", err)
	}
	migrationSQL, err := os.ReadFile(filepath.Join(tmpDir, config.OutputFilename))
	if err != nil {
		t.Fatalf("failed to read migration file: %v", err)
	}

	db, err := sql.Open("mysql", dbURL+"?multiStatements=true&parseTime=true")
	if err != nil {
		t.Fatalf("failed to connect to mysql: %v", err)
	}
	defer db.Close()

	if _, err := db.Exec(string(migrationSQL)); err != nil {
		t.Fatalf("failed to execute migration: %v", err)
	}

	if _, err := db.Exec("INSERT INTO "+config.Tables.Namespaces+" (name, created_at) VALUES (?, NOW())", "docs"); err != nil {
		t.Fatalf("failed to insert namespace: %v", err)
	}
}

func TestIntegrationSQLite(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	config := migrations.Config{
		OutputFolder:   tmpDir,
		OutputFilename: "sqlite_integration.sql",
		Tables:         sqlstore.DefaultTableConfig(),
	}
	if err := migrations.GenerateSQLite(&config); err != nil {
		t.Fatalf("failed to generate migration: %v", err)
	}
	migrationSQL, err := os.ReadFile(filepath.Join(tmpDir, config.OutputFilename))
	if err != nil {
		t.Fatalf("failed to read migration file: %v", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		t.Fatalf("failed to connect to sqlite: %v", err)
	}
	defer db.Close()

	if _, err := db.Exec(string(migrationSQL)); err != nil {
		t.Fatalf("failed to execute migration: %v", err)
	}

	if _, err := db.Exec("INSERT INTO "+config.Tables.Namespaces+" (name, created_at) VALUES (?, datetime('now'))", "docs"); err != nil {
		t.Fatalf("failed to insert namespace: %v", err)
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM "+config.Tables.Namespaces+" WHERE name = ?", "docs").Scan(&count); err != nil {
		t.Fatalf("failed to query namespace: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 namespace row, got %d", count)
	}
}

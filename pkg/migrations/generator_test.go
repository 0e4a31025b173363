package migrations

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vertexflow/coordinator/internal/sqlstore"
)

func TestGeneratePostgres(t *testing.T) {
	tmpDir := t.TempDir()

	config := Config{
		OutputFolder:   tmpDir,
		OutputFilename: "test_migration.sql",
		Tables:         sqlstore.DefaultTableConfig(),
	}

	if err := GeneratePostgres(&config); err != nil {
		t.Fatalf("GeneratePostgres failed: %v", err)
	}

	sql := readGenerated(t, tmpDir, config.OutputFilename)

	requiredStrings := []string{
		"CREATE TABLE coordinator_namespaces",
		"CREATE TABLE coordinator_graphs",
		"CREATE TABLE coordinator_content",
		"CREATE TABLE coordinator_tasks",
		"CREATE TABLE coordinator_executors",
		"CREATE TABLE coordinator_state_changes",
		"CREATE TABLE coordinator_scheduler_state",
		"CREATE TABLE coordinator_stream_offsets",
		"TIMESTAMPTZ",
		"BIGSERIAL PRIMARY KEY",
	}
	for _, required := range requiredStrings {
		if !strings.Contains(sql, required) {
			t.Errorf("generated postgres migration missing %q", required)
		}
	}
}

func TestGeneratePostgres_CustomNames(t *testing.T) {
	tmpDir := t.TempDir()
	tables := sqlstore.DefaultTableConfig()
	tables.Namespaces = "custom_namespaces"

	config := Config{
		OutputFolder:   tmpDir,
		OutputFilename: "custom_migration.sql",
		Tables:         tables,
	}
	if err := GeneratePostgres(&config); err != nil {
		t.Fatalf("GeneratePostgres failed: %v", err)
	}

	sql := readGenerated(t, tmpDir, config.OutputFilename)
	if !strings.Contains(sql, "CREATE TABLE custom_namespaces") {
		t.Error("custom namespaces table name not used")
	}
}

func TestGenerateMySQL(t *testing.T) {
	tmpDir := t.TempDir()
	config := Config{
		OutputFolder:   tmpDir,
		OutputFilename: "test_migration.sql",
		Tables:         sqlstore.DefaultTableConfig(),
	}
	if err := GenerateMySQL(&config); err != nil {
		t.Fatalf("GenerateMySQL failed: %v", err)
	}

	sql := readGenerated(t, tmpDir, config.OutputFilename)
	requiredStrings := []string{
		"CREATE TABLE coordinator_tasks",
		"DATETIME",
		"AUTO_INCREMENT",
	}
	for _, required := range requiredStrings {
		if !strings.Contains(sql, required) {
			t.Errorf("generated mysql migration missing %q", required)
		}
	}
}

func TestGenerateSQLite(t *testing.T) {
	tmpDir := t.TempDir()
	config := Config{
		OutputFolder:   tmpDir,
		OutputFilename: "test_migration.sql",
		Tables:         sqlstore.DefaultTableConfig(),
	}
	if err := GenerateSQLite(&config); err != nil {
		t.Fatalf("GenerateSQLite failed: %v", err)
	}

	sql := readGenerated(t, tmpDir, config.OutputFilename)
	requiredStrings := []string{
		"CREATE TABLE coordinator_executors",
		"INTEGER PRIMARY KEY",
	}
	for _, required := range requiredStrings {
		if !strings.Contains(sql, required) {
			t.Errorf("generated sqlite migration missing %q", required)
		}
	}
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.OutputFolder != "migrations" {
		t.Errorf("expected OutputFolder 'migrations', got %q", config.OutputFolder)
	}
	if config.Tables.Namespaces != "coordinator_namespaces" {
		t.Errorf("expected default Namespaces table, got %q", config.Tables.Namespaces)
	}
	if !strings.HasSuffix(config.OutputFilename, "_init_coordinator.sql") {
		t.Errorf("expected OutputFilename to end with '_init_coordinator.sql', got %q", config.OutputFilename)
	}
}

func TestValidateIdentifier(t *testing.T) {
	tests := []struct {
		name      string
		value     string
		wantError bool
	}{
		{"valid simple", "table_name", false},
		{"valid with numbers", "table123", false},
		{"empty string", "", true},
		{"starts with number", "123table", true},
		{"contains spaces", "table name", true},
		{"contains dash", "table-name", true},
		{"sql injection attempt", "table; DROP TABLE users--", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateIdentifier(tt.value, "TableName")
			if tt.wantError && err == nil {
				t.Errorf("expected error for %q, got nil", tt.value)
			}
			if !tt.wantError && err != nil {
				t.Errorf("expected no error for %q, got: %v", tt.value, err)
			}
		})
	}
}

func TestGeneratePostgres_InvalidConfig(t *testing.T) {
	tmpDir := t.TempDir()
	tables := sqlstore.DefaultTableConfig()
	tables.Namespaces = "schema'; DROP TABLE users--"

	config := Config{
		OutputFolder:   tmpDir,
		OutputFilename: "test.sql",
		Tables:         tables,
	}
	err := GeneratePostgres(&config)
	if err == nil {
		t.Fatal("expected error for invalid table name, got nil")
	}
	if !strings.Contains(err.Error(), "invalid configuration") {
		t.Errorf("expected error to mention 'invalid configuration', got: %v", err)
	}
}

func TestGenerateDown(t *testing.T) {
	tmpDir := t.TempDir()
	config := Config{
		OutputFolder:   tmpDir,
		OutputFilename: "down.sql",
		Tables:         sqlstore.DefaultTableConfig(),
	}
	if err := GenerateDown(&config); err != nil {
		t.Fatalf("GenerateDown failed: %v", err)
	}
	sql := readGenerated(t, tmpDir, config.OutputFilename)
	if !strings.Contains(sql, "DROP TABLE IF EXISTS coordinator_namespaces") {
		t.Error("generated down migration missing DROP TABLE for coordinator_namespaces")
	}
}

func TestGenerate_UnknownDialect(t *testing.T) {
	tmpDir := t.TempDir()
	config := Config{OutputFolder: tmpDir, OutputFilename: "x.sql", Tables: sqlstore.DefaultTableConfig()}
	if err := Generate("oracle", &config); err == nil {
		t.Fatal("expected error for unknown dialect, got nil")
	}
}

func readGenerated(t *testing.T, dir, filename string) string {
	t.Helper()
	content, err := os.ReadFile(filepath.Join(dir, filename))
	if err != nil {
		t.Fatalf("failed to read generated file: %v", err)
	}
	return string(content)
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vertexflow/coordinator/internal/sqlstore"
	"github.com/vertexflow/coordinator/pkg/migrations"
)

var (
	migrateDialect  string
	migrateOutput   string
	migrateFilename string
	migrateDown     bool
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Generate SQL migration files for the State Store schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigrate()
	},
}

func init() {
	migrateCmd.Flags().StringVar(&migrateDialect, "dialect", "postgres", "Target dialect: postgres, mysql, or sqlite")
	migrateCmd.Flags().StringVarP(&migrateOutput, "output", "o", "migrations", "Output folder for the migration file")
	migrateCmd.Flags().StringVarP(&migrateFilename, "filename", "f", "", "Output filename (default: timestamp-based; down.sql with --down)")
	migrateCmd.Flags().BoolVar(&migrateDown, "down", false, "Generate the rollback migration instead of the schema migration")
}

func runMigrate() error {
	cfg := migrations.Config{
		OutputFolder: migrateOutput,
		Tables:       sqlstore.DefaultTableConfig(),
	}

	if migrateDown {
		cfg.OutputFilename = migrateFilename
		if cfg.OutputFilename == "" {
			cfg.OutputFilename = "down.sql"
		}
		if err := migrations.GenerateDown(&cfg); err != nil {
			return fmt.Errorf("generate down migration: %w", err)
		}
		fmt.Printf("Generated rollback migration: %s/%s\n", cfg.OutputFolder, cfg.OutputFilename)
		return nil
	}

	if migrateFilename != "" {
		cfg.OutputFilename = migrateFilename
	} else {
		cfg = migrations.DefaultConfig()
		cfg.OutputFolder = migrateOutput
	}

	if err := migrations.Generate(migrateDialect, &cfg); err != nil {
		return fmt.Errorf("generate migration: %w", err)
	}
	fmt.Printf("Generated %s migration: %s/%s\n", migrateDialect, cfg.OutputFolder, cfg.OutputFilename)
	return nil
}

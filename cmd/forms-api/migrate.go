package main

import (
	"fmt"

	"forms-api/internal/config"
	"forms-api/internal/database"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	Long:  `Run all pending database migrations, or roll back with --down`,
	RunE:  runMigrate,
}

var (
	migrateDown    int
	migrateVersion bool
)

func init() {
	migrateCmd.Flags().IntVar(&migrateDown, "down", 0, "roll back this many migrations instead of applying")
	migrateCmd.Flags().BoolVar(&migrateVersion, "version", false, "print the applied migration version and exit")
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadDatabaseConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if migrateVersion {
		version, dirty, err := database.MigrationVersion(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		fmt.Printf("version=%d dirty=%t\n", version, dirty)
		return nil
	}

	if migrateDown > 0 {
		fmt.Printf("Rolling back %d migration(s)...\n", migrateDown)
		if err := database.RollbackMigrations(cfg.DatabaseURL, migrateDown); err != nil {
			return err
		}
		fmt.Println("✓ Rollback completed successfully")
		return nil
	}

	fmt.Println("Running database migrations...")
	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	fmt.Println("✓ Migrations completed successfully")
	return nil
}

package main

import (
	"context"
	"fmt"

	"forms-api/internal/config"
	"forms-api/internal/database"
	"forms-api/internal/observability/logger"
	"forms-api/internal/repo"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Cleanup expired idempotency keys",
	Long:  `Remove expired idempotency keys from the database`,
	RunE:  runCleanup,
}

func init() {
	rootCmd.AddCommand(cleanupCmd)
}

func runCleanup(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.LoadDatabaseConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(cfg.OTELServiceName, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Sync()

	log.Info(ctx, "starting idempotency keys cleanup", logger.Module("cleanup"), logger.Action("idempotency"))

	pool, err := database.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	idempotencyRepo := repo.NewIdempotencyRepo(pool)

	rowsDeleted, err := idempotencyRepo.CleanupExpired(ctx)
	if err != nil {
		log.Error(ctx, "cleanup failed", logger.Module("cleanup"), logger.Action("idempotency"), zap.Error(err))
		return fmt.Errorf("failed to cleanup expired keys: %w", err)
	}

	log.Info(ctx, "cleanup completed",
		logger.Module("cleanup"),
		logger.Action("idempotency"),
		zap.Int64("rows_deleted", rowsDeleted),
	)
	fmt.Printf("✓ Cleanup completed: %d expired keys removed\n", rowsDeleted)

	return nil
}

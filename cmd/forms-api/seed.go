package main

import (
	"context"
	"fmt"

	"forms-api/internal/config"
	"forms-api/internal/database"
	"forms-api/internal/domain"
	"forms-api/internal/observability/logger"
	"forms-api/internal/repo"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the permission catalogue and the admin group",
	Long: `Insert the default permission codes, ensure the admin group exists with
every code, and optionally assign users to it. Safe to run repeatedly.`,
	RunE: runSeed,
}

var seedAdminUsers []string

func init() {
	seedCmd.Flags().StringSliceVar(&seedAdminUsers, "admin-user", nil, "user id to place in the admin group (repeatable)")
	rootCmd.AddCommand(seedCmd)
}

func defaultCodes() []domain.PermissionCode {
	codes := make([]domain.PermissionCode, 0, len(domain.DefaultPermissions))
	for _, p := range domain.DefaultPermissions {
		codes = append(codes, p.Code)
	}
	return codes
}

func runSeed(cmd *cobra.Command, args []string) error {
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

	pool, err := database.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	groups := repo.NewGroupRepository(pool)

	if err := groups.EnsurePermissions(ctx, domain.DefaultPermissions); err != nil {
		return err
	}

	admin, err := groups.EnsureGroup(ctx, cfg.AdminGroupName)
	if err != nil {
		return err
	}
	if err := groups.GrantCodes(ctx, admin.ID, defaultCodes()); err != nil {
		return err
	}

	for _, userID := range seedAdminUsers {
		if err := groups.AssignUser(ctx, userID, admin.ID); err != nil {
			return err
		}
	}

	log.Info(ctx, "seed completed",
		logger.Module("seed"),
		logger.Action("run"),
		zap.String("admin_group_id", admin.ID),
		zap.Int("permissions", len(domain.DefaultPermissions)),
		zap.Int("admin_users", len(seedAdminUsers)),
	)
	fmt.Printf("✓ Seed completed: group %q (%s) holds %d permissions\n", admin.Name, admin.ID, len(domain.DefaultPermissions))
	return nil
}

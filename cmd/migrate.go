package cmd

import (
	"context"
	"fmt"
	"log"

	"mediapool-bot/internal/config"

	"github.com/spf13/cobra"
)

// NewMigrateCmd creates the migrate command
func NewMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the storage schema",
		Long:  "Create tables (SQL) or indexes (MongoDB) for the configured storage driver and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			ctx := cmd.Context()
			store, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() {
				if err := store.Close(context.Background()); err != nil {
					log.Printf("Warning: failed to close storage: %v", err)
				}
			}()

			if err := store.Migrate(ctx); err != nil {
				return err
			}
			log.Printf("Storage %s migrated", cfg.StorageDriver)
			return nil
		},
	}
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ayasync/backend/internal/database"
	"github.com/ayasync/backend/pkg/logger"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and seed the admin account",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := database.Connect(cfg.DB, cfg.Admin)
		if err != nil {
			return fmt.Errorf("migrating database: %w", err)
		}
		if sqlDB, err := db.DB(); err == nil {
			defer sqlDB.Close()
		}

		logger.Info("database_migrated", map[string]interface{}{
			"driver": cfg.DB.Driver,
		})
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

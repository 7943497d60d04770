package main

import (
	"github.com/spf13/cobra"

	"github.com/medishield/opdclaims/internal/config"
	"github.com/medishield/opdclaims/internal/infrastructure/database/postgres"
	"github.com/medishield/opdclaims/internal/infrastructure/monitoring/logging"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger, err := logging.NewLogger(logging.LogConfig{
				Level:       cfg.Log.Level,
				Format:      cfg.Log.Format,
				OutputPaths: outputPaths(cfg.Log.Output),
			})
			if err != nil {
				return err
			}

			conn, err := postgres.NewConnection(cmd.Context(), cfg.Database, logger)
			if err != nil {
				return err
			}
			defer conn.Close()

			return conn.RunMigrations(cfg.Database.MigrationPath)
		},
	}
}

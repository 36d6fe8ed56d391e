package main

import (
	"github.com/rpattn/entityhistory/internal/config"
	"github.com/rpattn/entityhistory/internal/db"

	"github.com/spf13/cobra"
)

func newMigrateCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Applies pending database migrations and exits",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, _, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			return db.RunMigrations(cfg.Database, newLogger(cfg.LogLevel))
		},
	}
}

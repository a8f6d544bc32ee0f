package main

import (
	"errors"

	"github.com/spf13/cobra"

	corecmd "github.com/m3rciful/relaybot/core/cmd"
	coredatabase "github.com/m3rciful/relaybot/core/database"
	"github.com/m3rciful/relaybot/core/logger"
)

func newMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending archive migrations and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := corecmd.LoadConfig(runnerOptions(*configPath))
			if err != nil {
				return err
			}
			if !cfg.Database.Enabled() {
				return errors.New("database.host is not set; nothing to migrate")
			}
			logger.InitLogger(cfg)
			defer func() { _ = logger.Shutdown() }()

			ctx := cmd.Context()
			db, err := coredatabase.Connect(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()
			return coredatabase.RunMigrations(ctx, cfg.Database)
		},
	}
}

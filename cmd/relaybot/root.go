package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/m3rciful/relaybot/core/bootstrap"
	"github.com/m3rciful/relaybot/core/buildinfo"
	corecmd "github.com/m3rciful/relaybot/core/cmd"
	coreconfig "github.com/m3rciful/relaybot/core/config"
	"github.com/m3rciful/relaybot/internal/app"
)

const (
	configEnvVar      = "CONFIG_PATH"
	defaultConfigPath = "configs/config.yaml"
)

func newRootCmd() *cobra.Command {
	var configPath string
	serve := newServeCmd(&configPath)

	cmd := &cobra.Command{
		Use:          "relaybot",
		Short:        "Telegram relay bot for orders, support requests and reviews",
		Version:      fmt.Sprintf("%s (%s) %s", buildinfo.Version, buildinfo.Commit, buildinfo.Date),
		SilenceUsage: true,
		RunE:         serve.RunE,
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Config file path (optional; falls back to $"+configEnvVar+" and "+defaultConfigPath+").")

	cmd.AddCommand(serve)
	cmd.AddCommand(newCheckCmd(&configPath))
	cmd.AddCommand(newMigrateCmd(&configPath))
	return cmd
}

func runnerOptions(configPath string) corecmd.Options {
	return corecmd.Options{
		ConfigPath:        configPath,
		ConfigEnvVar:      configEnvVar,
		DefaultConfigPath: defaultConfigPath,
		EnvFiles:          []string{".env"},
		Bootstrap:         bootstrapApp,
	}
}

func bootstrapApp(ctx context.Context, cfg *coreconfig.Config) (corecmd.TelegramApp, error) {
	infra, err := bootstrap.Run(ctx, bootstrap.Options{Config: cfg})
	if err != nil {
		return nil, err
	}
	a, err := app.New(cfg, infra)
	if err != nil {
		_ = infra.Close()
		return nil, err
	}
	return a, nil
}

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bot until interrupted (default)",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			return corecmd.Run(runnerOptions(*configPath))
		},
	}
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/m3rciful/relaybot/core/bootstrap"
	corecmd "github.com/m3rciful/relaybot/core/cmd"
	"github.com/m3rciful/relaybot/core/logger"
	coretelegram "github.com/m3rciful/relaybot/core/telegram"
)

// newCheckCmd verifies the deployment without serving updates: the token,
// the operator chat and every configured backend.
func newCheckCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify the token, operator chat access and backends, then exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := corecmd.LoadConfig(runnerOptions(*configPath))
			if err != nil {
				return err
			}
			defer func() { _ = logger.Shutdown() }()

			ctx := cmd.Context()
			infra, err := bootstrap.Run(ctx, bootstrap.Options{Config: cfg})
			if err != nil {
				return err
			}
			defer func() { _ = infra.Close() }()

			bot, err := coretelegram.NewBot(cfg)
			if err != nil {
				return err
			}
			if err := coretelegram.CheckOperatorChat(ctx, bot, cfg.Relay.OperatorChatID, cfg.Relay.StartupNotice); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok: @%s can post to chat %d (archive=%t events=%t)\n",
				bot.Me.Username, cfg.Relay.OperatorChatID, infra.DB != nil, infra.Redis != nil)
			return nil
		},
	}
}

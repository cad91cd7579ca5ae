package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"torrank/internal/daemon"
	"torrank/internal/logging"
	"torrank/internal/store"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var noLogFile bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the ranking API in the foreground",
		Long: `Run the ranking API in the foreground.

The daemon serves /api/* and /metrics on paths.api_bind, reloads rules when
the config file changes, and stops on SIGINT or SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			logger, err := logging.NewFromConfig(cfg, !noLogFile)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			st, err := store.Open(cfg)
			if err != nil {
				logger.Error("open store", logging.Error(err))
				return err
			}
			defer st.Close()

			watchPath := ""
			if ctx.configExists {
				watchPath = ctx.configPath
			}
			d, err := daemon.New(signalCtx, cfg, watchPath, st, logger)
			if err != nil {
				return fmt.Errorf("create daemon: %w", err)
			}
			return d.Run(signalCtx)
		},
	}
	cmd.Flags().BoolVar(&noLogFile, "no-log-file", false, "Log to stderr only")
	return cmd
}

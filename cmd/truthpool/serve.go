package main

import (
	"context"
	"errors"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/alanyoungcy/truthpool/internal/app"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the engine and its HTTP/WebSocket API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			logger := newLogger(cfg.LogLevel)
			slog.SetDefault(logger)

			logger.Info("truthpool starting",
				slog.String("config", opts.configPath),
				slog.String("store", cfg.Store.Backend),
			)

			application := app.New(cfg, logger)
			defer application.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("application exited with error", slog.String("error", err.Error()))
				return err
			}
			logger.Info("truthpool stopped")
			return nil
		},
	}
}

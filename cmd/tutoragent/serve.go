package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/szaher/tutoragent/internal/runtime"
	"github.com/szaher/tutoragent/internal/telemetry"
)

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long:  "Load configuration, build the agent and serve HTTP until SIGINT or SIGTERM.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Addr = addr
			}

			logger := telemetry.NewLogger(os.Stdout, cfg.LogLevel, cfg.Secrets()...)
			defer func() { _ = logger.Sync() }()

			rt, err := runtime.New(cfg, runtime.Options{Logger: logger})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger.Info("starting",
				zap.String("name", cfg.Name),
				zap.String("version", cfg.Version),
				zap.String("agent", cfg.Agent.Kind),
				zap.String("frontend_dir", cfg.FrontendDir),
				zap.String("manifest_path", cfg.Manifest.Path),
			)
			return rt.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides LISTEN_ADDR)")

	return cmd
}

package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hostline/concierge/api"
	"github.com/hostline/concierge/internal/app"
	"github.com/hostline/concierge/internal/config"
	"github.com/hostline/concierge/internal/log"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe() error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := log.New(log.Config{
		Level:     cfg.Log.Level,
		JSON:      cfg.Log.JSON,
		AddSource: cfg.Log.AddSource,
	})
	logger.Info("starting concierge", "version", AppVersion)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer a.Close()

	server := api.NewServer(a.Agent, a.Memory, a.Pool, a.CheckProvider, logger)
	return server.Run(ctx, cfg.Addr())
}

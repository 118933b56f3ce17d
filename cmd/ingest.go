package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hostline/concierge/internal/app"
	"github.com/hostline/concierge/internal/config"
	"github.com/hostline/concierge/internal/knowledge"
	"github.com/hostline/concierge/internal/log"
)

var ingestForce bool

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Load the starter knowledge corpus into the database",
	Long: `Ingest embeds the built-in business knowledge (properties, policies,
pricing) and stores it for retrieval. By default it refuses to run
against a non-empty corpus; pass --force to append anyway.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIngest()
	},
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestForce, "force", false,
		"ingest even if the corpus already has chunks")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest() error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := log.New(log.Config{
		Level:     cfg.Log.Level,
		JSON:      cfg.Log.JSON,
		AddSource: cfg.Log.AddSource,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer a.Close()

	count, err := a.Knowledge.Count(ctx)
	if err != nil {
		return fmt.Errorf("checking corpus: %w", err)
	}
	if count > 0 && !ingestForce {
		return fmt.Errorf("corpus already has %d chunks; use --force to append", count)
	}

	for _, chunk := range knowledge.SeedCorpus() {
		id, err := a.Knowledge.Ingest(ctx, chunk.Content, chunk.Metadata)
		if err != nil {
			return fmt.Errorf("ingesting chunk: %w", err)
		}
		logger.Info("ingested chunk", "id", id)
	}

	total, err := a.Knowledge.Count(ctx)
	if err != nil {
		return fmt.Errorf("counting corpus: %w", err)
	}
	fmt.Printf("Corpus ready: %d chunks\n", total)
	return nil
}

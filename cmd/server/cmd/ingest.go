package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/cultureradar/server/internal/config"
	"github.com/cultureradar/server/internal/storage/postgres"
)

var ingestTimeout time.Duration

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Run one external ingestion pass and exit",
	Long: `Fetch listings from every configured external source once, store the
unseen ones as pending events, print a per-source report and exit.

The same logic runs periodically inside "serve"; this command exists for
operational one-off runs and cron-style setups.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("config error: %w", err)
		}
		logger := config.NewLogger(cfg.Logging)

		pool, err := connectPool(cfg)
		if err != nil {
			return err
		}
		defer pool.Close()

		repo, err := postgres.NewRepository(pool)
		if err != nil {
			return fmt.Errorf("repository init failed: %w", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), ingestTimeout)
		defer cancel()

		report := newIngester(cfg, repo, logger).RunOnce(ctx)

		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(report)
	},
}

func init() {
	ingestCmd.Flags().DurationVar(&ingestTimeout, "timeout", 10*time.Minute, "overall deadline for the pass")
}

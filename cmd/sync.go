package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/creditlens/loanmarket-api/internal/catalog"
	"github.com/creditlens/loanmarket-api/internal/fred"
	"github.com/creditlens/loanmarket-api/internal/fredsync"
	"github.com/creditlens/loanmarket-api/internal/resilience"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync FRED series into Postgres",
	Long: `Fetches tracked FRED series and reconciles them into market.observations.

By default, syncs every series whose cadence says it is due.
Use --series to restrict to specific series IDs, --force to ignore
scheduling, and --start-date to override the fetch window.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("sync"); err != nil {
			return err
		}

		pool, err := marketPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		// Ensure migrations are current.
		if err := fredsync.Migrate(ctx, pool); err != nil {
			return eris.Wrap(err, "sync: migrate")
		}

		opts, err := parseSyncOpts(cmd)
		if err != nil {
			return err
		}

		engine := buildEngine(pool)

		zap.L().Info("starting sync",
			zap.Strings("series", opts.Series),
			zap.Bool("force", opts.Force),
		)

		summary, err := engine.Run(ctx, opts)
		if err != nil {
			return eris.Wrap(err, "sync")
		}

		fmt.Printf("Sync complete: %d synced, %d skipped, %d failed (run %s, %s)\n",
			summary.Synced, summary.Skipped, summary.Failed,
			summary.RunID, summary.Elapsed.Round(time.Millisecond))
		for _, r := range summary.Results {
			if r.Status == fredsync.StatusFailed {
				fmt.Printf("  %s failed: %s\n", r.SeriesID, r.Error)
			}
		}
		if summary.Failed > 0 {
			return eris.Errorf("sync: %d series failed", summary.Failed)
		}
		return nil
	},
}

func init() {
	syncCmd.Flags().String("series", "", "comma-separated FRED series IDs (e.g., GDP,UNRATE)")
	syncCmd.Flags().Bool("force", false, "ignore cadence scheduling")
	syncCmd.Flags().String("start-date", "", "fetch window start (YYYY-MM-DD)")
	syncCmd.Flags().Int("workers", 0, "concurrent series fetches (default from config)")
	rootCmd.AddCommand(syncCmd)
}

// buildEngine wires the sync engine from config.
func buildEngine(pool *pgxpool.Pool) *fredsync.Engine {
	client := fred.New(fred.Options{
		APIKey:     cfg.FRED.APIKey,
		BaseURL:    cfg.FRED.BaseURL,
		Timeout:    cfg.FRED.Timeout(),
		RatePerSec: cfg.FRED.RatePerSec,
		Burst:      cfg.FRED.Burst,
	})

	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = cfg.Sync.RetryAttempts
	retry.ShouldRetry = fred.IsRetryable
	retry.OnRetry = resilience.RetryLogger("fred", "observations")

	return fredsync.NewEngine(pool, client, fredsync.NewFetchLog(pool), catalog.New(), fredsync.Options{
		Workers:          cfg.Sync.Workers,
		FetchTimeout:     cfg.Sync.FetchTimeout(),
		Retry:            retry,
		BreakerThreshold: cfg.Sync.BreakerThreshold,
		BreakerReset:     cfg.Sync.BreakerReset(),
	})
}

// parseSyncOpts extracts fredsync.RunOpts from the cobra command flags.
func parseSyncOpts(cmd *cobra.Command) (fredsync.RunOpts, error) {
	seriesStr, _ := cmd.Flags().GetString("series")
	force, _ := cmd.Flags().GetBool("force")
	startStr, _ := cmd.Flags().GetString("start-date")
	workers, _ := cmd.Flags().GetInt("workers")

	opts := fredsync.RunOpts{Force: force}

	if seriesStr != "" {
		opts.Series = strings.Split(seriesStr, ",")
		for i := range opts.Series {
			opts.Series[i] = strings.TrimSpace(opts.Series[i])
		}
	}

	if startStr == "" {
		startStr = cfg.Sync.StartDate
	}
	if startStr != "" {
		start, err := time.Parse("2006-01-02", startStr)
		if err != nil {
			return fredsync.RunOpts{}, eris.Errorf("sync: invalid start date %q", startStr)
		}
		opts.StartDate = start
	}

	if workers > 0 {
		cfg.Sync.Workers = workers
	}

	return opts, nil
}

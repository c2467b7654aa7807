package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/creditlens/loanmarket-api/internal/config"
	"github.com/creditlens/loanmarket-api/internal/db"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "loanmarket",
	Short: "Leveraged loan market data service",
	Long:  "Syncs FRED economic time series (delinquency rates, credit spreads, recession indicators) into Postgres and serves a REST API for the dashboard.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// marketPool creates the shared pgx pool from config.
func marketPool(ctx context.Context) (*pgxpool.Pool, error) {
	return db.Connect(ctx, db.Options{
		URL:      cfg.Database.URL,
		MaxConns: cfg.Database.MaxConns,
	})
}

package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/creditlens/loanmarket-api/internal/catalog"
	"github.com/creditlens/loanmarket-api/internal/fredsync"
	"github.com/creditlens/loanmarket-api/internal/market"
	"github.com/creditlens/loanmarket-api/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		pool, err := marketPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := fredsync.Migrate(ctx, pool); err != nil {
			return eris.Wrap(err, "serve: migrate")
		}

		cat := catalog.New()
		api := server.NewAPI(
			cat,
			market.NewStore(pool, cat),
			buildEngine(pool),
			fredsync.NewFetchLog(pool),
			server.NewCache(cfg.Redis),
			cfg.Redis.TTL(),
			cfg.FRED.APIKey != "",
		)

		srv := server.New(cfg.Server, api)

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

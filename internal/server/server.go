// Package server exposes the dashboard REST API over chi.
package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/creditlens/loanmarket-api/internal/config"
)

// Router builds the HTTP handler tree.
func Router(cfg config.ServerConfig, api *API) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", api.Health)
	r.Route("/api", func(r chi.Router) {
		r.Get("/series", api.ListSeries)
		r.Get("/series/{seriesID}", api.SeriesData)
		r.Get("/recessions", api.Recessions)
		r.Get("/overview/current", api.OverviewCurrent)
		r.Get("/overview/historical", api.OverviewHistorical)
		r.Get("/stats", api.Stats)
		r.Post("/data/refresh", api.Refresh)
	})

	return r
}

// New builds the http.Server for the API.
func New(cfg config.ServerConfig, api *API) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           Router(cfg, api),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}

package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/web3-frozen/kpi-dashboard/internal/aggregator"
	"github.com/web3-frozen/kpi-dashboard/internal/alert"
	"github.com/web3-frozen/kpi-dashboard/internal/blockfrost"
	"github.com/web3-frozen/kpi-dashboard/internal/config"
	"github.com/web3-frozen/kpi-dashboard/internal/dedup"
	"github.com/web3-frozen/kpi-dashboard/internal/handler"
	"github.com/web3-frozen/kpi-dashboard/internal/kpi"
	"github.com/web3-frozen/kpi-dashboard/internal/kpiclient"
	"github.com/web3-frozen/kpi-dashboard/internal/middleware"
	"github.com/web3-frozen/kpi-dashboard/internal/telegram"
)

const alertDedupTTL = 24 * time.Hour

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	cfg := config.Load()

	if cfg.BlockfrostProjectID == "" {
		logger.Error("BLOCKFROST_PROJECT_ID is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	chain := blockfrost.New(cfg.BlockfrostURL, cfg.BlockfrostProjectID)
	backend := kpiclient.New(cfg.BackendURL)
	agg := aggregator.New(chain, backend, logger)
	logger.Info("aggregator ready", "backend", cfg.BackendURL, "blockfrost", cfg.BlockfrostURL)

	if cfg.AlertInterval > 0 && cfg.TelegramToken != "" && cfg.TelegramChatID != 0 {
		// Redis dedup (retry up to 30s for ExternalSecret to sync)
		var dd *dedup.Deduplicator
		var err error
		for i := 0; i < 6; i++ {
			dd, err = dedup.New(cfg.RedisURL, cfg.RedisPassword, alertDedupTTL)
			if err == nil {
				break
			}
			logger.Warn("redis not ready, retrying...", "attempt", i+1, "error", err)
			time.Sleep(5 * time.Second)
		}
		if err != nil {
			logger.Error("failed to connect to redis after retries", "error", err)
			os.Exit(1)
		}
		defer dd.Close()
		logger.Info("redis connected for alert dedup")

		// Derived KPIs carry every thresholded id and need no session token.
		fetch := func(ctx context.Context) ([]kpi.KPI, error) {
			return agg.NewSession("").FetchDerived(ctx)
		}
		notifier := telegram.NewNotifier(cfg.TelegramToken, cfg.TelegramChatID)
		watcher := alert.NewWatcher(fetch, notifier, dd, logger, cfg.AlertInterval)
		go watcher.Run(ctx)
		logger.Info("alert watcher started", "interval", cfg.AlertInterval)
	} else {
		logger.Info("alert watcher disabled")
	}

	// HTTP routes
	r := chi.NewRouter()
	r.Use(middleware.Recover(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Metrics())
	r.Use(middleware.CORS(cfg.FrontendOrigin))

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", handler.Health())

	r.Route("/api", func(r chi.Router) {
		r.Route("/dashboard", func(r chi.Router) {
			r.Get("/kpis", handler.DashboardKPIs(agg))
			r.Post("/kpis", handler.DashboardCreateKPI(agg))
			r.Get("/kpis/{slug}", handler.DashboardKPI(agg))
			r.Put("/kpis/{id}", handler.DashboardUpdateKPI(agg))
			r.Delete("/kpis/{id}", handler.DashboardDeleteKPI(agg))
			r.Get("/alerts", handler.DashboardAlerts(agg))
		})
		r.Get("/export", handler.ExportCSV(agg))
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("dashboard starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down gracefully")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
}

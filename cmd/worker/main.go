package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/subhatanay/expenseapp/internal/app"
	"github.com/subhatanay/expenseapp/internal/config"
	"github.com/subhatanay/expenseapp/internal/jobs"
	"github.com/subhatanay/expenseapp/internal/jobs/inmemory"
	"github.com/subhatanay/expenseapp/internal/logger"
)

func main() {
	var (
		configPath  = flag.String("config", "expenseapp.yaml", "path to expenseapp.yaml")
		metricsAddr = flag.String("metrics-addr", os.Getenv("METRICS_ADDR"), "address to serve /metrics on (empty disables)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.New().Fatal().Err(err).Str("path", *configPath).Msg("Failed to load config")
	}
	cfg.ApplyEnv()

	log := logger.NewWithLevel(cfg.LogLevel)

	// Create context that cancels on interrupt
	ctx, cancel := context.WithCancel(logger.WithContext(context.Background(), log))
	defer cancel()

	a, err := app.New(ctx, cfg, log, app.Options{})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire application")
	}
	defer a.Close()

	// In production, this would be replaced with Cloud Tasks or Pub/Sub
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, jobStore, inmemory.WithWorkers(cfg.Sync.Concurrency))

	log.Info().
		Dur("interval", cfg.Sync.Interval).
		Int("users", len(a.Syncer.Users())).
		Msg("Starting worker service")

	// Start consuming jobs
	if err := jobQueue.Start(ctx, jobs.SyncHandler(a.Syncer.Sync)); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	go jobs.Schedule(ctx, jobQueue, a.Syncer.Users, cfg.Sync.Interval)

	var metricsServer *http.Server
	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{Addr: *metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			log.Info().Str("addr", *metricsAddr).Msg("Serving metrics")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("Metrics server stopped")
			}
		}()
	}

	log.Info().Msg("Worker service started, waiting for jobs...")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down worker service...")

	// Cancel context to stop the scheduler and workers
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if metricsServer != nil {
		_ = metricsServer.Shutdown(shutdownCtx)
	}

	// Stop the queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during graceful shutdown")
	}

	log.Info().Msg("Worker service exited")
}

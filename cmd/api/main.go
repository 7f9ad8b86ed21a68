package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/subhatanay/expenseapp/internal/api"
	"github.com/subhatanay/expenseapp/internal/app"
	"github.com/subhatanay/expenseapp/internal/config"
	"github.com/subhatanay/expenseapp/internal/jobs"
	"github.com/subhatanay/expenseapp/internal/jobs/inmemory"
	"github.com/subhatanay/expenseapp/internal/logger"
)

func main() {
	// Parse command-line flags
	var (
		configPath = flag.String("config", envOr("EXPENSEAPP_CONFIG", "expenseapp.yaml"), "path to expenseapp.yaml (or set EXPENSEAPP_CONFIG)")
		port       = flag.String("port", os.Getenv("PORT"), "HTTP server port (overrides server.port)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.New().Fatal().Err(err).Str("path", *configPath).Msg("Failed to load config")
	}
	cfg.ApplyEnv()
	if *port != "" {
		cfg.Server.Port = *port
	}

	log := logger.NewWithLevel(cfg.LogLevel)
	ctx := logger.WithContext(context.Background(), log)

	a, err := app.New(ctx, cfg, log, app.Options{})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire application")
	}
	defer a.Close()

	// Initialize job infrastructure
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, jobStore, inmemory.WithWorkers(cfg.Sync.Concurrency))

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	go func() {
		log.Info().Msg("Starting job worker")
		if err := jobQueue.Start(workerCtx, jobs.SyncHandler(a.Syncer.Sync)); err != nil {
			log.Error().Err(err).Msg("Job worker stopped with error")
		}
	}()

	handler := api.NewRouter(api.Deps{
		Dialog:    a.Engine,
		Ledger:    a.Store,
		Publisher: jobQueue,
		JobStore:  jobStore,
		Users:     a.Syncer.Users,
		APIKey:    cfg.Server.APIKey,
		Log:       log,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	cancelWorker()

	// Stop job queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}

	log.Info().Msg("Server exited")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/subhatanay/expenseapp/internal/app"
	"github.com/subhatanay/expenseapp/internal/config"
	"github.com/subhatanay/expenseapp/internal/logger"
	"github.com/subhatanay/expenseapp/internal/telegram"
)

func main() {
	var (
		configPath = flag.String("config", "expenseapp.yaml", "path to expenseapp.yaml")
		debug      = flag.Bool("debug", false, "log Telegram API traffic")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.New().Fatal().Err(err).Str("path", *configPath).Msg("Failed to load config")
	}
	cfg.ApplyEnv()

	log := logger.NewWithLevel(cfg.LogLevel)
	if cfg.Telegram.Token == "" {
		log.Fatal().Msg("Error: telegram.token (or TELEGRAM_BOT_TOKEN) is required")
	}

	ctx, stop := signal.NotifyContext(logger.WithContext(context.Background(), log), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log, app.Options{})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire application")
	}
	defer a.Close()

	b, err := telegram.New(telegram.Config{
		Token:      cfg.Telegram.Token,
		Debug:      *debug,
		UserByChat: cfg.UserByChat,
	}, a.Engine)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create bot")
	}

	// Start blocks until ctx is cancelled.
	if err := b.Start(ctx); err != nil {
		log.Error().Err(err).Msg("Bot stopped with error")
	}
	log.Info().Msg("Bot exited")
}

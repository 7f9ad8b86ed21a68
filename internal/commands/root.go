package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/subhatanay/expenseapp/internal/app"
	"github.com/subhatanay/expenseapp/internal/config"
	"github.com/subhatanay/expenseapp/internal/logger"
)

const defaultConfigPath = "expenseapp.yaml"

type rootOptions struct {
	configPath string
	logLevel   string
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "expenseapp",
		Short: "Bank alert ingestion and chat reconciliation",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", defaultConfigPath, "path to expenseapp.yaml")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.AddCommand(
		newSyncCommand(opts),
		newChatCommand(opts),
		newExtractCommand(opts),
		newMigrateCommand(opts),
		newExportCommand(opts),
	)

	return rootCmd
}

// loadConfig reads the config file. A missing default file yields the
// defaults, so local runs work without one.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if errors.Is(err, fs.ErrNotExist) && o.configPath == defaultConfigPath {
		cfg = config.Default()
		err = nil
	}
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv()
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	return cfg, nil
}

func (o *rootOptions) logger(cfg *config.Config) zerolog.Logger {
	return logger.NewWithLevel(cfg.LogLevel).Output(zerolog.ConsoleWriter{Out: os.Stderr})
}

// open loads the config and wires the application.
func (o *rootOptions) open(cmd *cobra.Command) (*app.App, zerolog.Logger, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	log := o.logger(cfg)
	a, err := app.New(logger.WithContext(cmd.Context(), log), cfg, log, app.Options{})
	if err != nil {
		return nil, log, fmt.Errorf("wiring application: %w", err)
	}
	return a, log, nil
}

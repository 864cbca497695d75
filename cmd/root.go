// Package cmd defines and implements the CLI commands for the
// comune-extractor executable.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/opencivica/comune-extractor/internal/config"
	"github.com/opencivica/comune-extractor/internal/logging"
)

var cfgFile string

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "comune-extractor",
		Short: "Builds a searchable corpus from a municipality website",
		Long: `comune-extractor crawls an Italian municipality website, stores its
PDF documents deduplicated by content, extracts their text, and answers
numeric indicator questions against the resulting corpus.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML)")

	cmd.AddCommand(newCrawlCmd())
	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newStatsCmd())

	return cmd
}

// Execute is the main entry point. It installs signal-driven cancellation
// so an interrupted run leaves a consistent catalog behind.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads configuration and builds the logger shared by all commands.
func setup() (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return config.Config{}, nil, err
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, logger, nil
}

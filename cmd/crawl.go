package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/opencivica/comune-extractor/internal/pipeline"
)

// newCrawlCmd creates the 'crawl' subcommand: discovery and download
// only, without extraction or cell filling. Useful for building up the
// document store ahead of an indicator run.
func newCrawlCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "crawl",
		Short: "Discovers and downloads the municipality's PDFs",
		Long: `Crawls the configured municipality website (sitemaps first, then a
breadth-first walk), downloads every discovered PDF, and stores it
deduplicated by content hash in the workspace.`,
		RunE: runCrawlCommand,
	}
}

func runCrawlCommand(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	p, err := pipeline.New(cfg, logger)
	if err != nil {
		return err
	}
	defer p.Close()

	ctx := cmd.Context()
	pdfURLs, htmlURLs, err := p.Crawl(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn("crawl interrupted")
			return nil
		}
		return fmt.Errorf("crawl: %w", err)
	}
	logger.Info("discovery complete",
		zap.Int("pdf_urls", len(pdfURLs)),
		zap.Int("html_urls", len(htmlURLs)),
	)

	stats := p.Download(ctx, pdfURLs)
	logger.Info("download complete",
		zap.Int("total", stats.Total),
		zap.Int("downloaded", stats.Downloaded),
		zap.Int("cached", stats.Cached),
		zap.Int("deduplicated", stats.Deduplicated),
		zap.Int("failed", stats.Failed),
	)
	return nil
}

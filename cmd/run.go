package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/opencivica/comune-extractor/internal/pipeline"
)

// newRunCmd creates the 'run' subcommand: the full pipeline from crawl
// through cell filling, ending with the CSV result tables.
func newRunCmd() *cobra.Command {
	var (
		indicators     []string
		indicatorsFile string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Runs the full extraction pipeline",
		Long: `Crawls the municipality website, downloads and deduplicates its PDFs,
extracts their text, builds the lexical index, and answers every
(indicator, year) cell, writing sources.csv and queries.csv to the
output directory.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPipelineCommand(cmd, indicators, indicatorsFile)
		},
	}

	cmd.Flags().StringSliceVar(&indicators, "indicator", nil, "indicator to extract (repeatable)")
	cmd.Flags().StringVar(&indicatorsFile, "indicators-file", "", "file with one indicator per line")

	return cmd
}

func runPipelineCommand(cmd *cobra.Command, indicators []string, indicatorsFile string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	if indicatorsFile != "" {
		fromFile, err := readIndicatorsFile(indicatorsFile)
		if err != nil {
			return err
		}
		indicators = append(indicators, fromFile...)
	}
	if len(indicators) == 0 {
		return fmt.Errorf("no indicators given: use --indicator or --indicators-file")
	}

	p, err := pipeline.New(cfg, logger)
	if err != nil {
		return err
	}
	defer p.Close()

	res, err := p.Run(cmd.Context(), indicators)
	if err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}

	logger.Info("run complete",
		zap.String("run_id", res.RunID),
		zap.Int("filled", res.Filled),
		zap.Int("not_found", res.NotFound),
	)
	return nil
}

// readIndicatorsFile reads one indicator per line; blank lines and
// #-comments are skipped.
func readIndicatorsFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open indicators file: %w", err)
	}
	defer f.Close()

	var out []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read indicators file: %w", err)
	}
	return out, nil
}

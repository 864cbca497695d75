package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opencivica/comune-extractor/internal/pipeline"
)

// newStatsCmd creates the 'stats' subcommand, a quick look at how much
// the workspace catalog currently holds.
func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Prints catalog row counts",
		RunE: func(cmd *cobra.Command, _ []string) error {
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
			stats, err := p.CatalogStats(ctx)
			if err != nil {
				return err
			}
			for _, table := range []string{"pdfs", "texts", "value_cache"} {
				fmt.Printf("%-12s %d\n", table, stats[table])
			}

			for _, y := range append(cfg.Years, 0) {
				docs, err := p.DocumentsByYear(ctx, y)
				if err != nil {
					return err
				}
				label := "unknown"
				if y != 0 {
					label = fmt.Sprintf("%d", y)
				}
				fmt.Printf("year %-7s %d\n", label, len(docs))
			}
			return nil
		},
	}
}

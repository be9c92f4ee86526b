package main

import (
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Scan the paper database and fill in missing fields",
	Long: `Backfill pages existing database entries and patches fields that were
never populated, in priority order: PDF link, citation counts,
institutions, then recommendation score.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate(); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		p, err := buildPipeline(st)
		if err != nil {
			return err
		}

		start := time.Now()
		summary, err := p.RunBackfill(ctx)
		if err != nil {
			return eris.Wrap(err, "backfill run")
		}

		zap.L().Info("backfill finished",
			zap.Duration("elapsed", time.Since(start)),
			zap.Int("backfilled", summary.Backfilled),
			zap.Int("failed", summary.Failed),
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(backfillCmd)
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vla-lab/paperflow/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "paperflow",
	Short: "VLA paper ingestion and enrichment pipeline",
	Long:  "Crawls arXiv and Semantic Scholar for Vision-Language-Action papers, enriches them with citation and venue metrics, scores them, and files them into a Notion database.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vla-lab/paperflow/pkg/notion"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Ensure the paper database has all managed properties",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(); err != nil {
			return err
		}

		client := notion.NewClient(cfg.Notion.Token)
		paperDB := notion.NewPaperDB(client, cfg.Notion.DatabaseID)

		if err := paperDB.EnsureSchema(cmd.Context()); err != nil {
			return eris.Wrap(err, "ensure schema")
		}

		zap.L().Info("schema up to date", zap.String("database_id", cfg.Notion.DatabaseID))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(schemaCmd)
}

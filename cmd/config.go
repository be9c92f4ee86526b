package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/vla-lab/paperflow/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and bootstrap configuration",
}

// -- config init --

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config.yaml with default settings",
	RunE: func(cmd *cobra.Command, _ []string) error {
		path, _ := cmd.Flags().GetString("out")

		if _, err := os.Stat(path); err == nil {
			return eris.Errorf("config init: %s already exists", path)
		}

		data, err := yaml.Marshal(config.Defaults())
		if err != nil {
			return eris.Wrap(err, "config init: marshal")
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return eris.Wrapf(err, "config init: write %s", path)
		}

		zap.L().Info("wrote default config", zap.String("path", path))
		return nil
	},
}

// -- config show --

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long: `Prints the merged configuration after config.yaml and PAPERFLOW_*
environment variables are applied. Secrets are redacted.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		shown := *cfg
		shown.Notion.Token = redact(shown.Notion.Token)
		shown.SemanticScholar.APIKey = redact(shown.SemanticScholar.APIKey)
		shown.LLM.APIKey = redact(shown.LLM.APIKey)

		data, err := yaml.Marshal(&shown)
		if err != nil {
			return eris.Wrap(err, "config show: marshal")
		}
		fmt.Print(string(data))
		return nil
	},
}

func init() {
	configInitCmd.Flags().String("out", "config.yaml", "path to write the config file")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}

// redact replaces a secret with a placeholder, keeping emptiness visible.
func redact(s string) string {
	if s == "" {
		return ""
	}
	return "***"
}

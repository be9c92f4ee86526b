package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vla-lab/paperflow/internal/pipeline"
	"github.com/vla-lab/paperflow/internal/scorer"
	"github.com/vla-lab/paperflow/internal/store"
	anthropicpkg "github.com/vla-lab/paperflow/pkg/anthropic"
	"github.com/vla-lab/paperflow/pkg/arxiv"
	"github.com/vla-lab/paperflow/pkg/notion"
	"github.com/vla-lab/paperflow/pkg/openalex"
	"github.com/vla-lab/paperflow/pkg/pdftext"
	"github.com/vla-lab/paperflow/pkg/semanticscholar"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one full crawl, enrich, score and persist cycle",
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
		summary, err := p.Run(ctx)
		if err != nil {
			return eris.Wrap(err, "pipeline run")
		}

		zap.L().Info("run finished",
			zap.Duration("elapsed", time.Since(start)),
			zap.Int("discovered", summary.Discovered),
			zap.Int("duplicates", summary.Duplicates),
			zap.Int("persisted", summary.Persisted),
			zap.Int("backfilled", summary.Backfilled),
			zap.Int("failed", summary.Failed),
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

// initStore opens and migrates the local run history database.
func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.NewSQLite(cfg.Store.Path)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// buildPipeline wires all clients from configuration.
func buildPipeline(st store.Store) (*pipeline.Pipeline, error) {
	notionClient := notion.NewClient(cfg.Notion.Token)
	paperDB := notion.NewPaperDB(notionClient, cfg.Notion.DatabaseID)

	arxivClient := arxiv.NewClient()

	var ssClient semanticscholar.Client
	if cfg.SemanticScholar.Enabled || cfg.Enrich.Citations {
		var opts []semanticscholar.Option
		if cfg.SemanticScholar.APIKey != "" {
			opts = append(opts, semanticscholar.WithAPIKey(cfg.SemanticScholar.APIKey))
		}
		ssClient = semanticscholar.NewClient(opts...)
	}

	var oaClient openalex.Client
	if cfg.Enrich.Impact {
		var opts []openalex.Option
		if cfg.OpenAlex.Mailto != "" {
			opts = append(opts, openalex.WithMailto(cfg.OpenAlex.Mailto))
		}
		oaClient = openalex.NewClient(opts...)
	}

	var llm pipeline.LLMScorer
	if cfg.LLM.Enabled {
		anthropicClient := anthropicpkg.NewClient(cfg.LLM.APIKey)
		llm = scorer.NewLLMEngine(anthropicClient, pdftext.NewExtractor(), scorer.LLMOptions{
			Model:             cfg.LLM.Model,
			Temperature:       cfg.LLM.Temperature,
			MaxTokens:         cfg.LLM.MaxTokens,
			ExtraInstructions: cfg.LLM.ExtraInstructions,
			UseFullPDF:        cfg.LLM.UseFullPDF,
			PDFMaxPages:       cfg.LLM.PDFMaxPages,
			PDFMaxChars:       cfg.LLM.PDFMaxChars,
		})
	}

	return pipeline.New(cfg, st, arxivClient, ssClient, oaClient, paperDB, llm), nil
}

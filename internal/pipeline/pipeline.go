// Package pipeline orchestrates the crawl, dedup, enrich, score, persist
// and backfill stages over the paper database.
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/vla-lab/paperflow/internal/config"
	"github.com/vla-lab/paperflow/internal/model"
	"github.com/vla-lab/paperflow/internal/scorer"
	"github.com/vla-lab/paperflow/internal/store"
	"github.com/vla-lab/paperflow/pkg/arxiv"
	"github.com/vla-lab/paperflow/pkg/openalex"
	"github.com/vla-lab/paperflow/pkg/semanticscholar"
)

// Stage pacing. The upstream APIs are unauthenticated and throttle
// aggressively, so every loop yields between calls.
const (
	semanticScholarStartupDelay = 3 * time.Second
	enrichDelay                 = 200 * time.Millisecond
	persistDelay                = 500 * time.Millisecond
	backfillPatchDelay          = 300 * time.Millisecond
	backfillLLMDelay            = 500 * time.Millisecond
)

// PaperStore is the record-store surface the pipeline drives. Implemented
// by notion.PaperDB.
type PaperStore interface {
	EnsureSchema(ctx context.Context) error
	FilterNew(ctx context.Context, papers []model.Paper) ([]model.Paper, error)
	Create(ctx context.Context, paper model.Paper) (string, error)
	ListPage(ctx context.Context, cursor string) ([]model.Paper, string, error)
	PatchPDFLink(ctx context.Context, pageID, pdfURL string) error
	PatchCitations(ctx context.Context, pageID string, citations, influential *int, impact *float64) error
	PatchInstitutions(ctx context.Context, pageID string, institutions []string) error
	PatchScore(ctx context.Context, pageID string, score float64, rationale string) error
}

// LLMScorer produces a model-graded score, or nil when the model call or
// its parsing failed.
type LLMScorer interface {
	Score(ctx context.Context, paper model.Paper) (*float64, string)
}

// Pipeline wires the stage implementations together.
type Pipeline struct {
	cfg    *config.Config
	store  store.Store
	arxiv  arxiv.Client
	ss     semanticscholar.Client
	oa     openalex.Client
	papers PaperStore
	rules  *scorer.Engine
	llm    LLMScorer

	// sleep is swapped out in tests.
	sleep func(time.Duration)
}

// New creates a Pipeline. The llm scorer may be nil when model scoring is
// disabled.
func New(
	cfg *config.Config,
	st store.Store,
	arxivClient arxiv.Client,
	ssClient semanticscholar.Client,
	oaClient openalex.Client,
	papers PaperStore,
	llm LLMScorer,
) *Pipeline {
	return &Pipeline{
		cfg:    cfg,
		store:  st,
		arxiv:  arxivClient,
		ss:     ssClient,
		oa:     oaClient,
		papers: papers,
		rules:  scorer.NewEngine(cfg.Score.Weights),
		llm:    llm,
		sleep:  time.Sleep,
	}
}

// Run executes one full ingestion cycle and records it in the run store.
func (p *Pipeline) Run(ctx context.Context) (*model.RunSummary, error) {
	run, err := p.store.CreateRun(ctx, model.RunKindPipeline)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create run")
	}

	summary, runErr := p.run(ctx)
	status := model.RunStatusComplete
	if runErr != nil {
		status = model.RunStatusFailed
	}
	if err := p.store.CompleteRun(ctx, run.ID, status, *summary); err != nil {
		zap.L().Warn("pipeline: record run", zap.String("run_id", run.ID), zap.Error(err))
	}
	if runErr != nil {
		return summary, runErr
	}

	zap.L().Info("pipeline: run complete",
		zap.String("run_id", run.ID),
		zap.Int("discovered", summary.Discovered),
		zap.Int("duplicates", summary.Duplicates),
		zap.Int("enriched", summary.Enriched),
		zap.Int("scored", summary.Scored),
		zap.Int("persisted", summary.Persisted),
		zap.Int("backfilled", summary.Backfilled),
		zap.Int("failed", summary.Failed),
	)
	return summary, nil
}

func (p *Pipeline) run(ctx context.Context) (*model.RunSummary, error) {
	summary := &model.RunSummary{}

	papers := p.crawl(ctx)
	summary.Discovered = len(papers)
	model.SortByPublishedDesc(papers)

	fresh, err := p.papers.FilterNew(ctx, papers)
	if err != nil {
		return summary, eris.Wrap(err, "pipeline: filter duplicates")
	}
	summary.Duplicates = len(papers) - len(fresh)
	zap.L().Info("pipeline: deduplicated",
		zap.Int("discovered", len(papers)),
		zap.Int("new", len(fresh)))

	if err := p.papers.EnsureSchema(ctx); err != nil {
		zap.L().Warn("pipeline: ensure schema", zap.Error(err))
	}

	if p.cfg.Enrich.Citations || p.cfg.Enrich.Impact {
		summary.Enriched = p.enrich(ctx, fresh)
	}
	if p.cfg.Score.Enabled {
		summary.Scored = p.score(ctx, fresh)
	}

	persisted, failed := p.persist(ctx, fresh)
	summary.Persisted = persisted
	summary.Failed += failed

	if p.cfg.Backfill.Enabled {
		patched, failedPatches := p.Backfill(ctx)
		summary.Backfilled = patched
		summary.Failed += failedPatches
	}

	return summary, nil
}

// RunBackfill executes the reconciliation pass on its own, recording it as
// a backfill run.
func (p *Pipeline) RunBackfill(ctx context.Context) (*model.RunSummary, error) {
	run, err := p.store.CreateRun(ctx, model.RunKindBackfill)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create run")
	}

	summary := &model.RunSummary{}
	patched, failed := p.Backfill(ctx)
	summary.Backfilled = patched
	summary.Failed = failed

	if err := p.store.CompleteRun(ctx, run.ID, model.RunStatusComplete, *summary); err != nil {
		zap.L().Warn("pipeline: record run", zap.String("run_id", run.ID), zap.Error(err))
	}

	zap.L().Info("pipeline: backfill complete",
		zap.String("run_id", run.ID),
		zap.Int("backfilled", patched),
		zap.Int("failed", failed))
	return summary, nil
}

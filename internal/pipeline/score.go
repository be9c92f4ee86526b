package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/vla-lab/paperflow/internal/model"
)

// score assigns a recommendation score to every paper in place and returns
// how many were scored. The first LLM.MaxPapers papers go to the model when
// it is enabled; the rule engine covers the rest and any paper the model
// could not score.
func (p *Pipeline) score(ctx context.Context, papers []model.Paper) int {
	useLLM := p.cfg.LLM.Enabled && p.llm != nil
	interval := time.Duration(p.cfg.LLM.IntervalMs) * time.Millisecond

	scored := 0
	for i := range papers {
		paper := &papers[i]

		if useLLM && i < p.cfg.LLM.MaxPapers {
			if llmScore, rationale := p.llm.Score(ctx, *paper); llmScore != nil {
				paper.RecommendScore = llmScore
				paper.RecommendRationale = rationale
				paper.ScoreSource = model.ScoreSourceLLM
				scored++
				p.sleep(interval)
				continue
			}
			zap.L().Warn("pipeline: llm score unavailable, using rule engine",
				zap.String("title", paper.Title))
			p.sleep(interval)
		}

		ruleScore := p.rules.Compute(*paper)
		paper.RecommendScore = &ruleScore
		paper.ScoreSource = model.ScoreSourceRules
		scored++
	}

	zap.L().Info("pipeline: scoring finished", zap.Int("scored", scored))
	return scored
}

package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/vla-lab/paperflow/internal/model"
)

// persist writes each paper as a new page, stopping at the configured cap.
// A failed create is counted and skipped so the rest of the batch still
// lands.
func (p *Pipeline) persist(ctx context.Context, papers []model.Paper) (persisted, failed int) {
	maxPapers := p.cfg.MaxPapers
	if maxPapers <= 0 {
		maxPapers = len(papers)
	}

	for i := range papers {
		if persisted >= maxPapers {
			zap.L().Info("pipeline: paper cap reached", zap.Int("max_papers", maxPapers))
			break
		}

		pageID, err := p.papers.Create(ctx, papers[i])
		if err != nil {
			zap.L().Error("pipeline: persist paper failed",
				zap.String("title", papers[i].Title), zap.Error(err))
			failed++
			continue
		}
		papers[i].PageID = pageID
		persisted++

		p.sleep(persistDelay)
	}

	zap.L().Info("pipeline: persistence finished",
		zap.Int("persisted", persisted),
		zap.Int("failed", failed))
	return persisted, failed
}

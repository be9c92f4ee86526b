package pipeline

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/vla-lab/paperflow/internal/config"
	"github.com/vla-lab/paperflow/internal/model"
)

// Backfillable fields, in repair priority order: cheap derivations first,
// LLM calls last.
const (
	FieldPDFURL         = "pdf_url"
	FieldCitations      = "citations"
	FieldInstitutions   = "institutions"
	FieldRecommendScore = "recommend_score"
)

var backfillPriority = []string{FieldPDFURL, FieldCitations, FieldInstitutions, FieldRecommendScore}

// Backfill scans existing pages for missing fields and repairs them within
// the per-field caps. Returns patched and failed counts.
func (p *Pipeline) Backfill(ctx context.Context) (patched, failed int) {
	papers := p.scanExisting(ctx)
	if len(papers) == 0 {
		zap.L().Info("pipeline: no existing papers to backfill")
		return 0, 0
	}

	missing := detectMissing(papers)
	for field, count := range missingCounts(missing) {
		zap.L().Info("pipeline: missing field detected",
			zap.String("field", field), zap.Int("papers", count))
	}

	for _, field := range backfillPriority {
		fieldCfg := p.backfillFieldConfig(field)
		if !fieldCfg.Enabled {
			continue
		}
		candidates := missing[field]
		if len(candidates) == 0 {
			continue
		}
		if len(candidates) > fieldCfg.MaxPapers {
			candidates = candidates[:fieldCfg.MaxPapers]
		}

		zap.L().Info("pipeline: backfilling field",
			zap.String("field", field),
			zap.Int("candidates", len(candidates)))

		for _, paper := range candidates {
			ok, err := p.patchField(ctx, field, paper)
			if err != nil {
				zap.L().Error("pipeline: backfill patch failed",
					zap.String("field", field),
					zap.String("title", paper.Title),
					zap.Error(err))
				failed++
			} else if ok {
				patched++
			}
			p.sleep(backfillPatchDelay)
		}
	}

	zap.L().Info("pipeline: backfill finished",
		zap.Int("patched", patched),
		zap.Int("failed", failed))
	return patched, failed
}

// scanExisting pages through the database up to the scan cap.
func (p *Pipeline) scanExisting(ctx context.Context) []model.Paper {
	maxScan := p.cfg.Backfill.MaxScan
	var papers []model.Paper
	cursor := ""

	for maxScan <= 0 || len(papers) < maxScan {
		page, next, err := p.papers.ListPage(ctx, cursor)
		if err != nil {
			zap.L().Error("pipeline: list existing papers failed", zap.Error(err))
			break
		}
		papers = append(papers, page...)
		if next == "" {
			break
		}
		cursor = next
		p.sleep(backfillPatchDelay)
	}

	if maxScan > 0 && len(papers) > maxScan {
		papers = papers[:maxScan]
	}
	zap.L().Info("pipeline: scanned existing papers", zap.Int("papers", len(papers)))
	return papers
}

// detectMissing classifies each paper by absent field. Nil pointers, blank
// strings and empty lists are missing; a numeric zero is a real value.
func detectMissing(papers []model.Paper) map[string][]model.Paper {
	missing := make(map[string][]model.Paper, len(backfillPriority))
	for _, paper := range papers {
		if paper.PageID == "" {
			continue
		}
		if strings.TrimSpace(paper.PDFURL) == "" {
			missing[FieldPDFURL] = append(missing[FieldPDFURL], paper)
		}
		if paper.Citations == nil {
			missing[FieldCitations] = append(missing[FieldCitations], paper)
		}
		if len(paper.Institutions) == 0 {
			missing[FieldInstitutions] = append(missing[FieldInstitutions], paper)
		}
		if paper.RecommendScore == nil {
			missing[FieldRecommendScore] = append(missing[FieldRecommendScore], paper)
		}
	}
	return missing
}

func missingCounts(missing map[string][]model.Paper) map[string]int {
	counts := make(map[string]int, len(missing))
	for field, papers := range missing {
		if len(papers) > 0 {
			counts[field] = len(papers)
		}
	}
	return counts
}

func (p *Pipeline) backfillFieldConfig(field string) config.BackfillFieldConfig {
	switch field {
	case FieldPDFURL:
		return p.cfg.Backfill.PDFURL
	case FieldCitations:
		return p.cfg.Backfill.Citations
	case FieldInstitutions:
		return p.cfg.Backfill.Institutions
	case FieldRecommendScore:
		return p.cfg.Backfill.RecommendScore
	default:
		return config.BackfillFieldConfig{}
	}
}

// patchField repairs one field on one page. Returns (false, nil) when no
// value could be derived, which is not an error.
func (p *Pipeline) patchField(ctx context.Context, field string, paper model.Paper) (bool, error) {
	switch field {
	case FieldPDFURL:
		pdfURL := DerivePDFLink(paper)
		if pdfURL == "" {
			return false, nil
		}
		if err := p.papers.PatchPDFLink(ctx, paper.PageID, pdfURL); err != nil {
			return false, err
		}
		zap.L().Info("pipeline: derived pdf link",
			zap.String("title", paper.Title), zap.String("pdf_url", pdfURL))
		return true, nil

	case FieldCitations:
		if p.ss == nil {
			return false, nil
		}
		citations, influential := p.lookupCitations(ctx, paper)
		if citations == nil {
			return false, nil
		}
		if err := p.papers.PatchCitations(ctx, paper.PageID, citations, influential, nil); err != nil {
			return false, err
		}
		return true, nil

	case FieldInstitutions:
		if p.ss == nil {
			return false, nil
		}
		institutions := p.lookupInstitutions(ctx, paper)
		if len(institutions) == 0 {
			return false, nil
		}
		if err := p.papers.PatchInstitutions(ctx, paper.PageID, institutions); err != nil {
			return false, err
		}
		return true, nil

	case FieldRecommendScore:
		if p.llm == nil {
			return false, nil
		}
		score, rationale := p.llm.Score(ctx, paper)
		if score == nil {
			return false, nil
		}
		if err := p.papers.PatchScore(ctx, paper.PageID, *score, rationale); err != nil {
			return false, err
		}
		p.sleep(backfillLLMDelay)
		return true, nil
	}
	return false, nil
}

// DerivePDFLink builds a PDF URL from an arXiv identifier or abstract URL.
// Returns "" when the paper already has a PDF or no arXiv handle exists.
func DerivePDFLink(paper model.Paper) string {
	if paper.PDFURL != "" {
		return ""
	}
	if arxivID := paper.ArxivID(); arxivID != "" {
		return fmt.Sprintf("https://arxiv.org/pdf/%s.pdf", arxivID)
	}
	if strings.Contains(paper.URL, "arxiv.org") && strings.Contains(paper.URL, "/pdf/") {
		return paper.URL
	}
	return ""
}

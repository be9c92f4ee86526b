package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/vla-lab/paperflow/internal/model"
	"github.com/vla-lab/paperflow/pkg/openalex"
	"github.com/vla-lab/paperflow/pkg/semanticscholar"
)

// enrich attaches citation counts and venue impact to each paper in place,
// returning how many papers gained at least one metric. Lookup failures
// leave the paper untouched.
func (p *Pipeline) enrich(ctx context.Context, papers []model.Paper) int {
	enriched := 0
	for i := range papers {
		paper := &papers[i]
		touched := false

		if p.cfg.Enrich.Citations && p.ss != nil {
			citations, influential := p.lookupCitations(ctx, *paper)
			if citations != nil {
				paper.Citations = citations
				touched = true
			}
			if influential != nil {
				paper.InfluentialCitations = influential
			}
		}

		if p.cfg.Enrich.Impact && p.oa != nil {
			if impact := p.lookupImpact(ctx, *paper); impact != nil {
				paper.Impact = impact
				touched = true
			}
		}

		if touched {
			enriched++
		}
		p.sleep(enrichDelay)
	}

	zap.L().Info("pipeline: enrichment finished",
		zap.Int("papers", len(papers)),
		zap.Int("enriched", enriched))
	return enriched
}

// lookupCitations resolves citation counts by DOI first, then arXiv id,
// then a title search.
func (p *Pipeline) lookupCitations(ctx context.Context, paper model.Paper) (*int, *int) {
	if doi := paper.DOI(); doi != "" {
		if result, err := p.ss.Lookup(ctx, "DOI:"+doi); err == nil && result != nil && result.CitationCount != nil {
			return result.CitationCount, result.InfluentialCitationCount
		}
	}
	if arxivID := paper.ArxivID(); arxivID != "" {
		if result, err := p.ss.Lookup(ctx, "arXiv:"+arxivID); err == nil && result != nil && result.CitationCount != nil {
			return result.CitationCount, result.InfluentialCitationCount
		}
	}
	if paper.Title != "" {
		if result, err := p.ss.SearchOne(ctx, paper.Title); err == nil && result != nil {
			return result.CitationCount, result.InfluentialCitationCount
		}
	}
	return nil, nil
}

// lookupImpact resolves the publishing venue's 2-year mean citedness
// through OpenAlex: identifier to work, work to source, source to stats.
func (p *Pipeline) lookupImpact(ctx context.Context, paper model.Paper) *float64 {
	work := p.lookupWork(ctx, paper)
	if work == nil {
		return nil
	}

	venueID := work.VenueID()
	if venueID == "" {
		return nil
	}

	source, err := p.oa.Source(ctx, venueID)
	if err != nil || source == nil || source.SummaryStats == nil {
		return nil
	}
	return source.SummaryStats.TwoYrMeanCitedness
}

func (p *Pipeline) lookupWork(ctx context.Context, paper model.Paper) *openalex.Work {
	if doi := paper.DOI(); doi != "" {
		if w, err := p.oa.WorkByID(ctx, "doi:"+doi); err == nil && w != nil {
			return w
		}
	}
	if arxivID := paper.ArxivID(); arxivID != "" {
		if w, err := p.oa.WorkByID(ctx, "arXiv:"+arxivID); err == nil && w != nil {
			return w
		}
	}
	if paper.Title != "" {
		if w, err := p.oa.SearchWork(ctx, paper.Title); err == nil && w != nil {
			return w
		}
	}
	return nil
}

// lookupInstitutions queries Semantic Scholar for affiliations, used by the
// backfill pass.
func (p *Pipeline) lookupInstitutions(ctx context.Context, paper model.Paper) []string {
	var result *semanticscholar.PaperResult

	if doi := paper.DOI(); doi != "" {
		if r, err := p.ss.Lookup(ctx, "DOI:"+doi); err == nil && r != nil {
			result = r
		}
	}
	if result == nil {
		if arxivID := paper.ArxivID(); arxivID != "" {
			if r, err := p.ss.Lookup(ctx, "arXiv:"+arxivID); err == nil && r != nil {
				result = r
			}
		}
	}
	if result == nil && paper.Title != "" {
		if r, err := p.ss.SearchOne(ctx, paper.Title); err == nil && r != nil {
			result = r
		}
	}
	if result == nil {
		return nil
	}
	return capInstitutions(result.Institutions())
}

package pipeline

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/vla-lab/paperflow/internal/filter"
	"github.com/vla-lab/paperflow/internal/model"
	"github.com/vla-lab/paperflow/pkg/arxiv"
	"github.com/vla-lab/paperflow/pkg/semanticscholar"
)

// ArxivQuery is the strict phrase query used against the arXiv API. The
// relevance filter prunes the stragglers full-text matching lets through.
const ArxivQuery = `all:"Vision-Language-Action" OR all:"VLA model" OR all:"VLA policy" OR all:"vision language action model"`

// SemanticScholarQuery is the free-text query for the Graph API search.
const SemanticScholarQuery = "Vision-Language-Action VLA robot"

// crawl gathers candidate papers from every enabled source. Source
// failures degrade to an empty contribution so one flaky API does not kill
// the run.
func (p *Pipeline) crawl(ctx context.Context) []model.Paper {
	cutoff := time.Now().AddDate(0, 0, -p.cfg.Arxiv.DaysBack)

	papers := p.crawlArxiv(ctx, cutoff)

	if p.cfg.SemanticScholar.Enabled && p.ss != nil {
		// Give the unauthenticated quota a moment to breathe after the
		// arXiv burst.
		p.sleep(semanticScholarStartupDelay)
		papers = append(papers, p.crawlSemanticScholar(ctx, cutoff)...)
	}

	return papers
}

func (p *Pipeline) crawlArxiv(ctx context.Context, cutoff time.Time) []model.Paper {
	entries, err := p.arxiv.Search(ctx, arxiv.SearchRequest{
		Query:      ArxivQuery,
		MaxResults: p.cfg.Arxiv.MaxResults,
		PageSize:   p.cfg.Arxiv.PageSize,
		Cutoff:     cutoff,
	})
	if err != nil {
		zap.L().Error("pipeline: arxiv search failed", zap.Error(err))
		return nil
	}

	var papers []model.Paper
	for _, entry := range entries {
		if !filter.Related(entry.Title, entry.Summary) {
			zap.L().Debug("pipeline: filtered non-vla paper", zap.String("title", entry.Title))
			continue
		}
		papers = append(papers, fromArxivEntry(entry))
	}

	zap.L().Info("pipeline: arxiv crawl finished",
		zap.Int("fetched", len(entries)),
		zap.Int("kept", len(papers)))
	return papers
}

func fromArxivEntry(entry arxiv.Entry) model.Paper {
	paper := model.Paper{
		Title:      entry.Title,
		Authors:    entry.Authors,
		Abstract:   truncateAbstract(entry.Summary),
		URL:        entry.URL,
		PDFURL:     entry.PDFURL,
		Identifier: "arXiv:" + entry.ID,
		Venue:      "ArXiv",
		Tags:       []string{model.TagVLA, model.TagArxiv},
	}
	if !entry.Published.IsZero() {
		paper.PublishedDate = entry.Published.Format(time.RFC3339)
		paper.Year = entry.Published.Year()
	}
	return paper
}

func (p *Pipeline) crawlSemanticScholar(ctx context.Context, cutoff time.Time) []model.Paper {
	results, err := p.ss.Search(ctx, semanticscholar.SearchRequest{
		Query:      SemanticScholarQuery,
		MaxResults: p.cfg.SemanticScholar.MaxResults,
		Cutoff:     cutoff,
	})
	if err != nil {
		zap.L().Error("pipeline: semantic scholar search failed", zap.Error(err))
		return nil
	}

	var papers []model.Paper
	for i := range results {
		result := &results[i]
		if !filter.Related(result.Title, result.Abstract) {
			zap.L().Debug("pipeline: filtered non-vla paper", zap.String("title", result.Title))
			continue
		}
		papers = append(papers, p.fromSemanticScholarResult(result))
	}

	zap.L().Info("pipeline: semantic scholar crawl finished",
		zap.Int("fetched", len(results)),
		zap.Int("kept", len(papers)))
	return papers
}

func (p *Pipeline) fromSemanticScholarResult(result *semanticscholar.PaperResult) model.Paper {
	paper := model.Paper{
		Title:    result.Title,
		Abstract: truncateAbstract(result.Abstract),
		URL:      result.URL,
		Venue:    result.Venue,
		Tags:     []string{model.TagVLA, model.TagSemanticScholar},
	}
	if paper.Venue == "" {
		paper.Venue = "Conference"
	}

	for _, a := range result.Authors {
		if a.Name != "" {
			paper.Authors = append(paper.Authors, a.Name)
		}
	}

	var arxivID string
	if result.ExternalIDs != nil {
		arxivID = result.ExternalIDs.ArXiv
		switch {
		case result.ExternalIDs.DOI != "":
			paper.Identifier = result.ExternalIDs.DOI
		case arxivID != "":
			paper.Identifier = "arXiv:" + arxivID
		}
	}

	// PDF preference: open access copy, then an arXiv construction.
	if result.OpenAccessPDF != nil && result.OpenAccessPDF.URL != "" {
		paper.PDFURL = result.OpenAccessPDF.URL
	} else if arxivID != "" {
		paper.PDFURL = fmt.Sprintf("https://arxiv.org/pdf/%s.pdf", arxivID)
	}

	if result.PublicationDate != "" {
		paper.PublishedDate = result.PublicationDate
	} else if result.Year != nil {
		paper.PublishedDate = strconv.Itoa(*result.Year) + "-01-01"
	}
	if result.Year != nil {
		paper.Year = *result.Year
	}

	if p.cfg.SemanticScholar.EnrichInstitutions {
		paper.Institutions = capInstitutions(result.Institutions())
	}

	paper.Citations = result.CitationCount
	paper.InfluentialCitations = result.InfluentialCitationCount
	return paper
}

const maxInstitutions = 15

func capInstitutions(institutions []string) []string {
	if len(institutions) > maxInstitutions {
		return institutions[:maxInstitutions]
	}
	return institutions
}

func truncateAbstract(abstract string) string {
	runes := []rune(abstract)
	if len(runes) <= model.MaxAbstractLen {
		return abstract
	}
	return string(runes[:model.MaxAbstractLen])
}

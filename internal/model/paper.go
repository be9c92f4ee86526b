// Package model defines the shared data types passed between pipeline stages.
package model

import (
	"regexp"
	"sort"
	"strings"
)

// Provenance tags identifying which source contributed a paper.
const (
	TagVLA             = "VLA"
	TagArxiv           = "arXiv"
	TagSemanticScholar = "Semantic Scholar"
)

// MaxAbstractLen bounds the abstract stored on a paper. Longer abstracts are
// truncated at ingestion time.
const MaxAbstractLen = 2000

// Paper is a single research paper, either discovered in the current run
// (PageID empty) or read back from the record store (PageID set). Numeric
// metrics are pointers so "never looked up" is distinguishable from zero.
type Paper struct {
	PageID               string   `json:"page_id,omitempty"`
	Title                string   `json:"title"`
	Authors              []string `json:"authors,omitempty"`
	Year                 int      `json:"year,omitempty"`
	Abstract             string   `json:"abstract,omitempty"`
	URL                  string   `json:"url,omitempty"`
	PDFURL               string   `json:"pdf_url,omitempty"`
	Identifier           string   `json:"identifier,omitempty"` // DOI or "arXiv:<id>"
	Venue                string   `json:"venue,omitempty"`
	Tags                 []string `json:"tags,omitempty"`
	PublishedDate        string   `json:"published_date,omitempty"` // ISO date, may be empty
	Institutions         []string `json:"institutions,omitempty"`
	Citations            *int     `json:"citations,omitempty"`
	InfluentialCitations *int     `json:"influential_citations,omitempty"`
	Impact               *float64 `json:"impact,omitempty"` // venue 2yr mean citedness
	RecommendScore       *float64 `json:"recommend_score,omitempty"`
	RecommendRationale   string   `json:"recommend_rationale,omitempty"`
	ScoreSource          string   `json:"score_source,omitempty"` // ScoreSourceLLM or ScoreSourceRules
}

// Score provenance markers. A paper scored by the rule engine after a failed
// model call carries ScoreSourceRules, so degraded scoring is visible.
const (
	ScoreSourceLLM   = "llm"
	ScoreSourceRules = "rules"
)

var doiURLPattern = regexp.MustCompile(`doi\.org/(10\.\S+)`)

// DOI returns the bare DOI (starting with "10.") if the identifier or URL
// carries one, or "" otherwise.
func (p Paper) DOI() string {
	id := strings.TrimSpace(p.Identifier)
	switch {
	case strings.HasPrefix(id, "10."):
		return id
	case strings.HasPrefix(strings.ToLower(id), "doi:"):
		return id[len("doi:"):]
	}
	if m := doiURLPattern.FindStringSubmatch(p.URL); m != nil {
		return m[1]
	}
	return ""
}

// ArxivID returns the bare arXiv accession id (version suffix stripped) from
// the identifier or an arxiv.org abstract URL, or "" if neither carries one.
func (p Paper) ArxivID() string {
	id := strings.TrimSpace(p.Identifier)
	if strings.HasPrefix(strings.ToLower(id), "arxiv:") {
		return stripArxivVersion(id[len("arxiv:"):])
	}
	if strings.Contains(p.URL, "arxiv.org") && strings.Contains(p.URL, "/abs/") {
		rest := p.URL[strings.Index(p.URL, "/abs/")+len("/abs/"):]
		return stripArxivVersion(rest)
	}
	return ""
}

// stripArxivVersion removes a trailing vN revision marker from an arXiv id.
var arxivVersionPattern = regexp.MustCompile(`v\d+$`)

func stripArxivVersion(id string) string {
	return arxivVersionPattern.ReplaceAllString(strings.TrimSpace(id), "")
}

// HasTag reports whether the paper carries the given provenance tag.
func (p Paper) HasTag(tag string) bool {
	for _, t := range p.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// SortByPublishedDesc orders papers newest first by their ISO published date.
// Papers without a date sort last. The sort is stable so same-day papers keep
// their source order.
func SortByPublishedDesc(papers []Paper) {
	sort.SliceStable(papers, func(i, j int) bool {
		return papers[i].PublishedDate > papers[j].PublishedDate
	})
}

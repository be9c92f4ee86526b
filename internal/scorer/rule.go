// Package scorer assigns recommendation scores to papers, either with a
// deterministic rule engine or with an LLM reviewer.
package scorer

import (
	"math"
	"time"
	"unicode/utf8"

	"github.com/vla-lab/paperflow/internal/model"
)

// Weight names accepted in configuration.
const (
	WeightFreshness   = "freshness"
	WeightCitations   = "citations"
	WeightInfluential = "influential_citations"
	WeightImpact      = "impact"
	WeightAbstract    = "abstract_length"
	WeightHasPDF      = "has_pdf"
	WeightSource      = "source_quality"
)

// DefaultWeights is the weight set used when configuration supplies none.
func DefaultWeights() map[string]float64 {
	return map[string]float64{
		WeightFreshness:   2.0,
		WeightCitations:   1.5,
		WeightInfluential: 1.0,
		WeightImpact:      1.0,
		WeightAbstract:    0.5,
		WeightHasPDF:      0.5,
		WeightSource:      1.0,
	}
}

// Engine computes weighted multi-signal scores in the 0-100 range.
type Engine struct {
	weights map[string]float64
	now     func() time.Time
}

// NewEngine creates a rule engine. Weights given here override the
// corresponding defaults; unknown names are ignored.
func NewEngine(overrides map[string]float64) *Engine {
	weights := DefaultWeights()
	for name := range weights {
		if v, ok := overrides[name]; ok {
			weights[name] = v
		}
	}
	return &Engine{weights: weights, now: time.Now}
}

// Compute returns the paper's score rounded to two decimals. Missing
// signals contribute zero rather than failing the computation.
func (e *Engine) Compute(paper model.Paper) float64 {
	w := e.weights
	var total float64
	for _, v := range w {
		total += v
	}
	if total == 0 {
		return 0
	}

	score := w[WeightFreshness]*e.freshness(paper) +
		w[WeightCitations]*logScale(intValue(paper.Citations), 3) +
		w[WeightInfluential]*logScale(intValue(paper.InfluentialCitations), 2.5) +
		w[WeightImpact]*clamp01(floatValue(paper.Impact)/5) +
		w[WeightAbstract]*clamp01(float64(utf8.RuneCountInString(paper.Abstract))/1500) +
		w[WeightHasPDF]*hasPDF(paper) +
		w[WeightSource]*sourceQuality(paper)

	return round2(score / total * 100)
}

// freshness decays linearly from 1 to 0 over a year since publication.
func (e *Engine) freshness(paper model.Paper) float64 {
	if len(paper.PublishedDate) < 10 {
		return 0
	}
	published, err := time.Parse("2006-01-02", paper.PublishedDate[:10])
	if err != nil {
		return 0
	}
	days := e.now().Sub(published).Hours() / 24
	return math.Max(0, 1-math.Min(days/365, 1))
}

// logScale maps a count onto [0,1] with log10(n+1)/divisor. Non-positive
// counts score zero.
func logScale(n int, divisor float64) float64 {
	if n <= 0 {
		return 0
	}
	return math.Min(1, math.Log10(float64(n)+1)/divisor)
}

func hasPDF(paper model.Paper) float64 {
	if paper.PDFURL != "" {
		return 1
	}
	return 0
}

// sourceQuality favors arXiv listings over records known only to Semantic
// Scholar.
func sourceQuality(paper model.Paper) float64 {
	if paper.HasTag(model.TagArxiv) {
		return 0.85
	}
	if paper.HasTag(model.TagSemanticScholar) {
		return 0.75
	}
	return 0.8
}

func intValue(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

func floatValue(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

package scorer

import (
	"context"
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/vla-lab/paperflow/internal/model"
	"github.com/vla-lab/paperflow/pkg/anthropic"
	"github.com/vla-lab/paperflow/pkg/pdftext"
)

const maxRationaleLen = 2000

const metadataPrompt = `You are a senior reviewer in the VLA (Vision-Language-Action) field. Score the paper strictly and with real spread (0-100) based on its metadata.

Criteria, in decreasing weight:
1. VLA relevance (30%): does it directly address vision-language-action fusion, embodied agents or robot manipulation? Generic multimodal work does not score high.
2. Method novelty (25%): new architecture, training paradigm or data strategy, versus fine-tuning or recombining existing methods.
3. Experimental rigor (20%): real-robot experiments beat simulation beat dataset-only; multi-scene multi-task beats single-scene; ablations are a plus.
4. Technical depth (15%): tackles a core difficulty (long-horizon planning, sim2real, generalization, safety) versus shallow application.
5. Impact potential (10%): top venue, high citations, known institution, open source, reproducible.

Score bands:
- 90-100: breakthrough work (new paradigm, state of the art, top-venue oral, open benchmark)
- 75-89: strong contribution (novel method, solid experiments, real-robot validation)
- 60-74: average quality (some novelty, simulation-heavy, ordinary venue)
- 40-59: marginally relevant (weak VLA connection, thin experiments, preprint only)
- 0-39: not recommended (barely VLA, derivative survey, no experiments)

Avoid clustering scores in 70-80. Spread them out: top work gets top scores, mediocre work gets low ones.

Return only JSON: {"score": <number>, "rationale": "<scoring basis under 200 words, naming what gained and lost points>"}. No other text.`

const fullTextPrompt = `You are a senior reviewer in the VLA (Vision-Language-Action) field. The full paper text is attached after the metadata. Score strictly and with real spread (0-100).

Use the same criteria as a metadata-only review (VLA relevance 30%, method novelty 25%, experimental rigor 20%, technical depth 15%, impact potential 10%) but ground every judgement in the actual text: cite the specific sections, experiments or tables that support your score, and say so in the rationale when the text is incomplete or unparseable.

Return only JSON: {"score": <number>, "rationale": "<scoring basis under 300 words citing concrete content>"}. No other text.`

// scoreDigits grabs the first 1-3 digit run when the model fails to return
// clean JSON.
var scoreDigits = regexp.MustCompile(`(\d{1,3})`)

// LLMOptions configures the reviewer.
type LLMOptions struct {
	Model             string
	Temperature       float64
	MaxTokens         int64
	ExtraInstructions string

	// UseFullPDF switches to full-text review when a paper has a PDF.
	UseFullPDF  bool
	PDFMaxPages int
	PDFMaxChars int
}

// LLMEngine scores papers with an Anthropic model, falling back gracefully
// when a response cannot be parsed.
type LLMEngine struct {
	client    anthropic.Client
	extractor *pdftext.Extractor
	opts      LLMOptions
}

// NewLLMEngine creates a reviewer around the given client.
func NewLLMEngine(client anthropic.Client, extractor *pdftext.Extractor, opts LLMOptions) *LLMEngine {
	return &LLMEngine{client: client, extractor: extractor, opts: opts}
}

// paperDigest is the metadata payload shown to the model.
type paperDigest struct {
	Title         string   `json:"title"`
	Abstract      string   `json:"abstract"`
	Venue         string   `json:"venue,omitempty"`
	Year          int      `json:"year,omitempty"`
	PublishedDate string   `json:"published_date,omitempty"`
	Citations     *int     `json:"citations"`
	Influential   *int     `json:"influential_citations"`
	Impact        *float64 `json:"impact_2yr_mean"`
	HasPDF        bool     `json:"has_pdf"`
	Tags          []string `json:"tags,omitempty"`
	Institutions  []string `json:"institutions,omitempty"`
	FullText      string   `json:"full_pdf_text,omitempty"`
}

// Score asks the model for a score and rationale. It returns (nil, "")
// when the model produced nothing usable; the caller is expected to fall
// back to the rule engine.
func (e *LLMEngine) Score(ctx context.Context, paper model.Paper) (*float64, string) {
	digest := paperDigest{
		Title:         paper.Title,
		Abstract:      truncateRunes(paper.Abstract, 1500),
		Venue:         paper.Venue,
		Year:          paper.Year,
		PublishedDate: paper.PublishedDate,
		Citations:     paper.Citations,
		Influential:   paper.InfluentialCitations,
		Impact:        paper.Impact,
		HasPDF:        paper.PDFURL != "",
		Tags:          paper.Tags,
		Institutions:  headOf(paper.Institutions, 5),
	}

	system := metadataPrompt
	if e.opts.UseFullPDF && paper.PDFURL != "" && e.extractor != nil {
		text, err := e.extractor.FromURL(ctx, paper.PDFURL, e.opts.PDFMaxPages, e.opts.PDFMaxChars)
		if err != nil {
			zap.L().Warn("scorer: pdf extraction failed, falling back to metadata review",
				zap.String("title", paper.Title), zap.Error(err))
		} else if text != "" {
			digest.FullText = text
			system = fullTextPrompt
		}
	}
	if e.opts.ExtraInstructions != "" {
		system += "\n\nAdditional reviewer instructions: " + e.opts.ExtraInstructions
	}

	payload, err := json.MarshalIndent(digest, "", "  ")
	if err != nil {
		zap.L().Error("scorer: marshal digest", zap.Error(err))
		return nil, ""
	}

	temp := e.opts.Temperature
	resp, err := e.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       e.opts.Model,
		MaxTokens:   e.opts.MaxTokens,
		System:      system,
		Temperature: &temp,
		Messages: []anthropic.Message{
			{Role: "user", Content: string(payload)},
		},
	})
	if err != nil {
		zap.L().Warn("scorer: llm request failed", zap.String("title", paper.Title), zap.Error(err))
		return nil, ""
	}

	return parseScore(resp.Text())
}

// parseScore reads the expected JSON reply, falling back to the first
// number in the text. Scores clamp to [0,100].
func parseScore(content string) (*float64, string) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ""
	}

	var reply struct {
		Score     *float64 `json:"score"`
		Rationale string   `json:"rationale"`
	}
	if err := json.Unmarshal([]byte(stripFences(content)), &reply); err == nil && reply.Score != nil {
		score := round2(clampScore(*reply.Score))
		return &score, truncateRunes(strings.TrimSpace(reply.Rationale), maxRationaleLen)
	}

	if m := scoreDigits.FindStringSubmatch(content); m != nil {
		n, _ := strconv.ParseFloat(m[1], 64)
		score := round2(clampScore(n))
		return &score, truncateRunes(content, maxRationaleLen)
	}

	return nil, truncateRunes(content, maxRationaleLen)
}

// stripFences removes a markdown code fence wrapper if present.
func stripFences(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

func clampScore(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}

func truncateRunes(v string, limit int) string {
	if utf8.RuneCountInString(v) <= limit {
		return v
	}
	return string([]rune(v)[:limit])
}

func headOf(v []string, n int) []string {
	if len(v) <= n {
		return v
	}
	return v[:n]
}

package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vla-lab/paperflow/internal/config"
	"github.com/vla-lab/paperflow/internal/model"
	"github.com/vla-lab/paperflow/pkg/arxiv"
	"github.com/vla-lab/paperflow/pkg/openalex"
	"github.com/vla-lab/paperflow/pkg/semanticscholar"
)

// --- fakes ---

type fakeArxiv struct {
	entries []arxiv.Entry
	err     error
}

func (f *fakeArxiv) Search(_ context.Context, _ arxiv.SearchRequest) ([]arxiv.Entry, error) {
	return f.entries, f.err
}

type fakeSS struct {
	results []semanticscholar.PaperResult
	lookup  map[string]*semanticscholar.PaperResult
	byTitle map[string]*semanticscholar.PaperResult
}

func (f *fakeSS) Search(_ context.Context, _ semanticscholar.SearchRequest) ([]semanticscholar.PaperResult, error) {
	return f.results, nil
}

func (f *fakeSS) Lookup(_ context.Context, paperID string) (*semanticscholar.PaperResult, error) {
	return f.lookup[paperID], nil
}

func (f *fakeSS) SearchOne(_ context.Context, title string) (*semanticscholar.PaperResult, error) {
	return f.byTitle[title], nil
}

type fakeOA struct {
	works   map[string]*openalex.Work
	sources map[string]*openalex.Source
}

func (f *fakeOA) WorkByID(_ context.Context, id string) (*openalex.Work, error) {
	return f.works[id], nil
}

func (f *fakeOA) SearchWork(_ context.Context, _ string) (*openalex.Work, error) {
	return nil, nil
}

func (f *fakeOA) Source(_ context.Context, id string) (*openalex.Source, error) {
	return f.sources[id], nil
}

// fakePaperStore keeps pages in memory, deduping on title.
type fakePaperStore struct {
	existing []model.Paper
	created  []model.Paper
	patches  map[string][]string // page id -> patched field names
	schema   bool
}

func newFakePaperStore(existing ...model.Paper) *fakePaperStore {
	return &fakePaperStore{existing: existing, patches: make(map[string][]string)}
}

func (f *fakePaperStore) EnsureSchema(context.Context) error {
	f.schema = true
	return nil
}

func (f *fakePaperStore) FilterNew(_ context.Context, papers []model.Paper) ([]model.Paper, error) {
	known := make(map[string]bool)
	for _, p := range f.existing {
		known[p.Title] = true
	}
	for _, p := range f.created {
		known[p.Title] = true
	}

	var fresh []model.Paper
	for _, p := range papers {
		if !known[p.Title] {
			known[p.Title] = true
			fresh = append(fresh, p)
		}
	}
	return fresh, nil
}

func (f *fakePaperStore) Create(_ context.Context, paper model.Paper) (string, error) {
	id := "page-" + paper.Title
	paper.PageID = id
	f.created = append(f.created, paper)
	return id, nil
}

func (f *fakePaperStore) ListPage(_ context.Context, cursor string) ([]model.Paper, string, error) {
	if cursor != "" {
		return nil, "", nil
	}
	return f.existing, "", nil
}

func (f *fakePaperStore) PatchPDFLink(_ context.Context, pageID, _ string) error {
	f.patches[pageID] = append(f.patches[pageID], FieldPDFURL)
	return nil
}

func (f *fakePaperStore) PatchCitations(_ context.Context, pageID string, _, _ *int, _ *float64) error {
	f.patches[pageID] = append(f.patches[pageID], FieldCitations)
	return nil
}

func (f *fakePaperStore) PatchInstitutions(_ context.Context, pageID string, _ []string) error {
	f.patches[pageID] = append(f.patches[pageID], FieldInstitutions)
	return nil
}

func (f *fakePaperStore) PatchScore(_ context.Context, pageID string, _ float64, _ string) error {
	f.patches[pageID] = append(f.patches[pageID], FieldRecommendScore)
	return nil
}

type fakeLLM struct {
	score     *float64
	rationale string
	calls     int
}

func (f *fakeLLM) Score(context.Context, model.Paper) (*float64, string) {
	f.calls++
	return f.score, f.rationale
}

// memRunStore records runs in memory.
type memRunStore struct {
	runs map[string]*model.Run
}

func newMemRunStore() *memRunStore {
	return &memRunStore{runs: make(map[string]*model.Run)}
}

func (m *memRunStore) CreateRun(_ context.Context, kind model.RunKind) (*model.Run, error) {
	run := &model.Run{
		ID:        "run-" + string(kind),
		Kind:      kind,
		Status:    model.RunStatusRunning,
		CreatedAt: time.Now(),
	}
	m.runs[run.ID] = run
	return run, nil
}

func (m *memRunStore) CompleteRun(_ context.Context, runID string, status model.RunStatus, summary model.RunSummary) error {
	run := m.runs[runID]
	run.Status = status
	run.Summary = &summary
	now := time.Now()
	run.FinishedAt = &now
	return nil
}

func (m *memRunStore) GetRun(_ context.Context, runID string) (*model.Run, error) {
	return m.runs[runID], nil
}

func (m *memRunStore) ListRuns(context.Context, int) ([]model.Run, error) {
	var runs []model.Run
	for _, r := range m.runs {
		runs = append(runs, *r)
	}
	return runs, nil
}

func (m *memRunStore) Migrate(context.Context) error { return nil }
func (m *memRunStore) Close() error                  { return nil }

func testConfig() *config.Config {
	return &config.Config{
		MaxPapers: 999,
		Arxiv:     config.ArxivConfig{MaxResults: 100, DaysBack: 7, PageSize: 100},
		SemanticScholar: config.SemanticScholarConfig{
			Enabled:            true,
			MaxResults:         50,
			EnrichInstitutions: true,
		},
		Enrich: config.EnrichConfig{Citations: true, Impact: true},
		Score:  config.ScoreConfig{Enabled: true},
	}
}

func newTestPipeline(cfg *config.Config, papers *fakePaperStore, ax *fakeArxiv, ss *fakeSS, oa *fakeOA, llm LLMScorer) (*Pipeline, *memRunStore) {
	runs := newMemRunStore()
	var ssClient semanticscholar.Client
	if ss != nil {
		ssClient = ss
	}
	var oaClient openalex.Client
	if oa != nil {
		oaClient = oa
	}
	p := New(cfg, runs, ax, ssClient, oaClient, papers, llm)
	p.sleep = func(time.Duration) {}
	return p, runs
}

// --- tests ---

func TestRunEndToEnd(t *testing.T) {
	published := time.Date(2025, 8, 28, 0, 0, 0, 0, time.UTC)
	ax := &fakeArxiv{entries: []arxiv.Entry{
		{
			ID:        "2508.00001v1",
			Title:     "OpenVLA: An Open Vision-Language-Action Model",
			Summary:   "We present a vision-language-action model for robot manipulation.",
			Authors:   []string{"Ada Lovelace"},
			URL:       "http://arxiv.org/abs/2508.00001v1",
			PDFURL:    "http://arxiv.org/pdf/2508.00001v1",
			Published: published,
		},
		{
			ID:        "2508.00002v1",
			Title:     "A Survey of Large Language Models",
			Summary:   "Language models are reviewed.",
			Published: published,
		},
	}}

	citations := 7
	ss := &fakeSS{
		results: []semanticscholar.PaperResult{
			{
				// Same title as the arXiv hit; dedup must drop it.
				Title:           "OpenVLA: An Open Vision-Language-Action Model",
				Abstract:        "A vision-language-action model.",
				PublicationDate: "2025-08-28",
			},
			{
				Title:           "RoboDual: A Dual-System VLA Policy",
				Abstract:        "A new VLA policy for manipulation.",
				PublicationDate: "2025-08-27",
				Authors: []semanticscholar.Author{
					{Name: "Grace Hopper", Affiliations: []semanticscholar.Affiliation{"MIT"}},
				},
				ExternalIDs: &semanticscholar.ExternalIDs{ArXiv: "2508.00003"},
			},
		},
		lookup: map[string]*semanticscholar.PaperResult{
			"arXiv:2508.00001": {CitationCount: &citations},
			"arXiv:2508.00003": {CitationCount: &citations},
		},
	}

	impact := 4.5
	oa := &fakeOA{
		works: map[string]*openalex.Work{
			"arXiv:2508.00001": {HostVenue: &openalex.HostVenue{ID: "S1"}},
		},
		sources: map[string]*openalex.Source{
			"S1": {SummaryStats: &openalex.SummaryStats{TwoYrMeanCitedness: &impact}},
		},
	}

	papers := newFakePaperStore()
	p, runs := newTestPipeline(testConfig(), papers, ax, ss, oa, nil)

	summary, err := p.Run(context.Background())
	require.NoError(t, err)

	// The survey is filtered, the duplicate title collapses, two papers land.
	assert.Equal(t, 3, summary.Discovered)
	assert.Equal(t, 1, summary.Duplicates)
	assert.Equal(t, 2, summary.Persisted)
	assert.Equal(t, 0, summary.Failed)
	require.Len(t, papers.created, 2)
	assert.True(t, papers.schema)

	titles := map[string]bool{}
	for _, created := range papers.created {
		titles[created.Title] = true
		require.NotNil(t, created.RecommendScore, "every persisted paper is scored")
		assert.Equal(t, model.ScoreSourceRules, created.ScoreSource)
	}
	assert.True(t, titles["OpenVLA: An Open Vision-Language-Action Model"])
	assert.True(t, titles["RoboDual: A Dual-System VLA Policy"])

	// Enrichment attached citations from the fake lookup.
	for _, created := range papers.created {
		require.NotNil(t, created.Citations, created.Title)
		assert.Equal(t, 7, *created.Citations)
	}

	// The run was recorded with its summary.
	run, err := runs.GetRun(context.Background(), "run-pipeline")
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, run.Status)
	require.NotNil(t, run.Summary)
	assert.Equal(t, 2, run.Summary.Persisted)
}

func TestRunSkipsExistingPapers(t *testing.T) {
	ax := &fakeArxiv{entries: []arxiv.Entry{
		{
			ID:      "2508.00001v1",
			Title:   "A Known VLA Model Paper",
			Summary: "vision-language-action models.",
		},
	}}

	cfg := testConfig()
	cfg.SemanticScholar.Enabled = false
	cfg.Enrich = config.EnrichConfig{}
	cfg.Score.Enabled = false

	papers := newFakePaperStore(model.Paper{PageID: "page-1", Title: "A Known VLA Model Paper"})
	p, _ := newTestPipeline(cfg, papers, ax, nil, nil, nil)

	summary, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Discovered)
	assert.Equal(t, 1, summary.Duplicates)
	assert.Equal(t, 0, summary.Persisted)
	assert.Empty(t, papers.created)
}

func TestRunSurvivesArxivFailure(t *testing.T) {
	ax := &fakeArxiv{err: assert.AnError}
	cfg := testConfig()
	cfg.SemanticScholar.Enabled = false
	cfg.Enrich = config.EnrichConfig{}

	papers := newFakePaperStore()
	p, _ := newTestPipeline(cfg, papers, ax, nil, nil, nil)

	summary, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Discovered)
	assert.Equal(t, 0, summary.Persisted)
}

func TestRunRespectsPaperCap(t *testing.T) {
	entries := make([]arxiv.Entry, 5)
	for i := range entries {
		entries[i] = arxiv.Entry{
			ID:      "2508.0000" + string(rune('1'+i)) + "v1",
			Title:   "VLA Policy Paper " + string(rune('A'+i)),
			Summary: "A vision-language-action policy.",
		}
	}

	cfg := testConfig()
	cfg.MaxPapers = 2
	cfg.SemanticScholar.Enabled = false
	cfg.Enrich = config.EnrichConfig{}
	cfg.Score.Enabled = false

	papers := newFakePaperStore()
	p, _ := newTestPipeline(cfg, papers, &fakeArxiv{entries: entries}, nil, nil, nil)

	summary, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Persisted)
	assert.Len(t, papers.created, 2)
}

func TestScoreLLMWithRuleFallback(t *testing.T) {
	cfg := testConfig()
	cfg.LLM = config.LLMConfig{Enabled: true, MaxPapers: 1}

	score := 88.0
	llm := &fakeLLM{score: &score, rationale: "novel architecture"}
	p, _ := newTestPipeline(cfg, newFakePaperStore(), &fakeArxiv{}, nil, nil, llm)

	papers := []model.Paper{
		{Title: "First"},
		{Title: "Second"},
	}
	scored := p.score(context.Background(), papers)
	assert.Equal(t, 2, scored)

	// Only the first paper is within the LLM cap.
	assert.Equal(t, 1, llm.calls)
	require.NotNil(t, papers[0].RecommendScore)
	assert.Equal(t, 88.0, *papers[0].RecommendScore)
	assert.Equal(t, model.ScoreSourceLLM, papers[0].ScoreSource)
	assert.Equal(t, "novel architecture", papers[0].RecommendRationale)

	require.NotNil(t, papers[1].RecommendScore)
	assert.Equal(t, model.ScoreSourceRules, papers[1].ScoreSource)
}

func TestScoreFallsBackWhenLLMFails(t *testing.T) {
	cfg := testConfig()
	cfg.LLM = config.LLMConfig{Enabled: true, MaxPapers: 10}

	llm := &fakeLLM{} // returns nil score
	p, _ := newTestPipeline(cfg, newFakePaperStore(), &fakeArxiv{}, nil, nil, llm)

	papers := []model.Paper{{Title: "Only"}}
	p.score(context.Background(), papers)

	assert.Equal(t, 1, llm.calls)
	require.NotNil(t, papers[0].RecommendScore)
	assert.Equal(t, model.ScoreSourceRules, papers[0].ScoreSource)
}

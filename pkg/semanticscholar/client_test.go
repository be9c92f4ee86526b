package semanticscholar

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearch(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "/paper/search", r.URL.Path)
		assert.Equal(t, "vla", r.URL.Query().Get("query"))
		assert.Equal(t, "10", r.URL.Query().Get("limit"))
		assert.Equal(t, "2024-01-01:", r.URL.Query().Get("publicationDateOrYear"))
		assert.Contains(t, r.URL.Query().Get("fields"), "authors.affiliations")

		fmt.Fprint(w, `{
  "total": 1,
  "data": [{
    "paperId": "abc123",
    "title": "A VLA Survey",
    "abstract": "Survey of vision-language-action models.",
    "url": "https://www.semanticscholar.org/paper/abc123",
    "year": 2024,
    "venue": "CoRL",
    "publicationDate": "2024-03-15",
    "authors": [
      {"name": "Grace Hopper", "affiliations": ["MIT", {"name": "Stanford"}]},
      {"name": "Katherine Johnson", "affiliations": ["MIT"]}
    ],
    "externalIds": {"DOI": "10.1234/vla", "ArXiv": "2403.00001"},
    "openAccessPdf": {"url": "https://example.org/vla.pdf"},
    "citationCount": 42,
    "influentialCitationCount": 7
  }]
}`)
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))
	papers, err := client.Search(context.Background(), SearchRequest{
		Query:      "vla",
		MaxResults: 10,
		Cutoff:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, papers, 1)
	assert.Equal(t, 1, calls, "search issues exactly one request")

	p := papers[0]
	assert.Equal(t, "A VLA Survey", p.Title)
	require.NotNil(t, p.Year)
	assert.Equal(t, 2024, *p.Year)
	assert.Equal(t, "2024-03-15", p.PublicationDate)
	require.NotNil(t, p.ExternalIDs)
	assert.Equal(t, "10.1234/vla", p.ExternalIDs.DOI)
	assert.Equal(t, "2403.00001", p.ExternalIDs.ArXiv)
	require.NotNil(t, p.OpenAccessPDF)
	assert.Equal(t, "https://example.org/vla.pdf", p.OpenAccessPDF.URL)
	require.NotNil(t, p.CitationCount)
	assert.Equal(t, 42, *p.CitationCount)
	require.NotNil(t, p.InfluentialCitationCount)
	assert.Equal(t, 7, *p.InfluentialCitationCount)

	// String and object affiliation forms both decode, dedupe preserves
	// first-seen order.
	assert.Equal(t, []string{"MIT", "Stanford"}, p.Institutions())
}

func TestSearchRateLimitedReturnsEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))
	papers, err := client.Search(context.Background(), SearchRequest{
		Query:      "vla",
		MaxResults: 10,
	})
	require.NoError(t, err)
	assert.Empty(t, papers)
}

func TestSearchClampsLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "100", r.URL.Query().Get("limit"))
		fmt.Fprint(w, `{"total": 0, "data": []}`)
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))
	_, err := client.Search(context.Background(), SearchRequest{
		Query:      "vla",
		MaxResults: 500,
	})
	require.NoError(t, err)
}

func TestLookup(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/paper/DOI:10.1234/vla", r.URL.Path)
		fmt.Fprint(w, `{"paperId": "abc123", "title": "A VLA Survey", "citationCount": 0}`)
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))
	paper, err := client.Lookup(context.Background(), "DOI:10.1234/vla")
	require.NoError(t, err)
	require.NotNil(t, paper)
	assert.Equal(t, "A VLA Survey", paper.Title)

	// Zero citations stays distinguishable from an absent count.
	require.NotNil(t, paper.CitationCount)
	assert.Equal(t, 0, *paper.CitationCount)
	assert.Nil(t, paper.InfluentialCitationCount)
}

func TestLookupNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))
	paper, err := client.Lookup(context.Background(), "arXiv:9999.00000")
	require.NoError(t, err)
	assert.Nil(t, paper)
}

func TestSearchOne(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		fmt.Fprint(w, `{"total": 1, "data": [{"paperId": "p1", "title": "Closest Match"}]}`)
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))
	paper, err := client.SearchOne(context.Background(), "closest match")
	require.NoError(t, err)
	require.NotNil(t, paper)
	assert.Equal(t, "Closest Match", paper.Title)
}

func TestSearchOneEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"total": 0, "data": []}`)
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))
	paper, err := client.SearchOne(context.Background(), "no such paper")
	require.NoError(t, err)
	assert.Nil(t, paper)
}

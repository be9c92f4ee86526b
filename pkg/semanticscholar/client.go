// Package semanticscholar talks to the Semantic Scholar Graph API, both for
// bulk paper search and for per-paper citation lookups.
package semanticscholar

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const defaultBaseURL = "https://api.semanticscholar.org/graph/v1"

// searchFields is requested on every search so downstream enrichment does
// not need a second round trip for papers discovered here.
const searchFields = "title,abstract,url,year,venue,authors,authors.affiliations,externalIds,openAccessPdf,publicationDate,citationCount,influentialCitationCount"

const lookupFields = "title,externalIds,citationCount,influentialCitationCount,venue,openAccessPdf,authors,authors.affiliations"

// Author carries the author name and any affiliations Semantic Scholar has
// on record. Affiliations arrive either as plain strings or as objects with
// a name field depending on the record's age.
type Author struct {
	Name         string        `json:"name"`
	Affiliations []Affiliation `json:"affiliations"`
}

// Affiliation is a single institution string.
type Affiliation string

// UnmarshalJSON accepts both `"MIT"` and `{"name": "MIT"}`.
func (a *Affiliation) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*a = Affiliation(s)
		return nil
	}
	var obj struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return eris.Wrap(err, "semanticscholar: unmarshal affiliation")
	}
	*a = Affiliation(obj.Name)
	return nil
}

// ExternalIDs holds the cross-registry identifiers attached to a paper.
type ExternalIDs struct {
	DOI   string `json:"DOI"`
	ArXiv string `json:"ArXiv"`
}

// OpenAccessPDF points at a freely readable copy when one exists.
type OpenAccessPDF struct {
	URL string `json:"url"`
}

// PaperResult is one paper record from search or lookup. Citation counts
// are pointers so an absent field can be told apart from a zero count.
type PaperResult struct {
	PaperID                  string         `json:"paperId"`
	Title                    string         `json:"title"`
	Abstract                 string         `json:"abstract"`
	URL                      string         `json:"url"`
	Year                     *int           `json:"year"`
	Venue                    string         `json:"venue"`
	PublicationDate          string         `json:"publicationDate"`
	Authors                  []Author       `json:"authors"`
	ExternalIDs              *ExternalIDs   `json:"externalIds"`
	OpenAccessPDF            *OpenAccessPDF `json:"openAccessPdf"`
	CitationCount            *int           `json:"citationCount"`
	InfluentialCitationCount *int           `json:"influentialCitationCount"`
}

// SearchRequest describes one bounded relevance search.
type SearchRequest struct {
	Query      string
	MaxResults int
	Cutoff     time.Time // restricts publicationDateOrYear to cutoff..today
}

// Client is the subset of the Graph API the pipeline uses.
type Client interface {
	Search(ctx context.Context, req SearchRequest) ([]PaperResult, error)
	Lookup(ctx context.Context, paperID string) (*PaperResult, error)
	SearchOne(ctx context.Context, title string) (*PaperResult, error)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithAPIKey attaches an x-api-key header to every request.
func WithAPIKey(key string) Option {
	return func(c *httpClient) {
		c.apiKey = key
	}
}

type httpClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient creates a Semantic Scholar Graph API client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type searchResponse struct {
	Total int           `json:"total"`
	Data  []PaperResult `json:"data"`
}

// searchLimitCap is the API maximum for one relevance search request.
const searchLimitCap = 100

// Search issues a single bounded relevance query. MaxResults above the API
// cap is clamped rather than paged: the crawl wants the top slice, not the
// full result set. A 429 is treated as exhaustion of the unauthenticated
// quota rather than a hard failure: an empty result is returned and the
// crawl continues from other sources.
func (c *httpClient) Search(ctx context.Context, req SearchRequest) ([]PaperResult, error) {
	limit := req.MaxResults
	if limit <= 0 || limit > searchLimitCap {
		limit = searchLimitCap
	}

	params := url.Values{}
	params.Set("query", req.Query)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("fields", searchFields)
	if !req.Cutoff.IsZero() {
		params.Set("publicationDateOrYear", req.Cutoff.Format("2006-01-02")+":")
	}

	body, status, err := c.get(ctx, "/paper/search", params)
	if err != nil {
		return nil, err
	}
	if status == http.StatusTooManyRequests {
		zap.L().Warn("semanticscholar: rate limited, skipping search")
		return nil, nil
	}
	if status != http.StatusOK {
		return nil, eris.Errorf("semanticscholar: unexpected status %d: %s", status, string(body))
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, eris.Wrap(err, "semanticscholar: unmarshal search response")
	}

	papers := resp.Data
	if len(papers) > req.MaxResults && req.MaxResults > 0 {
		papers = papers[:req.MaxResults]
	}
	return papers, nil
}

// Lookup fetches a single paper by identifier. Accepted forms mirror the
// API: "DOI:10.1234/x", "arXiv:2401.12345" or a raw Semantic Scholar id.
// A 404 returns (nil, nil).
func (c *httpClient) Lookup(ctx context.Context, paperID string) (*PaperResult, error) {
	params := url.Values{}
	params.Set("fields", lookupFields)

	body, status, err := c.get(ctx, "/paper/"+url.PathEscape(paperID), params)
	if err != nil {
		return nil, err
	}
	switch status {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, nil
	case http.StatusTooManyRequests:
		zap.L().Warn("semanticscholar: rate limited during lookup", zap.String("paper_id", paperID))
		return nil, nil
	default:
		return nil, eris.Errorf("semanticscholar: unexpected status %d: %s", status, string(body))
	}

	var paper PaperResult
	if err := json.Unmarshal(body, &paper); err != nil {
		return nil, eris.Wrap(err, "semanticscholar: unmarshal paper")
	}
	return &paper, nil
}

// SearchOne finds the closest match for a title, used as a last resort when
// no DOI or arXiv id is known. Returns (nil, nil) when nothing matches.
func (c *httpClient) SearchOne(ctx context.Context, title string) (*PaperResult, error) {
	params := url.Values{}
	params.Set("query", title)
	params.Set("limit", "1")
	params.Set("fields", lookupFields)

	body, status, err := c.get(ctx, "/paper/search", params)
	if err != nil {
		return nil, err
	}
	if status == http.StatusTooManyRequests {
		zap.L().Warn("semanticscholar: rate limited during title search", zap.String("title", title))
		return nil, nil
	}
	if status != http.StatusOK {
		return nil, eris.Errorf("semanticscholar: unexpected status %d: %s", status, string(body))
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, eris.Wrap(err, "semanticscholar: unmarshal search response")
	}
	if len(resp.Data) == 0 {
		return nil, nil
	}
	return &resp.Data[0], nil
}

func (c *httpClient) get(ctx context.Context, path string, params url.Values) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, 0, eris.Wrap(err, "semanticscholar: create request")
	}
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, eris.Wrap(err, "semanticscholar: send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, eris.Wrap(err, "semanticscholar: read response")
	}
	return body, resp.StatusCode, nil
}

// Institutions flattens the distinct affiliation names across authors,
// preserving first-seen order.
func (p *PaperResult) Institutions() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, a := range p.Authors {
		for _, aff := range a.Affiliations {
			name := strings.TrimSpace(string(aff))
			if name == "" {
				continue
			}
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			out = append(out, name)
		}
	}
	return out
}

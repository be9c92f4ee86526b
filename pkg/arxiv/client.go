// Package arxiv queries the arXiv Atom search API.
package arxiv

import (
	"context"
	"encoding/xml"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const defaultBaseURL = "http://export.arxiv.org/api/query"

// DefaultPageSize is the per-request result count used when the caller does
// not override it. arXiv tolerates larger pages but recommends staying modest.
const DefaultPageSize = 100

// Entry is one paper returned by the search API.
type Entry struct {
	ID        string // accession id, e.g. "2401.12345v2"
	Title     string
	Summary   string
	Authors   []string
	URL       string
	PDFURL    string
	Published time.Time
	Raw       string // published timestamp as returned by the API
}

// SearchRequest describes one paged search.
type SearchRequest struct {
	Query      string
	MaxResults int
	PageSize   int       // defaults to DefaultPageSize
	Cutoff     time.Time // pagination stops at the first entry older than this
}

// Client performs paged searches against the arXiv API.
type Client interface {
	Search(ctx context.Context, req SearchRequest) ([]Entry, error)
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

type httpClient struct {
	baseURL string
	http    *http.Client
}

// NewClient creates an arXiv API client.
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

// Atom response shapes. Only the fields the pipeline consumes are mapped.
type atomFeed struct {
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID        string       `xml:"id"`
	Title     string       `xml:"title"`
	Summary   string       `xml:"summary"`
	Published string       `xml:"published"`
	Authors   []atomAuthor `xml:"author"`
	Links     []atomLink   `xml:"link"`
}

type atomAuthor struct {
	Name string `xml:"name"`
}

type atomLink struct {
	Href  string `xml:"href,attr"`
	Title string `xml:"title,attr"`
}

// Search pages through results newest-first until MaxResults entries have
// been requested, the API returns an empty page, or an entry's published
// date falls before the cutoff. The cutoff stop is immediate: remaining
// entries on the same page are older still and are discarded.
func (c *httpClient) Search(ctx context.Context, req SearchRequest) ([]Entry, error) {
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	var entries []Entry
	fetched := 0
	start := 0

	for fetched < req.MaxResults {
		remaining := req.MaxResults - fetched
		thisPage := min(pageSize, remaining)

		page, err := c.fetchPage(ctx, req.Query, start, thisPage)
		if err != nil {
			return nil, err
		}
		if len(page.Entries) == 0 {
			zap.L().Debug("arxiv: empty page, ending pagination", zap.Int("start", start))
			break
		}

		reachedCutoff := false
		for _, ae := range page.Entries {
			entry, ok := fromAtom(ae)
			if !ok {
				continue
			}
			if !req.Cutoff.IsZero() && !entry.Published.IsZero() && entry.Published.Before(req.Cutoff) {
				// Entries are sorted newest-first: everything after this
				// point is out of the lookback window.
				reachedCutoff = true
				break
			}
			entries = append(entries, entry)
		}
		if reachedCutoff {
			zap.L().Debug("arxiv: cutoff reached, ending pagination", zap.Int("start", start))
			break
		}

		fetched += thisPage
		start += thisPage
	}

	return entries, nil
}

func (c *httpClient) fetchPage(ctx context.Context, query string, start, maxResults int) (*atomFeed, error) {
	params := url.Values{}
	params.Set("search_query", query)
	params.Set("start", strconv.Itoa(start))
	params.Set("max_results", strconv.Itoa(maxResults))
	params.Set("sortBy", "submittedDate")
	params.Set("sortOrder", "descending")

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "arxiv: create request")
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "arxiv: send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "arxiv: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("arxiv: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var feed atomFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, eris.Wrap(err, "arxiv: unmarshal feed")
	}
	return &feed, nil
}

// fromAtom converts an Atom entry to an Entry. Entries without a title are
// dropped.
func fromAtom(ae atomEntry) (Entry, bool) {
	title := collapseWhitespace(ae.Title)
	if title == "" {
		return Entry{}, false
	}

	entry := Entry{
		Title:   title,
		Summary: collapseWhitespace(ae.Summary),
		Raw:     strings.TrimSpace(ae.Published),
	}

	if entry.Raw != "" {
		if ts, err := time.Parse(time.RFC3339, entry.Raw); err == nil {
			entry.Published = ts
		}
	}

	for _, a := range ae.Authors {
		if name := strings.TrimSpace(a.Name); name != "" {
			entry.Authors = append(entry.Authors, name)
		}
	}

	for _, l := range ae.Links {
		if l.Title == "pdf" {
			entry.PDFURL = l.Href
		} else if l.Href != "" {
			entry.URL = l.Href
		}
	}

	// The Atom id is a URL like http://arxiv.org/abs/2401.12345v2.
	if id := strings.TrimSpace(ae.ID); id != "" {
		if idx := strings.LastIndex(id, "/"); idx >= 0 {
			entry.ID = id[idx+1:]
		} else {
			entry.ID = id
		}
	}

	return entry, true
}

// collapseWhitespace trims and folds the newline-wrapped text arXiv returns
// into single-space-separated form.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Package openalex reads works and venue sources from the OpenAlex API to
// obtain venue-level impact statistics.
package openalex

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://api.openalex.org"

// Work is an OpenAlex work record, reduced to the fields needed to find the
// venue behind a paper.
type Work struct {
	ID          string       `json:"id"`
	DisplayName string       `json:"display_name"`
	HostVenue   *HostVenue   `json:"host_venue"`
	PrimaryLoc  *Location    `json:"primary_location"`
	SummarySt   *WorkSummary `json:"summary_stats"`
}

// HostVenue is the legacy venue embedding on a work.
type HostVenue struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// Location is the newer primary_location embedding, pointing at a source.
type Location struct {
	Source *HostVenue `json:"source"`
}

// WorkSummary mirrors summary_stats on a work, present on some records.
type WorkSummary struct {
	TwoYrMeanCitedness *float64 `json:"2yr_mean_citedness"`
}

// Source is an OpenAlex venue record carrying aggregate citation stats.
type Source struct {
	ID           string        `json:"id"`
	DisplayName  string        `json:"display_name"`
	SummaryStats *SummaryStats `json:"summary_stats"`
}

// SummaryStats carries the venue impact figure the scorer consumes.
type SummaryStats struct {
	TwoYrMeanCitedness *float64 `json:"2yr_mean_citedness"`
}

// Client is the subset of the OpenAlex API the enrichment stage uses.
type Client interface {
	WorkByID(ctx context.Context, id string) (*Work, error)
	SearchWork(ctx context.Context, title string) (*Work, error)
	Source(ctx context.Context, id string) (*Source, error)
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

// WithMailto joins the OpenAlex polite pool by attaching a contact address
// to every request.
func WithMailto(email string) Option {
	return func(c *httpClient) {
		c.mailto = email
	}
}

type httpClient struct {
	baseURL string
	mailto  string
	http    *http.Client
}

// NewClient creates an OpenAlex client.
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

// WorkByID fetches a work by external identifier, e.g. "doi:10.1234/x" or
// "arXiv:2401.12345". A 404 returns (nil, nil).
func (c *httpClient) WorkByID(ctx context.Context, id string) (*Work, error) {
	body, status, err := c.get(ctx, "/works/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, nil
	}
	if status != http.StatusOK {
		return nil, eris.Errorf("openalex: unexpected status %d: %s", status, string(body))
	}

	var work Work
	if err := json.Unmarshal(body, &work); err != nil {
		return nil, eris.Wrap(err, "openalex: unmarshal work")
	}
	return &work, nil
}

type workList struct {
	Results []Work `json:"results"`
}

// SearchWork finds the closest-matching work for a title. Returns
// (nil, nil) when nothing matches.
func (c *httpClient) SearchWork(ctx context.Context, title string) (*Work, error) {
	params := url.Values{}
	params.Set("search", title)
	params.Set("per_page", "1")

	body, status, err := c.get(ctx, "/works", params)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, eris.Errorf("openalex: unexpected status %d: %s", status, string(body))
	}

	var list workList
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, eris.Wrap(err, "openalex: unmarshal work list")
	}
	if len(list.Results) == 0 {
		return nil, nil
	}
	return &list.Results[0], nil
}

// Source fetches a venue source record. The id may be a full OpenAlex URL
// as embedded in works, or a bare id like "S12345". A 404 returns
// (nil, nil).
func (c *httpClient) Source(ctx context.Context, id string) (*Source, error) {
	if idx := strings.LastIndex(id, "/"); idx >= 0 {
		id = id[idx+1:]
	}

	body, status, err := c.get(ctx, "/sources/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, nil
	}
	if status != http.StatusOK {
		return nil, eris.Errorf("openalex: unexpected status %d: %s", status, string(body))
	}

	var source Source
	if err := json.Unmarshal(body, &source); err != nil {
		return nil, eris.Wrap(err, "openalex: unmarshal source")
	}
	return &source, nil
}

// VenueID returns the source id attached to the work, preferring the newer
// primary_location embedding over the legacy host_venue.
func (w *Work) VenueID() string {
	if w.PrimaryLoc != nil && w.PrimaryLoc.Source != nil && w.PrimaryLoc.Source.ID != "" {
		return w.PrimaryLoc.Source.ID
	}
	if w.HostVenue != nil {
		return w.HostVenue.ID
	}
	return ""
}

func (c *httpClient) get(ctx context.Context, path string, params url.Values) ([]byte, int, error) {
	if params == nil {
		params = url.Values{}
	}
	if c.mailto != "" {
		params.Set("mailto", c.mailto)
	}

	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, eris.Wrap(err, "openalex: create request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, eris.Wrap(err, "openalex: send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, eris.Wrap(err, "openalex: read response")
	}
	return body, resp.StatusCode, nil
}

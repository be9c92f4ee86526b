package openalex

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkByID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/works/doi:10.1234/vla", r.URL.Path)
		assert.Equal(t, "team@example.org", r.URL.Query().Get("mailto"))
		fmt.Fprint(w, `{
  "id": "https://openalex.org/W111",
  "display_name": "A VLA Survey",
  "host_venue": {"id": "https://openalex.org/S222", "display_name": "CoRL"}
}`)
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL), WithMailto("team@example.org"))
	work, err := client.WorkByID(context.Background(), "doi:10.1234/vla")
	require.NoError(t, err)
	require.NotNil(t, work)
	assert.Equal(t, "A VLA Survey", work.DisplayName)
	assert.Equal(t, "https://openalex.org/S222", work.VenueID())
}

func TestWorkByIDNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))
	work, err := client.WorkByID(context.Background(), "doi:10.1234/missing")
	require.NoError(t, err)
	assert.Nil(t, work)
}

func TestSearchWork(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/works", r.URL.Path)
		assert.Equal(t, "1", r.URL.Query().Get("per_page"))
		fmt.Fprint(w, `{
  "results": [{
    "id": "https://openalex.org/W333",
    "display_name": "Closest Work",
    "primary_location": {"source": {"id": "https://openalex.org/S444", "display_name": "RSS"}}
  }]
}`)
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))
	work, err := client.SearchWork(context.Background(), "closest work")
	require.NoError(t, err)
	require.NotNil(t, work)

	// primary_location wins over host_venue.
	assert.Equal(t, "https://openalex.org/S444", work.VenueID())
}

func TestSearchWorkEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"results": []}`)
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))
	work, err := client.SearchWork(context.Background(), "no such work")
	require.NoError(t, err)
	assert.Nil(t, work)
}

func TestSource(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Full OpenAlex URLs are reduced to the bare id.
		assert.Equal(t, "/sources/S222", r.URL.Path)
		fmt.Fprint(w, `{
  "id": "https://openalex.org/S222",
  "display_name": "CoRL",
  "summary_stats": {"2yr_mean_citedness": 4.25}
}`)
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))
	source, err := client.Source(context.Background(), "https://openalex.org/S222")
	require.NoError(t, err)
	require.NotNil(t, source)
	require.NotNil(t, source.SummaryStats)
	require.NotNil(t, source.SummaryStats.TwoYrMeanCitedness)
	assert.Equal(t, 4.25, *source.SummaryStats.TwoYrMeanCitedness)
}

func TestSourceWithoutStats(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id": "https://openalex.org/S999", "display_name": "Workshop"}`)
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))
	source, err := client.Source(context.Background(), "S999")
	require.NoError(t, err)
	require.NotNil(t, source)
	assert.Nil(t, source.SummaryStats)
}

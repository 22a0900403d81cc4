package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestClient points a search client at a stub Tavily server.
func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient("test-key")
	require.NoError(t, err)
	client.baseURL = srv.URL
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestSearchTopicSuccess(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/search", r.URL.Path)

		var req searchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-key", req.APIKey)
		assert.Equal(t, "advanced", req.SearchDepth)
		assert.Equal(t, 10, req.MaxResults)
		assert.Equal(t, 7, req.Days)
		assert.Contains(t, req.Query, "quantum computing")
		assert.Contains(t, req.Query, "7 days")

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"query": "q",
			"results": [
				{"title": "Story A", "url": "https://a.example.com", "content": "alpha", "score": 0.9},
				{"title": "", "url": "https://missing-title.example.com", "content": "x"},
				{"title": "No URL", "url": "", "content": "y"},
				{"title": "Story B", "url": "https://b.example.com", "content": "beta", "score": 0.7}
			]
		}`))
	})

	results, err := client.SearchTopic(context.Background(), "quantum computing", Options{
		MaxResults:  10,
		RecencyDays: 7,
	})
	require.NoError(t, err)

	require.Len(t, results, 2, "results without URL or title are dropped")
	assert.Equal(t, "Story A", results[0].Title)
	assert.Equal(t, "Story B", results[1].Title)
}

func TestSearchTopicRequiresAPIKey(t *testing.T) {
	client, err := NewClient("")
	require.NoError(t, err)
	defer client.Close()

	_, err = client.SearchTopic(context.Background(), "topic", Options{MaxResults: 5, RecencyDays: 7})
	assert.ErrorContains(t, err, "API key")
}

func TestSearchTopicRetriesOnRateLimit(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			http.Error(w, "rate limited", http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"results": [{"title": "T", "url": "https://t.example.com"}]}`))
	})

	results, err := client.SearchTopic(context.Background(), "topic", Options{MaxResults: 5, RecencyDays: 7})
	require.NoError(t, err)
	assert.Len(t, results, 1)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestSearchTopicDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	})

	_, err := client.SearchTopic(context.Background(), "topic", Options{MaxResults: 5, RecencyDays: 7})
	assert.Error(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls), "4xx responses are not retried")
}

func TestFilterUsableResults(t *testing.T) {
	results := filterUsableResults([]Result{
		{Title: "ok", URL: "https://ok.example.com"},
		{Title: "", URL: "https://no-title.example.com"},
		{Title: "no url", URL: ""},
	})
	require.Len(t, results, 1)
	assert.Equal(t, "ok", results[0].Title)
}

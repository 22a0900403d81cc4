package search

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	// TavilyAPI is the base URL for the Tavily search API
	TavilyAPI = "https://api.tavily.com"
)

// Result represents a single story returned by the search API
type Result struct {
	Title         string  `json:"title"`
	URL           string  `json:"url"`
	Content       string  `json:"content"`
	Score         float64 `json:"score"`
	PublishedDate string  `json:"published_date,omitempty"`
}

// searchRequest is the Tavily /search request body
type searchRequest struct {
	APIKey         string   `json:"api_key"`
	Query          string   `json:"query"`
	SearchDepth    string   `json:"search_depth"`
	MaxResults     int      `json:"max_results"`
	IncludeDomains []string `json:"include_domains,omitempty"`
	IncludeRaw     bool     `json:"include_raw_content"`
	Days           int      `json:"days,omitempty"`
}

// searchResponse is the Tavily /search response body
type searchResponse struct {
	Query   string   `json:"query"`
	Results []Result `json:"results"`
}

// Options control a single topic search
type Options struct {
	MaxResults     int
	RecencyDays    int
	IncludeDomains []string
}

// SearchTopic fetches recent stories for a topic from the search API.
// Results missing a URL or title are dropped before they reach the
// summarizer, matching the needs of source citation.
func (c *Client) SearchTopic(ctx context.Context, topic string, opts Options) ([]Result, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("search API key is not configured")
	}

	start := time.Now()
	url := c.baseURL + "/search"

	req := searchRequest{
		APIKey:         c.apiKey,
		Query:          buildQuery(topic, opts.RecencyDays),
		SearchDepth:    "advanced",
		MaxResults:     opts.MaxResults,
		IncludeDomains: opts.IncludeDomains,
		IncludeRaw:     false,
		Days:           opts.RecencyDays,
	}

	log.WithFields(log.Fields{
		"topic":       topic,
		"max_results": opts.MaxResults,
	}).Debug("Fetching search results for topic")

	var response searchResponse
	err := c.postJSON(ctx, url, req, &response)

	// Log the request
	c.logRequest(url, time.Since(start), err)

	if err != nil {
		return nil, err
	}

	filtered := filterUsableResults(response.Results)

	log.WithFields(log.Fields{
		"topic":          topic,
		"total_results":  len(response.Results),
		"usable_results": len(filtered),
	}).Info("Processed search API response")

	return filtered, nil
}

// buildQuery refines the topic into a query biased toward recent, citable
// sources (news, papers, project updates).
func buildQuery(topic string, recencyDays int) string {
	return fmt.Sprintf(
		"Recent news, research papers, technical articles, project updates, "+
			"and significant announcements about '%s' published within the last %d days.",
		topic, recencyDays,
	)
}

// filterUsableResults drops results that cannot be cited (missing URL or title)
func filterUsableResults(results []Result) []Result {
	var usable []Result
	for _, r := range results {
		if r.URL == "" || r.Title == "" {
			continue
		}
		usable = append(usable, r)
	}
	return usable
}

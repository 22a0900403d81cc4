package filter

import (
	"testing"

	"Newsletter-Bot/internal/config"
	"Newsletter-Bot/internal/feeds"
	"Newsletter-Bot/internal/search"

	"github.com/stretchr/testify/assert"
)

func TestNilFiltersAcceptEverything(t *testing.T) {
	assert.True(t, MatchesSearchResult(nil, search.Result{Title: "anything"}))
	assert.True(t, MatchesFeedEntry(nil, feeds.Entry{Title: "anything"}))
}

func TestIncludeKeywords(t *testing.T) {
	filters := &config.StoryFilters{
		IncludeKeywords: []string{"quantum", "fusion"},
	}

	assert.True(t, MatchesSearchResult(filters, search.Result{
		Title: "Breakthrough in Quantum Error Correction",
	}), "case-insensitive include match")

	assert.True(t, MatchesSearchResult(filters, search.Result{
		Title:   "Energy news",
		Content: "A fusion startup announced...",
	}), "content counts toward keyword matching")

	assert.False(t, MatchesSearchResult(filters, search.Result{
		Title:   "Celebrity gossip",
		Content: "nothing relevant here",
	}))
}

func TestExcludeKeywordsWinOverInclude(t *testing.T) {
	filters := &config.StoryFilters{
		IncludeKeywords: []string{"ai"},
		ExcludeKeywords: []string{"sponsored"},
	}

	assert.True(t, MatchesSearchResult(filters, search.Result{Title: "AI research update"}))
	assert.False(t, MatchesSearchResult(filters, search.Result{
		Title: "Sponsored: the best AI gadgets",
	}))
}

func TestRegexKeywordMode(t *testing.T) {
	filters := &config.StoryFilters{
		IncludeKeywords:  []string{`GPT-\d+`},
		KeywordMatchMode: "regex",
	}

	assert.True(t, MatchesSearchResult(filters, search.Result{Title: "GPT-5 released"}))
	assert.False(t, MatchesSearchResult(filters, search.Result{Title: "GPT announcement"}))
}

func TestInvalidRegexIsSkipped(t *testing.T) {
	filters := &config.StoryFilters{
		IncludeKeywords:  []string{`([`},
		KeywordMatchMode: "regex",
	}

	// A broken pattern never matches, so an include-only filter rejects
	assert.False(t, MatchesSearchResult(filters, search.Result{Title: "anything"}))
}

func TestExcludeDomains(t *testing.T) {
	filters := &config.StoryFilters{
		ExcludeDomains: []string{"pinterest.com"},
	}

	assert.False(t, MatchesSearchResult(filters, search.Result{
		Title: "Some board",
		URL:   "https://pinterest.com/pin/123",
	}))
	assert.False(t, MatchesSearchResult(filters, search.Result{
		Title: "Subdomain",
		URL:   "https://www.pinterest.com/pin/123",
	}), "subdomains of excluded domains are excluded")
	assert.True(t, MatchesSearchResult(filters, search.Result{
		Title: "Lookalike",
		URL:   "https://notpinterest.com/article",
	}))
	assert.True(t, MatchesSearchResult(filters, search.Result{
		Title: "No URL",
	}), "unparsable or missing URLs pass the domain filter")
}

func TestFeedEntryFiltering(t *testing.T) {
	filters := &config.StoryFilters{
		IncludeKeywords: []string{"launch"},
		ExcludeDomains:  []string{"spam.example.com"},
	}

	assert.True(t, MatchesFeedEntry(filters, feeds.Entry{
		Title: "Rocket launch scheduled",
		Link:  "https://news.example.com/rocket",
	}))
	assert.False(t, MatchesFeedEntry(filters, feeds.Entry{
		Title: "Rocket launch scheduled",
		Link:  "https://spam.example.com/rocket",
	}))
	assert.False(t, MatchesFeedEntry(filters, feeds.Entry{
		Title:       "Unrelated",
		Description: "nothing here",
		Link:        "https://news.example.com/other",
	}))
}

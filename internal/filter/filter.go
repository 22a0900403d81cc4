// Package filter provides story filtering for search results and RSS entries.
//
// Filter Logic:
//   - nil filters → accept everything (backward-compatible)
//   - Include rules (whitelist): if set, story MUST match at least one value
//   - Exclude rules (blacklist): if matched, story is dropped
//   - Field groups are AND-combined; values within a group are OR-combined
//   - Exclude is evaluated after include (exclude wins on conflict)
package filter

import (
	"net/url"
	"regexp"
	"strings"

	"Newsletter-Bot/internal/config"
	"Newsletter-Bot/internal/feeds"
	"Newsletter-Bot/internal/search"

	log "github.com/sirupsen/logrus"
)

// MatchesSearchResult returns true if the search result passes the filter rules.
// Returns true when filters is nil (no filtering configured).
func MatchesSearchResult(filters *config.StoryFilters, result search.Result) bool {
	if filters == nil {
		return true
	}

	// Check domain filter against the result URL
	if !matchesDomain(filters.ExcludeDomains, result.URL) {
		return false
	}

	// Check keyword filter against Title + Content
	searchText := result.Title + " " + result.Content
	return matchesKeywords(filters.IncludeKeywords, filters.ExcludeKeywords, searchText, filters.KeywordMatchMode)
}

// MatchesFeedEntry returns true if the RSS entry passes the filter rules.
// Returns true when filters is nil (no filtering configured).
func MatchesFeedEntry(filters *config.StoryFilters, entry feeds.Entry) bool {
	if filters == nil {
		return true
	}

	// Check domain filter against the entry link
	if !matchesDomain(filters.ExcludeDomains, entry.Link) {
		return false
	}

	// Check keyword filter against Title + Description
	searchText := entry.Title + " " + entry.Description
	return matchesKeywords(filters.IncludeKeywords, filters.ExcludeKeywords, searchText, filters.KeywordMatchMode)
}

// matchesDomain checks a story URL against the exclude-domain list.
// Subdomains of an excluded domain are excluded too.
func matchesDomain(excludeDomains []string, rawURL string) bool {
	if len(excludeDomains) == 0 {
		return true
	}

	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Hostname() == "" {
		// Unparsable URLs pass the domain filter; keyword rules still apply
		return true
	}

	host := strings.ToLower(parsed.Hostname())
	for _, exc := range excludeDomains {
		excLower := strings.ToLower(strings.TrimSpace(exc))
		if excLower == "" {
			continue
		}
		if host == excLower || strings.HasSuffix(host, "."+excLower) {
			return false
		}
	}

	return true
}

// matchesKeywords checks text against include/exclude keyword lists.
// mode is "literal" (default) or "regex".
func matchesKeywords(include, exclude []string, text, mode string) bool {
	useRegex := strings.EqualFold(mode, "regex")
	lowerText := strings.ToLower(text)

	// Include check: text must match at least one keyword
	if len(include) > 0 {
		found := false
		for _, kw := range include {
			if keywordMatch(kw, text, lowerText, useRegex) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	// Exclude check: text must NOT match any keyword
	for _, kw := range exclude {
		if keywordMatch(kw, text, lowerText, useRegex) {
			return false
		}
	}

	return true
}

// keywordMatch checks if a single keyword matches the text.
func keywordMatch(keyword, text, lowerText string, useRegex bool) bool {
	if useRegex {
		re, err := regexp.Compile(keyword)
		if err != nil {
			log.WithFields(log.Fields{
				"pattern": keyword,
				"error":   err,
			}).Warn("Invalid regex pattern in filter, skipping")
			return false
		}
		return re.MatchString(text)
	}
	// Literal: case-insensitive substring match
	return strings.Contains(lowerText, strings.ToLower(keyword))
}

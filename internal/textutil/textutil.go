package textutil

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Pre-compiled regex patterns for HTML stripping
var (
	htmlTagRegex    = regexp.MustCompile(`<[^>]*>`)
	whitespaceRegex = regexp.MustCompile(`\s+`)
)

// StripHTML removes HTML tags and decodes common HTML entities from text.
// Multiple whitespace characters are collapsed into a single space.
func StripHTML(input string) string {
	if input == "" {
		return ""
	}

	// Remove HTML tags using pre-compiled regex
	text := htmlTagRegex.ReplaceAllString(input, "")

	// Decode common HTML entities
	text = strings.ReplaceAll(text, "&lt;", "<")
	text = strings.ReplaceAll(text, "&gt;", ">")
	text = strings.ReplaceAll(text, "&amp;", "&")
	text = strings.ReplaceAll(text, "&quot;", "\"")
	text = strings.ReplaceAll(text, "&#39;", "'")
	text = strings.ReplaceAll(text, "&nbsp;", " ")

	// Clean up multiple spaces and trim
	text = whitespaceRegex.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// TruncateText truncates text to a maximum number of runes (Unicode-safe).
// If the text exceeds maxLength runes, it is truncated with "..." appended.
func TruncateText(text string, maxLength int) string {
	if utf8.RuneCountInString(text) <= maxLength {
		return text
	}
	return string([]rune(text)[:maxLength-3]) + "..."
}

// SanitizeError rewrites a raw error message into a form safe to surface in
// the status display. API and SMTP failures can carry keys or provider
// detail, so they are replaced with generic text; anything else is truncated.
func SanitizeError(errMsg string) string {
	if errMsg == "" {
		return ""
	}

	lower := strings.ToLower(errMsg)

	if strings.Contains(lower, "api") {
		return "API connection error. Check your API keys and internet connection."
	}

	if strings.Contains(lower, "smtp") || strings.Contains(lower, "email") {
		return "Email sending error. Check your email server settings."
	}

	if utf8.RuneCountInString(errMsg) > 100 {
		return TruncateText(errMsg, 100)
	}

	return errMsg
}

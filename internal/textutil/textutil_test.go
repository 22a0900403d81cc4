package textutil

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestStripHTML(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"plain text", "hello world", "hello world"},
		{"simple tags", "<p>hello <b>world</b></p>", "hello world"},
		{"entities", "a &amp; b &lt;c&gt; &quot;d&quot; &#39;e&#39;", `a & b <c> "d" 'e'`},
		{"nbsp and whitespace", "a&nbsp;&nbsp;b\n\n  c", "a b c"},
		{"attributes", `<a href="https://example.com">link</a>`, "link"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripHTML(tt.input))
		})
	}
}

func TestTruncateText(t *testing.T) {
	assert.Equal(t, "short", TruncateText("short", 10))
	assert.Equal(t, "exact", TruncateText("exact", 5))

	got := TruncateText(strings.Repeat("x", 50), 10)
	assert.Equal(t, "xxxxxxx...", got)
	assert.Equal(t, 10, utf8.RuneCountInString(got))

	// Unicode-safe: no broken runes
	got = TruncateText(strings.Repeat("ü", 50), 10)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, 10, utf8.RuneCountInString(got))
}

func TestSanitizeError(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"api error is masked", "Tavily API returned 401: invalid key sk-123", "API connection error. Check your API keys and internet connection."},
		{"smtp error is masked", "smtp authentication failed: 535 bad credentials", "Email sending error. Check your email server settings."},
		{"email error is masked", "email sending error: relay denied", "Email sending error. Check your email server settings."},
		{"short error passes through", "no stories found", "no stories found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeError(tt.input))
		})
	}

	t.Run("long error is truncated", func(t *testing.T) {
		got := SanitizeError(strings.Repeat("z", 200))
		assert.Equal(t, 100, utf8.RuneCountInString(got))
		assert.True(t, strings.HasSuffix(got, "..."))
	})
}

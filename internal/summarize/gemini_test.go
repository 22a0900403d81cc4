package summarize

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanHTMLResponse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"bare html untouched", "<html><body>x</body></html>", "<html><body>x</body></html>"},
		{"html fence stripped", "```html\n<html>x</html>\n```", "<html>x</html>"},
		{"plain fence stripped", "```\n<html>x</html>\n```", "<html>x</html>"},
		{"leading whitespace", "  \n```html\n<p>y</p>\n```  ", "<p>y</p>"},
		{"fence without newline", "```html```", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanHTMLResponse(tt.input))
		})
	}
}

// newTestClient points a client at a stub generateContent server.
func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient("test-key", "test-model")
	c.baseURL = srv.URL
	return c
}

func TestDigestSuccess(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Contains(t, r.URL.Path, "test-model")
		assert.Contains(t, r.URL.RawQuery, "key=test-key")

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"candidates": [{
				"content": {"parts": [{"text": "## Digest\n\n- [story](https://example.com)"}]},
				"finishReason": "STOP"
			}]
		}`))
	})

	digest, err := client.Digest(context.Background(), "robotics", []Story{
		{Title: "Robot news", URL: "https://example.com", Content: "robots did things"},
	})
	require.NoError(t, err)
	assert.Contains(t, digest, "## Digest")
}

func TestDigestRequiresStoriesAndKey(t *testing.T) {
	client := NewClient("", "m")
	_, err := client.Digest(context.Background(), "topic", []Story{{Title: "x"}})
	assert.ErrorContains(t, err, "API key")

	client = NewClient("key", "m")
	_, err = client.Digest(context.Background(), "topic", nil)
	assert.ErrorContains(t, err, "no stories")
}

func TestDigestBlockedPrompt(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"promptFeedback": {"blockReason": "SAFETY"}}`))
	})

	_, err := client.Digest(context.Background(), "topic", []Story{{Title: "x", URL: "u"}})
	assert.ErrorIs(t, err, ErrContentBlocked)
}

func TestDigestNoCandidates(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates": []}`))
	})

	_, err := client.Digest(context.Background(), "topic", []Story{{Title: "x", URL: "u"}})
	assert.ErrorIs(t, err, ErrContentBlocked)
}

func TestDigestServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	})

	_, err := client.Digest(context.Background(), "topic", []Story{{Title: "x", URL: "u"}})
	assert.ErrorContains(t, err, "429")
}

func TestRenderHTMLStripsFences(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"candidates": [{
				"content": {"parts": [{"text": "` + "```html\\n<html><body>ok</body></html>\\n```" + `"}]}
			}]
		}`))
	})

	html, err := client.RenderHTML(context.Background(), "## digest")
	require.NoError(t, err)
	assert.Equal(t, "<html><body>ok</body></html>", html)
}

func TestRenderHTMLRejectsEmptyDigest(t *testing.T) {
	client := NewClient("key", "m")
	_, err := client.RenderHTML(context.Background(), "   ")
	assert.ErrorContains(t, err, "empty digest")
}

func TestBuildDigestPromptCitesEveryStory(t *testing.T) {
	prompt := buildDigestPrompt("space", []Story{
		{Title: "A", URL: "https://a.example.com", Content: "alpha"},
		{Title: "B", URL: "https://b.example.com", Content: "beta", Published: "2026-08-26"},
	})

	assert.Contains(t, prompt, `"space"`)
	assert.Contains(t, prompt, "https://a.example.com")
	assert.Contains(t, prompt, "https://b.example.com")
	assert.Contains(t, prompt, "Published: 2026-08-26")
}

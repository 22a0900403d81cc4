// Package summarize turns collected stories into a newsletter digest
// using the Gemini generateContent REST API. Generation runs in two
// passes: a markdown digest first, then a lower-temperature conversion
// of that digest into standalone HTML for email delivery.
package summarize

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	// GeminiAPI is the base URL for the Gemini REST API
	GeminiAPI = "https://generativelanguage.googleapis.com/v1beta"

	// requestTimeout bounds a single generation call
	requestTimeout = 60 * time.Second

	// maxResponseSize limits API response size (10MB)
	maxResponseSize = 10 * 1024 * 1024

	// digestTemperature is used for the markdown digest pass
	digestTemperature = 0.5

	// htmlTemperature is used for the HTML conversion pass; lower so the
	// model stays close to the digest instead of rewriting it
	htmlTemperature = 0.2
)

// ErrContentBlocked indicates the API refused to generate content
// for the given prompt (safety filters).
var ErrContentBlocked = errors.New("content generation blocked by API")

// Story is a single source item handed to the summarizer.
type Story struct {
	Title     string
	URL       string
	Content   string
	Published string
}

// Client calls the Gemini generateContent endpoint.
type Client struct {
	httpClient *http.Client
	apiKey     string
	model      string
	baseURL    string
}

// generateRequest is the generateContent request body.
type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature float64 `json:"temperature"`
}

// generateResponse is the subset of the generateContent response we use.
type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

// NewClient creates a Gemini client for the given API key and model.
func NewClient(apiKey, model string) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
		apiKey:  apiKey,
		model:   model,
		baseURL: GeminiAPI,
	}
}

// Digest generates a markdown newsletter digest for the topic from the
// given stories. Each story must be cited with its source URL.
func (c *Client) Digest(ctx context.Context, topic string, stories []Story) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("summarizer API key is not configured")
	}
	if len(stories) == 0 {
		return "", fmt.Errorf("no stories to summarize for topic %q", topic)
	}

	prompt := buildDigestPrompt(topic, stories)

	log.WithFields(log.Fields{
		"topic":   topic,
		"stories": len(stories),
		"model":   c.model,
	}).Info("Generating newsletter digest")

	text, err := c.generate(ctx, prompt, digestTemperature)
	if err != nil {
		return "", fmt.Errorf("digest generation failed: %w", err)
	}

	return strings.TrimSpace(text), nil
}

// RenderHTML converts a markdown digest into a standalone HTML document
// suitable for an email body. Returns the cleaned HTML.
func (c *Client) RenderHTML(ctx context.Context, markdown string) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("summarizer API key is not configured")
	}
	if strings.TrimSpace(markdown) == "" {
		return "", fmt.Errorf("empty digest, nothing to render")
	}

	prompt := buildHTMLPrompt(markdown)

	text, err := c.generate(ctx, prompt, htmlTemperature)
	if err != nil {
		return "", fmt.Errorf("html rendering failed: %w", err)
	}

	return CleanHTMLResponse(text), nil
}

// generate performs a single generateContent call and returns the first
// candidate's text.
func (c *Client) generate(ctx context.Context, prompt string, temperature float64) (string, error) {
	reqBody := generateRequest{
		Contents: []content{
			{Parts: []part{{Text: prompt}}},
		},
		GenerationConfig: generationConfig{Temperature: temperature},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("generation request failed: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			log.WithError(closeErr).Warn("Failed to close response body")
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	log.WithFields(log.Fields{
		"status_code": resp.StatusCode,
		"duration_ms": time.Since(start).Milliseconds(),
		"model":       c.model,
	}).Debug("Generation request completed")

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("generation API returned status %d", resp.StatusCode)
	}

	var genResp generateResponse
	if err := json.Unmarshal(body, &genResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	if genResp.PromptFeedback != nil && genResp.PromptFeedback.BlockReason != "" {
		log.WithField("block_reason", genResp.PromptFeedback.BlockReason).Warn("Prompt blocked by content safety")
		return "", ErrContentBlocked
	}

	if len(genResp.Candidates) == 0 || len(genResp.Candidates[0].Content.Parts) == 0 {
		return "", ErrContentBlocked
	}

	var sb strings.Builder
	for _, p := range genResp.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}

	result := sb.String()
	if strings.TrimSpace(result) == "" {
		return "", fmt.Errorf("generation returned empty text")
	}

	return result, nil
}

// buildDigestPrompt creates the markdown digest prompt.
func buildDigestPrompt(topic string, stories []Story) string {
	var sb strings.Builder

	sb.WriteString("You are writing a newsletter digest about \"")
	sb.WriteString(topic)
	sb.WriteString("\".\n\n")
	sb.WriteString("Summarize the following stories into a well-structured markdown digest. ")
	sb.WriteString("Group related stories, lead with the most significant developments, ")
	sb.WriteString("and cite every story with a markdown link to its source URL. ")
	sb.WriteString("Do not invent facts not present in the stories.\n\n")

	for i, story := range stories {
		sb.WriteString(fmt.Sprintf("--- Story %d ---\n", i+1))
		sb.WriteString("Title: " + story.Title + "\n")
		sb.WriteString("URL: " + story.URL + "\n")
		if story.Published != "" {
			sb.WriteString("Published: " + story.Published + "\n")
		}
		sb.WriteString("Content: " + story.Content + "\n\n")
	}

	return sb.String()
}

// buildHTMLPrompt creates the HTML conversion prompt.
func buildHTMLPrompt(markdown string) string {
	var sb strings.Builder

	sb.WriteString("Convert the following markdown newsletter into a complete, standalone HTML document ")
	sb.WriteString("suitable for an email body. Use inline CSS only, no external resources or scripts. ")
	sb.WriteString("Preserve all links and the content exactly. ")
	sb.WriteString("Respond with only the HTML document.\n\n")
	sb.WriteString(markdown)

	return sb.String()
}

// CleanHTMLResponse strips markdown code fences that models commonly
// wrap HTML output in, e.g. ```html ... ```.
func CleanHTMLResponse(raw string) string {
	cleaned := strings.TrimSpace(raw)

	if strings.HasPrefix(cleaned, "```") {
		// Drop the opening fence line (``` or ```html)
		if idx := strings.Index(cleaned, "\n"); idx != -1 {
			cleaned = cleaned[idx+1:]
		} else {
			cleaned = strings.TrimPrefix(cleaned, "```html")
			cleaned = strings.TrimPrefix(cleaned, "```")
		}
	}

	if idx := strings.LastIndex(cleaned, "```"); idx != -1 {
		cleaned = cleaned[:idx]
	}

	return strings.TrimSpace(cleaned)
}

// Close releases resources held by the client.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

// Package newsletter runs the generation pipeline: collect stories,
// summarize them, render HTML and deliver the result by email. Each
// stage short-circuits the run on failure; errors are recorded with
// sanitized messages so internal details never reach status consumers.
package newsletter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"Newsletter-Bot/internal/config"
	"Newsletter-Bot/internal/feeds"
	"Newsletter-Bot/internal/filter"
	"Newsletter-Bot/internal/mail"
	"Newsletter-Bot/internal/search"
	"Newsletter-Bot/internal/status"
	"Newsletter-Bot/internal/summarize"
	"Newsletter-Bot/internal/textutil"

	log "github.com/sirupsen/logrus"
)

// maxStories caps how many stories are handed to the summarizer per run.
const maxStories = 20

// Searcher finds recent stories for a topic.
type Searcher interface {
	SearchTopic(ctx context.Context, topic string, opts search.Options) ([]search.Result, error)
}

// Summarizer turns stories into a digest and renders it as HTML.
type Summarizer interface {
	Digest(ctx context.Context, topic string, stories []summarize.Story) (string, error)
	RenderHTML(ctx context.Context, markdown string) (string, error)
}

// Mailer delivers a finished newsletter.
type Mailer interface {
	Send(msg mail.Message) error
}

// FeedSource provides supplementary RSS entries with per-feed outcomes.
type FeedSource interface {
	ParseMultipleFeeds(ctx context.Context, feedURLs []string, maxWorkers int, timeout time.Duration) (map[string]feeds.Outcome, error)
}

// Pipeline wires the generation stages together.
type Pipeline struct {
	cfg        *config.Config
	searcher   Searcher
	summarizer Summarizer
	mailer     Mailer
	feedSource FeedSource
	tracker    *status.Tracker
}

// Result reports what a single run produced.
type Result struct {
	Topic      string
	Recipient  string
	StoryCount int
	EmailSent  bool
	StartedAt  time.Time
	FinishedAt time.Time
	Err        error
}

// NewPipeline creates a pipeline. feedSource and tracker may be nil when
// RSS supplementation or run history is not wanted (e.g. dry runs).
func NewPipeline(cfg *config.Config, searcher Searcher, summarizer Summarizer, mailer Mailer, feedSource FeedSource, tracker *status.Tracker) *Pipeline {
	return &Pipeline{
		cfg:        cfg,
		searcher:   searcher,
		summarizer: summarizer,
		mailer:     mailer,
		feedSource: feedSource,
		tracker:    tracker,
	}
}

// Run executes a full newsletter generation for topic and delivers it to
// recipient. The returned Result is also recorded in the run tracker.
func (p *Pipeline) Run(ctx context.Context, topic, recipient string) Result {
	result := Result{
		Topic:     topic,
		Recipient: recipient,
		StartedAt: time.Now().UTC(),
	}

	log.WithFields(log.Fields{
		"topic":     topic,
		"recipient": recipient,
	}).Info("Starting newsletter generation")

	result.Err = p.run(ctx, topic, recipient, &result)
	result.FinishedAt = time.Now().UTC()

	p.record(result)

	if result.Err != nil {
		log.WithFields(log.Fields{
			"topic": topic,
			"error": result.Err,
		}).Error("Newsletter generation failed")
	} else {
		log.WithFields(log.Fields{
			"topic":       topic,
			"stories":     result.StoryCount,
			"duration_ms": result.FinishedAt.Sub(result.StartedAt).Milliseconds(),
		}).Info("Newsletter generation completed")
	}

	return result
}

// run performs the staged pipeline. Each stage failure stops the run.
func (p *Pipeline) run(ctx context.Context, topic, recipient string, result *Result) error {
	stories, err := p.collectStories(ctx, topic)
	if err != nil {
		return fmt.Errorf("story collection failed: %w", err)
	}
	if len(stories) == 0 {
		return fmt.Errorf("no stories found for topic %q", topic)
	}
	result.StoryCount = len(stories)

	digest, err := p.summarizer.Digest(ctx, topic, stories)
	if err != nil {
		return fmt.Errorf("summarization failed: %w", err)
	}

	subject := SubjectFor(topic, time.Now())

	htmlBody, err := p.summarizer.RenderHTML(ctx, digest)
	if err != nil {
		// A failed HTML pass is recoverable; wrap the digest instead.
		log.WithError(err).Warn("HTML rendering failed, using fallback template")
		htmlBody, err = FallbackHTML(subject, digest)
		if err != nil {
			return fmt.Errorf("fallback rendering failed: %w", err)
		}
	}

	msg := mail.Message{
		From:     p.cfg.Email.SenderAddress,
		To:       recipient,
		Subject:  subject,
		TextBody: digest,
		HTMLBody: htmlBody,
	}

	if err := p.mailer.Send(msg); err != nil {
		return fmt.Errorf("delivery failed: %w", err)
	}
	result.EmailSent = true

	return nil
}

// collectStories merges web search results with RSS feed entries, applies
// the configured story filters and caps the total.
func (p *Pipeline) collectStories(ctx context.Context, topic string) ([]summarize.Story, error) {
	var stories []summarize.Story

	results, err := p.searcher.SearchTopic(ctx, topic, search.Options{
		MaxResults:     p.cfg.Search.MaxResults,
		RecencyDays:    p.cfg.Search.RecencyDays,
		IncludeDomains: p.cfg.Search.IncludeDomains,
	})
	if err != nil {
		return nil, err
	}

	for _, r := range results {
		if !filter.MatchesSearchResult(p.cfg.Filters, r) {
			continue
		}
		stories = append(stories, summarize.Story{
			Title:     r.Title,
			URL:       r.URL,
			Content:   r.Content,
			Published: r.PublishedDate,
		})
	}

	// RSS feeds supplement search results; their failure is non-fatal.
	if p.feedSource != nil && len(p.cfg.Feeds.URLs) > 0 {
		outcomes, feedErr := p.feedSource.ParseMultipleFeeds(ctx, p.cfg.Feeds.URLs, p.cfg.Feeds.MaxWorkers, p.cfg.Feeds.WorkerTimeout)
		if feedErr != nil {
			log.WithError(feedErr).Warn("RSS feed collection incomplete")
		}
		for url, outcome := range outcomes {
			if p.tracker != nil {
				p.tracker.RecordFeedCheck(url, len(outcome.Entries), outcome.Err)
			}
			if outcome.Err != nil {
				continue
			}
			for _, e := range outcome.Entries {
				if !filter.MatchesFeedEntry(p.cfg.Filters, e) {
					continue
				}
				stories = append(stories, summarize.Story{
					Title:     e.Title,
					URL:       e.Link,
					Content:   e.Description,
					Published: e.Published.Format(time.RFC3339),
				})
			}
		}
	}

	if len(stories) > maxStories {
		stories = stories[:maxStories]
	}

	return stories, nil
}

// record persists the run outcome with a sanitized error message.
func (p *Pipeline) record(result Result) {
	if p.tracker == nil {
		return
	}

	record := status.RunRecord{
		Topic:      result.Topic,
		Recipient:  result.Recipient,
		StartedAt:  result.StartedAt,
		FinishedAt: result.FinishedAt,
		StoryCount: result.StoryCount,
		EmailSent:  result.EmailSent,
	}
	if result.Err != nil {
		record.Error = textutil.SanitizeError(result.Err.Error())
	}

	p.tracker.RecordRun(record)
}

// IsBlockedContent reports whether the error came from the content
// safety layer, which callers may want to surface differently.
func IsBlockedContent(err error) bool {
	return errors.Is(err, summarize.ErrContentBlocked)
}

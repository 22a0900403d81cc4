// Package notify posts run reports to an admin Discord webhook so
// operators see newsletter outcomes without tailing logs.
package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"Newsletter-Bot/internal/status"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

// Retry configuration
const (
	maxRetries     = 3
	baseRetryDelay = 1 * time.Second
)

// WebhookSender handles sending messages to Discord webhooks
type WebhookSender struct {
	session    *discordgo.Session
	webhookURL string
}

// NewWebhookSender creates a new webhook sender instance
func NewWebhookSender(webhookURL string) (*WebhookSender, error) {
	// For webhook-only operations, we create a minimal Discord session
	// The empty token is fine since we're only using webhook functionality
	session, err := discordgo.New("")
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}

	// Configure HTTP client with timeout to prevent hanging requests
	session.Client = &http.Client{
		Timeout: 10 * time.Second,
	}

	return &WebhookSender{
		session:    session,
		webhookURL: webhookURL,
	}, nil
}

// Close closes the Discord session and releases resources
func (w *WebhookSender) Close() error {
	if w.session != nil {
		return w.session.Close()
	}
	return nil
}

// SendRunReport posts the outcome of a newsletter run to the admin webhook
func (w *WebhookSender) SendRunReport(ctx context.Context, record status.RunRecord) error {
	// Check if context is cancelled before proceeding
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	embed := formatRunEmbed(record)

	params := &discordgo.WebhookParams{
		Embeds: []*discordgo.MessageEmbed{embed},
	}

	// Extract webhook ID and token from URL
	webhookID, webhookToken, err := parseWebhookURL(w.webhookURL)
	if err != nil {
		return fmt.Errorf("invalid webhook URL: %w", err)
	}

	// Send the webhook
	if err := w.executeWebhook(ctx, webhookID, webhookToken, params); err != nil {
		return fmt.Errorf("failed to send run report: %w", err)
	}

	log.WithFields(log.Fields{
		"topic":      record.Topic,
		"email_sent": record.EmailSent,
	}).Info("Sent run report to Discord")

	return nil
}

// executeWebhook sends a webhook message to Discord with retry logic
func (w *WebhookSender) executeWebhook(ctx context.Context, webhookID, webhookToken string, params *discordgo.WebhookParams) error {
	if w.session == nil {
		return fmt.Errorf("discord session not available")
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		// Check context before each attempt
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		// Wait before retry (linear backoff)
		if attempt > 0 {
			retryDelay := baseRetryDelay * time.Duration(attempt)
			log.WithFields(log.Fields{
				"attempt": attempt + 1,
				"delay":   retryDelay,
			}).Debug("Retrying Discord webhook")

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryDelay):
			}
		}

		// Execute webhook
		_, err := w.session.WebhookExecute(webhookID, webhookToken, false, params)
		if err == nil {
			return nil
		}

		lastErr = err

		// Check if error is retryable
		if !isRetryableError(err) {
			return err
		}

		log.WithError(err).WithField("attempt", attempt+1).Warn("Discord webhook failed, retrying...")
	}

	return fmt.Errorf("failed after %d attempts: %w", maxRetries, lastErr)
}

// isRetryableError checks if an error is temporary and worth retrying
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())

	// Discord rate limit (HTTP 429)
	if strings.Contains(errStr, "429") || strings.Contains(errStr, "rate limit") {
		return true
	}

	// Temporary network errors
	if strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "connection") ||
		strings.Contains(errStr, "temporary") ||
		strings.Contains(errStr, "unavailable") {
		return true
	}

	// Server errors (5xx)
	if strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "504") {
		return true
	}

	return false
}

// parseWebhookURL extracts the webhook ID and token from a Discord webhook URL
func parseWebhookURL(webhookURL string) (string, string, error) {
	// Discord webhook URLs have the format:
	// https://discord.com/api/webhooks/{webhook.id}/{webhook.token}

	const prefix = "https://discord.com/api/webhooks/"
	if !strings.HasPrefix(webhookURL, prefix) {
		return "", "", fmt.Errorf("invalid webhook URL format")
	}

	// Remove the prefix
	remainder := webhookURL[len(prefix):]

	// Split by '/' to get ID and token
	parts := strings.Split(remainder, "/")
	if len(parts) < 2 {
		return "", "", fmt.Errorf("webhook URL missing ID or token")
	}

	webhookID := parts[0]
	webhookToken := parts[1]

	if webhookID == "" || webhookToken == "" {
		return "", "", fmt.Errorf("webhook ID or token is empty")
	}

	return webhookID, webhookToken, nil
}

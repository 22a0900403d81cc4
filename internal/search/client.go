// Package search provides the Tavily search API client used to collect
// recent stories for a newsletter topic, with security-hardened TLS
// configuration and proper error handling.
//
// The client supports:
// - Hardened TLS 1.2/1.3 configuration with secure cipher suites
// - Request timeouts and connection pooling
// - JSON response parsing with memory limits
// - Retry with linear backoff on rate limits and server errors

package search

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// Retry configuration
const (
	maxRetries     = 3
	baseRetryDelay = 1 * time.Second
)

// Client represents the HTTP client for the search API
type Client struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
}

// NewClient creates a new search API client with hardened TLS configuration
//
// Security features:
// - Enforces TLS 1.2+ with secure cipher suites (AEAD preferred)
// - Certificate verification always enabled
// - Connection pooling with limits to prevent resource exhaustion
// - Session resumption for performance
//
// The client is configured for production use with 30-second timeouts
// and appropriate connection limits for concurrent requests.
func NewClient(apiKey string) (*Client, error) {
	// Create hardened TLS configuration
	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS12, // Minimum TLS 1.2
		MaxVersion: tls.VersionTLS13, // Prefer TLS 1.3

		// Secure cipher suites for TLS 1.2 (TLS 1.3 manages its own)
		CipherSuites: []uint16{
			// GCM ciphers (preferred - AEAD)
			tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
			// CBC ciphers (available fallbacks)
			tls.TLS_ECDHE_ECDSA_WITH_AES_128_CBC_SHA256,
			tls.TLS_ECDHE_RSA_WITH_AES_128_CBC_SHA256,
			tls.TLS_ECDHE_ECDSA_WITH_AES_128_CBC_SHA,
			tls.TLS_ECDHE_RSA_WITH_AES_128_CBC_SHA,
		},

		// Security hardening
		InsecureSkipVerify: false,                           // Always verify certificates
		ClientSessionCache: tls.NewLRUClientSessionCache(0), // Session resumption
	}

	// Create HTTP transport with hardened TLS
	//
	// Security rationale:
	// - TLS 1.2+ encryption protects API keys and query content in transit
	// - Secure cipher suites prevent downgrade attacks
	// - Certificate verification prevents man-in-the-middle attacks
	//
	// Performance optimizations:
	// - Keep-alive connections enabled for efficiency
	// - Connection pooling: max 10 idle, 5 per host
	// - Session resumption reduces TLS handshake overhead
	transport := &http.Transport{
		TLSClientConfig:       tlsConfig,
		ForceAttemptHTTP2:     true,
		DisableCompression:    false,
		DisableKeepAlives:     false,
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   5,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
		apiKey:  apiKey,
		baseURL: TavilyAPI,
	}, nil
}

// postJSON performs an HTTPS POST with a JSON body, retry logic and
// rate-limit handling, decoding the JSON response into target.
//
// Security measures:
// - 10MB response body limit to prevent memory exhaustion
// - Context-aware cancellation support
//
// Retry behavior:
// - Retries on rate-limit (429), server errors (5xx), and network errors
// - Linear backoff between retries
// - Respects context cancellation
func (c *Client) postJSON(ctx context.Context, url string, payload interface{}, target interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request body: %w", err)
	}

	var lastErr error
	var lastStatusCode int

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
				"url":     url,
			}).Debug("Retrying search API request")

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryDelay):
			}
		}

		// Create request
		req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}

		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")

		// Perform request
		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			if isRetryableNetworkError(err) {
				log.WithError(err).WithField("attempt", attempt+1).Warn("Search API request failed, retrying...")
				continue
			}
			return lastErr
		}

		lastStatusCode = resp.StatusCode

		// Check if status code is retryable
		if isRetryableStatusCode(resp.StatusCode) {
			// Read and discard body to allow connection reuse
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()

			lastErr = fmt.Errorf("API returned status %d: %s", resp.StatusCode, resp.Status)
			log.WithFields(log.Fields{
				"status_code": resp.StatusCode,
				"attempt":     attempt + 1,
			}).Warn("Search API request failed with retryable status, retrying...")
			continue
		}

		// Non-retryable error status
		if resp.StatusCode != http.StatusOK {
			errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024)) // Read first 1KB for error message
			resp.Body.Close()
			return fmt.Errorf("API returned status %d: %s - %s", resp.StatusCode, resp.Status, string(errBody))
		}

		// Success - decode response
		// Limit response body size to prevent memory exhaustion attacks
		resp.Body = http.MaxBytesReader(nil, resp.Body, 10<<20) // 10MB limit

		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			resp.Body.Close()
			return fmt.Errorf("failed to decode response: %w", err)
		}
		resp.Body.Close()

		return nil
	}

	return fmt.Errorf("failed after %d attempts (last status: %d): %w", maxRetries, lastStatusCode, lastErr)
}

// isRetryableNetworkError checks if a network error is temporary and worth retrying
func isRetryableNetworkError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())

	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "connection") ||
		strings.Contains(errStr, "temporary") ||
		strings.Contains(errStr, "unavailable") ||
		strings.Contains(errStr, "reset")
}

// isRetryableStatusCode checks if an HTTP status code is worth retrying
func isRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests, // 429 - Rate limit
		http.StatusInternalServerError, // 500
		http.StatusBadGateway,          // 502
		http.StatusServiceUnavailable,  // 503
		http.StatusGatewayTimeout:      // 504
		return true
	default:
		return false
	}
}

// logRequest logs search API request details for monitoring and debugging
func (c *Client) logRequest(url string, duration time.Duration, err error) {
	fields := log.Fields{
		"url":      url,
		"duration": duration,
	}

	if err != nil {
		log.WithFields(fields).WithError(err).Error("Search API request failed")
	} else {
		log.WithFields(fields).Debug("Search API request successful")
	}
}

// Close closes the HTTP client and cleans up idle connections
// Should be called during application shutdown
func (c *Client) Close() error {
	if transport, ok := c.httpClient.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
	return nil
}

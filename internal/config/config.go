// Package config provides comprehensive configuration management for the
// newsletter service with validation, defaults, and multi-file JSON support.
//
// Configuration Structure:
// - config_general.json: Core settings, API configuration, logging, filters
// - config_feeds.json: Supplementary RSS feed URLs and parsing limits
// - config_email.json: SMTP delivery settings and quiet hours
package config

import (
	"encoding/json"
	"fmt"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// LoadConfig loads and validates all configuration files from the specified directory
//
// Loading strategy:
// 1. Start with sensible defaults from DefaultConfig()
// 2. Override with values from config_general.json (required)
// 3. Merge optional config_feeds.json and config_email.json
// 4. Apply secret overrides from the environment
// 5. Validate all settings for security and operational requirements
//
// This approach ensures the service can start even with minimal configuration
// while providing extensive customization options for advanced users.
func LoadConfig(configDir string) (*Config, error) {
	// Start with default configuration
	cfg := DefaultConfig()

	// Load general configuration
	if err := loadGeneralConfig(cfg, configDir); err != nil {
		return nil, fmt.Errorf("failed to load general config: %w", err)
	}

	// Load feeds configuration
	if err := loadFeedsConfig(cfg, configDir); err != nil {
		return nil, fmt.Errorf("failed to load feeds config: %w", err)
	}

	// Load email configuration
	if err := loadEmailConfig(cfg, configDir); err != nil {
		return nil, fmt.Errorf("failed to load email config: %w", err)
	}

	// Secrets from the environment take precedence over config file values
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	log.Info("Configuration loaded successfully")
	return cfg, nil
}

// loadGeneralConfig loads the main configuration file
func loadGeneralConfig(cfg *Config, configDir string) error {
	configPath := filepath.Join(configDir, "config_general.json")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	var generalCfg GeneralConfig
	if err := json.Unmarshal(data, &generalCfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	// Apply general configuration to main config
	if generalCfg.LogLevel != "" {
		cfg.LogLevel = generalCfg.LogLevel
	}
	if generalCfg.ListenAddr != "" {
		cfg.ListenAddr = generalCfg.ListenAddr
	}
	if generalCfg.DataDir != "" {
		cfg.DataDir = generalCfg.DataDir
	}
	if generalCfg.Search.APIKey != "" {
		cfg.Search.APIKey = generalCfg.Search.APIKey
	}
	if generalCfg.Search.MaxResults > 0 {
		cfg.Search.MaxResults = generalCfg.Search.MaxResults
	}
	if generalCfg.Search.RecencyDays > 0 {
		cfg.Search.RecencyDays = generalCfg.Search.RecencyDays
	}
	if generalCfg.Search.IncludeDomains != nil {
		cfg.Search.IncludeDomains = generalCfg.Search.IncludeDomains
	}
	if generalCfg.Summarizer.APIKey != "" {
		cfg.Summarizer.APIKey = generalCfg.Summarizer.APIKey
	}
	if generalCfg.Summarizer.Model != "" {
		cfg.Summarizer.Model = generalCfg.Summarizer.Model
	}
	cfg.Notify = generalCfg.Notify
	cfg.Filters = generalCfg.Filters

	// Apply log rotation settings (use defaults if not specified)
	// Prevents misconfiguration that could exhaust disk space
	// or create too many backup files
	if generalCfg.LogRotation.MaxSizeMB != nil {
		cfg.LogRotation.MaxSizeMB = *generalCfg.LogRotation.MaxSizeMB
	}
	if generalCfg.LogRotation.MaxBackups != nil {
		cfg.LogRotation.MaxBackups = *generalCfg.LogRotation.MaxBackups
	}
	if generalCfg.LogRotation.MaxAgeDays != nil {
		cfg.LogRotation.MaxAgeDays = *generalCfg.LogRotation.MaxAgeDays
	}
	if generalCfg.LogRotation.Compress != nil {
		cfg.LogRotation.Compress = *generalCfg.LogRotation.Compress
	}

	// Parse duration strings
	// Supports Go duration format: "24h", "30m", "2s"
	if generalCfg.GenerateInterval != "" {
		duration, err := time.ParseDuration(generalCfg.GenerateInterval)
		if err != nil {
			return fmt.Errorf("invalid generate_interval format: %w", err)
		}
		cfg.GenerateInterval = duration
	}

	if generalCfg.TickInterval != "" {
		duration, err := time.ParseDuration(generalCfg.TickInterval)
		if err != nil {
			return fmt.Errorf("invalid tick_interval format: %w", err)
		}
		cfg.TickInterval = duration
	}

	if generalCfg.StatusPollInterval != "" {
		duration, err := time.ParseDuration(generalCfg.StatusPollInterval)
		if err != nil {
			return fmt.Errorf("invalid status_poll_interval format: %w", err)
		}
		cfg.StatusPollInterval = duration
	}

	return nil
}

// loadFeedsConfig loads the RSS feeds configuration
func loadFeedsConfig(cfg *Config, configDir string) error {
	configPath := filepath.Join(configDir, "config_feeds.json")

	data, err := os.ReadFile(configPath)
	if err != nil {
		// Feeds config is optional, log warning and continue
		// This allows the service to run in search-only mode
		log.WithField("path", configPath).Warn("Feeds config file not found, using defaults")
		return nil
	}

	var feedsCfg FeedsFileConfig
	if err := json.Unmarshal(data, &feedsCfg); err != nil {
		return fmt.Errorf("failed to parse feeds config file %s: %w", configPath, err)
	}

	if feedsCfg.URLs != nil {
		cfg.Feeds.URLs = feedsCfg.URLs
	}
	if feedsCfg.MaxWorkers != nil {
		cfg.Feeds.MaxWorkers = *feedsCfg.MaxWorkers
	}
	if feedsCfg.RetryCount != nil {
		cfg.Feeds.RetryCount = *feedsCfg.RetryCount
	}

	if feedsCfg.RetryDelay != "" {
		duration, err := time.ParseDuration(feedsCfg.RetryDelay)
		if err != nil {
			return fmt.Errorf("invalid retry_delay format: %w", err)
		}
		cfg.Feeds.RetryDelay = duration
	}

	if feedsCfg.WorkerTimeout != "" {
		duration, err := time.ParseDuration(feedsCfg.WorkerTimeout)
		if err != nil {
			return fmt.Errorf("invalid worker_timeout format: %w", err)
		}
		cfg.Feeds.WorkerTimeout = duration
	}

	// Validate RSS feed URLs
	return validateFeedURLs(cfg)
}

// loadEmailConfig loads the SMTP delivery configuration
func loadEmailConfig(cfg *Config, configDir string) error {
	configPath := filepath.Join(configDir, "config_email.json")

	data, err := os.ReadFile(configPath)
	if err != nil {
		// Email config is optional, log warning and continue
		log.WithField("path", configPath).Warn("Email config file not found, using defaults")
		return nil
	}

	var emailCfg EmailConfig
	if err := json.Unmarshal(data, &emailCfg); err != nil {
		return fmt.Errorf("failed to parse email config file %s: %w", configPath, err)
	}

	if emailCfg.SMTPHost != "" {
		cfg.Email.SMTPHost = emailCfg.SMTPHost
	}
	if emailCfg.SMTPPort != 0 {
		cfg.Email.SMTPPort = emailCfg.SMTPPort
	}
	if emailCfg.SenderAddress != "" {
		cfg.Email.SenderAddress = emailCfg.SenderAddress
	}
	if emailCfg.SenderPassword != "" {
		cfg.Email.SenderPassword = emailCfg.SenderPassword
	}
	cfg.Email.QuietHours = emailCfg.QuietHours

	return nil
}

// applyEnvOverrides applies secret values from the environment.
// Environment variables beat config files so deployments never need to
// write credentials to disk.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TAVILY_API_KEY"); v != "" {
		cfg.Search.APIKey = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.Summarizer.APIKey = v
	}
	if v := os.Getenv("SENDER_EMAIL"); v != "" {
		cfg.Email.SenderAddress = v
	}
	if v := os.Getenv("SMTP_PASSWORD"); v != "" {
		cfg.Email.SenderPassword = v
	}
}

// validateConfig validates the loaded configuration
//
// Security validations:
// - Webhook URL must use Discord's official webhook format
// - Feed URLs restricted to http/https to mitigate SSRF
// - Intervals have minimum limits to prevent API abuse
// - Log rotation limits prevent disk space exhaustion
//
// Operational validations:
// - Resource limits (workers, retry counts) within reasonable bounds
// - Sender address must parse as an email address when set
func validateConfig(cfg *Config) error {
	// Validate log level
	switch strings.ToUpper(cfg.LogLevel) {
	case "DEBUG", "INFO", "WARNING", "ERROR":
		// Valid log levels
	default:
		return fmt.Errorf("invalid log level: %s (must be DEBUG, INFO, WARNING, or ERROR)", cfg.LogLevel)
	}

	// Validate log rotation settings
	if cfg.LogRotation.MaxSizeMB < 1 || cfg.LogRotation.MaxSizeMB > 1000 {
		return fmt.Errorf("invalid log rotation max_size_mb: %d (must be 1-1000)", cfg.LogRotation.MaxSizeMB)
	}
	if cfg.LogRotation.MaxBackups < 0 || cfg.LogRotation.MaxBackups > 50 {
		return fmt.Errorf("invalid log rotation max_backups: %d (must be 0-50)", cfg.LogRotation.MaxBackups)
	}
	if cfg.LogRotation.MaxAgeDays < 0 || cfg.LogRotation.MaxAgeDays > 365 {
		return fmt.Errorf("invalid log rotation max_age_days: %d (must be 0-365)", cfg.LogRotation.MaxAgeDays)
	}

	// Warn about potentially problematic log rotation configurations
	if cfg.LogRotation.MaxBackups == 0 && cfg.LogRotation.MaxAgeDays == 0 {
		log.Warn("Log rotation: max_backups=0 and max_age_days=0 will delete all old logs immediately")
	}

	// Validate generation interval
	// Minimum 1 minute prevents API abuse and runaway email volume
	if cfg.GenerateInterval < time.Minute {
		return fmt.Errorf("generate_interval too short: %v (minimum 1 minute)", cfg.GenerateInterval)
	}

	// Validate watch client cadences
	if cfg.TickInterval < 100*time.Millisecond {
		return fmt.Errorf("tick_interval too short: %v (minimum 100ms)", cfg.TickInterval)
	}
	if cfg.StatusPollInterval < time.Second {
		return fmt.Errorf("status_poll_interval too short: %v (minimum 1 second)", cfg.StatusPollInterval)
	}

	// Validate search settings
	if cfg.Search.MaxResults < 1 || cfg.Search.MaxResults > 50 {
		return fmt.Errorf("search max_results out of range: %d (must be 1-50)", cfg.Search.MaxResults)
	}
	if cfg.Search.RecencyDays < 1 || cfg.Search.RecencyDays > 90 {
		return fmt.Errorf("search recency_days out of range: %d (must be 1-90)", cfg.Search.RecencyDays)
	}

	// Validate feed worker settings
	if cfg.Feeds.MaxWorkers < 1 || cfg.Feeds.MaxWorkers > 10 {
		return fmt.Errorf("feeds max_workers out of range: %d (must be 1-10)", cfg.Feeds.MaxWorkers)
	}
	if cfg.Feeds.RetryCount < 0 || cfg.Feeds.RetryCount > 10 {
		return fmt.Errorf("feeds retry_count out of range: %d (must be 0-10)", cfg.Feeds.RetryCount)
	}
	if cfg.Feeds.RetryDelay < time.Second {
		return fmt.Errorf("feeds retry_delay too short: %v (minimum 1 second)", cfg.Feeds.RetryDelay)
	}
	if cfg.Feeds.WorkerTimeout < 5*time.Second || cfg.Feeds.WorkerTimeout > 5*time.Minute {
		return fmt.Errorf("feeds worker_timeout out of range: %v (must be 5s-5m)", cfg.Feeds.WorkerTimeout)
	}

	// Validate SMTP settings
	if cfg.Email.SMTPPort < 1 || cfg.Email.SMTPPort > 65535 {
		return fmt.Errorf("invalid smtp_port: %d", cfg.Email.SMTPPort)
	}
	if cfg.Email.SenderAddress != "" {
		if _, err := mail.ParseAddress(cfg.Email.SenderAddress); err != nil {
			return fmt.Errorf("invalid sender_address %q: %w", cfg.Email.SenderAddress, err)
		}
	}

	// Validate quiet hours when configured
	if q := cfg.Email.QuietHours; q != nil && q.Enabled {
		if _, err := q.Resolve(); err != nil {
			return fmt.Errorf("invalid quiet_hours: %w", err)
		}
	}

	// Validate notification webhook URL
	if err := validateNotifyWebhook(cfg.Notify); err != nil {
		return err
	}

	// Warn when API keys are still missing after env overrides; runs will
	// fail at the search/summarize stage until they are provided.
	if cfg.Search.APIKey == "" {
		log.Warn("Search API key is not configured (TAVILY_API_KEY)")
	}
	if cfg.Summarizer.APIKey == "" {
		log.Warn("Summarizer API key is not configured (GEMINI_API_KEY)")
	}

	return nil
}

// validateNotifyWebhook validates the admin notification webhook configuration
//
// Security checks:
// - Ensures webhook URL is from Discord's official domain
// - Prevents configuration of malicious webhook endpoints
//
// Only validates format - does not test webhook functionality
func validateNotifyWebhook(notify NotifyConfig) error {
	if notify.Enabled {
		if notify.URL == "" {
			return fmt.Errorf("notify webhook is enabled but URL is empty")
		}
		if !strings.HasPrefix(notify.URL, "https://discord.com/api/webhooks/") {
			return fmt.Errorf("notify webhook URL is not a valid Discord webhook URL")
		}
	}
	return nil
}

// validateFeedURLs validates all RSS feed URLs to prevent security issues
//
// Security checks:
// - Only allows http:// and https:// protocols
// - Prevents file:// protocol (local file access)
// - Mitigates SSRF attacks by restricting protocols
func validateFeedURLs(cfg *Config) error {
	for i, url := range cfg.Feeds.URLs {
		if err := validateFeedURL(url, fmt.Sprintf("feeds[%d]", i)); err != nil {
			return err
		}
	}
	return nil
}

// validateFeedURL validates a single RSS feed URL
func validateFeedURL(url, name string) error {
	if url == "" {
		return fmt.Errorf("feed '%s' has empty URL", name)
	}

	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return fmt.Errorf("feed '%s' URL must use http or https protocol: %s", name, url)
	}

	return nil
}

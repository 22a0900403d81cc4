// Package config defines all configuration structures and default values
// for the Newsletter-Bot.
//
// Configuration Philosophy:
// - Sensible defaults allow minimal setup
// - Secrets come from the environment, never from config files
// - Clear separation between general, feed, and email settings
// - Built-in validation prevents misconfigurations
package config

import "time"

// Config represents the complete application configuration
type Config struct {
	// General configuration
	LogLevel           string        `json:"log_level"`
	LogRotation        LogRotation   `json:"log_rotation"`
	ListenAddr         string        `json:"listen_addr"`
	DataDir            string        `json:"data_dir"`             // Directory for persistent status data (resolved to absolute path)
	GenerateInterval   time.Duration `json:"generate_interval"`    // Time between newsletter generations
	TickInterval       time.Duration `json:"tick_interval"`        // Countdown re-render cadence (watch client)
	StatusPollInterval time.Duration `json:"status_poll_interval"` // Status endpoint poll cadence (watch client)

	// Search (Tavily) configuration
	Search SearchConfig `json:"search"`

	// Summarizer (Gemini) configuration
	Summarizer SummarizerConfig `json:"summarizer"`

	// RSS feed configuration
	Feeds FeedConfig `json:"feeds"`

	// Email delivery configuration
	Email EmailConfig `json:"email"`

	// Optional admin notification webhook
	Notify NotifyConfig `json:"notify"`

	// Story filter rules applied before summarization
	Filters *StoryFilters `json:"filters,omitempty"`
}

// LogRotation defines log rotation settings
type LogRotation struct {
	MaxSizeMB  int  `json:"max_size_mb"`  // Maximum size in MB before rotation
	MaxBackups int  `json:"max_backups"`  // Maximum number of old log files to keep
	MaxAgeDays int  `json:"max_age_days"` // Maximum number of days to retain log files
	Compress   bool `json:"compress"`     // Whether to compress old log files
}

// SearchConfig holds Tavily search API settings. The API key is read from the
// TAVILY_API_KEY environment variable when not set here.
type SearchConfig struct {
	APIKey         string   `json:"api_key"`
	MaxResults     int      `json:"max_results"`
	RecencyDays    int      `json:"recency_days"`
	IncludeDomains []string `json:"include_domains"`
}

// SummarizerConfig holds Gemini API settings. The API key is read from the
// GEMINI_API_KEY environment variable when not set here.
type SummarizerConfig struct {
	APIKey string `json:"api_key"`
	Model  string `json:"model"`
}

// FeedConfig contains supplementary RSS feed sources and parsing limits
type FeedConfig struct {
	URLs          []string      `json:"urls"`
	MaxWorkers    int           `json:"max_workers"`
	RetryCount    int           `json:"retry_count"`
	RetryDelay    time.Duration `json:"retry_delay"`
	WorkerTimeout time.Duration `json:"worker_timeout"`
}

// EmailConfig holds SMTP delivery settings. The sender password is read from
// the SMTP_PASSWORD environment variable when not set here.
type EmailConfig struct {
	SMTPHost       string      `json:"smtp_host"`
	SMTPPort       int         `json:"smtp_port"`
	SenderAddress  string      `json:"sender_address"`
	SenderPassword string      `json:"sender_password"`
	QuietHours     *QuietHours `json:"quiet_hours,omitempty"`
}

// NotifyConfig holds the optional admin Discord webhook that receives a short
// report after each newsletter run.
type NotifyConfig struct {
	Enabled bool   `json:"enabled"`
	URL     string `json:"url"`
}

// QuietHours defines a time window during which newsletter delivery is paused.
// nil or enabled=false means no quiet hours (always deliver). A generation
// cycle that fires inside the window is deferred to the next scheduler check.
type QuietHours struct {
	Enabled  bool   `json:"enabled"`            // Must be true for quiet hours to take effect
	Start    string `json:"start"`              // 24h "HH:MM" (e.g. "22:00") or 12h (e.g. "10pm", "10:00 PM")
	End      string `json:"end"`                // 24h "HH:MM" (e.g. "07:00") or 12h (e.g. "7am", "7:00 AM")
	Timezone string `json:"timezone,omitempty"` // IANA timezone, e.g. "Europe/Paris" (default: "UTC")
}

// StoryFilters defines include/exclude filter rules applied to fetched
// stories before summarization.
// All specified field groups are AND-combined; values within a group are OR-combined.
// nil (no filters block) means accept everything (backward-compatible default).
type StoryFilters struct {
	// Include (whitelist): if set, story MUST match at least one keyword
	IncludeKeywords []string `json:"include_keywords,omitempty"`

	// Exclude (blacklist): if matched, story is dropped
	ExcludeKeywords []string `json:"exclude_keywords,omitempty"`
	ExcludeDomains  []string `json:"exclude_domains,omitempty"`

	// keyword_match controls how keywords are matched: "literal" (default) or "regex"
	KeywordMatchMode string `json:"keyword_match,omitempty"`
}

// GeneralLogRotation uses pointer fields for JSON parsing so that
// zero-values (0, false) can be distinguished from missing fields (nil).
type GeneralLogRotation struct {
	MaxSizeMB  *int  `json:"max_size_mb"`
	MaxBackups *int  `json:"max_backups"`
	MaxAgeDays *int  `json:"max_age_days"`
	Compress   *bool `json:"compress"`
}

// GeneralConfig represents the main configuration file structure.
// Pointer fields allow distinguishing "not set" (nil) from "explicitly 0";
// durations arrive as strings and are parsed with time.ParseDuration.
type GeneralConfig struct {
	LogLevel           string             `json:"log_level"`
	LogRotation        GeneralLogRotation `json:"log_rotation"`
	ListenAddr         string             `json:"listen_addr"`
	DataDir            string             `json:"data_dir"`
	GenerateInterval   string             `json:"generate_interval"`
	TickInterval       string             `json:"tick_interval"`
	StatusPollInterval string             `json:"status_poll_interval"`
	Search             SearchConfig       `json:"search"`
	Summarizer         SummarizerConfig   `json:"summarizer"`
	Notify             NotifyConfig       `json:"notify"`
	Filters            *StoryFilters      `json:"filters,omitempty"`
}

// FeedsFileConfig mirrors config_feeds.json with string durations.
type FeedsFileConfig struct {
	URLs          []string `json:"urls"`
	MaxWorkers    *int     `json:"max_workers"`
	RetryCount    *int     `json:"retry_count"`
	RetryDelay    string   `json:"retry_delay"`
	WorkerTimeout string   `json:"worker_timeout"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		LogLevel:   "INFO",
		ListenAddr: ":5000",
		DataDir:    "./data", // Resolved to absolute path at load time
		LogRotation: LogRotation{
			MaxSizeMB:  10,   // 10 MB per file
			MaxBackups: 5,    // Keep 5 old files
			MaxAgeDays: 7,    // Delete files older than 7 days
			Compress:   true, // Compress old files
		},
		GenerateInterval:   24 * time.Hour,
		TickInterval:       time.Second,
		StatusPollInterval: 30 * time.Second,
		Search: SearchConfig{
			MaxResults:  10,
			RecencyDays: 7,
			IncludeDomains: []string{
				"arxiv.org",
				"news.google.com",
				"techcrunch.com",
				"venturebeat.com",
				"wired.com",
				"zdnet.com",
				"github.com",
				"medium.com",
				"reuters.com",
				"apnews.com",
			},
		},
		Summarizer: SummarizerConfig{
			Model: "gemini-1.5-flash-latest",
		},
		Feeds: FeedConfig{
			URLs:          []string{},
			MaxWorkers:    5,
			RetryCount:    3,
			RetryDelay:    2 * time.Second,
			WorkerTimeout: 30 * time.Second,
		},
		Email: EmailConfig{
			SMTPHost: "smtp.gmail.com",
			SMTPPort: 587,
		},
		Notify: NotifyConfig{Enabled: false, URL: ""},
	}
}

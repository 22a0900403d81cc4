package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeConfigFile writes a config file into dir and fails the test on error.
func writeConfigFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.Equal(t, ":5000", cfg.ListenAddr)
	assert.Equal(t, 24*time.Hour, cfg.GenerateInterval)
	assert.Equal(t, time.Second, cfg.TickInterval)
	assert.Equal(t, 30*time.Second, cfg.StatusPollInterval)
	assert.Equal(t, 10, cfg.Search.MaxResults)
	assert.Equal(t, 7, cfg.Search.RecencyDays)
	assert.NotEmpty(t, cfg.Search.IncludeDomains)
	assert.Equal(t, "smtp.gmail.com", cfg.Email.SMTPHost)
	assert.Equal(t, 587, cfg.Email.SMTPPort)

	// Defaults must pass their own validation
	assert.NoError(t, validateConfig(cfg))
}

func TestLoadConfigMinimal(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "config_general.json", `{}`)

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, cfg.GenerateInterval, "empty file keeps defaults")
}

func TestLoadConfigMissingGeneralFile(t *testing.T) {
	_, err := LoadConfig(t.TempDir())
	assert.ErrorContains(t, err, "config_general.json")
}

func TestLoadConfigOverrides(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "config_general.json", `{
		"log_level": "DEBUG",
		"listen_addr": ":8080",
		"generate_interval": "12h",
		"tick_interval": "500ms",
		"status_poll_interval": "15s",
		"search": {"max_results": 5, "recency_days": 3},
		"summarizer": {"model": "gemini-1.5-pro"}
	}`)
	writeConfigFile(t, dir, "config_email.json", `{
		"smtp_host": "mail.example.com",
		"smtp_port": 465,
		"sender_address": "bot@example.com"
	}`)
	writeConfigFile(t, dir, "config_feeds.json", `{
		"urls": ["https://example.com/feed.xml"],
		"max_workers": 2
	}`)

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "DEBUG", cfg.LogLevel)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, 12*time.Hour, cfg.GenerateInterval)
	assert.Equal(t, 500*time.Millisecond, cfg.TickInterval)
	assert.Equal(t, 15*time.Second, cfg.StatusPollInterval)
	assert.Equal(t, 5, cfg.Search.MaxResults)
	assert.Equal(t, "gemini-1.5-pro", cfg.Summarizer.Model)
	assert.Equal(t, "mail.example.com", cfg.Email.SMTPHost)
	assert.Equal(t, 465, cfg.Email.SMTPPort)
	assert.Equal(t, []string{"https://example.com/feed.xml"}, cfg.Feeds.URLs)
	assert.Equal(t, 2, cfg.Feeds.MaxWorkers)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "config_general.json", `{"search": {"api_key": "from-file"}}`)

	t.Setenv("TAVILY_API_KEY", "from-env")
	t.Setenv("SENDER_EMAIL", "env@example.com")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Search.APIKey, "env beats config file")
	assert.Equal(t, "env@example.com", cfg.Email.SenderAddress)
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		general string
		wantErr string
	}{
		{"bad log level", `{"log_level": "TRACE"}`, "invalid log level"},
		{"bad interval format", `{"generate_interval": "soon"}`, "generate_interval"},
		{"interval too short", `{"generate_interval": "5s"}`, "too short"},
		{"tick too short", `{"tick_interval": "10ms"}`, "tick_interval too short"},
		{"poll too short", `{"status_poll_interval": "500ms"}`, "status_poll_interval too short"},
		{"max results too high", `{"search": {"max_results": 100}}`, "max_results"},
		{"notify without url", `{"notify": {"enabled": true}}`, "URL is empty"},
		{"notify non-discord url", `{"notify": {"enabled": true, "url": "https://evil.example.com/hook"}}`, "not a valid Discord webhook"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeConfigFile(t, dir, "config_general.json", tt.general)

			_, err := LoadConfig(dir)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestLoadConfigRejectsBadFeedURLs(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "config_general.json", `{}`)
	writeConfigFile(t, dir, "config_feeds.json", `{"urls": ["file:///etc/passwd"]}`)

	_, err := LoadConfig(dir)
	assert.ErrorContains(t, err, "http or https")
}

func TestLoadConfigRejectsBadSenderAddress(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "config_general.json", `{}`)
	writeConfigFile(t, dir, "config_email.json", `{"sender_address": "not-an-email"}`)

	_, err := LoadConfig(dir)
	assert.ErrorContains(t, err, "sender_address")
}

func TestLoadConfigRejectsBadQuietHours(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "config_general.json", `{}`)
	writeConfigFile(t, dir, "config_email.json", `{
		"quiet_hours": {"enabled": true, "start": "25:99", "end": "07:00"}
	}`)

	_, err := LoadConfig(dir)
	assert.ErrorContains(t, err, "quiet_hours")
}

// Package main implements a newsletter bot that periodically collects
// recent stories about a topic, summarizes them with an AI model and
// delivers the result as an HTML email.
//
// The bot uses a modular architecture with separate components for:
// - Web search and RSS feed collection
// - AI summarization and HTML rendering
// - SMTP delivery with quiet-hours deferral
// - An HTTP control surface with a live countdown dashboard
// - Persistent run history and deduplication
//
// Configuration is managed through JSON files in the config directory.

package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"Newsletter-Bot/internal/config"
	"Newsletter-Bot/internal/feeds"
	"Newsletter-Bot/internal/logger"
	"Newsletter-Bot/internal/mail"
	"Newsletter-Bot/internal/newsletter"
	"Newsletter-Bot/internal/notify"
	"Newsletter-Bot/internal/scheduler"
	"Newsletter-Bot/internal/search"
	"Newsletter-Bot/internal/server"
	"Newsletter-Bot/internal/status"
	"Newsletter-Bot/internal/summarize"

	log "github.com/sirupsen/logrus"
)

// Application version
const Version = "1.0.0"

func main() {
	// Parse command line flags
	configDir := flag.String("config-dir", "./configs", "Directory containing configuration files")
	dataDir := flag.String("data-dir", "", "Directory for persistent data (overrides config and DATA_DIR env)")
	version := flag.Bool("version", false, "Show version information")
	checkConfig := flag.Bool("check-config", false, "Validate configuration and exit")
	dryRun := flag.Bool("dry-run", false, "Generate and send a single newsletter, then exit")
	topic := flag.String("topic", "", "Topic to start a schedule for at boot (requires -recipient)")
	recipient := flag.String("recipient", "", "Recipient email for the boot schedule or dry run")
	flag.Parse()

	// Show version and exit if requested
	if *version {
		fmt.Printf("Newsletter Bot v%s\n", Version)
		os.Exit(0)
	}

	// Validate config directory exists
	if _, err := os.Stat(*configDir); os.IsNotExist(err) {
		fmt.Printf("Error: Config directory '%s' does not exist\n", *configDir)
		os.Exit(1)
	}

	// Check-config mode: validate and exit
	if *checkConfig {
		_, err := config.LoadConfig(*configDir)
		if err != nil {
			fmt.Printf("Configuration INVALID: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Configuration OK")
		os.Exit(0)
	}

	// Load configuration
	cfg, err := config.LoadConfig(*configDir)
	if err != nil {
		fmt.Printf("Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	// Override DataDir: flag > env > config > default
	resolved, err := resolveDataDir(*dataDir, cfg.DataDir)
	if err != nil {
		fmt.Printf("Error resolving data-dir path: %v\n", err)
		os.Exit(1)
	}
	cfg.DataDir = resolved

	// Setup logging
	logDir := "./logs"
	if err := os.MkdirAll(logDir, 0755); err != nil {
		fmt.Printf("Error creating logs directory: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger with configurable rotation settings
	rotationConfig := logger.LogRotationConfig{
		MaxSizeMB:  cfg.LogRotation.MaxSizeMB,
		MaxBackups: cfg.LogRotation.MaxBackups,
		MaxAgeDays: cfg.LogRotation.MaxAgeDays,
		Compress:   cfg.LogRotation.Compress,
	}
	err = logger.NewLogger(cfg.LogLevel, filepath.Join(logDir, "newsletter.log"), rotationConfig)
	if err != nil {
		fmt.Printf("Error setting up logger: %v\n", err)
		os.Exit(1)
	}

	log.WithField("version", Version).Info("Starting Newsletter Bot")

	// Create application context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Persistent run history and feed deduplication
	tracker, err := status.NewTracker(cfg.DataDir)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize status tracker")
	}

	// Pipeline components
	searchClient, err := search.NewClient(cfg.Search.APIKey)
	if err != nil {
		log.WithError(err).Fatal("Failed to create search client")
	}
	defer searchClient.Close()

	summarizer := summarize.NewClient(cfg.Summarizer.APIKey, cfg.Summarizer.Model)
	defer summarizer.Close()

	sender := mail.NewSender(cfg.Email.SMTPHost, cfg.Email.SMTPPort, cfg.Email.SenderAddress, cfg.Email.SenderPassword)
	feedParser := feeds.NewParser(cfg.Feeds.RetryCount, cfg.Feeds.RetryDelay, tracker)

	pipeline := newsletter.NewPipeline(cfg, searchClient, summarizer, sender, feedParser, tracker)

	// Optional admin webhook
	var notifier *notify.WebhookSender
	if cfg.Notify.Enabled {
		notifier, err = notify.NewWebhookSender(cfg.Notify.URL)
		if err != nil {
			log.WithError(err).Fatal("Failed to create notifier")
		}
		defer func() {
			if err := notifier.Close(); err != nil {
				log.WithError(err).Warn("Failed to close notifier")
			}
		}()
	}

	sched := scheduler.New(cfg, pipeline, tracker, notifier)

	// Dry-run mode: run single cycle and exit
	if *dryRun {
		if *topic == "" || *recipient == "" {
			fmt.Println("Error: -dry-run requires -topic and -recipient")
			os.Exit(1)
		}
		if err := sched.RunOnce(ctx, *topic, *recipient); err != nil {
			log.WithError(err).Error("Dry run failed")
			closeLogger()
			os.Exit(1)
		}
		log.Info("Dry-run completed")
		closeLogger()
		os.Exit(0)
	}

	// Optional boot schedule
	if *topic != "" {
		if *recipient == "" {
			fmt.Println("Error: -topic requires -recipient")
			os.Exit(1)
		}
		if err := sched.Start(ctx, *topic, *recipient); err != nil {
			log.WithError(err).Fatal("Failed to start scheduler")
		}
	}

	// HTTP control surface
	srv := server.New(ctx, sched, tracker)
	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithField("addr", cfg.ListenAddr).Info("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("HTTP server failed")
		}
	}()

	log.Info("Newsletter Bot started successfully")

	// Setup signal handling for graceful shutdown
	// Listens for SIGINT (Ctrl+C) and SIGTERM (systemd/docker stop)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Wait for shutdown signal
	<-sigChan
	log.Info("Shutdown signal received, stopping bot...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("HTTP server shutdown failed")
	}

	// Cancel context to signal all goroutines to stop
	cancel()

	// Stop scheduler
	sched.Stop()

	closeLogger()
	log.Info("Newsletter Bot stopped successfully")
}

// closeLogger flushes and releases the log file.
func closeLogger() {
	if err := logger.Close(); err != nil {
		fmt.Printf("Warning: Failed to close logger: %v\n", err)
	}
}

// resolveDataDir determines the final DataDir value using the priority:
// flag > DATA_DIR env > config value.
// All non-empty paths are resolved to absolute paths.
func resolveDataDir(flagVal, configVal string) (string, error) {
	if flagVal != "" {
		return filepath.Abs(flagVal)
	}
	if envDir := os.Getenv("DATA_DIR"); envDir != "" {
		return filepath.Abs(envDir)
	}
	return configVal, nil
}

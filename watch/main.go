// Command watch renders a live countdown to the next newsletter in the
// terminal, driven by a running newsletter server's status endpoint.
// When the schedule changes out from under it, the watcher re-seeds
// itself from the server, the terminal equivalent of a page reload.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"Newsletter-Bot/internal/config"
	"Newsletter-Bot/internal/reconcile"

	log "github.com/sirupsen/logrus"
)

// Application version
const Version = "1.0.0"

func main() {
	// Parse command line flags
	serverURL := flag.String("server", "http://localhost:5000", "Newsletter server base URL")
	configDir := flag.String("config-dir", "./configs", "Directory containing configuration files (optional)")
	tickInterval := flag.Duration("tick-interval", 0, "Countdown re-render cadence (default from config)")
	pollInterval := flag.Duration("poll-interval", 0, "How often to re-fetch the schedule (default from config)")
	version := flag.Bool("version", false, "Show version information")
	flag.Parse()

	// Show version and exit if requested
	if *version {
		fmt.Printf("Newsletter Watch v%s\n", Version)
		os.Exit(0)
	}

	// Timer cadence: flags win, then the shared config files, then the
	// reconciler's built-in defaults (zero values fall through).
	opts := reconcile.Options{
		TickInterval: *tickInterval,
		PollInterval: *pollInterval,
	}
	if info, err := os.Stat(*configDir); err == nil && info.IsDir() {
		cfg, err := config.LoadConfig(*configDir)
		if err != nil {
			fmt.Printf("Warning: ignoring config directory '%s': %v\n", *configDir, err)
		} else {
			if opts.TickInterval == 0 {
				opts.TickInterval = cfg.TickInterval
			}
			if opts.PollInterval == 0 {
				opts.PollInterval = cfg.StatusPollInterval
			}
		}
	}

	// Terminal output only; keep log noise off the countdown line
	log.SetLevel(log.WarnLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fetcher := reconcile.NewHTTPFetcher(*serverURL)

	// Initial snapshot; without it there is nothing to count down from
	seed, err := fetcher.FetchStatus(ctx)
	if err != nil {
		fmt.Printf("Error: cannot reach %s: %v\n", *serverURL, err)
		os.Exit(1)
	}

	var rec *reconcile.Reconciler
	rec = reconcile.New(fetcher, reconcile.Callbacks{
		OnRender: renderLine,
		OnResync: func(reason string) {
			fmt.Printf("\nSchedule changed (%s), re-syncing...\n", reason)
			// Restart from a fresh seed. Must happen off the reconciler's
			// goroutine because Start waits for the old run to finish.
			go reseed(ctx, rec, fetcher)
		},
	}, opts)

	rec.Start(ctx, seed)

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan

	rec.Stop()
	fmt.Println()
}

// renderLine redraws the countdown in place.
func renderLine(fields reconcile.Fields) {
	if fields.State != reconcile.StateCountdownActive {
		fmt.Printf("\r\033[KNo newsletter scheduled")
		return
	}

	line := fmt.Sprintf("Next newsletter in %s", fields.Countdown)
	if fields.Topic != "" {
		line += fmt.Sprintf(" (topic: %s)", fields.Topic)
	}
	fmt.Printf("\r\033[K%s", line)
}

// reseed fetches the authoritative snapshot and restarts the reconciler
// from it. Fetch failures leave the old (passive) run in place; the user
// sees the re-sync notice and can restart manually.
func reseed(ctx context.Context, rec *reconcile.Reconciler, fetcher *reconcile.HTTPFetcher) {
	fetchCtx, fetchCancel := context.WithTimeout(ctx, 10*time.Second)
	defer fetchCancel()

	seed, err := fetcher.FetchStatus(fetchCtx)
	if err != nil {
		fmt.Printf("Re-sync failed: %v\n", err)
		return
	}

	rec.Start(ctx, seed)
}

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatimasalmancursor/tilegrab/internal/config"
	"github.com/fatimasalmancursor/tilegrab/internal/faillog"
	"github.com/fatimasalmancursor/tilegrab/internal/fetcher"
	tilehttp "github.com/fatimasalmancursor/tilegrab/internal/http"
	"github.com/fatimasalmancursor/tilegrab/internal/progress"
	"github.com/fatimasalmancursor/tilegrab/internal/store"
	"github.com/fatimasalmancursor/tilegrab/internal/tiles"
)

// runFetch downloads every tile in a z/x/y coordinate range to the local
// store, skipping tiles already present. Safe to re-run: a second pass
// over the same range only fills in what is missing.
func runFetch(args []string) int {
	fs := flag.NewFlagSet("fetch", flag.ExitOnError)

	zStart := fs.Int("z-start", -1, "Starting zoom level (required)")
	zEnd := fs.Int("z-end", -1, "Ending zoom level (required)")
	xStart := fs.Int("x-start", -1, "Starting X tile (required)")
	xEnd := fs.Int("x-end", -1, "Ending X tile (required)")
	yStart := fs.Int("y-start", -1, "Starting Y tile (required)")
	yEnd := fs.Int("y-end", -1, "Ending Y tile (required)")

	baseURL := fs.String("base-url", "", "Tile server URL, /z/x/y.pbf is appended")
	dir := fs.String("dir", "", "Directory to store tiles in")
	failedLog := fs.String("failed-log", "", "Path of the failure log")
	referer := fs.String("referer", "", "Referer header to send")
	workers := fs.Int("workers", 0, "Worker pool size")
	configPath := fs.String("config", "", "Path to YAML config file")

	transportRetries := fs.Int("transport-retries", 0, "Transport-level retry budget")
	contentRetries := fs.Int("content-retries", 0, "Extra attempts for HTML/JSON error pages served as 200")
	retryBackoff := fs.Duration("retry-backoff", 0, "Initial transport retry backoff")

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, `Usage: tilegrab fetch [options]

Download every tile in the inclusive z/x/y coordinate ranges. Already
present tiles are skipped, so interrupted runs can simply be re-run.
Tiles that exhaust all retries are recorded in the failure log.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return ExitInvalidArgs
	}

	if *zStart < 0 || *zEnd < 0 || *xStart < 0 || *xEnd < 0 || *yStart < 0 || *yEnd < 0 {
		fmt.Fprintln(os.Stderr, "Error: -z-start, -z-end, -x-start, -x-end, -y-start, and -y-end are required")
		fs.Usage()
		return ExitInvalidArgs
	}

	// File < env < flags.
	cfg := config.Default()
	if *configPath != "" {
		fileCfg, err := config.LoadFromFile(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return ExitInvalidArgs
		}
		cfg = fileCfg
	}
	if err := cfg.LoadFromEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitInvalidArgs
	}
	cfg = cfg.Merge(config.Config{
		BaseURL:   *baseURL,
		Dir:       *dir,
		FailedLog: *failedLog,
		Referer:   *referer,
		Workers:   *workers,
		Retry: config.RetryConfig{
			TransportRetries: *transportRetries,
			ContentRetries:   *contentRetries,
			Backoff:          *retryBackoff,
		},
	})
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitInvalidArgs
	}

	// Setup context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\n[tilegrab] Received interrupt, shutting down...")
		cancel()
	}()

	space := tiles.Space{
		Z: tiles.Range{Min: *zStart, Max: *zEnd},
		X: tiles.Range{Min: *xStart, Max: *xEnd},
		Y: tiles.Range{Min: *yStart, Max: *yEnd},
	}

	st, err := store.New(cfg.Dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitStorageError
	}

	log, err := faillog.Open(cfg.FailedLog)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitStorageError
	}
	defer log.Close()

	client := tilehttp.NewClient(tilehttp.Options{
		MaxRetries:      cfg.Retry.TransportRetries,
		PoolSize:        maxInt(64, cfg.Workers*2),
		RetryBackoff:    cfg.Retry.Backoff,
		RetryMaxBackoff: cfg.Retry.MaxBackoff,
		Referer:         cfg.Referer,
	})

	f := fetcher.New(client, st, log, fetcher.Options{
		BaseURL:        cfg.BaseURL,
		ContentRetries: cfg.Retry.ContentRetries,
		ContentBackoff: cfg.Retry.ContentBackoff,
	})

	fmt.Fprintf(os.Stderr, "[tilegrab] Fetching %d tiles (z=%d..%d x=%d..%d y=%d..%d) with %d workers\n",
		space.Count(), *zStart, *zEnd, *xStart, *xEnd, *yStart, *yEnd, cfg.Workers)

	start := time.Now()
	counters, err := fetcher.Run(ctx, space, f, fetcher.RunOptions{
		Workers:  cfg.Workers,
		Reporter: progress.NewReporter(progress.Options{Output: os.Stderr}),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "[tilegrab] Interrupted after %s: %d of %d tiles processed\n",
			time.Since(start).Round(time.Second), counters.Total, space.Count())
		return ExitGeneralError
	}

	if counters.Failed > 0 {
		fmt.Fprintf(os.Stderr, "[tilegrab] %d tiles failed, see %s\n", counters.Failed, cfg.FailedLog)
	}
	return ExitSuccess
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

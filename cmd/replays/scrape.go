package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/alvmarrod/showdown-replays/internal/config"
	"github.com/alvmarrod/showdown-replays/internal/crawler"
	"github.com/alvmarrod/showdown-replays/internal/extract"
	"github.com/alvmarrod/showdown-replays/internal/metrics"
	"github.com/alvmarrod/showdown-replays/internal/replay"
	"github.com/alvmarrod/showdown-replays/internal/storage"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// matchFeedSuffix names the parsed match feed written next to the raw one
const matchFeedSuffix = "-matches"

type scrapeFlags struct {
	configPath string
	format     string
	outputDir  string
	maxReplays int
	workers    int
	dbPath     string
}

func newScrapeCommand() *cobra.Command {
	var f scrapeFlags

	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Scrape the replay server for replays",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePositive(cmd, "max-replays", f.maxReplays); err != nil {
				return err
			}
			cfg, err := config.LoadConfig(f.configPath, f.overrides(cmd))
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			return runScrape(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&f.configPath, "config", "", "JSON config file")
	cmd.Flags().StringVarP(&f.format, "format", "f", config.DefaultFormat, "battle format to crawl for")
	cmd.Flags().StringVarP(&f.outputDir, "output-dir", "o", ".", "directory to save replays to")
	cmd.Flags().IntVarP(&f.maxReplays, "max-replays", "m", 10, "maximum number of replays to crawl for")
	cmd.Flags().IntVarP(&f.workers, "workers", "w", 3, "concurrent replay downloads")
	cmd.Flags().StringVar(&f.dbPath, "db", "", "also store replays in this SQLite database")

	return cmd
}

// requirePositive rejects an explicit flag value below 1. An unset flag is
// left to the config file and its defaults.
func requirePositive(cmd *cobra.Command, name string, value int) error {
	if cmd.Flags().Changed(name) && value < 1 {
		return fmt.Errorf("--%s must be at least 1, got %d", name, value)
	}
	return nil
}

// overrides applies only the flags given on the command line, so values
// from the config file are not clobbered by flag defaults.
func (f *scrapeFlags) overrides(cmd *cobra.Command) config.Option {
	return func(cfg *config.Config) {
		flags := cmd.Flags()
		if flags.Changed("format") {
			cfg.Format = f.format
		}
		if flags.Changed("output-dir") {
			cfg.OutputDir = f.outputDir
		}
		if flags.Changed("max-replays") {
			cfg.MaxReplays = f.maxReplays
		}
		if flags.Changed("workers") {
			cfg.ConcurrentWorkers = f.workers
		}
		if flags.Changed("db") {
			cfg.DBPath = f.dbPath
		}
	}
}

func runScrape(ctx context.Context, cfg *config.Config) error {
	logrus.Infof("Configuration loaded: format=%s, max=%d, workers=%d, output=%s",
		cfg.Format, cfg.MaxReplays, cfg.ConcurrentWorkers, cfg.OutputDir)

	feed, err := storage.OpenFeed(cfg.OutputDir, cfg.Format)
	if err != nil {
		return err
	}
	defer feed.Close()

	matchFeed, err := storage.OpenFeed(cfg.OutputDir, cfg.Format+matchFeedSuffix)
	if err != nil {
		return err
	}
	defer matchFeed.Close()

	sinks := []crawler.Sink{
		crawler.SinkFunc(func(_ context.Context, raw replay.RawReplay) error {
			return feed.WriteLine(raw)
		}),
	}
	matchSinks := []extract.MatchSink{
		extract.MatchSinkFunc(func(_ context.Context, m replay.ParsedMatch) error {
			return matchFeed.WriteLine(m)
		}),
	}

	var store *storage.Storage
	if cfg.DBPath != "" {
		store, err = storage.NewStorage(cfg.DBPath)
		if err != nil {
			return err
		}
		defer store.Close()
		logrus.Infof("Database initialized: %s", cfg.DBPath)
		sinks = append(sinks, store)
		matchSinks = append(matchSinks, store)
	}

	tracker := metrics.NewTracker()
	fetcher := crawler.NewHTTPFetcher(cfg)
	c := crawler.NewCrawler(cfg, fetcher, fetcher, tracker, extract.NewMatcher(tracker, matchSinks...), sinks...)

	// Periodic progress while the crawl runs
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				logrus.Info(tracker.LogProgress())
			case <-done:
				return
			}
		}
	}()

	summary, runErr := c.Run(ctx)
	close(done)

	reason := string(summary.Pagination.Reason)
	if errors.Is(runErr, context.Canceled) {
		reason = "signal"
	}

	logrus.Info("Final stats: " + tracker.LogProgress())

	metricsPath := cfg.MetricsFile
	if !filepath.IsAbs(metricsPath) {
		metricsPath = filepath.Join(cfg.OutputDir, metricsPath)
	}
	if err := tracker.WriteToFile(metricsPath, reason); err != nil {
		logrus.Errorf("Failed to write metrics: %v", err)
	} else {
		logrus.Infof("Metrics written to %s", metricsPath)
	}

	if store != nil {
		logStoreTotals(store, cfg.Format)
	}

	if runErr != nil {
		return fmt.Errorf("crawl stopped: %w", runErr)
	}
	logrus.Infof("Replays written to %s, matches to %s", feed.Path(), matchFeed.Path())
	return nil
}

// logStoreTotals reports what the database holds for a format across all
// sessions so far.
func logStoreTotals(store *storage.Storage, format string) {
	ctx := context.Background()
	replays, err := store.CountReplays(ctx, format)
	if err != nil {
		logrus.Warnf("Failed to count stored replays: %v", err)
		return
	}
	matches, err := store.CountMatches(ctx, format)
	if err != nil {
		logrus.Warnf("Failed to count stored matches: %v", err)
		return
	}
	logrus.Infof("Database holds %d %s replays and %d matches", replays, format, matches)
}

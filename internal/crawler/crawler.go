package crawler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alvmarrod/showdown-replays/internal/config"
	"github.com/alvmarrod/showdown-replays/internal/extract"
	"github.com/alvmarrod/showdown-replays/internal/metrics"
	"github.com/alvmarrod/showdown-replays/internal/replay"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Resolver turns a replay reference into its raw record
type Resolver interface {
	Resolve(ctx context.Context, ref Reference) (replay.RawReplay, error)
}

// Sink receives resolved replays. Implementations must be safe for
// concurrent use.
type Sink interface {
	SaveReplay(ctx context.Context, raw replay.RawReplay) error
}

// SinkFunc adapts a function to Sink
type SinkFunc func(ctx context.Context, raw replay.RawReplay) error

func (f SinkFunc) SaveReplay(ctx context.Context, raw replay.RawReplay) error {
	return f(ctx, raw)
}

// Summary describes a finished crawl. Every resolved replay is counted
// once more as either a match or a record error.
type Summary struct {
	Pagination   PaginationResult
	Resolved     int
	Failed       int
	Matches      int
	RecordErrors int
}

// outcome is the result of resolving one reference
type outcome struct {
	resolved bool
	matched  bool
}

// Crawler orchestrates the replay crawl: the paginator emits references,
// a bounded worker pool resolves them, resolved replays go to the sinks and
// are then parsed into matches.
type Crawler struct {
	cfg       *config.Config
	paginator *Paginator
	resolver  Resolver
	sinks     []Sink
	matcher   *extract.Matcher
	tracker   *metrics.Tracker
}

// NewCrawler creates a new crawler instance. matcher may be nil to only
// store raw replays.
func NewCrawler(cfg *config.Config, pages PageFetcher, resolver Resolver, tracker *metrics.Tracker, matcher *extract.Matcher, sinks ...Sink) *Crawler {
	c := &Crawler{
		cfg:      cfg,
		resolver: resolver,
		sinks:    sinks,
		matcher:  matcher,
		tracker:  tracker,
	}
	c.paginator = NewPaginator(pages, cfg.Format, cfg.BaseURL, cfg.MaxReplays, c.observePage)
	return c
}

// Run crawls one session. A listing fetch failure ends pagination and is
// returned after already-dispatched replays finish resolving. Failures to
// resolve a single replay are logged and counted; sink failures abort the run.
func (c *Crawler) Run(ctx context.Context) (Summary, error) {
	logrus.Infof("Crawling %s replays (max %d, %d workers)", c.cfg.Format, c.cfg.MaxReplays, c.cfg.ConcurrentWorkers)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.ConcurrentWorkers)

	results := make(chan outcome, c.cfg.MaxReplays)

	pagination, pageErr := c.paginator.Run(gctx, func(ref Reference) error {
		if err := gctx.Err(); err != nil {
			return err
		}
		if c.tracker != nil {
			c.tracker.AddReplaysDiscovered(1)
		}
		g.Go(func() error {
			out, err := c.resolve(gctx, ref)
			results <- out
			return err
		})
		return nil
	})

	waitErr := g.Wait()
	close(results)

	summary := Summary{Pagination: pagination}
	for out := range results {
		switch {
		case !out.resolved:
			summary.Failed++
		case out.matched:
			summary.Resolved++
			summary.Matches++
		default:
			summary.Resolved++
			if c.matcher != nil {
				summary.RecordErrors++
			}
		}
	}

	logrus.Infof("Crawl finished: %d pages, %d references, %d resolved, %d failed, %d matches, %d record errors (%s)",
		pagination.PagesFetched, pagination.Emitted, summary.Resolved, summary.Failed,
		summary.Matches, summary.RecordErrors, pagination.Reason)

	// A sink failure cancels gctx, which surfaces in the paginator as a
	// context error; report the sink failure instead.
	if waitErr != nil {
		return summary, waitErr
	}
	if pageErr != nil {
		return summary, pageErr
	}
	return summary, nil
}

// resolve fetches one replay, hands it to every sink and then to the
// matcher. A record that cannot be parsed still counts as resolved.
func (c *Crawler) resolve(ctx context.Context, ref Reference) (outcome, error) {
	var out outcome

	start := time.Now()
	raw, err := c.resolver.Resolve(ctx, ref)
	if c.tracker != nil {
		c.tracker.RecordFetchTime(time.Since(start))
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return out, nil
		}
		logrus.WithFields(logrus.Fields{
			"seq": ref.Seq,
			"url": ref.URL,
		}).Warnf("Failed to resolve replay: %v", err)
		if c.tracker != nil {
			c.tracker.IncrementReplaysFailed()
		}
		return out, nil
	}

	for _, sink := range c.sinks {
		if err := sink.SaveReplay(ctx, raw); err != nil {
			return out, fmt.Errorf("failed to store replay %s: %w", raw.ID, err)
		}
	}

	out.resolved = true
	if c.tracker != nil {
		c.tracker.IncrementReplaysResolved()
	}
	logrus.WithFields(logrus.Fields{
		"seq": ref.Seq,
		"id":  raw.ID,
	}).Info("Stored replay")

	if c.matcher == nil {
		return out, nil
	}

	match, _, err := c.matcher.Handle(ctx, replay.Record{Source: ref.URL, Replay: raw})
	if err != nil {
		return out, err
	}
	out.matched = match != nil
	return out, nil
}

func (c *Crawler) observePage(page, fresh int, err error) {
	if err != nil {
		logrus.Errorf("Listing page %d failed: %v", page, err)
		if c.tracker != nil {
			c.tracker.IncrementPagesFailed()
		}
		return
	}
	logrus.Infof("Listing page %d: %d new replays", page, fresh)
	if c.tracker != nil {
		c.tracker.IncrementPagesFetched()
	}
}

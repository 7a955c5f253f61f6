package crawler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/alvmarrod/showdown-replays/internal/config"
	"github.com/alvmarrod/showdown-replays/internal/replay"
	"github.com/alvmarrod/showdown-replays/internal/version"
	"github.com/gocolly/colly/v2"
	"github.com/sirupsen/logrus"
)

// FetchError reports a transport failure or a response that could not be
// decoded. It ends the current crawl stream when raised for a listing page.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	if e.URL != "" {
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("fetch: %v", e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// HTTPFetcher fetches listing pages and replay records through colly.
// It implements both PageFetcher and Resolver.
type HTTPFetcher struct {
	baseURL   string
	collector *colly.Collector
}

// NewHTTPFetcher creates a fetcher configured from cfg
func NewHTTPFetcher(cfg *config.Config) *HTTPFetcher {
	c := colly.NewCollector(
		colly.AllowURLRevisit(),
		colly.UserAgent("showdown-replays/"+version.Version),
	)

	// Set request timeout
	c.SetRequestTimeout(cfg.RequestTimeout())

	// Limit parallelism
	if err := c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: cfg.ConcurrentWorkers,
	}); err != nil {
		logrus.Warnf("Failed to set fetch limit rule: %v", err)
	}

	return &HTTPFetcher{
		baseURL:   cfg.BaseURL,
		collector: c,
	}
}

// FetchPage returns the markup of one search listing page
func (f *HTTPFetcher) FetchPage(ctx context.Context, format string, page int) ([]byte, error) {
	pageURL, err := ListingURL(f.baseURL, format, page)
	if err != nil {
		return nil, &FetchError{Err: err}
	}
	return f.get(ctx, pageURL)
}

// Resolve fetches the replay record a reference points to
func (f *HTTPFetcher) Resolve(ctx context.Context, ref Reference) (replay.RawReplay, error) {
	body, err := f.get(ctx, ref.URL)
	if err != nil {
		return replay.RawReplay{}, err
	}

	raw, err := replay.DecodeRaw(body)
	if err != nil {
		return replay.RawReplay{}, &FetchError{URL: ref.URL, Err: fmt.Errorf("invalid replay JSON: %w", err)}
	}
	return raw, nil
}

// get performs a synchronous request on a clone of the shared collector, so
// concurrent calls keep separate callbacks while sharing the HTTP backend
// and limit rules.
func (f *HTTPFetcher) get(ctx context.Context, target string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, &FetchError{URL: target, Err: err}
	}

	c := f.collector.Clone()

	var (
		body   []byte
		status int
	)

	c.OnRequest(func(r *colly.Request) {
		// Abort requests queued behind the limit rule once the session is canceled
		if ctx.Err() != nil {
			r.Abort()
		}
	})

	c.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = r.Body
	})

	c.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
	})

	start := time.Now()
	if err := c.Visit(target); err != nil {
		return nil, &FetchError{URL: target, StatusCode: status, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, &FetchError{URL: target, Err: err}
	}
	if status != http.StatusOK {
		return nil, &FetchError{URL: target, StatusCode: status, Err: fmt.Errorf("unexpected response")}
	}

	logrus.WithFields(logrus.Fields{
		"url":      target,
		"status":   status,
		"duration": time.Since(start),
	}).Debug("Fetched")

	return body, nil
}

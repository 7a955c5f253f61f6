package crawler

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// StopReason explains why a pagination session ended
type StopReason string

const (
	StopLimitReached StopReason = "limit_reached"
	StopExhausted    StopReason = "listing_exhausted"
	StopFetchFailed  StopReason = "fetch_failed"
	StopAborted      StopReason = "aborted"
)

// PageFetcher returns the raw markup of one search result page
type PageFetcher interface {
	FetchPage(ctx context.Context, format string, page int) ([]byte, error)
}

// Reference is one replay reference emitted by the Paginator. Seq is the
// zero-based emission index; consumers that resolve references out of
// order can use it to restore emission order.
type Reference struct {
	Seq  int
	Page int
	URL  string
}

// PaginationResult summarizes a finished session
type PaginationResult struct {
	PagesFetched int
	Emitted      int
	Reason       StopReason
}

// PageObserver is called once per fetched page with the count of new
// references it contributed. err is non-nil when the fetch failed.
type PageObserver func(page, fresh int, err error)

// Paginator walks the replay search listing page by page until it has
// emitted max references or a page contributes nothing new.
type Paginator struct {
	fetcher  PageFetcher
	format   string
	baseURL  string
	max      int
	observer PageObserver
}

// NewPaginator creates a paginator for one format
func NewPaginator(fetcher PageFetcher, format, baseURL string, maxReplays int, observer PageObserver) *Paginator {
	return &Paginator{
		fetcher:  fetcher,
		format:   format,
		baseURL:  baseURL,
		max:      maxReplays,
		observer: observer,
	}
}

// Run starts a fresh session at page 0 and calls yield for every new
// reference. A yield error stops the session and is returned as is.
// References already yielded stay yielded when a later page fails.
func (p *Paginator) Run(ctx context.Context, yield func(Reference) error) (PaginationResult, error) {
	var res PaginationResult
	seen := NewReplaySet()

	if p.max <= 0 {
		res.Reason = StopLimitReached
		return res, nil
	}

	for page := 0; ; page++ {
		if err := ctx.Err(); err != nil {
			res.Reason = StopAborted
			return res, err
		}

		markup, err := p.fetcher.FetchPage(ctx, p.format, page)
		res.PagesFetched++
		if err != nil {
			p.observe(page, 0, err)
			res.Reason = StopFetchFailed
			return res, fmt.Errorf("listing page %d: %w", page, err)
		}

		listing, err := ParseListing(page, markup, p.baseURL)
		if err != nil {
			err = &FetchError{Err: err}
			p.observe(page, 0, err)
			res.Reason = StopFetchFailed
			return res, fmt.Errorf("listing page %d: %w", page, err)
		}

		madeProgress := false
		fresh := 0
		for _, ref := range listing.References {
			if !seen.Add(ref) {
				continue
			}
			madeProgress = true
			fresh++

			if err := yield(Reference{Seq: res.Emitted, Page: page, URL: ref}); err != nil {
				p.observe(page, fresh, nil)
				res.Reason = StopAborted
				return res, err
			}
			res.Emitted++

			if res.Emitted == p.max {
				break
			}
		}
		p.observe(page, fresh, nil)

		logrus.WithFields(logrus.Fields{
			"format": p.format,
			"page":   page,
			"found":  len(listing.References),
			"new":    fresh,
			"seen":   seen.Len(),
			"total":  res.Emitted,
		}).Debug("Processed listing page")

		if res.Emitted == p.max {
			res.Reason = StopLimitReached
			return res, nil
		}
		if !madeProgress {
			res.Reason = StopExhausted
			return res, nil
		}
	}
}

func (p *Paginator) observe(page, fresh int, err error) {
	if p.observer != nil {
		p.observer(page, fresh, err)
	}
}

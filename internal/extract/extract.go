// Package extract turns raw replays into matches: bulk records read from
// disk, or replays resolved during a crawl, are parsed and handed to match
// sinks.
package extract

import (
	"context"
	"fmt"

	"github.com/alvmarrod/showdown-replays/internal/metrics"
	"github.com/alvmarrod/showdown-replays/internal/replay"
	"github.com/sirupsen/logrus"
)

// MatchSink receives parsed matches
type MatchSink interface {
	SaveMatch(ctx context.Context, match replay.ParsedMatch) error
}

// MatchSinkFunc adapts a function to MatchSink
type MatchSinkFunc func(ctx context.Context, match replay.ParsedMatch) error

func (f MatchSinkFunc) SaveMatch(ctx context.Context, match replay.ParsedMatch) error {
	return f(ctx, match)
}

// RecordError ties a per-record failure to where the record came from.
// Line is zero for records that did not come from a file.
type RecordError struct {
	Source string
	Line   int
	Err    error
}

func (e *RecordError) Error() string {
	if e.Line == 0 {
		return fmt.Sprintf("%s: %v", e.Source, e.Err)
	}
	return fmt.Sprintf("%s:%d: %v", e.Source, e.Line, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// Matcher parses records and passes each match to its sinks. It is safe for
// concurrent use when the sinks and tracker are.
type Matcher struct {
	tracker *metrics.Tracker
	sinks   []MatchSink
}

// NewMatcher creates a matcher; tracker may be nil
func NewMatcher(tracker *metrics.Tracker, sinks ...MatchSink) *Matcher {
	return &Matcher{tracker: tracker, sinks: sinks}
}

// Handle parses one record. A record that cannot become a match is logged,
// counted and returned as a *RecordError with a nil error. A sink failure is
// returned as err.
func (m *Matcher) Handle(ctx context.Context, rec replay.Record) (*replay.ParsedMatch, *RecordError, error) {
	match, err := parse(rec)
	if err != nil {
		recErr := &RecordError{Source: rec.Source, Line: rec.Line, Err: err}
		logrus.Warnf("Skipping record: %v", recErr)
		if m.tracker != nil {
			m.tracker.IncrementRecordErrors()
		}
		return nil, recErr, nil
	}

	if !match.Winner.Known() {
		logrus.WithFields(logrus.Fields{
			"id":     match.ID,
			"source": rec.Source,
			"line":   rec.Line,
		}).Warn("Winner could not be attributed to either player")
		if m.tracker != nil {
			m.tracker.IncrementUnknownWinners()
		}
	}

	for _, sink := range m.sinks {
		if err := sink.SaveMatch(ctx, match); err != nil {
			return nil, nil, fmt.Errorf("failed to store match %s: %w", match.ID, err)
		}
	}
	if m.tracker != nil {
		m.tracker.IncrementMatchesParsed()
	}
	return &match, nil, nil
}

// Result accounts for every record read: each one is either a match or an error.
type Result struct {
	Records int
	Matches int
	Errors  []*RecordError
}

// Run parses at most maxRecords records from path and passes each match to
// the sinks. Bad records are logged, collected in Result.Errors and skipped.
// A sink error stops the run.
func Run(ctx context.Context, path string, maxRecords int, tracker *metrics.Tracker, sinks ...MatchSink) (Result, error) {
	var res Result
	if maxRecords <= 0 {
		return res, nil
	}

	matcher := NewMatcher(tracker, sinks...)
	err := replay.ReadRecords(path, func(rec replay.Record) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		res.Records++

		match, recErr, err := matcher.Handle(ctx, rec)
		if err != nil {
			return err
		}
		if recErr != nil {
			res.Errors = append(res.Errors, recErr)
		}
		if match != nil {
			res.Matches++
		}

		if res.Records >= maxRecords {
			return replay.ErrStop
		}
		return nil
	})

	return res, err
}

func parse(rec replay.Record) (replay.ParsedMatch, error) {
	if rec.Err != nil {
		return replay.ParsedMatch{}, rec.Err
	}
	return replay.Parse(rec.Replay)
}

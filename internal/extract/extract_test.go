package extract_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alvmarrod/showdown-replays/internal/extract"
	"github.com/alvmarrod/showdown-replays/internal/metrics"
	"github.com/alvmarrod/showdown-replays/internal/replay"
)

const feed = `{"id":"gen8ou-1","formatid":"gen8ou","uploadtime":1,"log":"|player|p1|Alice|\n|player|p2|Bob|\n|poke|p1|Pikachu|\n|win|Alice|\n"}
{broken
{"id":"nodash","formatid":"gen8ou","uploadtime":2,"log":""}
{"id":"gen8ou-4","formatid":"gen8ou","uploadtime":4,"log":"|player|p1|Alice|\n|win|Zed|\n"}
`

func writeFeed(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gen8ou.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(feed), 0o644))
	return path
}

type collectSink struct {
	matches []replay.ParsedMatch
}

func (c *collectSink) SaveMatch(_ context.Context, m replay.ParsedMatch) error {
	c.matches = append(c.matches, m)
	return nil
}

func TestRun_EveryRecordAccountedFor(t *testing.T) {
	sink := &collectSink{}
	tracker := metrics.NewTracker()

	res, err := extract.Run(context.Background(), writeFeed(t), 100, tracker, sink)
	require.NoError(t, err)

	assert.Equal(t, 4, res.Records)
	assert.Equal(t, 2, res.Matches)
	require.Len(t, res.Errors, 2)
	assert.Equal(t, res.Records, res.Matches+len(res.Errors))

	var decodeErr *replay.DecodeError
	assert.True(t, errors.As(res.Errors[0], &decodeErr))
	assert.Equal(t, 2, res.Errors[0].Line)
	assert.True(t, errors.Is(res.Errors[1], replay.ErrMalformedIdentifier))
	assert.Equal(t, 3, res.Errors[1].Line)

	require.Len(t, sink.matches, 2)
	assert.Equal(t, "1", sink.matches[0].ID)
	assert.Equal(t, replay.WinnerP1, sink.matches[0].Winner)
	assert.Equal(t, []string{"Pikachu"}, sink.matches[0].Teams[0])
	assert.Equal(t, replay.WinnerUnknown, sink.matches[1].Winner)

	snap := tracker.GetSnapshot()
	assert.Equal(t, 2, snap.MatchesParsed)
	assert.Equal(t, 2, snap.RecordErrors)
	assert.Equal(t, 1, snap.UnknownWinners)
}

func TestRun_MaxRecords(t *testing.T) {
	sink := &collectSink{}

	res, err := extract.Run(context.Background(), writeFeed(t), 1, nil, sink)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Records)
	assert.Len(t, sink.matches, 1)
}

func TestRun_SinkErrorStops(t *testing.T) {
	fail := extract.MatchSinkFunc(func(context.Context, replay.ParsedMatch) error {
		return errors.New("read-only")
	})

	res, err := extract.Run(context.Background(), writeFeed(t), 100, nil, fail)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "read-only"))
	assert.Equal(t, 0, res.Matches)
}

func TestRun_ZeroMaxReadsNothing(t *testing.T) {
	res, err := extract.Run(context.Background(), "/does/not/matter", 0, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Records)
}

func TestMatcher_Handle(t *testing.T) {
	sink := &collectSink{}
	tracker := metrics.NewTracker()
	matcher := extract.NewMatcher(tracker, sink)
	ctx := context.Background()

	match, recErr, err := matcher.Handle(ctx, replay.Record{
		Source: "https://replay.example.com/gen8ou-9.json",
		Replay: replay.RawReplay{ID: "gen8ou-9", Log: "|player|p1|A|\n|player|p2|B|\n|win|A|\n"},
	})
	require.NoError(t, err)
	assert.Nil(t, recErr)
	require.NotNil(t, match)
	assert.Equal(t, "9", match.ID)
	assert.Equal(t, replay.WinnerP1, match.Winner)
	assert.Len(t, sink.matches, 1)

	match, recErr, err = matcher.Handle(ctx, replay.Record{
		Source: "https://replay.example.com/nodash.json",
		Replay: replay.RawReplay{ID: "nodash"},
	})
	require.NoError(t, err)
	assert.Nil(t, match)
	require.NotNil(t, recErr)
	assert.ErrorIs(t, recErr, replay.ErrMalformedIdentifier)
	assert.Equal(t, `https://replay.example.com/nodash.json: malformed replay identifier: "nodash"`, recErr.Error())

	snap := tracker.GetSnapshot()
	assert.Equal(t, 1, snap.MatchesParsed)
	assert.Equal(t, 1, snap.RecordErrors)
}

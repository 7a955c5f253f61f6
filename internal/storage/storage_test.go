package storage

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alvmarrod/showdown-replays/internal/replay"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()

	store, err := NewStorage(filepath.Join(t.TempDir(), "replays.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStorage_SaveReplayUpserts(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	raw := replay.RawReplay{ID: "gen8ou-1", FormatID: "gen8ou", UploadTime: 10, Log: "|win|A|"}
	require.NoError(t, store.SaveReplay(ctx, raw))

	raw.Log = "|win|B|"
	require.NoError(t, store.SaveReplay(ctx, raw))

	got, err := store.getReplay(ctx, "gen8ou-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, raw, *got)

	n, err := store.CountReplays(ctx, "gen8ou")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	missing, err := store.getReplay(ctx, "gen8ou-2")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestStorage_SaveMatch(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	match := replay.ParsedMatch{
		ID:         "1",
		Format:     "gen8ou",
		UploadTime: 10,
		Winner:     replay.WinnerP2,
		Teams:      [2][]string{{"Pikachu"}, {"Ditto", "Mew"}},
	}
	require.NoError(t, store.SaveMatch(ctx, match))

	row, err := store.getMatch(ctx, "1")
	require.NoError(t, err)
	require.NotNil(t, row)
	require.NotNil(t, row.Winner)
	assert.Equal(t, 1, *row.Winner)
	assert.Equal(t, []string{"Pikachu"}, row.Team1)
	assert.Equal(t, []string{"Ditto", "Mew"}, row.Team2)

	match.ID = "2"
	match.Winner = replay.WinnerUnknown
	match.Teams = [2][]string{{}, {}}
	require.NoError(t, store.SaveMatch(ctx, match))

	row, err = store.getMatch(ctx, "2")
	require.NoError(t, err)
	assert.Nil(t, row.Winner)
	assert.Empty(t, row.Team1)

	n, err := store.CountMatches(ctx, "gen8ou")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = store.CountMatches(ctx, "gen9ou")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestFeedWriter_WriteLine(t *testing.T) {
	var buf bytes.Buffer
	feed := NewFeedWriter(&buf)

	require.NoError(t, feed.WriteLine(map[string]int{"a": 1}))
	require.NoError(t, feed.WriteLine(map[string]int{"b": 2}))
	require.NoError(t, feed.Close())

	assert.Equal(t, "{\"a\":1}\n{\"b\":2}\n", buf.String())
}

func TestOpenFeed_Appends(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")

	for i := 0; i < 2; i++ {
		feed, err := OpenFeed(dir, "gen8ou")
		require.NoError(t, err)
		require.NoError(t, feed.WriteLine(replay.RawReplay{ID: "gen8ou-1"}))
		require.NoError(t, feed.Close())
	}

	data, err := os.ReadFile(filepath.Join(dir, "gen8ou.jsonl"))
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(data), "\n"))
}

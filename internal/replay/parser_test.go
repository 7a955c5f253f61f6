package replay_test

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alvmarrod/showdown-replays/internal/replay"
)

const battleLog = `|j|☆Alice
|j|☆Bob
|player|p1|Alice|266|1500
|player|p2|Bob|1|1480
|teamsize|p1|6
|teamsize|p2|6
|gen|8
|tier|[Gen 8] OU
|poke|p1|Pikachu, L50, M|
|poke|p1|Charizard, F|
|poke|p2|Mr. Mime|
|poke|p2|Urshifu-*, L50|
|
|start
|switch|p1a: Pikachu|Pikachu, L50, M|100/100
|turn|1
|win|Alice|
`

func rawReplay(log string) replay.RawReplay {
	return replay.RawReplay{
		ID:         "gen8ou-1234567",
		FormatID:   "gen8ou",
		UploadTime: 1612345678,
		Log:        log,
	}
}

func TestParse_WinnerAttribution(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		win  string
		want replay.Winner
	}{
		{name: "p1 wins", win: "|win|Alice|", want: replay.WinnerP1},
		{name: "p2 wins", win: "|win|Bob|", want: replay.WinnerP2},
		{name: "neither", win: "|win|Carol|", want: replay.WinnerUnknown},
		{name: "case differs", win: "|win|alice|", want: replay.WinnerUnknown},
		{name: "no win line", win: "|tie|", want: replay.WinnerUnknown},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			log := "|player|p1|Alice|1\n|player|p2|Bob|2\n" + tt.win + "\n"
			match, err := replay.Parse(rawReplay(log))
			require.NoError(t, err)
			assert.Equal(t, tt.want, match.Winner)
		})
	}
}

func TestParse_NoPlayerLines(t *testing.T) {
	t.Parallel()

	match, err := replay.Parse(rawReplay("|win|Alice|\n"))
	require.NoError(t, err)
	assert.Equal(t, replay.WinnerUnknown, match.Winner)
	assert.Equal(t, [2][]string{{}, {}}, match.Teams)
}

func TestParse_EmptyNamesDoNotMatchMissingWinner(t *testing.T) {
	t.Parallel()

	match, err := replay.Parse(rawReplay("|player|p1|\n|player|p2|Bob\n"))
	require.NoError(t, err)
	assert.Equal(t, replay.WinnerUnknown, match.Winner)
}

func TestParse_FirstBindingWins(t *testing.T) {
	t.Parallel()

	log := "|player|p1|Alice|\n|player|p1|Mallory|\n|player|p2|Bob|\n|win|Mallory|\n|win|Alice|\n"
	match, err := replay.Parse(rawReplay(log))
	require.NoError(t, err)
	assert.Equal(t, replay.WinnerUnknown, match.Winner)
}

func TestParse_Teams(t *testing.T) {
	t.Parallel()

	match, err := replay.Parse(rawReplay(battleLog))
	require.NoError(t, err)

	assert.Equal(t, []string{"Pikachu", "Charizard"}, match.Teams[0])
	assert.Equal(t, []string{"Mr. Mime", "Urshifu-*"}, match.Teams[1])
	assert.Equal(t, replay.WinnerP1, match.Winner)
	assert.Equal(t, "1234567", match.ID)
	assert.Equal(t, "gen8ou", match.Format)
	assert.Equal(t, int64(1612345678), match.UploadTime)
}

func TestParse_RosterKeepsOrderAndDuplicates(t *testing.T) {
	t.Parallel()

	log := "|poke|p1|Pikachu|\n|poke|p1|Charizard|\n|poke|p1|Pikachu|\n"
	match, err := replay.Parse(rawReplay(log))
	require.NoError(t, err)
	assert.Equal(t, []string{"Pikachu", "Charizard", "Pikachu"}, match.Teams[0])
	assert.Empty(t, match.Teams[1])
	assert.NotNil(t, match.Teams[1])
}

func TestParse_CRLFAndGarbage(t *testing.T) {
	t.Parallel()

	log := "garbage\r\n|player|p1|Alice|\r\n|player|p2|Bob|\r\n|poke|p2|Ditto|\r\n|poke\r\n|win|Bob|\r\n"
	match, err := replay.Parse(rawReplay(log))
	require.NoError(t, err)
	assert.Equal(t, replay.WinnerP2, match.Winner)
	assert.Equal(t, []string{"Ditto"}, match.Teams[1])
}

func TestParse_Idempotent(t *testing.T) {
	t.Parallel()

	raw := rawReplay(battleLog)
	first, err := replay.Parse(raw)
	require.NoError(t, err)
	second, err := replay.Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, first, second)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestMatchID(t *testing.T) {
	t.Parallel()

	id, err := replay.MatchID("gen8ou-1234567")
	require.NoError(t, err)
	assert.Equal(t, "1234567", id)

	id, err = replay.MatchID("gen8ou-1234567-abcpw")
	require.NoError(t, err)
	assert.Equal(t, "1234567-abcpw", id)

	for _, bad := range []string{"gen8ou1234567", "gen8ou-", ""} {
		_, err := replay.MatchID(bad)
		assert.True(t, errors.Is(err, replay.ErrMalformedIdentifier), "id %q", bad)
	}
}

func TestParse_MalformedIdentifier(t *testing.T) {
	t.Parallel()

	raw := rawReplay(battleLog)
	raw.ID = "1234567"
	_, err := replay.Parse(raw)
	require.ErrorIs(t, err, replay.ErrMalformedIdentifier)
	assert.True(t, strings.Contains(err.Error(), "1234567"))
}

func TestParsedMatch_JSON(t *testing.T) {
	t.Parallel()

	match, err := replay.Parse(rawReplay("|player|p1|Alice|\n|poke|p1|Pikachu|\n"))
	require.NoError(t, err)

	data, err := json.Marshal(match)
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"id":"1234567","format":"gen8ou","uploadtime":1612345678,"winner":null,"teams":[["Pikachu"],[]]}`,
		string(data))

	var decoded replay.ParsedMatch
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, replay.WinnerUnknown, decoded.Winner)
}

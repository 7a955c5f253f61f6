package replay

import (
	"fmt"
	"strings"
)

// Protocol tags recognized in a battle log line.
const (
	tagPlayer = "player"
	tagPoke   = "poke"
	tagWin    = "win"
)

const (
	slotP1 = "p1"
	slotP2 = "p2"
)

// logFacts collects the plain strings pulled out of a log in one pass.
type logFacts struct {
	p1Name, p2Name string
	hasP1, hasP2   bool
	winner         string
	hasWinner      bool
	teams          [2][]string
}

// Parse extracts match facts from a raw replay. Malformed log lines are
// ignored; the only error is ErrMalformedIdentifier for an id without a
// format prefix.
func Parse(raw RawReplay) (ParsedMatch, error) {
	id, err := MatchID(raw.ID)
	if err != nil {
		return ParsedMatch{}, err
	}

	facts := scanLog(raw.Log)

	return ParsedMatch{
		ID:         id,
		Format:     raw.FormatID,
		UploadTime: raw.UploadTime,
		Winner:     facts.attribute(),
		Teams:      facts.teams,
	}, nil
}

// MatchID strips the format prefix from a replay id: "gen8ou-1234567"
// becomes "1234567".
func MatchID(replayID string) (string, error) {
	_, rest, found := strings.Cut(replayID, "-")
	if !found || rest == "" {
		return "", fmt.Errorf("%w: %q", ErrMalformedIdentifier, replayID)
	}
	return rest, nil
}

func scanLog(log string) logFacts {
	facts := logFacts{
		teams: [2][]string{{}, {}},
	}

	for _, line := range strings.Split(log, "\n") {
		line = strings.TrimRight(line, "\r")
		if !strings.HasPrefix(line, "|") {
			continue
		}
		fields := strings.Split(line[1:], "|")

		switch fields[0] {
		case tagPlayer:
			if len(fields) < 3 {
				continue
			}
			switch fields[1] {
			case slotP1:
				if !facts.hasP1 {
					facts.p1Name, facts.hasP1 = fields[2], true
				}
			case slotP2:
				if !facts.hasP2 {
					facts.p2Name, facts.hasP2 = fields[2], true
				}
			}
		case tagWin:
			if len(fields) < 2 || facts.hasWinner {
				continue
			}
			facts.winner, facts.hasWinner = fields[1], true
		case tagPoke:
			if len(fields) < 3 {
				continue
			}
			species := speciesName(fields[2])
			if species == "" {
				continue
			}
			switch fields[1] {
			case slotP1:
				facts.teams[0] = append(facts.teams[0], species)
			case slotP2:
				facts.teams[1] = append(facts.teams[1], species)
			}
		}
	}

	return facts
}

// speciesName drops the level and gender details from a poke details field,
// e.g. "Urshifu-*, L50, M" becomes "Urshifu-*".
func speciesName(details string) string {
	species, _, _ := strings.Cut(details, ",")
	return strings.TrimSpace(species)
}

func (f logFacts) attribute() Winner {
	if !f.hasWinner {
		return WinnerUnknown
	}
	switch {
	case f.hasP1 && f.winner == f.p1Name:
		return WinnerP1
	case f.hasP2 && f.winner == f.p2Name:
		return WinnerP2
	default:
		return WinnerUnknown
	}
}

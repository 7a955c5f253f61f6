package replay

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// ErrMalformedIdentifier is returned when a replay id has no "-" separating
// the format prefix from the replay number.
var ErrMalformedIdentifier = errors.New("malformed replay identifier")

// RawReplay is one replay record as served by the replay server.
type RawReplay struct {
	ID         string `json:"id"`
	FormatID   string `json:"formatid"`
	UploadTime int64  `json:"uploadtime"`
	Log        string `json:"log"`
}

// Winner identifies the winning side of a match.
type Winner int

const (
	WinnerUnknown Winner = -1
	WinnerP1      Winner = 0
	WinnerP2      Winner = 1
)

// Known reports whether the winner could be attributed to a side.
func (w Winner) Known() bool {
	return w == WinnerP1 || w == WinnerP2
}

// MarshalJSON encodes the side index, or null when unknown.
func (w Winner) MarshalJSON() ([]byte, error) {
	if !w.Known() {
		return []byte("null"), nil
	}
	return []byte(strconv.Itoa(int(w))), nil
}

// UnmarshalJSON accepts 0, 1 or null.
func (w *Winner) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*w = WinnerUnknown
		return nil
	}
	var idx int
	if err := json.Unmarshal(data, &idx); err != nil {
		return fmt.Errorf("failed to decode winner: %w", err)
	}
	switch Winner(idx) {
	case WinnerP1, WinnerP2:
		*w = Winner(idx)
	default:
		*w = WinnerUnknown
	}
	return nil
}

// ParsedMatch holds the facts extracted from one replay log.
// Teams always has two entries: index 0 is p1, index 1 is p2.
type ParsedMatch struct {
	ID         string      `json:"id"`
	Format     string      `json:"format"`
	UploadTime int64       `json:"uploadtime"`
	Winner     Winner      `json:"winner"`
	Teams      [2][]string `json:"teams"`
}

// DecodeError reports a bulk input line that is not a valid replay record.
type DecodeError struct {
	Source string
	Line   int
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s:%d: failed to decode replay: %v", e.Source, e.Line, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// DecodeRaw decodes a single JSON replay record.
func DecodeRaw(data []byte) (RawReplay, error) {
	var raw RawReplay
	if err := json.Unmarshal(data, &raw); err != nil {
		return RawReplay{}, err
	}
	if raw.ID == "" {
		return RawReplay{}, fmt.Errorf("%w: record has no id", ErrMalformedIdentifier)
	}
	return raw, nil
}

package replay

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// ErrStop can be returned from a RecordFunc to end iteration early without error.
var ErrStop = errors.New("stop iteration")

// Record is one line read from a bulk replay file. Err is a *DecodeError
// when the line is not a JSON replay record, or wraps ErrMalformedIdentifier
// when the record carries no id; Replay is then zero.
type Record struct {
	Source string
	Line   int
	Replay RawReplay
	Err    error
}

// RecordFunc receives records in file order.
type RecordFunc func(Record) error

// ReadRecords reads JSONL replay records from a file, or from every regular
// file of a directory in name order. Blank lines are skipped. Decode
// failures are delivered as records and do not stop iteration.
func ReadRecords(path string, fn RecordFunc) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat replay path: %w", err)
	}

	var files []string
	if info.IsDir() {
		entries, err := os.ReadDir(path)
		if err != nil {
			return fmt.Errorf("failed to read replay directory: %w", err)
		}
		for _, entry := range entries {
			if entry.Type().IsRegular() {
				files = append(files, filepath.Join(path, entry.Name()))
			}
		}
		sort.Strings(files)
	} else {
		files = []string{path}
	}

	for _, file := range files {
		if err := readFile(file, fn); err != nil {
			if errors.Is(err, ErrStop) {
				return nil
			}
			return err
		}
	}
	return nil
}

func readFile(path string, fn RecordFunc) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open replay file: %w", err)
	}
	defer file.Close()

	return readLines(path, file, fn)
}

// readLines uses bufio.Reader rather than Scanner since a single replay
// log can exceed any fixed token size.
func readLines(source string, r io.Reader, fn RecordFunc) error {
	reader := bufio.NewReader(r)
	lineNo := 0

	for {
		line, readErr := reader.ReadBytes('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return fmt.Errorf("failed to read %s: %w", source, readErr)
		}

		if len(line) > 0 {
			lineNo++
			if trimmed := bytes.TrimSpace(line); len(trimmed) > 0 {
				rec := Record{Source: source, Line: lineNo}
				raw, err := DecodeRaw(trimmed)
				switch {
				case errors.Is(err, ErrMalformedIdentifier):
					rec.Err = err
				case err != nil:
					rec.Err = &DecodeError{Source: source, Line: lineNo, Err: err}
				default:
					rec.Replay = raw
				}
				if err := fn(rec); err != nil {
					return err
				}
			}
		}

		if readErr != nil {
			return nil
		}
	}
}

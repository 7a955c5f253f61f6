package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// FeedWriter appends JSON lines to a writer. Each record is flushed as soon
// as it is written so a crashed run leaves only whole lines behind.
type FeedWriter struct {
	mu     sync.Mutex
	writer *bufio.Writer
	closer io.Closer
	path   string
}

// NewFeedWriter wraps w. Close does not close w.
func NewFeedWriter(w io.Writer) *FeedWriter {
	return &FeedWriter{writer: bufio.NewWriter(w)}
}

// OpenFeed opens (or creates) dir/name.jsonl for appending
func OpenFeed(dir, name string) (*FeedWriter, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	path := filepath.Join(dir, name+".jsonl")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open feed %s: %w", path, err)
	}

	return &FeedWriter{
		writer: bufio.NewWriter(file),
		closer: file,
		path:   path,
	}, nil
}

// Path returns the feed file path, empty for wrapped writers
func (f *FeedWriter) Path() string {
	return f.path
}

// WriteLine writes one record as a JSON line
func (f *FeedWriter) WriteLine(record any) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, err := f.writer.Write(data); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	if err := f.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}
	if err := f.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}

	return nil
}

// Close flushes and closes the underlying file, if any
func (f *FeedWriter) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}
	if f.closer != nil {
		return f.closer.Close()
	}
	return nil
}

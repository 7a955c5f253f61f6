package metrics

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/alvmarrod/showdown-replays/internal/storage"
)

// Tracker holds and manages crawl metrics
type Tracker struct {
	mu               sync.Mutex
	data             storage.Metrics
	totalFetchTimeMs int64
	fetchCount       int
}

// NewTracker creates a new metrics tracker
func NewTracker() *Tracker {
	return &Tracker{
		data: storage.Metrics{
			StartTime: time.Now(),
		},
	}
}

// IncrementPagesFetched increments the successful listing page counter
func (t *Tracker) IncrementPagesFetched() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.PagesFetched++
}

// IncrementPagesFailed increments the failed listing page counter
func (t *Tracker) IncrementPagesFailed() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.PagesFailed++
}

// AddReplaysDiscovered adds newly emitted references
func (t *Tracker) AddReplaysDiscovered(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.ReplaysDiscovered += n
}

// IncrementReplaysResolved increments the resolved replay counter
func (t *Tracker) IncrementReplaysResolved() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.ReplaysResolved++
}

// IncrementReplaysFailed increments the failed replay counter
func (t *Tracker) IncrementReplaysFailed() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.ReplaysFailed++
}

// IncrementMatchesParsed increments the parsed match counter
func (t *Tracker) IncrementMatchesParsed() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.MatchesParsed++
}

// IncrementRecordErrors counts a record that produced an error instead of a match
func (t *Tracker) IncrementRecordErrors() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.RecordErrors++
}

// IncrementUnknownWinners counts matches whose winner could not be attributed
func (t *Tracker) IncrementUnknownWinners() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.UnknownWinners++
}

// RecordFetchTime records a replay fetch duration
func (t *Tracker) RecordFetchTime(duration time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.totalFetchTimeMs += duration.Milliseconds()
	t.fetchCount++
}

// GetSnapshot returns a copy of current metrics
func (t *Tracker) GetSnapshot() storage.Metrics {
	t.mu.Lock()
	defer t.mu.Unlock()

	snapshot := t.data
	snapshot.TotalFetchTimeMs = t.totalFetchTimeMs

	// Calculate average fetch time
	if t.fetchCount > 0 {
		snapshot.AvgFetchTimeMs = t.totalFetchTimeMs / int64(t.fetchCount)
	}

	return snapshot
}

// WriteToFile exports metrics to a JSON file
func (t *Tracker) WriteToFile(path, reason string) error {
	t.mu.Lock()
	t.data.EndTime = time.Now()
	t.data.TerminationReason = reason
	t.mu.Unlock()

	jsonData, err := json.MarshalIndent(t.GetSnapshot(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metrics: %w", err)
	}

	if err := os.WriteFile(path, jsonData, 0644); err != nil {
		return fmt.Errorf("failed to write metrics file: %w", err)
	}

	return nil
}

// LogProgress formats current metrics for periodic console updates
func (t *Tracker) LogProgress() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	return fmt.Sprintf("Pages: %d fetched, %d failed | Replays: %d discovered, %d resolved, %d failed | Matches: %d parsed, %d errors, %d unknown winner",
		t.data.PagesFetched,
		t.data.PagesFailed,
		t.data.ReplaysDiscovered,
		t.data.ReplaysResolved,
		t.data.ReplaysFailed,
		t.data.MatchesParsed,
		t.data.RecordErrors,
		t.data.UnknownWinners,
	)
}

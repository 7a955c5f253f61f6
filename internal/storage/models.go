package storage

import "time"

// matchRow is a parsed match as stored in the matches table
type matchRow struct {
	ID         string
	Format     string
	UploadTime int64
	Winner     *int
	Team1      []string
	Team2      []string
	CreatedAt  time.Time
}

// Metrics tracks crawl and extraction statistics for export on exit
type Metrics struct {
	StartTime         time.Time `json:"start_time"`
	EndTime           time.Time `json:"end_time"`
	PagesFetched      int       `json:"pages_fetched"`
	PagesFailed       int       `json:"pages_failed"`
	ReplaysDiscovered int       `json:"replays_discovered"`
	ReplaysResolved   int       `json:"replays_resolved"`
	ReplaysFailed     int       `json:"replays_failed"`
	MatchesParsed     int       `json:"matches_parsed"`
	RecordErrors      int       `json:"record_errors"`
	UnknownWinners    int       `json:"unknown_winners"`
	TotalFetchTimeMs  int64     `json:"total_fetch_time_ms"`
	AvgFetchTimeMs    int64     `json:"avg_fetch_time_ms"`
	TerminationReason string    `json:"termination_reason"`
}

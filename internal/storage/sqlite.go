package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/alvmarrod/showdown-replays/internal/replay"
	_ "github.com/mattn/go-sqlite3"
)

// Storage handles all database operations
type Storage struct {
	db *sql.DB
}

// NewStorage creates a new Storage instance, opening/creating the DB and initializing schema
func NewStorage(dbPath string) (*Storage, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	storage := &Storage{db: db}

	// Initialize schema
	if err := storage.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return storage, nil
}

// initSchema creates tables and indices if they don't exist
func (s *Storage) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS replays (
		replay_id TEXT PRIMARY KEY,
		format TEXT NOT NULL,
		upload_time INTEGER NOT NULL,
		log TEXT NOT NULL,
		fetched_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS matches (
		match_id TEXT PRIMARY KEY,
		format TEXT NOT NULL,
		upload_time INTEGER NOT NULL,
		winner INTEGER,
		team1 TEXT NOT NULL,
		team2 TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_replays_format ON replays(format);
	CREATE INDEX IF NOT EXISTS idx_matches_format ON matches(format);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveReplay inserts a raw replay, replacing the log if it was stored before
func (s *Storage) SaveReplay(ctx context.Context, raw replay.RawReplay) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO replays (replay_id, format, upload_time, log)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(replay_id) DO UPDATE SET
			upload_time = EXCLUDED.upload_time,
			log = EXCLUDED.log
	`, raw.ID, raw.FormatID, raw.UploadTime, raw.Log)

	if err != nil {
		return fmt.Errorf("failed to save replay %s: %w", raw.ID, err)
	}
	return nil
}

// SaveMatch inserts or replaces a parsed match
func (s *Storage) SaveMatch(ctx context.Context, match replay.ParsedMatch) error {
	team1, err := json.Marshal(match.Teams[0])
	if err != nil {
		return fmt.Errorf("failed to encode team: %w", err)
	}
	team2, err := json.Marshal(match.Teams[1])
	if err != nil {
		return fmt.Errorf("failed to encode team: %w", err)
	}

	var winner sql.NullInt64
	if match.Winner.Known() {
		winner = sql.NullInt64{Int64: int64(match.Winner), Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO matches (match_id, format, upload_time, winner, team1, team2)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(match_id) DO UPDATE SET
			format = EXCLUDED.format,
			upload_time = EXCLUDED.upload_time,
			winner = EXCLUDED.winner,
			team1 = EXCLUDED.team1,
			team2 = EXCLUDED.team2
	`, match.ID, match.Format, match.UploadTime, winner, string(team1), string(team2))

	if err != nil {
		return fmt.Errorf("failed to save match %s: %w", match.ID, err)
	}
	return nil
}

// getReplay retrieves a raw replay by id, returns nil if not found
func (s *Storage) getReplay(ctx context.Context, id string) (*replay.RawReplay, error) {
	var raw replay.RawReplay
	err := s.db.QueryRowContext(ctx, `
		SELECT replay_id, format, upload_time, log
		FROM replays
		WHERE replay_id = ?
	`, id).Scan(&raw.ID, &raw.FormatID, &raw.UploadTime, &raw.Log)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get replay: %w", err)
	}

	return &raw, nil
}

// getMatch retrieves a match by id, returns nil if not found
func (s *Storage) getMatch(ctx context.Context, id string) (*matchRow, error) {
	var (
		row          matchRow
		winner       sql.NullInt64
		team1, team2 string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT match_id, format, upload_time, winner, team1, team2, created_at
		FROM matches
		WHERE match_id = ?
	`, id).Scan(&row.ID, &row.Format, &row.UploadTime, &winner, &team1, &team2, &row.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get match: %w", err)
	}

	if winner.Valid {
		w := int(winner.Int64)
		row.Winner = &w
	}
	if err := json.Unmarshal([]byte(team1), &row.Team1); err != nil {
		return nil, fmt.Errorf("failed to decode team1: %w", err)
	}
	if err := json.Unmarshal([]byte(team2), &row.Team2); err != nil {
		return nil, fmt.Errorf("failed to decode team2: %w", err)
	}

	return &row, nil
}

// CountReplays returns the number of stored replays for a format
func (s *Storage) CountReplays(ctx context.Context, format string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM replays WHERE format = ?", format).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count replays: %w", err)
	}
	return n, nil
}

// CountMatches returns the number of stored matches for a format
func (s *Storage) CountMatches(ctx context.Context, format string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM matches WHERE format = ?", format).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count matches: %w", err)
	}
	return n, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}

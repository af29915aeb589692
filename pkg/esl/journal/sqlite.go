package journal

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteStore persists call records to SQLite.
// It is suitable for single-process production use.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewSQLiteStore creates a new SQLite call record store.
// The path should be a file path (e.g., "./calls.db") or ":memory:" for testing.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for better concurrent read performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS call_records (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			channel_uuid TEXT NOT NULL,
			event TEXT NOT NULL,
			call_state TEXT NOT NULL,
			hangup_cause TEXT NOT NULL,
			caller_id_number TEXT NOT NULL,
			destination TEXT NOT NULL,
			timestamp TEXT NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	if _, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_call_records_channel
		ON call_records(channel_uuid)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create index: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Append implements Store.
func (s *SQLiteStore) Append(rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	ts := rec.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO call_records
			(channel_uuid, event, call_state, hangup_cause, caller_id_number, destination, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, rec.ChannelUUID, rec.Event, rec.CallState, rec.HangupCause,
		rec.CallerIDNumber, rec.Destination, ts.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("append record: %w", err)
	}
	return nil
}

// ByChannel implements Store.
func (s *SQLiteStore) ByChannel(channelUUID string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.Query(`
		SELECT channel_uuid, event, call_state, hangup_cause, caller_id_number, destination, timestamp
		FROM call_records
		WHERE channel_uuid = ?
		ORDER BY id
	`, channelUUID)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// Recent implements Store.
func (s *SQLiteStore) Recent(n int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.Query(`
		SELECT channel_uuid, event, call_state, hangup_cause, caller_id_number, destination, timestamp
		FROM call_records
		ORDER BY id DESC
		LIMIT ?
	`, n)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	out := []Record{}
	for rows.Next() {
		var rec Record
		var ts string
		if err := rows.Scan(&rec.ChannelUUID, &rec.Event, &rec.CallState,
			&rec.HangupCause, &rec.CallerIDNumber, &rec.Destination, &ts); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		rec.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return out, nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

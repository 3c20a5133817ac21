// Package history persists the command log: one row per routed command
// with the reply that was produced for it.
package history

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/nugget/jarvis/internal/database"
)

// DefaultLimit is the number of records Recent returns when the caller
// does not ask for a specific count.
const DefaultLimit = 50

// Record is a single command/response exchange. Records are immutable
// once written.
type Record struct {
	ID        int64     `json:"id"`
	Command   string    `json:"command"`
	Response  string    `json:"response"`
	Timestamp time.Time `json:"timestamp"`
}

// Store is the SQLite-backed command history.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore wraps db and creates the command_history table if needed.
func NewStore(db *sql.DB) (*Store, error) {
	s := &Store{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate history: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS command_history (
		id        INTEGER PRIMARY KEY AUTOINCREMENT,
		command   TEXT NOT NULL,
		response  TEXT NOT NULL,
		timestamp TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_command_history_timestamp ON command_history(timestamp);
	`)
	return err
}

// Append records one exchange and returns its row ID.
func (s *Store) Append(command, response string) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO command_history (command, response, timestamp) VALUES (?, ?, ?)`,
		command, response, database.FormatTime(s.now()),
	)
	if err != nil {
		return 0, fmt.Errorf("append history: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("append history: %w", err)
	}
	return id, nil
}

// Recent returns up to limit records, newest first. A limit of zero or
// less means DefaultLimit.
func (s *Store) Recent(limit int) ([]Record, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	rows, err := s.db.Query(
		`SELECT id, command, response, timestamp FROM command_history
		 ORDER BY timestamp DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		var ts string
		if err := rows.Scan(&r.ID, &r.Command, &r.Response, &ts); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		r.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Purge deletes every record.
func (s *Store) Purge() error {
	if _, err := s.db.Exec(`DELETE FROM command_history`); err != nil {
		return fmt.Errorf("purge history: %w", err)
	}
	return nil
}

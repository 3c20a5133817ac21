// Package notes stores user notes and reminders. The reminder tool
// writes here; the notes API reads and completes them.
package notes

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nugget/jarvis/internal/database"
)

// ErrNotFound is returned when a note ID does not exist.
var ErrNotFound = errors.New("note not found")

// Note is a single note or reminder.
type Note struct {
	ID      int64  `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
	// ReminderTime is the client-supplied reminder moment, stored as
	// given. Empty means no reminder.
	ReminderTime string    `json:"reminder_time,omitempty"`
	Completed    bool      `json:"completed"`
	CreatedAt    time.Time `json:"created_at"`
}

// Store is the SQLite-backed note store.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore wraps db and creates the notes table if needed.
func NewStore(db *sql.DB) (*Store, error) {
	s := &Store{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate notes: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS notes (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		title         TEXT NOT NULL,
		content       TEXT NOT NULL DEFAULT '',
		reminder_time TEXT,
		completed     INTEGER NOT NULL DEFAULT 0,
		created_at    TEXT NOT NULL
	);
	`)
	return err
}

// Create inserts a note and returns it with its assigned ID. Title is
// required.
func (s *Store) Create(title, content, reminderTime string) (*Note, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, errors.New("title is required")
	}

	n := &Note{
		Title:        title,
		Content:      content,
		ReminderTime: strings.TrimSpace(reminderTime),
		CreatedAt:    s.now().UTC(),
	}

	var reminder sql.NullString
	if n.ReminderTime != "" {
		reminder = sql.NullString{String: n.ReminderTime, Valid: true}
	}

	res, err := s.db.Exec(
		`INSERT INTO notes (title, content, reminder_time, completed, created_at)
		 VALUES (?, ?, ?, 0, ?)`,
		n.Title, n.Content, reminder, database.FormatTime(n.CreatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("insert note: %w", err)
	}
	if n.ID, err = res.LastInsertId(); err != nil {
		return nil, fmt.Errorf("insert note: %w", err)
	}
	return n, nil
}

// ListOpen returns notes that are not completed, newest first.
func (s *Store) ListOpen() ([]Note, error) {
	rows, err := s.db.Query(
		`SELECT id, title, content, reminder_time, completed, created_at
		 FROM notes WHERE completed = 0 ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	var out []Note
	for rows.Next() {
		var n Note
		var reminder sql.NullString
		var created string
		if err := rows.Scan(&n.ID, &n.Title, &n.Content, &reminder, &n.Completed, &created); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		n.ReminderTime = reminder.String
		n.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, n)
	}
	return out, rows.Err()
}

// Complete marks a note done. Completed notes drop out of ListOpen.
func (s *Store) Complete(id int64) error {
	res, err := s.db.Exec(`UPDATE notes SET completed = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("complete note %d: %w", id, err)
	}
	return checkAffected(res, id)
}

// Delete removes a note.
func (s *Store) Delete(id int64) error {
	res, err := s.db.Exec(`DELETE FROM notes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete note %d: %w", id, err)
	}
	return checkAffected(res, id)
}

func checkAffected(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("note %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("note %d: %w", id, ErrNotFound)
	}
	return nil
}

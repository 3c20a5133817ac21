package scheduler

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nugget/jarvis/internal/database"
)

// Store handles automation persistence.
type Store struct {
	db *sql.DB
}

// NewStore wraps db and creates the automations table if needed.
func NewStore(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate automations: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS automations (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		task_type  TEXT NOT NULL,
		schedule   TEXT NOT NULL,
		enabled    INTEGER NOT NULL DEFAULT 1,
		config     TEXT,
		last_run   TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_automations_due ON automations(enabled, schedule);
	`

	_, err := s.db.Exec(schema)
	return err
}

// NewID generates a new UUIDv7.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// Fallback to v4 if v7 fails
		return uuid.New().String()
	}
	return id.String()
}

const automationColumns = `id, name, task_type, schedule, enabled, config, last_run, created_at`

// Create validates and persists a new automation, assigning its ID and
// creation time when unset.
func (s *Store) Create(a *Automation) error {
	if err := a.Validate(); err != nil {
		return err
	}
	if a.ID == "" {
		a.ID = NewID()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}

	var config sql.NullString
	if len(a.Config) > 0 {
		config = sql.NullString{String: string(a.Config), Valid: true}
	}

	_, err := s.db.Exec(`
		INSERT INTO automations (`+automationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, NULL, ?)
	`, a.ID, a.Name, string(a.TaskType), a.Schedule, boolInt(a.Enabled), config,
		database.FormatTime(a.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert automation: %w", err)
	}
	return nil
}

// Get retrieves an automation by ID.
func (s *Store) Get(id string) (*Automation, error) {
	row := s.db.QueryRow(`SELECT `+automationColumns+` FROM automations WHERE id = ?`, id)
	a, err := scanAutomation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("automation %s: %w", id, ErrNotFound)
	}
	return a, err
}

// List returns every automation, newest first.
func (s *Store) List() ([]*Automation, error) {
	rows, err := s.db.Query(`SELECT ` + automationColumns + ` FROM automations ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list automations: %w", err)
	}
	return collect(rows)
}

// Due returns the enabled automations whose schedule equals one of
// slots, oldest first so firing order is stable.
func (s *Store) Due(slots []string) ([]*Automation, error) {
	if len(slots) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(slots)), ",")
	args := make([]any, len(slots))
	for i, slot := range slots {
		args[i] = slot
	}

	rows, err := s.db.Query(`SELECT `+automationColumns+` FROM automations
		WHERE enabled = 1 AND schedule IN (`+placeholders+`)
		ORDER BY created_at, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("query due automations: %w", err)
	}
	return collect(rows)
}

// SetEnabled toggles an automation.
func (s *Store) SetEnabled(id string, enabled bool) error {
	res, err := s.db.Exec(`UPDATE automations SET enabled = ? WHERE id = ?`, boolInt(enabled), id)
	if err != nil {
		return fmt.Errorf("update automation %s: %w", id, err)
	}
	return checkAffected(res, id)
}

// UpdateLastRun records that an automation fired at t. No other column
// is touched.
func (s *Store) UpdateLastRun(id string, t time.Time) error {
	res, err := s.db.Exec(`UPDATE automations SET last_run = ? WHERE id = ?`,
		database.FormatTime(t), id)
	if err != nil {
		return fmt.Errorf("update last_run %s: %w", id, err)
	}
	return checkAffected(res, id)
}

// Delete removes an automation.
func (s *Store) Delete(id string) error {
	res, err := s.db.Exec(`DELETE FROM automations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete automation %s: %w", id, err)
	}
	return checkAffected(res, id)
}

func checkAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("automation %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("automation %s: %w", id, ErrNotFound)
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAutomation(row scanner) (*Automation, error) {
	var a Automation
	var taskType, createdAt string
	var enabled int
	var config, lastRun sql.NullString

	if err := row.Scan(&a.ID, &a.Name, &taskType, &a.Schedule, &enabled, &config, &lastRun, &createdAt); err != nil {
		return nil, err
	}

	a.TaskType = TaskType(taskType)
	a.Enabled = enabled != 0
	if config.Valid && config.String != "" {
		a.Config = []byte(config.String)
	}
	if lastRun.Valid {
		if t, err := time.Parse(time.RFC3339Nano, lastRun.String); err == nil {
			a.LastRun = &t
		}
	}
	a.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return &a, nil
}

func collect(rows *sql.Rows) ([]*Automation, error) {
	defer rows.Close()

	var out []*Automation
	for rows.Next() {
		a, err := scanAutomation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan automation: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

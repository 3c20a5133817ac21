// Package database opens the SQLite database shared by the settings,
// history, automation and note stores. Each store owns and migrates its
// own table; this package only handles driver selection and connection
// pragmas.
package database

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // "sqlite3" driver (cgo)
	_ "modernc.org/sqlite"          // "sqlite" driver (pure Go)
)

// Drivers accepted by Open.
const (
	DriverCGO  = "sqlite3"
	DriverPure = "sqlite"
)

// busyTimeoutMS keeps concurrent writers from failing immediately with
// SQLITE_BUSY while another connection holds the write lock.
const busyTimeoutMS = 5000

// Open opens (creating if needed) the database file at path with the
// named driver. The parent directory is created when missing.
func Open(driver, path string) (*sql.DB, error) {
	dsn, err := DSN(driver, path)
	if err != nil {
		return nil, err
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database %s: %w", path, err)
	}
	return db, nil
}

// DSN builds the driver-specific connection string. The two drivers
// spell connection pragmas differently.
func DSN(driver, path string) (string, error) {
	q := url.Values{}
	switch driver {
	case DriverCGO:
		q.Set("_busy_timeout", fmt.Sprint(busyTimeoutMS))
		q.Set("_journal_mode", "WAL")
		q.Set("_foreign_keys", "on")
	case DriverPure:
		q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busyTimeoutMS))
		q.Add("_pragma", "journal_mode(WAL)")
		q.Add("_pragma", "foreign_keys(1)")
	default:
		return "", fmt.Errorf("unknown sqlite driver %q (valid: %s, %s)", driver, DriverCGO, DriverPure)
	}
	return "file:" + path + "?" + q.Encode(), nil
}

// TimeLayout is the fixed-width UTC layout stores use for TEXT
// timestamps. Unlike RFC3339Nano it keeps trailing zeros, so string
// order matches time order in ORDER BY clauses. time.RFC3339Nano
// parses it.
const TimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// FormatTime renders t in UTC with TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

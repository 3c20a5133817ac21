package database

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDSN(t *testing.T) {
	tests := []struct {
		driver string
		want   string
	}{
		{DriverCGO, "_busy_timeout=5000"},
		{DriverPure, "_pragma=busy_timeout%285000%29"},
	}
	for _, tt := range tests {
		dsn, err := DSN(tt.driver, "/tmp/x.db")
		if err != nil {
			t.Fatalf("DSN(%q): %v", tt.driver, err)
		}
		if !strings.HasPrefix(dsn, "file:/tmp/x.db?") {
			t.Errorf("DSN(%q) = %q, want file: prefix", tt.driver, dsn)
		}
		if !strings.Contains(dsn, tt.want) {
			t.Errorf("DSN(%q) = %q, want substring %q", tt.driver, dsn, tt.want)
		}
	}
}

func TestDSN_UnknownDriver(t *testing.T) {
	if _, err := DSN("postgres", "x.db"); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestOpen_PureDriverCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "jarvis.db")

	db, err := Open(DriverPure, path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	if _, err := db.Exec(`CREATE TABLE t (id INTEGER)`); err != nil {
		t.Fatalf("exec: %v", err)
	}
}

func TestFormatTime_SortsLexically(t *testing.T) {
	base := time.Date(2026, 1, 2, 3, 4, 5, 100_000_000, time.UTC)
	later := base.Add(20 * time.Millisecond)

	a, b := FormatTime(base), FormatTime(later)
	if !(a < b) {
		t.Errorf("FormatTime(%v) = %q should sort before %q", base, a, b)
	}

	parsed, err := time.Parse(time.RFC3339Nano, b)
	if err != nil {
		t.Fatalf("parse %q: %v", b, err)
	}
	if !parsed.Equal(later) {
		t.Errorf("round trip = %v, want %v", parsed, later)
	}
}

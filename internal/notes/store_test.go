package notes

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	s, err := NewStore(db)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

func TestCreateAndListOpen(t *testing.T) {
	s := testStore(t)
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	tick := 0
	s.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	first, err := s.Create("buy milk", "", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if first.ID == 0 {
		t.Error("expected ID to be assigned")
	}
	if _, err := s.Create("call the dentist", "before noon", "2026-03-02T11:00"); err != nil {
		t.Fatalf("Create: %v", err)
	}

	list, err := s.ListOpen()
	if err != nil {
		t.Fatalf("ListOpen: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("len = %d, want 2", len(list))
	}
	if list[0].Title != "call the dentist" {
		t.Errorf("list[0] = %q, want newest first", list[0].Title)
	}
	if list[0].ReminderTime != "2026-03-02T11:00" {
		t.Errorf("reminder_time = %q", list[0].ReminderTime)
	}
	if list[1].ReminderTime != "" {
		t.Errorf("reminder_time = %q, want empty", list[1].ReminderTime)
	}
}

func TestCreateRequiresTitle(t *testing.T) {
	s := testStore(t)
	if _, err := s.Create("   ", "body", ""); err == nil {
		t.Error("expected error for blank title")
	}
}

func TestComplete(t *testing.T) {
	s := testStore(t)

	n, err := s.Create("water plants", "", "")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Complete(n.ID); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	list, err := s.ListOpen()
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 0 {
		t.Errorf("completed note still listed: %+v", list)
	}
}

func TestMissingNote(t *testing.T) {
	s := testStore(t)

	if err := s.Complete(42); !errors.Is(err, ErrNotFound) {
		t.Errorf("Complete(42) = %v, want ErrNotFound", err)
	}
	if err := s.Delete(42); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete(42) = %v, want ErrNotFound", err)
	}
}

func TestDelete(t *testing.T) {
	s := testStore(t)

	n, err := s.Create("temp", "", "")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(n.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	list, _ := s.ListOpen()
	if len(list) != 0 {
		t.Errorf("len = %d after delete", len(list))
	}
}

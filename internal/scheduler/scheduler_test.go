package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// at returns 2026-03-01 hh:mm:ss UTC.
func at(hh, mm, ss int) time.Time {
	return time.Date(2026, 3, 1, hh, mm, ss, 0, time.UTC)
}

func TestTickExactMatch(t *testing.T) {
	store := newTestStore(t)
	match := mustCreate(t, store, "match", "09:00", true)
	later := mustCreate(t, store, "later", "09:01", true)
	disabled := mustCreate(t, store, "disabled", "09:00", false)

	var fired []string
	s := New(discardLogger(), store, func(_ context.Context, a *Automation) error {
		fired = append(fired, a.ID)
		return nil
	}, Options{Location: time.UTC})

	now := at(9, 0, 12)
	report, err := s.Tick(context.Background(), now)
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}

	if !slices.Equal(report.Slots, []string{"09:00"}) {
		t.Errorf("slots = %v", report.Slots)
	}
	if !slices.Equal(fired, []string{match.ID}) {
		t.Errorf("fired = %v, want [%s]", fired, match.ID)
	}
	if !slices.Equal(report.Triggered, []string{match.ID}) {
		t.Errorf("triggered = %v", report.Triggered)
	}

	got, _ := store.Get(match.ID)
	if got.LastRun == nil || !got.LastRun.Equal(now) {
		t.Errorf("match last_run = %v, want %v", got.LastRun, now)
	}
	for _, id := range []string{later.ID, disabled.ID} {
		got, _ := store.Get(id)
		if got.LastRun != nil {
			t.Errorf("%s last_run = %v, want untouched", got.Name, got.LastRun)
		}
	}
}

func TestTickUsesLocation(t *testing.T) {
	store := newTestStore(t)
	a := mustCreate(t, store, "chicago breakfast", "07:00", true)

	loc, err := time.LoadLocation("America/Chicago")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	s := New(discardLogger(), store, nil, Options{Location: loc})

	// 13:00 UTC on March 1 is 07:00 CST.
	report, err := s.Tick(context.Background(), at(13, 0, 0))
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(report.Triggered, []string{a.ID}) {
		t.Errorf("triggered = %v, want [%s]", report.Triggered, a.ID)
	}
}

func TestTickFailureIsolation(t *testing.T) {
	store := newTestStore(t)
	bad := mustCreate(t, store, "bad", "09:00", true)
	good := mustCreate(t, store, "good", "09:00", true)
	panicky := mustCreate(t, store, "panicky", "09:00", true)

	s := New(discardLogger(), store, func(_ context.Context, a *Automation) error {
		switch a.ID {
		case bad.ID:
			return errors.New("boom")
		case panicky.ID:
			panic("executor bug")
		}
		return nil
	}, Options{Location: time.UTC})

	now := at(9, 0, 0)
	report, err := s.Tick(context.Background(), now)
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}

	if !slices.Equal(report.Triggered, []string{good.ID}) {
		t.Errorf("triggered = %v", report.Triggered)
	}
	if len(report.Failed) != 2 {
		t.Errorf("failed = %v, want bad and panicky", report.Failed)
	}
	for _, id := range []string{bad.ID, good.ID, panicky.ID} {
		got, _ := store.Get(id)
		if got.LastRun == nil || !got.LastRun.Equal(now) {
			t.Errorf("%s last_run = %v, want %v", got.Name, got.LastRun, now)
		}
	}
}

func TestTickExactMissesSkippedMinute(t *testing.T) {
	store := newTestStore(t)
	mustCreate(t, store, "skipped", "09:01", true)

	s := New(discardLogger(), store, nil, Options{Location: time.UTC})
	if _, err := s.Tick(context.Background(), at(9, 0, 0)); err != nil {
		t.Fatal(err)
	}
	report, err := s.Tick(context.Background(), at(9, 2, 0))
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Triggered) != 0 {
		t.Errorf("exact mode should not catch up, triggered = %v", report.Triggered)
	}
}

func TestTickWindowCatchesUp(t *testing.T) {
	store := newTestStore(t)
	missed := mustCreate(t, store, "missed", "09:01", true)
	current := mustCreate(t, store, "current", "09:03", true)
	edge := mustCreate(t, store, "edge", "08:50", true)
	stale := mustCreate(t, store, "stale", "08:45", true)

	s := New(discardLogger(), store, nil, Options{Location: time.UTC, Mode: ModeWindow, MaxCatchUp: 15})

	if _, err := s.Tick(context.Background(), at(8, 40, 0)); err != nil {
		t.Fatal(err)
	}
	// A long stall: only the last 15 minutes are evaluated.
	report, err := s.Tick(context.Background(), at(9, 3, 20))
	if err != nil {
		t.Fatal(err)
	}

	if len(report.Slots) != 15 || report.Slots[0] != "08:49" || report.Slots[14] != "09:03" {
		t.Errorf("slots = %v", report.Slots)
	}
	if !slices.Contains(report.Triggered, missed.ID) || !slices.Contains(report.Triggered, current.ID) {
		t.Errorf("triggered = %v, want missed and current", report.Triggered)
	}
	if !slices.Contains(report.Triggered, edge.ID) {
		t.Errorf("08:50 is inside the window, triggered = %v", report.Triggered)
	}
	if slices.Contains(report.Triggered, stale.ID) {
		t.Errorf("08:45 is outside the window, triggered = %v", report.Triggered)
	}

	// The next tick in the same minute evaluates nothing new.
	report, err = s.Tick(context.Background(), at(9, 3, 50))
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Slots) != 0 || len(report.Triggered) != 0 {
		t.Errorf("repeat tick = %+v, want empty", report)
	}
}

func TestTickWindowSkipsAlreadyRun(t *testing.T) {
	store := newTestStore(t)
	a := mustCreate(t, store, "ran", "09:00", true)
	if err := store.UpdateLastRun(a.ID, at(9, 0, 5)); err != nil {
		t.Fatal(err)
	}

	// A fresh scheduler (after a restart) ticking in the same minute.
	s := New(discardLogger(), store, func(context.Context, *Automation) error {
		t.Error("executor should not run")
		return nil
	}, Options{Location: time.UTC, Mode: ModeWindow})

	report, err := s.Tick(context.Background(), at(9, 0, 40))
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(report.Skipped, []string{a.ID}) {
		t.Errorf("skipped = %v, want [%s]", report.Skipped, a.ID)
	}
}

func TestTickDueQueryFailure(t *testing.T) {
	store := newTestStore(t)
	store.db.Close()

	s := New(discardLogger(), store, nil, Options{Location: time.UTC})
	if _, err := s.Tick(context.Background(), at(9, 0, 0)); err == nil {
		t.Error("expected error when the store is unavailable")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	store := newTestStore(t)
	s := New(discardLogger(), store, nil, Options{Location: time.UTC})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestStats(t *testing.T) {
	store := newTestStore(t)
	mustCreate(t, store, "a", "09:00", true)

	s := New(discardLogger(), store, nil, Options{Location: time.UTC})
	if _, err := s.Tick(context.Background(), at(9, 0, 0)); err != nil {
		t.Fatal(err)
	}

	stats := s.Stats()
	if stats["ticks"] != int64(1) || stats["triggered"] != int64(1) {
		t.Errorf("stats = %v", stats)
	}
	if stats["mode"] != "exact" {
		t.Errorf("mode = %v", stats["mode"])
	}
}

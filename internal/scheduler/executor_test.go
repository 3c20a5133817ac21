package scheduler

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

type recordingNotifier struct {
	got []string
	err error
}

func (r *recordingNotifier) AutomationTriggered(_ context.Context, a *Automation, at time.Time) error {
	if at.IsZero() {
		return errors.New("zero trigger time")
	}
	r.got = append(r.got, a.ID)
	return r.err
}

func TestLogExecutor(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	n := &recordingNotifier{}

	exec := LogExecutor(logger, n)
	a := &Automation{ID: "a1", Name: "Standup", TaskType: TaskDailyReminder, Schedule: "09:30"}
	if err := exec(context.Background(), a); err != nil {
		t.Fatalf("exec: %v", err)
	}

	if len(n.got) != 1 || n.got[0] != "a1" {
		t.Errorf("notified = %v, want [a1]", n.got)
	}
	out := buf.String()
	for _, want := range []string{"automation triggered", "name=Standup", "task_type=daily_reminder", "schedule=09:30"} {
		if !strings.Contains(out, want) {
			t.Errorf("log missing %q: %s", want, out)
		}
	}
}

func TestLogExecutorNoNotifiers(t *testing.T) {
	exec := LogExecutor(discardLogger())
	if err := exec(context.Background(), &Automation{ID: "a1"}); err != nil {
		t.Errorf("exec = %v, want nil", err)
	}
}

func TestLogExecutorNotifierFailure(t *testing.T) {
	boom := errors.New("broker down")
	ok := &recordingNotifier{}
	bad := &recordingNotifier{err: boom}

	exec := LogExecutor(discardLogger(), bad, ok)
	err := exec(context.Background(), &Automation{ID: "a1"})
	if !errors.Is(err, boom) {
		t.Fatalf("exec error = %v, want wrapped broker down", err)
	}
	if len(ok.got) != 1 {
		t.Error("later notifiers should still run after a failure")
	}
}

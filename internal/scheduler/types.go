// Package scheduler matches persisted automations against the wall
// clock and triggers the ones that are due.
package scheduler

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// ErrNotFound is returned when an automation ID does not exist.
var ErrNotFound = errors.New("automation not found")

// Automation is a user-defined, time-triggered task.
type Automation struct {
	ID       string   `json:"id"` // UUIDv7
	Name     string   `json:"name"`
	TaskType TaskType `json:"task_type"`
	// Schedule is a zero-padded 24-hour "HH:MM" in the scheduler's
	// configured timezone.
	Schedule string `json:"schedule"`
	Enabled  bool   `json:"enabled"`
	// Config is opaque task-specific JSON. The scheduler passes it
	// through untouched.
	Config    json.RawMessage `json:"config,omitempty"`
	LastRun   *time.Time      `json:"last_run"`
	CreatedAt time.Time       `json:"created_at"`
}

// TaskType identifies what an automation does when it fires.
type TaskType string

const (
	TaskDailyReminder TaskType = "daily_reminder"
	TaskWeatherCheck  TaskType = "weather_check"
	TaskNewsDigest    TaskType = "news_digest"
	TaskCustom        TaskType = "custom"
)

// TaskTypes lists every accepted task type.
var TaskTypes = []TaskType{TaskDailyReminder, TaskWeatherCheck, TaskNewsDigest, TaskCustom}

// Valid reports whether t is a known task type.
func (t TaskType) Valid() bool {
	for _, known := range TaskTypes {
		if t == known {
			return true
		}
	}
	return false
}

var scheduleRe = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// ValidSchedule reports whether s is a well-formed "HH:MM".
func ValidSchedule(s string) bool {
	return scheduleRe.MatchString(s)
}

// SlotFormat is the time layout of a schedule slot.
const SlotFormat = "15:04"

// Slot formats t as the schedule string it matches in loc.
func Slot(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(SlotFormat)
}

// Validate checks the user-supplied fields of a new automation.
func (a *Automation) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return errors.New("name is required")
	}
	if !a.TaskType.Valid() {
		return fmt.Errorf("invalid task_type %q", a.TaskType)
	}
	if !ValidSchedule(a.Schedule) {
		return fmt.Errorf("invalid schedule %q (want HH:MM)", a.Schedule)
	}
	if len(a.Config) > 0 && !json.Valid(a.Config) {
		return errors.New("config must be valid JSON")
	}
	return nil
}

// TickReport summarizes one scheduler tick.
type TickReport struct {
	// Slots are the schedule strings this tick evaluated. Exact mode
	// always has one.
	Slots     []string `json:"slots"`
	Triggered []string `json:"triggered"`
	Failed    []string `json:"failed"`
	Skipped   []string `json:"skipped,omitempty"`
}

package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ExecuteFunc is called when an automation fires.
type ExecuteFunc func(ctx context.Context, a *Automation) error

// Mode selects how a tick decides which minutes are due.
type Mode string

const (
	// ModeExact matches only the minute of the tick itself.
	ModeExact Mode = "exact"
	// ModeWindow matches every minute since the previous tick, so a
	// late or skipped tick still fires what it missed.
	ModeWindow Mode = "window"
)

// Options configures a Scheduler.
type Options struct {
	Location   *time.Location // nil means time.Local
	Mode       Mode           // empty means ModeExact
	MaxCatchUp int            // window mode bound in minutes, default 15
	// ItemTimeout bounds a single execution. Zero means one minute.
	ItemTimeout time.Duration
}

// Scheduler evaluates automations against the clock. Tick is not safe
// for concurrent use; Run calls it from a single goroutine.
type Scheduler struct {
	logger  *slog.Logger
	store   *Store
	execute ExecuteFunc
	opts    Options
	now     func() time.Time

	mu        sync.Mutex
	lastTick  time.Time
	ticks     int64
	triggered int64
	failed    int64
}

// New creates a scheduler. A nil execute marks automations as run
// without doing anything else.
func New(logger *slog.Logger, store *Store, execute ExecuteFunc, opts Options) *Scheduler {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Mode == "" {
		opts.Mode = ModeExact
	}
	if opts.MaxCatchUp <= 0 {
		opts.MaxCatchUp = 15
	}
	if opts.ItemTimeout <= 0 {
		opts.ItemTimeout = time.Minute
	}
	return &Scheduler{
		logger:  logger,
		store:   store,
		execute: execute,
		opts:    opts,
		now:     time.Now,
	}
}

// Tick evaluates the automations due at now. Each match is executed and
// then has its last_run set to now, whether or not the execution
// succeeded. The error return is reserved for the due query itself.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) (*TickReport, error) {
	s.mu.Lock()
	prev := s.lastTick
	s.mu.Unlock()

	occurrences := s.slots(prev, now)
	report := &TickReport{Slots: make([]string, 0, len(occurrences))}
	for _, occ := range occurrences {
		report.Slots = append(report.Slots, Slot(occ, s.opts.Location))
	}

	due, err := s.store.Due(report.Slots)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.lastTick = now
	s.ticks++
	s.mu.Unlock()

	for _, a := range due {
		if s.opts.Mode == ModeWindow && s.alreadyRan(a, occurrences) {
			report.Skipped = append(report.Skipped, a.ID)
			continue
		}
		if err := s.fire(ctx, a); err != nil {
			s.logger.Error("automation execution failed",
				"id", a.ID, "name", a.Name, "task_type", a.TaskType, "error", err)
			report.Failed = append(report.Failed, a.ID)
		} else {
			report.Triggered = append(report.Triggered, a.ID)
		}

		if err := s.store.UpdateLastRun(a.ID, now); err != nil {
			s.logger.Error("failed to update last_run", "id", a.ID, "error", err)
		}
	}

	s.mu.Lock()
	s.triggered += int64(len(report.Triggered))
	s.failed += int64(len(report.Failed))
	s.mu.Unlock()

	if len(due) > 0 {
		s.logger.Info("scheduler tick",
			"slots", report.Slots,
			"triggered", len(report.Triggered),
			"failed", len(report.Failed),
			"skipped", len(report.Skipped),
		)
	}

	return report, nil
}

// fire runs one execution under its own timeout and converts a panic
// in the executor into an error.
func (s *Scheduler) fire(ctx context.Context, a *Automation) (err error) {
	if s.execute == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.ItemTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("executor panic: %v", r)
		}
	}()
	return s.execute(ctx, a)
}

// slots returns the minute instants a tick at now must evaluate. In
// exact mode that is now's minute. In window mode it is every minute in
// (prev, now], capped at MaxCatchUp; the first tick has no window.
func (s *Scheduler) slots(prev, now time.Time) []time.Time {
	end := now.Truncate(time.Minute)
	if s.opts.Mode != ModeWindow || prev.IsZero() {
		return []time.Time{end}
	}

	start := prev.Truncate(time.Minute).Add(time.Minute)
	if limit := end.Add(-time.Duration(s.opts.MaxCatchUp-1) * time.Minute); start.Before(limit) {
		start = limit
	}

	var out []time.Time
	for t := start; !t.After(end); t = t.Add(time.Minute) {
		out = append(out, t)
	}
	return out
}

// alreadyRan reports whether a's last_run is at or after the latest
// window minute matching its schedule.
func (s *Scheduler) alreadyRan(a *Automation, occurrences []time.Time) bool {
	if a.LastRun == nil {
		return false
	}
	for i := len(occurrences) - 1; i >= 0; i-- {
		if Slot(occurrences[i], s.opts.Location) == a.Schedule {
			return !a.LastRun.Before(occurrences[i])
		}
	}
	return false
}

// Run ticks once per minute boundary until ctx is cancelled. Ticks run
// sequentially and never overlap.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started", "mode", s.opts.Mode, "timezone", s.opts.Location.String())

	for {
		now := s.now()
		next := now.Truncate(time.Minute).Add(time.Minute)
		timer := time.NewTimer(next.Sub(now))

		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("scheduler stopped")
			return nil
		case <-timer.C:
		}

		if _, err := s.Tick(ctx, s.now()); err != nil {
			s.logger.Error("scheduler tick failed", "error", err)
		}
	}
}

// Stats returns scheduler statistics.
func (s *Scheduler) Stats() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := map[string]any{
		"mode":      string(s.opts.Mode),
		"timezone":  s.opts.Location.String(),
		"ticks":     s.ticks,
		"triggered": s.triggered,
		"failed":    s.failed,
	}
	if !s.lastTick.IsZero() {
		stats["last_tick"] = s.lastTick.Format(time.RFC3339)
	}
	return stats
}

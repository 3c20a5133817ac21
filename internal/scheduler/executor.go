package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Notifier receives an announcement for every fired automation.
type Notifier interface {
	AutomationTriggered(ctx context.Context, a *Automation, at time.Time) error
}

// LogExecutor returns the default executor. It logs each trigger and
// forwards it to every notifier. Notifier failures are joined into the
// returned error so the tick counts the item as failed.
func LogExecutor(logger *slog.Logger, notifiers ...Notifier) ExecuteFunc {
	return func(ctx context.Context, a *Automation) error {
		at := time.Now()
		logger.Info("automation triggered",
			"id", a.ID,
			"name", a.Name,
			"task_type", a.TaskType,
			"schedule", a.Schedule,
		)

		var failed []error
		for _, n := range notifiers {
			if err := n.AutomationTriggered(ctx, a, at); err != nil {
				failed = append(failed, err)
			}
		}
		switch len(failed) {
		case 0:
			return nil
		case 1:
			return fmt.Errorf("notify: %w", failed[0])
		default:
			return fmt.Errorf("notify: %d notifiers failed, first: %w", len(failed), failed[0])
		}
	}
}

package tools

import (
	"context"
	"time"
)

// ClockTool returns the tool that reads out the local time and date.
// now may be nil.
func ClockTool(loc *time.Location, now func() time.Time) *Tool {
	if loc == nil {
		loc = time.Local
	}
	if now == nil {
		now = time.Now
	}
	return &Tool{
		Name:        "clock",
		Description: "The current local time and date.",
		Apology:     "Sorry, I couldn't read the clock.",
		Handler: func(context.Context, string) (string, error) {
			t := now().In(loc)
			return "It's " + t.Format("3:04 PM") + " on " + t.Format("Monday, January 2, 2006") + ".", nil
		},
	}
}

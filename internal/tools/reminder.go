package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/nugget/jarvis/internal/notes"
)

// NoteCreator persists reminders. The notes store satisfies it.
type NoteCreator interface {
	Create(title, content, reminderTime string) (*notes.Note, error)
}

// ReminderTool returns the reminder tool. Reminders become open notes.
func ReminderTool(store NoteCreator) *Tool {
	return &Tool{
		Name:        "reminder",
		Description: "Save a reminder as a note.",
		Apology:     "Sorry, I couldn't save that reminder.",
		Handler: func(_ context.Context, text string) (string, error) {
			text = strings.TrimSpace(text)
			if _, err := store.Create(text, "Reminder: "+text, ""); err != nil {
				return "", err
			}
			return fmt.Sprintf("Okay, I'll remind you to %s. I've added it to your notes.", text), nil
		},
	}
}

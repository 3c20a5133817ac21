// Package voice holds per-connection wake-word state for the voice
// channel. Each websocket connection owns one Session.
package voice

import (
	"strings"
	"sync"
)

// Default phrases.
const (
	DefaultWakeWord = "jarvis"
	WakeReply       = "Yes, I am here."
	SleepReply      = "Going to sleep."
)

// Action says what the caller should do with a transcript.
type Action int

const (
	// ActionIgnore means the session is asleep and the transcript was
	// not addressed to the assistant.
	ActionIgnore Action = iota
	// ActionWake means the session started listening. Reply is spoken.
	ActionWake
	// ActionSleep means the session stopped listening. Reply is spoken.
	ActionSleep
	// ActionCommand means Command should be routed.
	ActionCommand
)

func (a Action) String() string {
	switch a {
	case ActionWake:
		return "wake"
	case ActionSleep:
		return "sleep"
	case ActionCommand:
		return "command"
	}
	return "ignore"
}

// Outcome is the result of feeding one transcript to a Session.
type Outcome struct {
	Action    Action
	Reply     string
	Command   string
	Listening bool
}

// Session tracks whether the assistant is listening on one connection.
type Session struct {
	wake string

	mu        sync.Mutex
	listening bool
}

// NewSession creates a sleeping session. An empty wakeWord uses
// DefaultWakeWord.
func NewSession(wakeWord string) *Session {
	wakeWord = strings.ToLower(strings.TrimSpace(wakeWord))
	if wakeWord == "" {
		wakeWord = DefaultWakeWord
	}
	return &Session{wake: wakeWord}
}

// Listening reports the current state.
func (s *Session) Listening() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listening
}

// Transcript applies one recognized utterance. "stop <wake>" always
// puts the session to sleep. The wake word starts listening; words
// after it in the same utterance are treated as a command. While
// listening every other utterance is a command.
func (s *Session) Transcript(text string) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	trimmed := strings.TrimSpace(text)
	lower := strings.ToLower(trimmed)
	if lower == "" {
		return Outcome{Action: ActionIgnore, Listening: s.listening}
	}

	if strings.Contains(lower, "stop "+s.wake) {
		s.listening = false
		return Outcome{Action: ActionSleep, Reply: SleepReply}
	}

	if idx := strings.Index(lower, s.wake); idx >= 0 {
		s.listening = true
		after := lower[idx+len(s.wake):]
		if len(lower) == len(trimmed) {
			// Keep the caller's casing when lowering preserved offsets.
			after = trimmed[idx+len(s.wake):]
		}
		rest := strings.TrimLeft(strings.TrimSpace(after), ",.!? ")
		if rest == "" {
			return Outcome{Action: ActionWake, Reply: WakeReply, Listening: true}
		}
		return Outcome{Action: ActionCommand, Command: rest, Listening: true}
	}

	if s.listening {
		return Outcome{Action: ActionCommand, Command: trimmed, Listening: true}
	}
	return Outcome{Action: ActionIgnore}
}

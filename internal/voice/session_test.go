package voice

import "testing"

func TestSessionLifecycle(t *testing.T) {
	s := NewSession("")

	steps := []struct {
		text      string
		action    Action
		reply     string
		command   string
		listening bool
	}{
		{text: "turn on the lights", action: ActionIgnore},
		{text: "Jarvis", action: ActionWake, reply: WakeReply, listening: true},
		{text: "What's the weather in Paris", action: ActionCommand, command: "What's the weather in Paris", listening: true},
		{text: "stop jarvis", action: ActionSleep, reply: SleepReply},
		{text: "tell me a joke", action: ActionIgnore},
		{text: "hey Jarvis, what time is it", action: ActionCommand, command: "what time is it", listening: true},
		{text: "   ", action: ActionIgnore, listening: true},
	}

	for i, st := range steps {
		got := s.Transcript(st.text)
		if got.Action != st.action {
			t.Errorf("step %d (%q): action = %v, want %v", i, st.text, got.Action, st.action)
		}
		if got.Reply != st.reply {
			t.Errorf("step %d (%q): reply = %q, want %q", i, st.text, got.Reply, st.reply)
		}
		if got.Command != st.command {
			t.Errorf("step %d (%q): command = %q, want %q", i, st.text, got.Command, st.command)
		}
		if got.Listening != st.listening || s.Listening() != st.listening {
			t.Errorf("step %d (%q): listening = %v, want %v", i, st.text, got.Listening, st.listening)
		}
	}
}

func TestStopWinsOverWake(t *testing.T) {
	s := NewSession("jarvis")
	s.Transcript("jarvis")

	got := s.Transcript("okay STOP JARVIS now")
	if got.Action != ActionSleep || s.Listening() {
		t.Errorf("outcome = %+v, listening = %v", got, s.Listening())
	}
}

func TestCustomWakeWord(t *testing.T) {
	s := NewSession(" Friday ")
	if got := s.Transcript("jarvis"); got.Action != ActionIgnore {
		t.Errorf("default wake word should not apply: %+v", got)
	}
	if got := s.Transcript("friday"); got.Action != ActionWake {
		t.Errorf("custom wake word: %+v", got)
	}
}

func TestActionString(t *testing.T) {
	for a, want := range map[Action]string{
		ActionIgnore: "ignore", ActionWake: "wake", ActionSleep: "sleep", ActionCommand: "command",
	} {
		if a.String() != want {
			t.Errorf("%d.String() = %q, want %q", a, a.String(), want)
		}
	}
}

package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/nugget/jarvis/internal/speech"
	"github.com/nugget/jarvis/internal/voice"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsReadLimit    = 64 << 10
)

// Frame is a websocket message in either direction. Clients send
// "transcript" frames with recognized speech, or "command" frames that
// bypass the wake word. The server answers with "reply", "state", or
// "error" frames.
type Frame struct {
	Type      string `json:"type"`
	Text      string `json:"text,omitempty"`
	Response  string `json:"response,omitempty"`
	Speech    string `json:"speech,omitempty"`
	Listening *bool  `json:"listening,omitempty"`
	Error     string `json:"error,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The voice UI is served from other origins during development.
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(wsReadLimit)

	session := voice.NewSession(s.deps.WakeWord)
	s.logger.Debug("voice session opened", "remote", r.RemoteAddr)

	for {
		var in Frame
		if err := conn.ReadJSON(&in); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("websocket read error", "error", err)
			}
			s.logger.Debug("voice session closed", "remote", r.RemoteAddr)
			return
		}

		out, send := s.voiceFrame(r.Context(), session, in)
		if !send {
			continue
		}
		conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteJSON(out); err != nil {
			s.logger.Debug("websocket write failed", "error", err)
			return
		}
	}
}

// voiceFrame computes the answer to one client frame. The second
// return is false when the frame needs no answer.
func (s *Server) voiceFrame(ctx context.Context, session *voice.Session, in Frame) (Frame, bool) {
	switch in.Type {
	case "command":
		text := strings.TrimSpace(in.Text)
		if text == "" {
			return Frame{Type: "error", Error: "text is required"}, true
		}
		return s.replyFrame(ctx, text), true

	case "transcript":
		outcome := session.Transcript(in.Text)
		switch outcome.Action {
		case voice.ActionCommand:
			return s.replyFrame(ctx, outcome.Command), true
		case voice.ActionWake, voice.ActionSleep:
			listening := outcome.Listening
			return Frame{Type: "state", Listening: &listening, Response: outcome.Reply}, true
		default:
			return Frame{}, false
		}

	default:
		return Frame{Type: "error", Error: "unknown frame type " + in.Type}, true
	}
}

func (s *Server) replyFrame(ctx context.Context, command string) Frame {
	resp, err := s.deps.Router.Respond(ctx, command)
	if err != nil {
		// The reply is still valid; only the history write failed.
		s.logger.Error("voice command history failed", "error", err)
	}
	return Frame{Type: "reply", Response: resp.Reply, Speech: speech.Plain(resp.Reply), RequestID: resp.RequestID}
}

package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/nugget/jarvis/internal/notes"
)

type noteRequest struct {
	Title        string `json:"title"`
	Content      string `json:"content"`
	ReminderTime string `json:"reminder_time"`
}

func (s *Server) noteID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		s.errorResponse(w, http.StatusBadRequest, "invalid note id")
		return 0, false
	}
	return id, true
}

func (s *Server) handleNoteList(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Notes.ListOpen()
	if err != nil {
		s.storeError(w, "list notes", err)
		return
	}
	if list == nil {
		list = []notes.Note{}
	}
	s.ok(w, map[string]any{"notes": list})
}

func (s *Server) handleNoteCreate(w http.ResponseWriter, r *http.Request) {
	var req noteRequest
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		s.errorResponse(w, http.StatusBadRequest, "title is required")
		return
	}

	n, err := s.deps.Notes.Create(strings.TrimSpace(req.Title), req.Content, strings.TrimSpace(req.ReminderTime))
	if err != nil {
		s.storeError(w, "create note", err)
		return
	}
	s.ok(w, map[string]any{"success": true, "id": n.ID})
}

func (s *Server) handleNoteComplete(w http.ResponseWriter, r *http.Request) {
	id, ok := s.noteID(w, r)
	if !ok {
		return
	}
	if err := s.deps.Notes.Complete(id); err != nil {
		s.storeError(w, "complete note", err)
		return
	}
	s.ok(w, map[string]any{"success": true})
}

func (s *Server) handleNoteDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := s.noteID(w, r)
	if !ok {
		return
	}
	if err := s.deps.Notes.Delete(id); err != nil {
		s.storeError(w, "delete note", err)
		return
	}
	s.ok(w, map[string]any{"success": true})
}

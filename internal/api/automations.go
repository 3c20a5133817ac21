package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/nugget/jarvis/internal/scheduler"
)

// AutomationRequest is the body of POST /api/automations. Enabled
// defaults to true when omitted.
type AutomationRequest struct {
	Name     string          `json:"name"`
	TaskType string          `json:"task_type"`
	Schedule string          `json:"schedule"`
	Config   json.RawMessage `json:"config,omitempty"`
	Enabled  *bool           `json:"enabled,omitempty"`
}

type automationPatch struct {
	Enabled *bool `json:"enabled"`
}

func (s *Server) handleAutomationList(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Automations.List()
	if err != nil {
		s.storeError(w, "list automations", err)
		return
	}
	if list == nil {
		list = []*scheduler.Automation{}
	}
	s.ok(w, map[string]any{"automations": list})
}

func (s *Server) handleAutomationCreate(w http.ResponseWriter, r *http.Request) {
	var req AutomationRequest
	if !s.decode(w, r, &req) {
		return
	}

	a := &scheduler.Automation{
		Name:     strings.TrimSpace(req.Name),
		TaskType: scheduler.TaskType(strings.TrimSpace(req.TaskType)),
		Schedule: strings.TrimSpace(req.Schedule),
		Config:   req.Config,
		Enabled:  true,
	}
	if req.Enabled != nil {
		a.Enabled = *req.Enabled
	}
	if string(a.Config) == "null" {
		a.Config = nil
	}
	if err := a.Validate(); err != nil {
		s.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.deps.Automations.Create(a); err != nil {
		s.storeError(w, "create automation", err)
		return
	}
	s.logger.Info("automation created",
		"id", a.ID, "name", a.Name, "task_type", a.TaskType, "schedule", a.Schedule)
	s.ok(w, map[string]any{"success": true, "id": a.ID})
}

func (s *Server) handleAutomationPatch(w http.ResponseWriter, r *http.Request) {
	var req automationPatch
	if !s.decode(w, r, &req) {
		return
	}
	if req.Enabled == nil {
		s.errorResponse(w, http.StatusBadRequest, "enabled is required")
		return
	}
	if err := s.deps.Automations.SetEnabled(r.PathValue("id"), *req.Enabled); err != nil {
		s.storeError(w, "update automation", err)
		return
	}
	s.ok(w, map[string]any{"success": true})
}

func (s *Server) handleAutomationDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Automations.Delete(r.PathValue("id")); err != nil {
		s.storeError(w, "delete automation", err)
		return
	}
	s.ok(w, map[string]any{"success": true})
}

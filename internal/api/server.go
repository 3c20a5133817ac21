// Package api implements the Jarvis HTTP and websocket API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/nugget/jarvis/internal/buildinfo"
	"github.com/nugget/jarvis/internal/history"
	"github.com/nugget/jarvis/internal/llm"
	"github.com/nugget/jarvis/internal/notes"
	"github.com/nugget/jarvis/internal/router"
	"github.com/nugget/jarvis/internal/scheduler"
	"github.com/nugget/jarvis/internal/settings"
	"github.com/nugget/jarvis/internal/speech"
	"github.com/nugget/jarvis/internal/tools"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// writeJSON encodes v as JSON to w, logging any errors at debug level.
// Errors here typically mean the client disconnected mid-response.
func writeJSON(w http.ResponseWriter, v any, logger *slog.Logger) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("failed to write JSON response", "error", err)
	}
}

// Deps are the components the server exposes. Router and the stores
// are required. Weather and Search routes answer 503 when unset.
type Deps struct {
	Router      *router.Router
	Settings    *settings.Store
	History     *history.Store
	Automations *scheduler.Store
	Notes       *notes.Store

	Scheduler *scheduler.Scheduler
	Gateway   *llm.Gateway
	Weather   *tools.WeatherClient
	Search    *tools.SearchClient

	// WakeWord is the voice activation word for websocket sessions.
	WakeWord string
}

// Server is the HTTP API server.
type Server struct {
	address string
	port    int
	deps    Deps
	logger  *slog.Logger
	server  *http.Server
}

// NewServer creates a new API server.
func NewServer(address string, port int, deps Deps, logger *slog.Logger) *Server {
	return &Server{
		address: address,
		port:    port,
		deps:    deps,
		logger:  logger,
	}
}

// Handler returns the routed handler with request logging applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Commands
	mux.HandleFunc("POST /api/command", s.handleCommand)
	mux.HandleFunc("GET /api/ws", s.handleWebsocket)

	// Settings
	mux.HandleFunc("GET /api/settings/{key}", s.handleSettingGet)
	mux.HandleFunc("POST /api/settings", s.handleSettingSet)
	mux.HandleFunc("DELETE /api/settings/{key}", s.handleSettingDelete)

	// History
	mux.HandleFunc("GET /api/history", s.handleHistoryList)
	mux.HandleFunc("DELETE /api/history", s.handleHistoryPurge)

	// Automations
	mux.HandleFunc("GET /api/automations", s.handleAutomationList)
	mux.HandleFunc("POST /api/automations", s.handleAutomationCreate)
	mux.HandleFunc("PATCH /api/automations/{id}", s.handleAutomationPatch)
	mux.HandleFunc("DELETE /api/automations/{id}", s.handleAutomationDelete)

	// Notes
	mux.HandleFunc("GET /api/notes", s.handleNoteList)
	mux.HandleFunc("POST /api/notes", s.handleNoteCreate)
	mux.HandleFunc("PATCH /api/notes/{id}", s.handleNoteComplete)
	mux.HandleFunc("DELETE /api/notes/{id}", s.handleNoteDelete)

	// Direct tool endpoints
	mux.HandleFunc("GET /api/weather/{city}", s.handleWeather)
	mux.HandleFunc("GET /api/search", s.handleSearch)

	// Introspection
	mux.HandleFunc("GET /api/router/stats", s.handleRouterStats)
	mux.HandleFunc("GET /api/router/audit", s.handleRouterAudit)
	mux.HandleFunc("GET /api/router/explain/{requestId}", s.handleRouterExplain)
	mux.HandleFunc("GET /api/status", s.handleStatus)

	// Health endpoints
	mux.HandleFunc("GET /api/version", s.handleVersion)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /{$}", s.handleRoot)

	return s.withLogging(mux)
}

// Start begins serving HTTP requests. It returns http.ErrServerClosed
// after Shutdown.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.address, s.port),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 180 * time.Second, // a command may walk every provider
		BaseContext:  func(_ net.Listener) context.Context { return ctx },
	}

	addr := s.address
	if addr == "" {
		addr = "0.0.0.0"
	}
	s.logger.Info("starting API server", "address", addr, "port", s.port)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}

func (s *Server) errorResponse(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	writeJSON(w, map[string]any{"error": message}, s.logger)
}

func (s *Server) ok(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, v, s.logger)
}

// decode reads a JSON body into v, answering 400 on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// storeError maps a store failure to a status code.
func (s *Server) storeError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, scheduler.ErrNotFound) || errors.Is(err, notes.ErrNotFound) {
		s.errorResponse(w, http.StatusNotFound, err.Error())
		return
	}
	s.logger.Error(op+" failed", "error", err)
	s.errorResponse(w, http.StatusInternalServerError, op+" failed")
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.ok(w, map[string]string{
		"name":    "Jarvis",
		"version": buildinfo.Version,
		"status":  "ok",
	})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	s.ok(w, buildinfo.Current(true))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.ok(w, map[string]string{"status": "healthy"})
}

// Command handling

// CommandRequest is the body of POST /api/command.
type CommandRequest struct {
	Command string `json:"command"`
}

// CommandResponse carries the reply and its spoken form. RequestID
// resolves through GET /api/router/explain/{requestId}.
type CommandResponse struct {
	Response  string `json:"response"`
	Speech    string `json:"speech"`
	Status    string `json:"status"`
	RequestID string `json:"request_id"`
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req CommandRequest
	if !s.decode(w, r, &req) {
		return
	}
	command := strings.TrimSpace(req.Command)
	if command == "" {
		s.errorResponse(w, http.StatusBadRequest, "command is required")
		return
	}

	resp, err := s.deps.Router.Respond(r.Context(), command)
	if err != nil {
		s.logger.Error("command failed", "request_id", resp.RequestID, "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "failed to record command")
		return
	}

	s.ok(w, CommandResponse{
		Response:  resp.Reply,
		Speech:    speech.Plain(resp.Reply),
		Status:    "success",
		RequestID: resp.RequestID,
	})
}

// Settings handlers

type settingRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func (s *Server) handleSettingGet(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	value, found, err := s.deps.Settings.Lookup(key)
	if err != nil {
		s.storeError(w, "get setting", err)
		return
	}

	resp := map[string]any{"key": key, "value": nil}
	if found {
		resp["value"] = value
	}
	s.ok(w, resp)
}

func (s *Server) handleSettingSet(w http.ResponseWriter, r *http.Request) {
	var req settingRequest
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Key) == "" {
		s.errorResponse(w, http.StatusBadRequest, "key is required")
		return
	}
	if err := s.deps.Settings.Set(req.Key, req.Value); err != nil {
		s.storeError(w, "save setting", err)
		return
	}
	s.ok(w, map[string]any{"success": true})
}

func (s *Server) handleSettingDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Settings.Delete(r.PathValue("key")); err != nil {
		s.storeError(w, "delete setting", err)
		return
	}
	s.ok(w, map[string]any{"success": true})
}

// History handlers

func (s *Server) handleHistoryList(w http.ResponseWriter, r *http.Request) {
	limit := history.DefaultLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed < limit {
			limit = parsed
		}
	}

	records, err := s.deps.History.Recent(limit)
	if err != nil {
		s.storeError(w, "list history", err)
		return
	}
	if records == nil {
		records = []history.Record{}
	}
	s.ok(w, map[string]any{"history": records})
}

func (s *Server) handleHistoryPurge(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.History.Purge(); err != nil {
		s.storeError(w, "clear history", err)
		return
	}
	s.ok(w, map[string]any{"success": true})
}

// Tool handlers

func (s *Server) handleWeather(w http.ResponseWriter, r *http.Request) {
	if s.deps.Weather == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, "weather not configured")
		return
	}
	city := strings.TrimSpace(r.PathValue("city"))
	if city == "" {
		s.errorResponse(w, http.StatusBadRequest, "city is required")
		return
	}

	report, err := s.deps.Weather.Current(r.Context(), city)
	if err != nil {
		s.logger.Warn("weather lookup failed", "city", city, "error", err)
		s.errorResponse(w, http.StatusBadGateway, tools.WeatherUnavailable)
		return
	}
	s.ok(w, map[string]any{"weather": report})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if s.deps.Search == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, "search not configured")
		return
	}
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		s.errorResponse(w, http.StatusBadRequest, "q parameter is required")
		return
	}

	results, err := s.deps.Search.Instant(r.Context(), q)
	if err != nil {
		s.logger.Warn("instant answer failed", "query", q, "error", err)
		s.errorResponse(w, http.StatusBadGateway, "search failed")
		return
	}
	s.ok(w, map[string]any{
		"query":   q,
		"link":    s.deps.Search.Link(q),
		"results": results,
	})
}

// Introspection handlers

func (s *Server) handleRouterStats(w http.ResponseWriter, r *http.Request) {
	s.ok(w, s.deps.Router.GetStats())
}

func (s *Server) handleRouterAudit(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	decisions := s.deps.Router.GetAuditLog(limit)
	s.ok(w, map[string]any{
		"count":     len(decisions),
		"decisions": decisions,
	})
}

func (s *Server) handleRouterExplain(w http.ResponseWriter, r *http.Request) {
	decision := s.deps.Router.Explain(r.PathValue("requestId"))
	if decision == nil {
		s.errorResponse(w, http.StatusNotFound, "decision not found")
		return
	}
	s.ok(w, decision)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"uptime": buildinfo.Uptime().String(),
		"router": s.deps.Router.GetStats(),
	}
	if s.deps.Gateway != nil {
		status["providers"] = s.deps.Gateway.Stats()
		status["provider_order"] = s.deps.Gateway.Providers()
	}
	if s.deps.Scheduler != nil {
		status["scheduler"] = s.deps.Scheduler.Stats()
	}
	s.ok(w, status)
}

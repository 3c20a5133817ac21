// Package router classifies incoming commands and dispatches them to a
// built-in tool or to the AI provider gateway. Every handled command is
// written to the history.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ToolCaller runs a named tool. Its reply is always usable as-is.
type ToolCaller interface {
	Call(ctx context.Context, name, arg string) string
}

// Completer returns an AI reply for a prompt under a system persona.
type Completer interface {
	Complete(ctx context.Context, prompt, system string) string
}

// HistoryAppender records a command and its reply.
type HistoryAppender interface {
	Append(command, response string) (int64, error)
}

// Config configures a Router.
type Config struct {
	Persona     string
	Rules       []Rule // nil means DefaultRules
	MaxAuditLog int    // default 100
}

// Decision records how one command was handled.
type Decision struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
	Intent    Intent    `json:"intent"`
	Argument  string    `json:"argument,omitempty"`
	LatencyMs int64     `json:"latency_ms"`
}

// Stats tracks routing statistics.
type Stats struct {
	TotalRequests   int64            `json:"total_requests"`
	IntentCounts    map[Intent]int64 `json:"intent_counts"`
	AvgLatencyMs    map[Intent]int64 `json:"avg_latency_ms"`
	HistoryFailures int64            `json:"history_failures"`
}

// Router dispatches commands. It is safe for concurrent use.
type Router struct {
	logger  *slog.Logger
	config  Config
	tools   ToolCaller
	ai      Completer
	history HistoryAppender

	mu           sync.RWMutex
	auditLog     []Decision
	stats        Stats
	totalLatency map[Intent]int64
}

// NewRouter creates a router.
func NewRouter(logger *slog.Logger, config Config, tools ToolCaller, ai Completer, history HistoryAppender) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Rules == nil {
		config.Rules = DefaultRules()
	}
	if config.MaxAuditLog <= 0 {
		config.MaxAuditLog = 100
	}
	return &Router{
		logger:   logger,
		config:   config,
		tools:    tools,
		ai:       ai,
		history:  history,
		auditLog: make([]Decision, 0, config.MaxAuditLog),
		stats: Stats{
			IntentCounts: make(map[Intent]int64),
			AvgLatencyMs: make(map[Intent]int64),
		},
		totalLatency: make(map[Intent]int64),
	}
}

// Response is the outcome of one handled command. RequestID can be
// passed to [Router.Explain].
type Response struct {
	RequestID string
	Intent    Intent
	Reply     string
}

// Handle answers command and records the exchange in the history. The
// reply is never empty. The error is non-nil only when the history
// write fails; the reply is still returned in that case.
func (r *Router) Handle(ctx context.Context, command string) (string, error) {
	resp, err := r.Respond(ctx, command)
	return resp.Reply, err
}

// Respond is [Router.Handle] with the routing details of the reply.
func (r *Router) Respond(ctx context.Context, command string) (Response, error) {
	start := time.Now()
	c := Classify(r.config.Rules, command)

	reply := r.dispatch(ctx, c, command)
	if reply == "" {
		reply = "Sorry, I don't have an answer for that."
	}

	d := Decision{
		RequestID: newRequestID(),
		Timestamp: start,
		Intent:    c.Intent,
		Argument:  c.Arg,
		LatencyMs: time.Since(start).Milliseconds(),
	}
	r.recordDecision(d)

	r.logger.Info("command handled",
		"request_id", d.RequestID,
		"intent", d.Intent,
		"argument", d.Argument,
		"latency_ms", d.LatencyMs,
	)

	resp := Response{RequestID: d.RequestID, Intent: d.Intent, Reply: reply}
	if _, err := r.history.Append(command, reply); err != nil {
		r.mu.Lock()
		r.stats.HistoryFailures++
		r.mu.Unlock()
		return resp, fmt.Errorf("record history: %w", err)
	}
	return resp, nil
}

func (r *Router) dispatch(ctx context.Context, c Classification, command string) string {
	if c.Rule == nil {
		return r.ai.Complete(ctx, command, r.config.Persona)
	}
	if c.Rule.Extract != nil && c.Arg == "" && c.Rule.Clarify != "" {
		return c.Rule.Clarify
	}
	if c.Rule.Tool == "" {
		return c.Rule.Reply
	}
	return r.tools.Call(ctx, c.Rule.Tool, c.Arg)
}

// recordDecision adds a decision to the audit log.
func (r *Router) recordDecision(d Decision) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Trim if over capacity
	if len(r.auditLog) >= r.config.MaxAuditLog {
		r.auditLog = r.auditLog[1:]
	}
	r.auditLog = append(r.auditLog, d)

	r.stats.TotalRequests++
	r.stats.IntentCounts[d.Intent]++
	r.totalLatency[d.Intent] += d.LatencyMs
	r.stats.AvgLatencyMs[d.Intent] = r.totalLatency[d.Intent] / r.stats.IntentCounts[d.Intent]
}

// GetAuditLog returns up to limit recent decisions, oldest first.
func (r *Router) GetAuditLog(limit int) []Decision {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if limit <= 0 || limit > len(r.auditLog) {
		limit = len(r.auditLog)
	}

	start := len(r.auditLog) - limit
	result := make([]Decision, limit)
	copy(result, r.auditLog[start:])
	return result
}

// GetStats returns a copy of the routing statistics.
func (r *Router) GetStats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := Stats{
		TotalRequests:   r.stats.TotalRequests,
		HistoryFailures: r.stats.HistoryFailures,
		IntentCounts:    make(map[Intent]int64, len(r.stats.IntentCounts)),
		AvgLatencyMs:    make(map[Intent]int64, len(r.stats.AvgLatencyMs)),
	}
	for k, v := range r.stats.IntentCounts {
		s.IntentCounts[k] = v
	}
	for k, v := range r.stats.AvgLatencyMs {
		s.AvgLatencyMs[k] = v
	}
	return s
}

// Explain returns the decision recorded for requestID, or nil.
func (r *Router) Explain(requestID string) *Decision {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := len(r.auditLog) - 1; i >= 0; i-- {
		if r.auditLog[i].RequestID == requestID {
			d := r.auditLog[i]
			return &d
		}
	}
	return nil
}

func newRequestID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

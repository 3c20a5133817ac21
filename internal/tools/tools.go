// Package tools implements the built-in handlers that answer a command
// without an AI provider.
package tools

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Tool is a callable built-in. Handler receives the argument the router
// extracted from the command. A handler error is never shown to the
// user; Registry.Call replaces it with Apology.
type Tool struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	// Apology is the fixed reply used when Handler fails.
	Apology string                                                `json:"-"`
	Handler func(ctx context.Context, arg string) (string, error) `json:"-"`
}

// Registry holds available tools.
type Registry struct {
	logger *slog.Logger

	mu    sync.RWMutex
	tools map[string]*Tool
}

// NewRegistry creates an empty tool registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		logger: logger,
		tools:  make(map[string]*Tool),
	}
}

// Register adds a tool, replacing any tool with the same name.
func (r *Registry) Register(t *Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name] = t
}

// Get returns the named tool, or nil.
func (r *Registry) Get(name string) *Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// List returns every registered tool sorted by name.
func (r *Registry) List() []*Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Call runs the named tool. Errors and panics inside the handler are
// logged and answered with the tool's apology, so the reply is always
// usable as-is.
func (r *Registry) Call(ctx context.Context, name, arg string) (reply string) {
	t := r.Get(name)
	if t == nil {
		r.logger.Error("unknown tool", "tool", name)
		return fmt.Sprintf("Sorry, I don't know how to do %s yet.", name)
	}

	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("tool panicked", "tool", name, "panic", p)
			reply = t.Apology
		}
	}()

	out, err := t.Handler(ctx, arg)
	if err != nil {
		r.logger.Warn("tool failed", "tool", name, "arg", arg, "error", err)
		return t.Apology
	}
	return out
}

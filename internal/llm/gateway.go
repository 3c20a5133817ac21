package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Gateway tries each provider in order and returns the first non-empty
// reply. Credentials are looked up on every call so keys saved through
// the settings API apply to the next request.
type Gateway struct {
	providers []Provider
	creds     Credentials
	fallback  map[string]string
	timeout   time.Duration
	logger    *slog.Logger

	mu    sync.Mutex
	stats map[string]*ProviderStats
}

// ProviderStats counts attempts against one provider.
type ProviderStats struct {
	Successes int64 `json:"successes"`
	Failures  int64 `json:"failures"`
	Skipped   int64 `json:"skipped"`
}

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

// WithTimeout bounds each provider request. Zero disables the bound.
func WithTimeout(d time.Duration) GatewayOption {
	return func(g *Gateway) { g.timeout = d }
}

// WithFallbackCredentials supplies credentials used when the store has
// no value for a key, such as an Ollama URL from the config file.
func WithFallbackCredentials(m map[string]string) GatewayOption {
	return func(g *Gateway) { g.fallback = m }
}

// NewGateway creates a gateway over providers in priority order.
func NewGateway(creds Credentials, providers []Provider, logger *slog.Logger, opts ...GatewayOption) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Gateway{
		providers: providers,
		creds:     creds,
		timeout:   30 * time.Second,
		logger:    logger,
		stats:     make(map[string]*ProviderStats, len(providers)),
	}
	for _, opt := range opts {
		opt(g)
	}
	for _, p := range providers {
		g.stats[p.Name()] = &ProviderStats{}
	}
	return g
}

// Complete returns a reply for prompt under the system persona. It
// never fails: when every provider is unconfigured or errors it returns
// FailureReply.
func (g *Gateway) Complete(ctx context.Context, prompt, system string) string {
	reply, _ := g.CompleteWith(ctx, prompt, system)
	return reply
}

// CompleteWith is Complete that also reports which provider answered.
// The provider name is empty when FailureReply is returned.
func (g *Gateway) CompleteWith(ctx context.Context, prompt, system string) (reply, provider string) {
	for _, p := range g.providers {
		name := p.Name()
		credential, ok := g.credential(p)
		if !ok {
			g.record(name, func(s *ProviderStats) { s.Skipped++ })
			continue
		}

		start := time.Now()
		reply, err := g.attempt(ctx, p, credential, Request{System: system, Prompt: prompt})
		if err != nil {
			g.logger.Warn("provider failed, trying next",
				"provider", name,
				"elapsed", time.Since(start).Round(time.Millisecond),
				"error", err,
			)
			g.record(name, func(s *ProviderStats) { s.Failures++ })
			continue
		}

		g.logger.Debug("provider replied",
			"provider", name,
			"elapsed", time.Since(start).Round(time.Millisecond),
			"reply_len", len(reply),
		)
		g.record(name, func(s *ProviderStats) { s.Successes++ })
		return reply, name
	}

	g.logger.Warn("no provider produced a reply", "providers", len(g.providers))
	return FailureReply, ""
}

func (g *Gateway) attempt(ctx context.Context, p Provider, credential string, req Request) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	reply, err := p.Complete(ctx, credential, req)
	if err != nil {
		return "", err
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", errEmptyReply
	}
	return reply, nil
}

// credential resolves the credential for p. A lookup error is logged
// and treated as unconfigured.
func (g *Gateway) credential(p Provider) (string, bool) {
	key := p.CredentialKey()
	if g.creds != nil {
		value, ok, err := g.creds.Lookup(key)
		if err != nil {
			g.logger.Warn("credential lookup failed", "provider", p.Name(), "key", key, "error", err)
			return "", false
		}
		if ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value), true
		}
	}
	if value := strings.TrimSpace(g.fallback[key]); value != "" {
		return value, true
	}
	return "", false
}

func (g *Gateway) record(name string, fn func(*ProviderStats)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if s, ok := g.stats[name]; ok {
		fn(s)
	}
}

// Providers returns the provider names in priority order.
func (g *Gateway) Providers() []string {
	names := make([]string, len(g.providers))
	for i, p := range g.providers {
		names[i] = p.Name()
	}
	return names
}

// Stats returns a snapshot of per-provider counters.
func (g *Gateway) Stats() map[string]ProviderStats {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make(map[string]ProviderStats, len(g.stats))
	for name, s := range g.stats {
		out[name] = *s
	}
	return out
}

// NewProvider builds the named provider.
func NewProvider(name string, cfg ProviderConfig, logger *slog.Logger) (Provider, error) {
	switch name {
	case "openai":
		return NewOpenAIProvider(cfg, logger), nil
	case "gemini":
		return NewGeminiProvider(cfg, logger), nil
	case "anthropic":
		return NewAnthropicProvider(cfg, logger), nil
	case "ollama":
		return NewOllamaProvider(cfg, logger), nil
	}
	return nil, fmt.Errorf("unknown provider %q", name)
}

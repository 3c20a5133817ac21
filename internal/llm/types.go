// Package llm sends single-turn completions to generative AI providers
// and falls back through them in a fixed priority order.
package llm

import (
	"context"
	"errors"
	"log/slog"
)

// LevelTrace is below Debug, used for wire-level payload logging.
const LevelTrace = slog.Level(-8)

// FailureReply is returned by the gateway when no provider produced a
// reply.
const FailureReply = "I couldn't reach any AI provider. Please check your API keys in Settings."

// DefaultTemperature is the sampling temperature sent to every provider.
const DefaultTemperature = 0.7

// Request is a provider-neutral single-turn completion request.
type Request struct {
	System      string
	Prompt      string
	Model       string
	MaxTokens   int
	Temperature float64
}

// Provider is one completion backend. Complete receives the credential
// the gateway resolved for CredentialKey.
type Provider interface {
	Name() string
	CredentialKey() string
	Complete(ctx context.Context, credential string, req Request) (string, error)
}

// Credentials resolves provider credentials. The settings store
// satisfies it.
type Credentials interface {
	Lookup(key string) (string, bool, error)
}

// ProviderConfig holds the per-provider request settings.
type ProviderConfig struct {
	Model     string
	BaseURL   string
	MaxTokens int
}

var errEmptyReply = errors.New("empty reply")

package llm

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
)

const anthropicAPIVersion = "2023-06-01"

// AnthropicProvider calls the Anthropic Messages API.
type AnthropicProvider struct {
	cfg        ProviderConfig
	httpClient *http.Client
	logger     *slog.Logger
}

// NewAnthropicProvider creates an Anthropic provider.
func NewAnthropicProvider(cfg ProviderConfig, logger *slog.Logger) *AnthropicProvider {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.anthropic.com"
	}
	return &AnthropicProvider{
		cfg:        cfg,
		httpClient: newHTTPClient(),
		logger:     logger.With("provider", "anthropic"),
	}
}

// Name implements Provider.
func (p *AnthropicProvider) Name() string { return "anthropic" }

// CredentialKey implements Provider.
func (p *AnthropicProvider) CredentialKey() string { return "anthropic_key" }

type anthropicRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	System      string        `json:"system,omitempty"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type anthropicResponse struct {
	Content    []anthropicContent `json:"content"`
	StopReason string             `json:"stop_reason"`
}

// Complete implements Provider.
func (p *AnthropicProvider) Complete(ctx context.Context, apiKey string, req Request) (string, error) {
	req = withDefaults(req, p.cfg)
	if req.MaxTokens == 0 {
		// max_tokens is mandatory for this API.
		req.MaxTokens = 1024
	}

	var resp anthropicResponse
	err := postJSON(ctx, p.httpClient, p.logger,
		strings.TrimRight(p.cfg.BaseURL, "/")+"/v1/messages",
		map[string]string{
			"x-api-key":         apiKey,
			"anthropic-version": anthropicAPIVersion,
		},
		anthropicRequest{
			Model:       req.Model,
			Messages:    []chatMessage{{Role: "user", Content: req.Prompt}},
			System:      req.System,
			MaxTokens:   req.MaxTokens,
			Temperature: req.Temperature,
		}, &resp)
	if err != nil {
		return "", fmt.Errorf("anthropic: %w", err)
	}
	return anthropicReply(resp), nil
}

func anthropicReply(resp anthropicResponse) string {
	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String()
}

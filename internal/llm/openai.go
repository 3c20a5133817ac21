package llm

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
)

// OpenAIProvider calls the OpenAI chat completions API.
type OpenAIProvider struct {
	cfg        ProviderConfig
	httpClient *http.Client
	logger     *slog.Logger
}

// NewOpenAIProvider creates an OpenAI provider.
func NewOpenAIProvider(cfg ProviderConfig, logger *slog.Logger) *OpenAIProvider {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com"
	}
	return &OpenAIProvider{
		cfg:        cfg,
		httpClient: newHTTPClient(),
		logger:     logger.With("provider", "openai"),
	}
}

// Name implements Provider.
func (p *OpenAIProvider) Name() string { return "openai" }

// CredentialKey implements Provider.
func (p *OpenAIProvider) CredentialKey() string { return "openai_key" }

type openaiRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type openaiResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Complete implements Provider.
func (p *OpenAIProvider) Complete(ctx context.Context, apiKey string, req Request) (string, error) {
	req = withDefaults(req, p.cfg)

	var messages []chatMessage
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	var resp openaiResponse
	err := postJSON(ctx, p.httpClient, p.logger,
		strings.TrimRight(p.cfg.BaseURL, "/")+"/v1/chat/completions",
		map[string]string{"Authorization": "Bearer " + apiKey},
		openaiRequest{
			Model:       req.Model,
			Messages:    messages,
			Temperature: req.Temperature,
			MaxTokens:   req.MaxTokens,
		}, &resp)
	if err != nil {
		return "", fmt.Errorf("openai: %w", err)
	}
	return openaiReply(resp), nil
}

func openaiReply(resp openaiResponse) string {
	if len(resp.Choices) == 0 {
		return ""
	}
	return resp.Choices[0].Message.Content
}

// withDefaults fills unset request fields from the provider config.
func withDefaults(req Request, cfg ProviderConfig) Request {
	if req.Model == "" {
		req.Model = cfg.Model
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = cfg.MaxTokens
	}
	if req.Temperature == 0 {
		req.Temperature = DefaultTemperature
	}
	return req
}

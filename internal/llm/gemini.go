package llm

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// GeminiProvider calls the Google Generative Language API.
type GeminiProvider struct {
	cfg        ProviderConfig
	httpClient *http.Client
	logger     *slog.Logger
}

// NewGeminiProvider creates a Gemini provider.
func NewGeminiProvider(cfg ProviderConfig, logger *slog.Logger) *GeminiProvider {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com"
	}
	return &GeminiProvider{
		cfg:        cfg,
		httpClient: newHTTPClient(),
		logger:     logger.With("provider", "gemini"),
	}
}

// Name implements Provider.
func (p *GeminiProvider) Name() string { return "gemini" }

// CredentialKey implements Provider.
func (p *GeminiProvider) CredentialKey() string { return "gemini_key" }

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
	GenerationConfig  struct {
		Temperature     float64 `json:"temperature"`
		MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// Complete implements Provider.
func (p *GeminiProvider) Complete(ctx context.Context, apiKey string, req Request) (string, error) {
	req = withDefaults(req, p.cfg)

	body := geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: req.Prompt}}}},
	}
	if req.System != "" {
		body.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.System}}}
	}
	body.GenerationConfig.Temperature = req.Temperature
	body.GenerationConfig.MaxOutputTokens = req.MaxTokens

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent",
		strings.TrimRight(p.cfg.BaseURL, "/"), url.PathEscape(req.Model))

	var resp geminiResponse
	err := postJSON(ctx, p.httpClient, p.logger, endpoint,
		map[string]string{"x-goog-api-key": apiKey}, body, &resp)
	if err != nil {
		return "", fmt.Errorf("gemini: %w", err)
	}
	return geminiReply(resp), nil
}

func geminiReply(resp geminiResponse) string {
	if len(resp.Candidates) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	return sb.String()
}

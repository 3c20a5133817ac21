package llm

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
)

// OllamaProvider calls a local or remote Ollama server. The server URL
// is its credential: no URL means the provider is not configured.
type OllamaProvider struct {
	cfg        ProviderConfig
	httpClient *http.Client
	logger     *slog.Logger
}

// NewOllamaProvider creates an Ollama provider. cfg.BaseURL is unused
// here; the gateway supplies the URL as the credential.
func NewOllamaProvider(cfg ProviderConfig, logger *slog.Logger) *OllamaProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &OllamaProvider{
		cfg:        cfg,
		httpClient: newHTTPClient(),
		logger:     logger.With("provider", "ollama"),
	}
}

// Name implements Provider.
func (p *OllamaProvider) Name() string { return "ollama" }

// CredentialKey implements Provider.
func (p *OllamaProvider) CredentialKey() string { return "ollama_url" }

type ollamaRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  struct {
		Temperature float64 `json:"temperature"`
		NumPredict  int     `json:"num_predict,omitempty"`
	} `json:"options"`
}

type ollamaResponse struct {
	Model   string      `json:"model"`
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
}

// Complete implements Provider.
func (p *OllamaProvider) Complete(ctx context.Context, baseURL string, req Request) (string, error) {
	req = withDefaults(req, p.cfg)

	body := ollamaRequest{Model: req.Model, Stream: false}
	if req.System != "" {
		body.Messages = append(body.Messages, chatMessage{Role: "system", Content: req.System})
	}
	body.Messages = append(body.Messages, chatMessage{Role: "user", Content: req.Prompt})
	body.Options.Temperature = req.Temperature
	body.Options.NumPredict = req.MaxTokens

	var resp ollamaResponse
	err := postJSON(ctx, p.httpClient, p.logger,
		strings.TrimRight(baseURL, "/")+"/api/chat", nil, body, &resp)
	if err != nil {
		return "", fmt.Errorf("ollama: %w", err)
	}
	return ollamaReply(resp), nil
}

func ollamaReply(resp ollamaResponse) string {
	return resp.Message.Content
}

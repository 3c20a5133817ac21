package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/nugget/jarvis/internal/httpkit"
)

// newHTTPClient returns the client shared by providers. Request
// deadlines come from the gateway's per-call context, so there is no
// client-level timeout.
func newHTTPClient() *http.Client {
	return httpkit.NewClient(
		httpkit.WithTimeout(0),
		httpkit.WithResponseHeaderTimeout(120*time.Second),
	)
}

// postJSON marshals body, POSTs it to url and decodes a 2xx response
// into out. Payloads are logged at trace level.
func postJSON(ctx context.Context, client *http.Client, logger *slog.Logger, url string, headers map[string]string, body, out any) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	logger.Log(ctx, LevelTrace, "request payload", "json", string(jsonData))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errBody := httpkit.ReadErrorBody(resp.Body, 4096)
		return fmt.Errorf("API error %d: %s", resp.StatusCode, errBody)
	}

	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	logger.Log(ctx, LevelTrace, "response payload", "json", string(raw))

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// chatMessage is the role/content pair shared by the OpenAI, Anthropic
// and Ollama wire formats.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

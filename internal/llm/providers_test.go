package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// capture records the last request a test server received.
type capture struct {
	path    string
	headers http.Header
	body    map[string]any
}

func newServer(t *testing.T, status int, reply string) (*httptest.Server, *capture) {
	t.Helper()
	c := &capture{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.path = r.URL.Path
		c.headers = r.Header.Clone()
		if err := json.NewDecoder(r.Body).Decode(&c.body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	return srv, c
}

var testReq = Request{System: "You are Jarvis.", Prompt: "tell me a joke"}

func TestOpenAIProvider(t *testing.T) {
	srv, c := newServer(t, http.StatusOK,
		`{"choices":[{"message":{"role":"assistant","content":"Why did the robot cross the road?"}}]}`)

	p := NewOpenAIProvider(ProviderConfig{Model: "gpt-4o-mini", BaseURL: srv.URL, MaxTokens: 500}, quietLogger())
	got, err := p.Complete(context.Background(), "sk-test", testReq)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "Why did the robot cross the road?" {
		t.Errorf("reply = %q", got)
	}
	if c.path != "/v1/chat/completions" {
		t.Errorf("path = %q", c.path)
	}
	if c.headers.Get("Authorization") != "Bearer sk-test" {
		t.Errorf("authorization = %q", c.headers.Get("Authorization"))
	}
	if c.body["model"] != "gpt-4o-mini" || c.body["temperature"] != 0.7 || c.body["max_tokens"] != float64(500) {
		t.Errorf("body = %v", c.body)
	}
	msgs := c.body["messages"].([]any)
	if len(msgs) != 2 || msgs[0].(map[string]any)["role"] != "system" {
		t.Errorf("messages = %v", msgs)
	}
}

func TestGeminiProvider(t *testing.T) {
	srv, c := newServer(t, http.StatusOK,
		`{"candidates":[{"content":{"role":"model","parts":[{"text":"Part one. "},{"text":"Part two."}]}}]}`)

	p := NewGeminiProvider(ProviderConfig{Model: "gemini-1.5-flash", BaseURL: srv.URL}, quietLogger())
	got, err := p.Complete(context.Background(), "g-key", testReq)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "Part one. Part two." {
		t.Errorf("reply = %q", got)
	}
	if c.path != "/v1beta/models/gemini-1.5-flash:generateContent" {
		t.Errorf("path = %q", c.path)
	}
	if c.headers.Get("x-goog-api-key") != "g-key" {
		t.Errorf("api key header = %q", c.headers.Get("x-goog-api-key"))
	}
	if _, ok := c.body["systemInstruction"]; !ok {
		t.Errorf("missing systemInstruction in %v", c.body)
	}
}

func TestAnthropicProvider(t *testing.T) {
	srv, c := newServer(t, http.StatusOK,
		`{"content":[{"type":"text","text":"Hello"},{"type":"tool_use"},{"type":"text","text":" there"}],"stop_reason":"end_turn"}`)

	p := NewAnthropicProvider(ProviderConfig{Model: "claude-3-5-haiku-latest", BaseURL: srv.URL, MaxTokens: 500}, quietLogger())
	got, err := p.Complete(context.Background(), "a-key", testReq)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "Hello there" {
		t.Errorf("reply = %q", got)
	}
	if c.path != "/v1/messages" {
		t.Errorf("path = %q", c.path)
	}
	if c.headers.Get("x-api-key") != "a-key" || c.headers.Get("anthropic-version") != anthropicAPIVersion {
		t.Errorf("headers = %v", c.headers)
	}
	if c.body["system"] != "You are Jarvis." {
		t.Errorf("system = %v", c.body["system"])
	}
}

func TestOllamaProvider(t *testing.T) {
	srv, c := newServer(t, http.StatusOK,
		`{"model":"qwen3:4b","message":{"role":"assistant","content":"Local reply"},"done":true}`)

	p := NewOllamaProvider(ProviderConfig{Model: "qwen3:4b"}, quietLogger())
	got, err := p.Complete(context.Background(), srv.URL+"/", testReq)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "Local reply" {
		t.Errorf("reply = %q", got)
	}
	if c.path != "/api/chat" {
		t.Errorf("path = %q", c.path)
	}
	if c.body["stream"] != false {
		t.Errorf("stream = %v, want false", c.body["stream"])
	}
}

func TestProviderHTTPError(t *testing.T) {
	srv, _ := newServer(t, http.StatusUnauthorized, `{"error":{"message":"invalid api key"}}`)

	p := NewOpenAIProvider(ProviderConfig{Model: "gpt-4o-mini", BaseURL: srv.URL}, quietLogger())
	_, err := p.Complete(context.Background(), "bad", testReq)
	if err == nil {
		t.Fatal("expected error for 401")
	}
	if !strings.Contains(err.Error(), "401") || !strings.Contains(err.Error(), "invalid api key") {
		t.Errorf("error = %v", err)
	}
}

func TestProviderEmptyEnvelope(t *testing.T) {
	srv, _ := newServer(t, http.StatusOK, `{"choices":[]}`)

	p := NewOpenAIProvider(ProviderConfig{Model: "gpt-4o-mini", BaseURL: srv.URL}, quietLogger())
	got, err := p.Complete(context.Background(), "k", testReq)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "" {
		t.Errorf("reply = %q, want empty", got)
	}
}

func TestGatewayOverHTTP(t *testing.T) {
	down, _ := newServer(t, http.StatusServiceUnavailable, `{"error":"overloaded"}`)
	up, _ := newServer(t, http.StatusOK, `{"content":[{"type":"text","text":"Fallback worked"}]}`)

	providers := []Provider{
		NewOpenAIProvider(ProviderConfig{Model: "gpt-4o-mini", BaseURL: down.URL}, quietLogger()),
		NewGeminiProvider(ProviderConfig{Model: "gemini-1.5-flash", BaseURL: down.URL}, quietLogger()),
		NewAnthropicProvider(ProviderConfig{Model: "claude", BaseURL: up.URL}, quietLogger()),
	}
	g := NewGateway(fakeCreds{"openai_key": "o", "anthropic_key": "a"}, providers, quietLogger())

	reply, provider := g.CompleteWith(context.Background(), "hello", "persona")
	if reply != "Fallback worked" || provider != "anthropic" {
		t.Errorf("got (%q, %q)", reply, provider)
	}
	if s := g.Stats(); s["openai"].Failures != 1 || s["gemini"].Skipped != 1 {
		t.Errorf("stats = %+v", s)
	}
}

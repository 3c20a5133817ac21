package httpkit

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNewClient_Timeouts(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
		want time.Duration
	}{
		{"default", nil, DefaultTimeout},
		{"custom", []Option{WithTimeout(5 * time.Second)}, 5 * time.Second},
		{"disabled", []Option{WithTimeout(0)}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewClient(tt.opts...).Timeout; got != tt.want {
				t.Errorf("Timeout = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewClient_ResponseHeaderTimeout(t *testing.T) {
	ua, ok := NewClient(WithResponseHeaderTimeout(2 * time.Minute)).Transport.(*userAgent)
	if !ok {
		t.Fatal("transport is not the user agent wrapper")
	}
	tr := ua.base.(*http.Transport)
	if tr.ResponseHeaderTimeout != 2*time.Minute {
		t.Errorf("ResponseHeaderTimeout = %v", tr.ResponseHeaderTimeout)
	}
	if tr.TLSHandshakeTimeout != TLSHandshakeTimeout {
		t.Errorf("TLSHandshakeTimeout = %v", tr.TLSHandshakeTimeout)
	}
}

func echoUserAgent(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(r.Header.Get("User-Agent")))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestUserAgent(t *testing.T) {
	srv := echoUserAgent(t)

	body, err := Get(context.Background(), NewClient(), srv.URL, "", 1024)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(body), "Jarvis/") {
		t.Errorf("User-Agent = %q, want Jarvis/ prefix", body)
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	req.Header.Set("User-Agent", "Caller/2.0")
	resp, err := NewClient().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	got, _ := io.ReadAll(resp.Body)
	if string(got) != "Caller/2.0" {
		t.Errorf("User-Agent = %q, want Caller/2.0", got)
	}
	if req.Header.Get("User-Agent") != "Caller/2.0" {
		t.Error("caller request was mutated")
	}
}

func TestGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			w.Write([]byte(r.Header.Get("Accept") + ":" + strings.Repeat("x", 100)))
		default:
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("try later"))
		}
	}))
	defer srv.Close()
	ctx := context.Background()

	body, err := Get(ctx, NewClient(), srv.URL+"/ok", "text/xml", 20)
	if err != nil {
		t.Fatal(err)
	}
	if len(body) != 20 || !strings.HasPrefix(string(body), "text/xml:") {
		t.Errorf("body = %q", body)
	}

	_, err = Get(ctx, NewClient(), srv.URL+"/down", "", 1024)
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want *StatusError", err)
	}
	if se.Code != http.StatusServiceUnavailable || se.Body != "try later" {
		t.Errorf("StatusError = %+v", se)
	}
	if se.Error() != "HTTP 503: try later" {
		t.Errorf("Error() = %q", se.Error())
	}
}

func TestReadErrorBody(t *testing.T) {
	if got := ReadErrorBody(io.NopCloser(strings.NewReader("quota exceeded")), 512); got != "quota exceeded" {
		t.Errorf("ReadErrorBody = %q", got)
	}
	if got := ReadErrorBody(io.NopCloser(strings.NewReader(strings.Repeat("x", 100))), 10); len(got) != 10 {
		t.Errorf("len = %d, want 10", len(got))
	}
	if got := ReadErrorBody(nil, 10); got != "" {
		t.Errorf("ReadErrorBody(nil) = %q", got)
	}
}

type failReader struct{}

func (failReader) Read([]byte) (int, error) { return 0, errors.New("boom") }

func TestReadErrorBody_Error(t *testing.T) {
	got := ReadErrorBody(io.NopCloser(failReader{}), 10)
	if !strings.Contains(got, "boom") {
		t.Errorf("ReadErrorBody = %q, want read error", got)
	}
}

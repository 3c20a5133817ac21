package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestFindConfig_Explicit(t *testing.T) {
	path := writeConfig(t, "listen:\n  port: 9999\n")

	got, err := FindConfig(path)
	if err != nil {
		t.Fatalf("FindConfig(%q) error: %v", path, err)
	}
	if got != path {
		t.Errorf("FindConfig(%q) = %q, want %q", path, got, path)
	}
}

func TestFindConfig_ExplicitMissing(t *testing.T) {
	_, err := FindConfig("/nonexistent/config.yaml")
	if err == nil {
		t.Fatal("FindConfig with missing explicit path should error")
	}
}

func TestFindConfig_CWD(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("listen:\n  port: 8080\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Chdir(dir)

	got, err := FindConfig("")
	if err != nil {
		t.Fatalf("FindConfig(\"\") error: %v", err)
	}
	if got != "config.yaml" {
		t.Errorf("FindConfig(\"\") = %q, want %q", got, "config.yaml")
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "data_dir: /tmp/jarvis\n"))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if cfg.Listen.Port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.Listen.Port)
	}
	if cfg.Database.Path != filepath.Join("/tmp/jarvis", "jarvis.db") {
		t.Errorf("database.path = %q", cfg.Database.Path)
	}
	if strings.Join(cfg.Providers.Order, ",") != "openai,gemini,anthropic,ollama" {
		t.Errorf("providers.order = %v", cfg.Providers.Order)
	}
	if cfg.Persona != DefaultPersona {
		t.Errorf("persona = %q, want default", cfg.Persona)
	}
	if cfg.Scheduler.Mode != "exact" {
		t.Errorf("scheduler.mode = %q, want exact", cfg.Scheduler.Mode)
	}
	if cfg.Tools.SearchAPIURL != "https://api.duckduckgo.com/" {
		t.Errorf("tools.search_api_url = %q", cfg.Tools.SearchAPIURL)
	}
	if cfg.Providers.Timeout().Seconds() != 30 {
		t.Errorf("provider timeout = %v, want 30s", cfg.Providers.Timeout())
	}
}

func TestLoad_ExpandsEnvVars(t *testing.T) {
	t.Setenv("JARVIS_TEST_BROKER", "mqtt://broker.local:1883")

	cfg, err := Load(writeConfig(t, "mqtt:\n  broker: ${JARVIS_TEST_BROKER}\n"))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.MQTT.Broker != "mqtt://broker.local:1883" {
		t.Errorf("broker = %q", cfg.MQTT.Broker)
	}
	if !cfg.MQTT.Configured() {
		t.Error("expected MQTT to be configured")
	}
}

func TestLoad_ProviderOrderNormalized(t *testing.T) {
	cfg, err := Load(writeConfig(t, "providers:\n  order: [Gemini, ' OPENAI ']\n"))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if got := strings.Join(cfg.Providers.Order, ","); got != "gemini,openai" {
		t.Errorf("order = %q, want gemini,openai", got)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"unknown provider", "providers:\n  order: [openai, bard]\n", "unknown provider"},
		{"duplicate provider", "providers:\n  order: [openai, openai]\n", "duplicate provider"},
		{"bad driver", "database:\n  driver: postgres\n", "database.driver"},
		{"bad mode", "scheduler:\n  mode: cron\n", "scheduler.mode"},
		{"bad timezone", "scheduler:\n  timezone: Mars/Olympus\n", "scheduler.timezone"},
		{"bad log level", "log_level: loud\n", "unknown log level"},
		{"bad log format", "log_format: xml\n", "log_format"},
		{"news url without topic", "tools:\n  news_url: https://example.com/rss\n", "news_url"},
		{"port range", "listen:\n  port: 70000\n", "listen.port"},
		{"wildcard topic", "mqtt:\n  base_topic: jarvis/#\n", "wildcards"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.yaml))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want substring %q", err, tt.want)
			}
		})
	}
}

func TestLoadPersona_File(t *testing.T) {
	dir := t.TempDir()
	personaPath := filepath.Join(dir, "persona.md")
	if err := os.WriteFile(personaPath, []byte("  You are a butler.\n"), 0600); err != nil {
		t.Fatal(err)
	}

	cfg := Default()
	cfg.PersonaFile = personaPath

	got, err := cfg.LoadPersona()
	if err != nil {
		t.Fatalf("LoadPersona: %v", err)
	}
	if got != "You are a butler." {
		t.Errorf("persona = %q", got)
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"", slog.LevelInfo},
		{"TRACE", LevelTrace},
		{" debug ", slog.LevelDebug},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := ParseLogLevel(tt.in)
		if err != nil {
			t.Errorf("ParseLogLevel(%q) error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestReplaceLogLevelNames(t *testing.T) {
	a := ReplaceLogLevelNames(nil, slog.Any(slog.LevelKey, LevelTrace))
	if a.Value.String() != "TRACE" {
		t.Errorf("level rendered as %q, want TRACE", a.Value.String())
	}
}

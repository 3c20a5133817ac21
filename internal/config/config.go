// Package config handles Jarvis configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPersona is the system prompt sent to AI providers when no
// persona is configured.
const DefaultPersona = "You are Jarvis, an advanced AI assistant. Be helpful, concise, and proactive."

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./config.yaml, ~/.config/jarvis/config.yaml, /etc/jarvis/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "jarvis", "config.yaml"))
	}

	paths = append(paths, "/etc/jarvis/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
// Returns the path found, or an error if nothing was found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all Jarvis configuration.
type Config struct {
	Listen      ListenConfig    `yaml:"listen"`
	DataDir     string          `yaml:"data_dir"`
	Database    DatabaseConfig  `yaml:"database"`
	Persona     string          `yaml:"persona"`
	PersonaFile string          `yaml:"persona_file"`
	Providers   ProvidersConfig `yaml:"providers"`
	Tools       ToolsConfig     `yaml:"tools"`
	Scheduler   SchedulerConfig `yaml:"scheduler"`
	MQTT        MQTTConfig      `yaml:"mqtt"`
	Voice       VoiceConfig     `yaml:"voice"`
	LogLevel    string          `yaml:"log_level"`
	LogFormat   string          `yaml:"log_format"` // text (default) or json
}

// ListenConfig defines the API server settings.
type ListenConfig struct {
	Address string `yaml:"address"` // Bind address (default: "" = all interfaces)
	Port    int    `yaml:"port"`
}

// DatabaseConfig selects the SQLite driver and file.
type DatabaseConfig struct {
	// Driver is "sqlite3" (mattn/go-sqlite3, cgo) or "sqlite"
	// (modernc.org/sqlite, pure Go).
	Driver string `yaml:"driver"`
	// Path defaults to <data_dir>/jarvis.db.
	Path string `yaml:"path"`
}

// ProvidersConfig defines the AI provider chain. Credentials are not
// configured here; they live in the settings table and are managed
// through the settings API.
type ProvidersConfig struct {
	// Order is the fixed fallback priority. Unknown names are rejected.
	Order      []string       `yaml:"order"`
	TimeoutSec int            `yaml:"timeout_sec"`
	OpenAI     ProviderConfig `yaml:"openai"`
	Gemini     ProviderConfig `yaml:"gemini"`
	Anthropic  ProviderConfig `yaml:"anthropic"`
	Ollama     ProviderConfig `yaml:"ollama"`
}

// ProviderConfig holds per-provider request settings.
type ProviderConfig struct {
	Model     string `yaml:"model"`
	BaseURL   string `yaml:"base_url"`
	MaxTokens int    `yaml:"max_tokens"`
}

// Timeout returns the per-request provider timeout.
func (p ProvidersConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutSec) * time.Second
}

// ToolsConfig defines the built-in tool endpoints.
type ToolsConfig struct {
	WeatherURL   string `yaml:"weather_url"`    // wttr.in compatible
	NewsURL      string `yaml:"news_url"`       // RSS search endpoint, %s is the escaped topic
	SearchURL    string `yaml:"search_url"`     // deep link base, query appended as ?q=
	SearchAPIURL string `yaml:"search_api_url"` // DuckDuckGo instant answer API
	NewsCount    int    `yaml:"news_count"`
	TimeoutSec   int    `yaml:"timeout_sec"`
}

// Timeout returns the per-request tool timeout.
func (t ToolsConfig) Timeout() time.Duration {
	return time.Duration(t.TimeoutSec) * time.Second
}

// SchedulerConfig defines automation matching.
type SchedulerConfig struct {
	// Timezone is an IANA zone name used to format the wall clock.
	// Empty means the process local zone.
	Timezone string `yaml:"timezone"`
	// Mode is "exact" (match only the current minute) or "window"
	// (match every minute since the previous tick).
	Mode string `yaml:"mode"`
	// MaxCatchUp bounds window mode, in minutes.
	MaxCatchUp int `yaml:"max_catch_up"`
}

// Location resolves the configured timezone.
func (s SchedulerConfig) Location() (*time.Location, error) {
	if s.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(s.Timezone)
}

// MQTTConfig defines the optional MQTT broker for automation events.
type MQTTConfig struct {
	Broker    string `yaml:"broker"` // mqtt://host:1883 or mqtts://host:8883
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	BaseTopic string `yaml:"base_topic"`
	ClientID  string `yaml:"client_id"`

	// Commands subscribes to <base_topic>/command and publishes router
	// replies to <base_topic>/reply.
	Commands bool `yaml:"commands"`
	// RateLimit caps inbound command messages per minute.
	RateLimit int `yaml:"rate_limit"`
}

// Configured reports whether a broker is set.
func (m MQTTConfig) Configured() bool {
	return m.Broker != ""
}

// VoiceConfig defines websocket voice sessions.
type VoiceConfig struct {
	WakeWord string `yaml:"wake_word"`
}

// KnownProviders lists the provider names accepted in providers.order.
var KnownProviders = []string{"openai", "gemini", "anthropic", "ollama"}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns a default configuration.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Listen.Port == 0 {
		c.Listen.Port = 8080
	}
	if c.DataDir == "" {
		c.DataDir = "./db"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite3"
	}
	if c.Database.Path == "" {
		c.Database.Path = filepath.Join(c.DataDir, "jarvis.db")
	}
	if c.Persona == "" {
		c.Persona = DefaultPersona
	}

	p := &c.Providers
	if len(p.Order) == 0 {
		p.Order = slices.Clone(KnownProviders)
	}
	for i := range p.Order {
		p.Order[i] = strings.ToLower(strings.TrimSpace(p.Order[i]))
	}
	if p.TimeoutSec == 0 {
		p.TimeoutSec = 30
	}
	if p.OpenAI.Model == "" {
		p.OpenAI.Model = "gpt-4o-mini"
	}
	if p.OpenAI.BaseURL == "" {
		p.OpenAI.BaseURL = "https://api.openai.com"
	}
	if p.Gemini.Model == "" {
		p.Gemini.Model = "gemini-1.5-flash"
	}
	if p.Gemini.BaseURL == "" {
		p.Gemini.BaseURL = "https://generativelanguage.googleapis.com"
	}
	if p.Anthropic.Model == "" {
		p.Anthropic.Model = "claude-3-5-haiku-latest"
	}
	if p.Anthropic.BaseURL == "" {
		p.Anthropic.BaseURL = "https://api.anthropic.com"
	}
	if p.Ollama.Model == "" {
		p.Ollama.Model = "qwen3:4b"
	}
	for _, pc := range []*ProviderConfig{&p.OpenAI, &p.Gemini, &p.Anthropic, &p.Ollama} {
		if pc.MaxTokens == 0 {
			pc.MaxTokens = 500
		}
	}

	t := &c.Tools
	if t.WeatherURL == "" {
		t.WeatherURL = "https://wttr.in"
	}
	if t.NewsURL == "" {
		t.NewsURL = "https://news.google.com/rss/search?q=%s&hl=en-US&gl=US&ceid=US:en"
	}
	if t.SearchURL == "" {
		t.SearchURL = "https://duckduckgo.com/"
	}
	if t.SearchAPIURL == "" {
		t.SearchAPIURL = "https://api.duckduckgo.com/"
	}
	if t.NewsCount == 0 {
		t.NewsCount = 3
	}
	if t.TimeoutSec == 0 {
		t.TimeoutSec = 10
	}

	if c.Scheduler.Mode == "" {
		c.Scheduler.Mode = "exact"
	}
	if c.Scheduler.MaxCatchUp == 0 {
		c.Scheduler.MaxCatchUp = 15
	}

	if c.MQTT.BaseTopic == "" {
		c.MQTT.BaseTopic = "jarvis"
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "jarvis"
	}
	if c.Voice.WakeWord == "" {
		c.Voice.WakeWord = "jarvis"
	}
	if c.MQTT.RateLimit == 0 {
		c.MQTT.RateLimit = 30
	}
}

// Validate checks the configuration for values that would fail at
// runtime. It is called by Load after defaults are applied.
func (c *Config) Validate() error {
	if c.Listen.Port < 1 || c.Listen.Port > 65535 {
		return fmt.Errorf("listen.port %d out of range", c.Listen.Port)
	}
	if c.Database.Driver != "sqlite3" && c.Database.Driver != "sqlite" {
		return fmt.Errorf("database.driver %q (valid: sqlite3, sqlite)", c.Database.Driver)
	}
	if c.LogLevel != "" {
		if _, err := ParseLogLevel(c.LogLevel); err != nil {
			return err
		}
	}
	if c.LogFormat != "" && c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("log_format %q (valid: text, json)", c.LogFormat)
	}
	seen := make(map[string]bool)
	for _, name := range c.Providers.Order {
		if !slices.Contains(KnownProviders, name) {
			return fmt.Errorf("providers.order: unknown provider %q (valid: %s)", name, strings.Join(KnownProviders, ", "))
		}
		if seen[name] {
			return fmt.Errorf("providers.order: duplicate provider %q", name)
		}
		seen[name] = true
	}
	if c.Providers.TimeoutSec < 0 {
		return fmt.Errorf("providers.timeout_sec must be positive")
	}
	if !strings.Contains(c.Tools.NewsURL, "%s") {
		return fmt.Errorf("tools.news_url must contain %%s for the topic")
	}
	switch c.Scheduler.Mode {
	case "exact", "window":
	default:
		return fmt.Errorf("scheduler.mode %q (valid: exact, window)", c.Scheduler.Mode)
	}
	if c.Scheduler.MaxCatchUp < 1 || c.Scheduler.MaxCatchUp > 24*60 {
		return fmt.Errorf("scheduler.max_catch_up %d out of range (1-1440)", c.Scheduler.MaxCatchUp)
	}
	if c.MQTT.RateLimit < 0 {
		return fmt.Errorf("mqtt.rate_limit must be positive")
	}
	if strings.ContainsAny(c.MQTT.BaseTopic, "#+") {
		return fmt.Errorf("mqtt.base_topic %q must not contain wildcards", c.MQTT.BaseTopic)
	}
	if strings.Contains(strings.TrimSpace(c.Voice.WakeWord), " ") {
		return fmt.Errorf("voice.wake_word %q must be a single word", c.Voice.WakeWord)
	}
	if _, err := c.Scheduler.Location(); err != nil {
		return fmt.Errorf("scheduler.timezone: %w", err)
	}
	return nil
}

// LoadPersona returns the system prompt. PersonaFile wins over the
// inline persona when set.
func (c *Config) LoadPersona() (string, error) {
	if c.PersonaFile == "" {
		return c.Persona, nil
	}
	data, err := os.ReadFile(c.PersonaFile)
	if err != nil {
		return "", fmt.Errorf("read persona file: %w", err)
	}
	persona := strings.TrimSpace(string(data))
	if persona == "" {
		return c.Persona, nil
	}
	return persona, nil
}

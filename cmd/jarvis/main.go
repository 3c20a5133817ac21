// Jarvis is a voice-first personal assistant service.
//
// It answers natural-language commands over HTTP and a websocket voice
// channel, routing each command to a built-in tool (weather, news,
// search, reminders, clock) or to a chain of AI providers. A minute
// scheduler fires time-of-day automations and can announce them over
// MQTT. Configuration is loaded from a single YAML file discovered
// automatically (see [config.DefaultSearchPaths]).
//
// Usage:
//
//	jarvis serve              Start the API server and scheduler
//	jarvis init [dir]         Initialize a working directory with defaults
//	jarvis ask <command>      Answer a single command (for testing)
//	jarvis version            Print version and build information
//	jarvis -o json version    Output version information as JSON
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/nugget/jarvis/internal/api"
	"github.com/nugget/jarvis/internal/buildinfo"
	"github.com/nugget/jarvis/internal/config"
	"github.com/nugget/jarvis/internal/database"
	"github.com/nugget/jarvis/internal/history"
	"github.com/nugget/jarvis/internal/httpkit"
	"github.com/nugget/jarvis/internal/llm"
	"github.com/nugget/jarvis/internal/mqtt"
	"github.com/nugget/jarvis/internal/notes"
	"github.com/nugget/jarvis/internal/router"
	"github.com/nugget/jarvis/internal/scheduler"
	"github.com/nugget/jarvis/internal/settings"
	"github.com/nugget/jarvis/internal/tools"
)

// main constructs the OS-level environment (context, stdio, argv) and
// delegates immediately to [run], so the full lifecycle can be driven
// from tests.
func main() {
	ctx := context.Background()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// run is the real entry point for the jarvis command. Structured logs
// from serve go to stdout; ask logs to stderr so stdout carries only
// the reply. Arguments are parsed by hand to keep run free of flag
// package globals.
func run(ctx context.Context, stdout io.Writer, stderr io.Writer, args []string) error {
	var configPath string
	var outputFmt string // "text" (default) or "json"
	var command string
	var cmdArgs []string

	for i := 0; i < len(args); i++ {
		switch {
		case command != "":
			cmdArgs = append(cmdArgs, args[i])
		case args[i] == "-config" && i+1 < len(args):
			configPath = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-config="):
			configPath = strings.TrimPrefix(args[i], "-config=")
		case (args[i] == "-o" || args[i] == "--output") && i+1 < len(args):
			outputFmt = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-o="):
			outputFmt = strings.TrimPrefix(args[i], "-o=")
		case strings.HasPrefix(args[i], "--output="):
			outputFmt = strings.TrimPrefix(args[i], "--output=")
		case args[i] == "-h" || args[i] == "-help" || args[i] == "--help":
			return printUsage(stdout)
		case !strings.HasPrefix(args[i], "-"):
			command = args[i]
		default:
			return fmt.Errorf("unknown flag: %s", args[i])
		}
	}

	if outputFmt == "" {
		outputFmt = "text"
	}
	if outputFmt != "text" && outputFmt != "json" {
		return fmt.Errorf("unknown output format: %q (expected text or json)", outputFmt)
	}

	switch command {
	case "serve":
		return runServe(ctx, stdout, configPath)
	case "init":
		dir := "."
		if len(cmdArgs) > 0 {
			dir = cmdArgs[0]
		}
		return runInit(stdout, dir)
	case "ask":
		if len(cmdArgs) == 0 {
			return fmt.Errorf("usage: jarvis ask <command>")
		}
		return runAsk(ctx, stdout, stderr, configPath, strings.Join(cmdArgs, " "))
	case "version":
		return runVersion(stdout, outputFmt)
	case "":
		return printUsage(stdout)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

// runVersion prints build metadata in the requested output format.
func runVersion(w io.Writer, outputFmt string) error {
	b := buildinfo.Current(false)
	if outputFmt == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(b)
	}
	fmt.Fprintln(w, buildinfo.String())
	fmt.Fprintf(w, "  %-12s %s\n", "go:", b.GoVersion)
	fmt.Fprintf(w, "  %-12s %s\n", "platform:", b.Platform)
	return nil
}

// printUsage writes the top-level help text to w.
func printUsage(w io.Writer) error {
	fmt.Fprintln(w, "Jarvis - Voice-First Personal Assistant")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: jarvis [flags] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve        Start the API server and scheduler")
	fmt.Fprintln(w, "  init [dir]   Initialize working directory with defaults (default: .)")
	fmt.Fprintln(w, "  ask          Answer a single command (for testing)")
	fmt.Fprintln(w, "  version      Show version information")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -config <path>    Path to config file (default: auto-discover)")
	fmt.Fprintln(w, "  -o, --output fmt  Output format: text (default) or json")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Config search order:")
	fmt.Fprintln(w, "  ./config.yaml, ~/.config/jarvis/config.yaml, /etc/jarvis/config.yaml")
	return nil
}

// runAsk answers one command with the same router the server uses and
// prints the reply. The exchange is recorded in the history like any
// other command.
func runAsk(ctx context.Context, stdout io.Writer, stderr io.Writer, configPath string, command string) error {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	logger := newLogger(stderr, slog.LevelWarn, cfg.LogFormat)

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	reply, err := a.router.Handle(ctx, command)
	fmt.Fprintln(stdout, reply)
	if err != nil {
		return fmt.Errorf("ask: %w", err)
	}
	return nil
}

// runServe handles the "jarvis serve" subcommand. It opens the
// database, builds the router and scheduler, optionally connects to
// MQTT, and serves the API until SIGINT or SIGTERM.
//
// The shutdown sequence is:
//  1. The signal cancels the context, stopping the scheduler loop
//  2. MQTT publishes "offline" and disconnects
//  3. The HTTP server drains in-flight requests
//  4. The database is closed via defer
func runServe(ctx context.Context, stdout io.Writer, configPath string) error {
	logger := newLogger(stdout, slog.LevelInfo, "text")
	logger.Info("starting Jarvis", "version", buildinfo.Version, "commit", buildinfo.GitCommit, "built", buildinfo.BuildTime)

	cfg, cfgPath, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	// The startup logger is replaced once the configured level and
	// format are known. ParseLogLevel was already validated by Load.
	{
		level := slog.LevelInfo
		if cfg.LogLevel != "" {
			level, _ = config.ParseLogLevel(cfg.LogLevel)
		}
		logger = newLogger(stdout, level, cfg.LogFormat)
	}

	logger.Info("config loaded",
		"path", cfgPath,
		"port", cfg.Listen.Port,
		"database", cfg.Database.Path,
		"providers", strings.Join(cfg.Providers.Order, ","),
		"scheduler_mode", cfg.Scheduler.Mode,
	)

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var wg sync.WaitGroup

	// --- MQTT (optional) ---
	var notifiers []scheduler.Notifier
	var mqttPub *mqtt.Publisher
	if cfg.MQTT.Configured() {
		instanceID, err := mqtt.LoadOrCreateInstanceID(cfg.DataDir)
		if err != nil {
			return fmt.Errorf("instance id: %w", err)
		}
		mqttPub = mqtt.New(cfg.MQTT, instanceID, logger.With("component", "mqtt"))
		if cfg.MQTT.Commands {
			mqttPub.HandleCommands(a.router.Handle)
		}
		notifiers = append(notifiers, mqttPub)

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := mqttPub.Start(ctx); err != nil {
				logger.Error("mqtt publisher failed", "error", err)
			}
		}()
		logger.Info("mqtt enabled",
			"broker", cfg.MQTT.Broker,
			"base_topic", cfg.MQTT.BaseTopic,
			"commands", cfg.MQTT.Commands,
		)
	} else {
		logger.Info("mqtt disabled (not configured)")
	}

	// --- Scheduler ---
	loc, _ := cfg.Scheduler.Location()
	sched := scheduler.New(logger.With("component", "scheduler"), a.automations,
		scheduler.LogExecutor(logger.With("component", "automation"), notifiers...),
		scheduler.Options{
			Location:   loc,
			Mode:       scheduler.Mode(cfg.Scheduler.Mode),
			MaxCatchUp: cfg.Scheduler.MaxCatchUp,
		})
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := sched.Run(ctx); err != nil {
			logger.Error("scheduler stopped", "error", err)
		}
	}()

	// --- API server ---
	server := api.NewServer(cfg.Listen.Address, cfg.Listen.Port, api.Deps{
		Router:      a.router,
		Settings:    a.settings,
		History:     a.history,
		Automations: a.automations,
		Notes:       a.notes,
		Scheduler:   sched,
		Gateway:     a.gateway,
		Weather:     a.weather,
		Search:      a.search,
		WakeWord:    cfg.Voice.WakeWord,
	}, logger.With("component", "api"))

	go func() {
		<-ctx.Done()
		logger.Info("shutdown signal received")

		if mqttPub != nil {
			offlineCtx, offlineCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer offlineCancel()
			if err := mqttPub.Stop(offlineCtx); err != nil {
				logger.Error("mqtt shutdown failed", "error", err)
			}
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("api shutdown failed", "error", err)
		}
	}()

	if err := server.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		cancel()
		wg.Wait()
		return fmt.Errorf("server failed: %w", err)
	}

	wg.Wait()
	logger.Info("Jarvis stopped")
	return nil
}

// app holds the components shared by serve and ask.
type app struct {
	db          *sql.DB
	settings    *settings.Store
	history     *history.Store
	automations *scheduler.Store
	notes       *notes.Store
	gateway     *llm.Gateway
	router      *router.Router
	weather     *tools.WeatherClient
	search      *tools.SearchClient
}

// newApp opens the database and builds the stores, tools, provider
// gateway and router.
func newApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	db, err := database.Open(cfg.Database.Driver, cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	a := &app{db: db}

	if a.settings, err = settings.NewStore(db); err != nil {
		db.Close()
		return nil, err
	}
	if a.history, err = history.NewStore(db); err != nil {
		db.Close()
		return nil, err
	}
	if a.automations, err = scheduler.NewStore(db); err != nil {
		db.Close()
		return nil, err
	}
	if a.notes, err = notes.NewStore(db); err != nil {
		db.Close()
		return nil, err
	}

	persona, err := cfg.LoadPersona()
	if err != nil {
		db.Close()
		return nil, err
	}

	a.gateway, err = newGateway(cfg, a.settings, logger.With("component", "llm"))
	if err != nil {
		db.Close()
		return nil, err
	}

	toolHTTP := httpkit.NewClient(httpkit.WithTimeout(cfg.Tools.Timeout()))
	a.weather = tools.NewWeatherClient(cfg.Tools.WeatherURL, toolHTTP)
	a.search = tools.NewSearchClient(cfg.Tools.SearchURL, cfg.Tools.SearchAPIURL, toolHTTP)
	loc, _ := cfg.Scheduler.Location()

	registry := tools.NewRegistry(logger.With("component", "tools"))
	registry.Register(tools.WeatherTool(a.weather))
	registry.Register(tools.NewsTool(tools.NewNewsClient(cfg.Tools.NewsURL, cfg.Tools.NewsCount, toolHTTP)))
	registry.Register(tools.SearchTool(a.search))
	registry.Register(tools.ReminderTool(a.notes))
	registry.Register(tools.CalculateTool())
	registry.Register(tools.ClockTool(loc, time.Now))

	a.router = router.NewRouter(logger.With("component", "router"), router.Config{
		Persona: persona,
	}, registry, a.gateway, a.history)

	return a, nil
}

// Close releases the database.
func (a *app) Close() error {
	return a.db.Close()
}

// newGateway builds the provider chain in configured order. A
// configured Ollama base_url stands in for the ollama_url setting.
func newGateway(cfg *config.Config, creds llm.Credentials, logger *slog.Logger) (*llm.Gateway, error) {
	byName := map[string]config.ProviderConfig{
		"openai":    cfg.Providers.OpenAI,
		"gemini":    cfg.Providers.Gemini,
		"anthropic": cfg.Providers.Anthropic,
		"ollama":    cfg.Providers.Ollama,
	}

	var providers []llm.Provider
	for _, name := range cfg.Providers.Order {
		pc := byName[name]
		p, err := llm.NewProvider(name, llm.ProviderConfig{
			Model:     pc.Model,
			BaseURL:   pc.BaseURL,
			MaxTokens: pc.MaxTokens,
		}, logger)
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}

	opts := []llm.GatewayOption{llm.WithTimeout(cfg.Providers.Timeout())}
	if u := cfg.Providers.Ollama.BaseURL; u != "" {
		opts = append(opts, llm.WithFallbackCredentials(map[string]string{"ollama_url": u}))
	}
	return llm.NewGateway(creds, providers, logger, opts...), nil
}

// newLogger creates a structured logger that writes to w at the given
// level and format. Any format other than "json" yields text.
func newLogger(w io.Writer, level slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	}
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// loadConfig locates and parses the YAML configuration file. Returns
// the parsed config, the path that was loaded, and any error.
func loadConfig(explicit string) (*config.Config, string, error) {
	cfgPath, err := config.FindConfig(explicit)
	if err != nil {
		return nil, "", err
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, cfgPath, fmt.Errorf("load config %s: %w", cfgPath, err)
	}

	return cfg, cfgPath, nil
}

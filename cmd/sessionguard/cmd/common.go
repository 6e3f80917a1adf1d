package cmd

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Sentinel-Gate/sessionguard/internal/adapter/outbound/console"
	"github.com/Sentinel-Gate/sessionguard/internal/config"
	"github.com/Sentinel-Gate/sessionguard/internal/i18n"
	"github.com/Sentinel-Gate/sessionguard/internal/telemetry"
	"github.com/Sentinel-Gate/sessionguard/pkg/sessionguard"
)

// navigationGrace is how long past a redirect delay commands wait for the
// navigation to be reported.
const navigationGrace = 500 * time.Millisecond

// loadConfig loads, overrides from flags, and validates the configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfigRaw()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if devMode {
		cfg.DevMode = true
	}
	cfg.SetDevDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// newLogger builds the stderr text logger for cfg.
func newLogger(cfg *config.Config) *slog.Logger {
	level := parseLogLevel(cfg.LogLevel)
	if cfg.DevMode {
		level = slog.LevelDebug // DevMode always forces debug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// parseLogLevel converts a string log level to slog.Level.
// Returns slog.LevelInfo for unrecognized values.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// guardEnv is a Guard with the console adapters the commands read from.
type guardEnv struct {
	cfg       *config.Config
	logger    *slog.Logger
	guard     *sessionguard.Guard
	navigator *console.Navigator
	catalog   *i18n.Catalog
	registry  *prometheus.Registry
	shutdown  telemetry.ShutdownFunc
}

// openGuard loads configuration and builds a Guard writing notifications
// and navigations to stderr.
func openGuard(ctx context.Context) (*guardEnv, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg)

	catalog, err := i18n.New(cfg.Locale)
	if err != nil {
		return nil, err
	}

	tp, shutdown, err := telemetry.NewTracerProvider(cfg.Tracing.Enabled, os.Stderr, Version)
	if err != nil {
		return nil, err
	}

	env := &guardEnv{
		cfg:       cfg,
		logger:    logger,
		navigator: console.NewNavigator(os.Stderr),
		catalog:   catalog,
		registry:  prometheus.NewRegistry(),
		shutdown:  shutdown,
	}

	opts := sessionguard.OptionsFromConfig(cfg)
	opts.Notifier = console.NewNotifier(os.Stderr, catalog)
	opts.Navigator = env.navigator
	opts.Presenter = console.NewPresenter(os.Stdout, catalog)
	opts.TracerProvider = tp
	opts.Registerer = env.registry
	opts.Logger = logger

	g, err := sessionguard.New(ctx, opts)
	if err != nil {
		_ = shutdown(context.Background())
		return nil, err
	}
	env.guard = g
	return env, nil
}

// Close stops the guard and flushes spans.
func (e *guardEnv) Close() {
	if err := e.guard.Close(); err != nil {
		e.logger.Warn("guard close failed", "error", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.shutdown(ctx); err != nil {
		e.logger.Warn("tracer shutdown failed", "error", err)
	}
}

// waitNavigation blocks until the guard navigates, ctx ends or timeout passes.
func (e *guardEnv) waitNavigation(ctx context.Context, timeout time.Duration) (string, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case target := <-e.navigator.Targets():
		return target, true
	case <-ctx.Done():
	case <-timer.C:
	}
	return "", false
}

// stdin is shared by every prompt so buffered input is not lost between them.
var stdin = bufio.NewReader(os.Stdin)

// prompt reads one line from stdin after printing label to stderr.
func prompt(label string) string {
	fmt.Fprint(os.Stderr, label)
	line, _ := stdin.ReadString('\n')
	return strings.TrimSpace(line)
}

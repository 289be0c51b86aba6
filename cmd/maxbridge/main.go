// Package main implements the entry point for the maxbridge daemon.
// maxbridge connects Max/MSP patches to LLM tooling over WebSocket: it
// routes commands through the orchestrator, keeps the patch state model
// synchronized, and publishes state change notifications.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/c360/maxbridge/config"
	"github.com/c360/maxbridge/metric"
	"github.com/c360/maxbridge/orchestrator"
	"github.com/c360/maxbridge/security"
	"github.com/c360/maxbridge/statesync"
	"github.com/c360/maxbridge/transport/websocket"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "maxbridge"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	// Run application with proper error handling
	if err := run(); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	// Parse and validate CLI flags
	cliCfg, logger, shouldExit, err := initializeCLI()
	if shouldExit || err != nil {
		return err
	}

	// Load and validate configuration
	cfg, err := loadConfig(cliCfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cliCfg.Validate {
		slog.Info("Configuration is valid")
		return nil
	}

	// Setup core infrastructure
	ctx := context.Background()
	metricsRegistry, metricsServer := setupMetrics(cfg)
	if metricsServer != nil {
		defer func() { _ = metricsServer.Stop() }()
	}
	policy := security.NewPolicy(cfg.Security, logger)

	// Assemble and start the bridge
	b := assembleBridge(cfg, logger, metricsRegistry, policy)
	if err := startBridge(ctx, b); err != nil {
		return err
	}

	// Run until a shutdown signal arrives
	return runWithSignalHandling(ctx, cfg, b, cliCfg.ShutdownTimeout)
}

// initializeCLI parses flags and sets up logging
func initializeCLI() (*CLIConfig, *slog.Logger, bool, error) {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return nil, nil, false, fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil, nil, true, nil
	}

	if cliCfg.ShowHelp {
		printDetailedHelp()
		return nil, nil, true, nil
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	slog.Info("Starting maxbridge (Max/MSP to LLM bridge)",
		"version", Version,
		"build_time", BuildTime,
		"config_path", cliCfg.ConfigPath)

	return cliCfg, logger, false, nil
}

// setupMetrics creates the metrics registry and, when enabled, starts the
// Prometheus endpoint in the background.
func setupMetrics(cfg *config.Config) (*metric.MetricsRegistry, *metric.Server) {
	metricsRegistry := metric.NewMetricsRegistry()
	if !cfg.Metrics.Enabled {
		return metricsRegistry, nil
	}

	metricsServer := metric.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, metricsRegistry)
	go func() {
		if err := metricsServer.Start(); err != nil {
			slog.Error("Metrics server failed", "error", err)
		}
	}()
	slog.Info("Metrics endpoint enabled", "address", metricsServer.Address())

	return metricsRegistry, metricsServer
}

// assembleBridge wires the state engine, orchestrator, and transport
// together around the shared bridge.
func assembleBridge(
	cfg *config.Config,
	logger *slog.Logger,
	metricsRegistry *metric.MetricsRegistry,
	policy *security.Policy,
) *bridge {
	if logger == nil {
		logger = slog.Default()
	}
	core := metricsRegistry.CoreMetrics()

	b := &bridge{
		policy:      policy,
		storagePath: cfg.Sync.StoragePath,
		logger:      logger.With("component", "bridge"),
	}

	b.engine = statesync.NewEngine(cfg.Sync, logger, core,
		statesync.WithNotify(b.broadcastStateChange))

	b.orch = orchestrator.New(cfg.Orchestrator, logger, core,
		orchestrator.WithCommandOutput(b.broadcastCommand),
		orchestrator.WithStatusOutput(b.broadcastStatus))

	b.server = websocket.NewServer(cfg.Transport, logger,
		websocket.WithHandler(b.handleFrame),
		websocket.WithPolicy(policy))

	return b
}

// startBridge brings the pieces up in dependency order: state engine
// first, then the orchestrator, then the transport that feeds them.
func startBridge(ctx context.Context, b *bridge) error {
	if err := b.engine.Initialize(); err != nil {
		return fmt.Errorf("initialize state engine: %w", err)
	}
	if err := b.orch.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize orchestrator: %w", err)
	}
	if err := b.server.Start(); err != nil {
		return fmt.Errorf("start websocket server: %w", err)
	}
	return nil
}

// runWithSignalHandling blocks until SIGINT/SIGTERM, then shuts the
// bridge down in reverse start order.
func runWithSignalHandling(ctx context.Context, cfg *config.Config, b *bridge, shutdownTimeout time.Duration) error {
	signalCtx, signalCancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	slog.Info("maxbridge started", "listen_addr", b.server.Addr())

	<-signalCtx.Done()
	slog.Info("Received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := shutdown(shutdownCtx, cfg, b); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	slog.Info("maxbridge shutdown complete")
	return nil
}

// shutdown stops the transport before the workers so no new frames
// arrive mid-drain, then persists the session when auto-persist is on.
func shutdown(ctx context.Context, cfg *config.Config, b *bridge) error {
	if err := b.server.Stop(ctx); err != nil {
		slog.Error("Error stopping websocket server", "error", err)
	}
	b.orch.Stop()

	if cfg.Sync.AutoPersist && cfg.Sync.StoragePath != "" {
		if _, err := b.engine.SaveState("shutdown", cfg.Sync.StoragePath); err != nil {
			slog.Warn("Final state save failed", "path", cfg.Sync.StoragePath, "error", err)
		}
	}
	b.engine.Stop()

	return ctx.Err()
}

// loadConfig loads configuration from the specified file path
func loadConfig(path string) (*config.Config, error) {
	loader := config.NewLoader()
	cfg, err := loader.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

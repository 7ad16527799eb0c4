// TripSmith orchestrator server — runs the saga workflow engine, the
// shared blackboard, the in-process stage participants, and the HTTP/WS
// API in one process.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/tripsmith/tripsmith/pkg/api"
	"github.com/tripsmith/tripsmith/pkg/blackboard"
	"github.com/tripsmith/tripsmith/pkg/config"
	"github.com/tripsmith/tripsmith/pkg/engine"
	"github.com/tripsmith/tripsmith/pkg/events"
	"github.com/tripsmith/tripsmith/pkg/slack"
	"github.com/tripsmith/tripsmith/pkg/stages"
	"github.com/tripsmith/tripsmith/pkg/supervisor"
	"github.com/tripsmith/tripsmith/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	// Parse command-line flags
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./config"),
		"Path to configuration directory")
	flag.Parse()

	// Load .env file from config directory
	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment",
			"path", envPath, "error", err)
	} else {
		slog.Info("Loaded environment", "path", envPath)
	}

	slog.Info("Starting TripSmith",
		"version", version.Full(),
		"config_dir", *configDir)

	ctx := context.Background()

	// 1. Initialize configuration
	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		slog.Error("Failed to initialize configuration", "error", err)
		os.Exit(1)
	}

	// 2. Event bus
	bus := events.NewBus()
	defer bus.Close()

	// 3. Blackboard with its TTL sweeper
	board, err := blackboard.New(cfg.Blackboard, bus)
	if err != nil {
		slog.Error("Failed to initialize blackboard", "error", err)
		os.Exit(1)
	}
	board.Start(ctx)
	defer board.Stop()
	slog.Info("Blackboard initialized", "sweep_interval", cfg.Blackboard.SweepInterval)

	// 4. Workflow engine
	eng := engine.NewEngine(cfg, bus, board)
	eng.Start(ctx)
	slog.Info("Workflow engine started",
		"max_concurrent_workflows", cfg.Engine.MaxConcurrentWorkflows,
		"default_template", cfg.DefaultTemplate)

	// 5. In-process stage participants
	var stageSet *stages.Set
	if cfg.Stages.Enabled {
		stageSet = stages.NewSet(cfg.Stages, board)
		stageSet.Attach(bus)
		slog.Info("Stage participants attached", "count", len(stageSet.Participants()))
	} else {
		slog.Warn("Stage participants disabled — external participants must serve stage topics")
	}

	// 6. SLA supervisor
	supervisorSvc := supervisor.NewService(cfg.Engine, eng)
	supervisorSvc.Start(ctx)

	// 7. WebSocket streaming: connection manager + bus forwarder
	connManager := events.NewConnectionManager(cfg.API.WSWriteTimeout)
	events.NewStreamForwarder(connManager).Attach(bus)

	// 8. Slack notifications (nil-safe when unconfigured)
	if cfg.Slack.Enabled {
		slackService := slack.NewService(slack.ServiceConfig{
			Token:        os.Getenv(cfg.Slack.TokenEnv),
			Channel:      cfg.Slack.Channel,
			DashboardURL: getEnv("DASHBOARD_URL", ""),
		})
		if slackService == nil {
			slog.Warn("Slack notifications enabled but token or channel missing; notifications disabled",
				"token_env", cfg.Slack.TokenEnv)
		}
		slack.NewNotifier(slackService).Attach(bus)
	}

	// 9. HTTP server (non-blocking)
	httpServer := api.NewServer(cfg, eng, board, connManager)
	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", cfg.API.ListenAddr)
		if err := httpServer.Start(cfg.API.ListenAddr); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			errCh <- err
		}
	}()

	slog.Info("TripSmith started successfully")

	// 10. Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	// 11. Graceful shutdown, reverse of startup: stop admitting work,
	// drain running sagas, then tear the rest down.
	httpShutdownCtx, httpCancel := context.WithTimeout(ctx, 5*time.Second)
	defer httpCancel()
	if err := httpServer.Shutdown(httpShutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	supervisorSvc.Stop()

	done := make(chan struct{})
	go func() {
		eng.Stop()
		close(done)
	}()
	select {
	case <-done:
		slog.Info("Workflow engine stopped gracefully")
	case <-time.After(cfg.Engine.GracefulShutdownTimeout):
		slog.Warn("Engine shutdown timeout exceeded — abandoning in-flight workflows")
	}

	if stageSet != nil {
		stageSet.Detach(bus)
	}

	slog.Info("Shutdown complete")
}

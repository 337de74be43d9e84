// Ragassistant is the document-aware chat daemon for the SiYuan editor.
//
// The editor plugin forwards document switches and chat turns to this
// process over a loopback HTTP API. The daemon assembles prompts from the
// active document, sends them to an Ollama backend and keeps a separate
// conversation history per document.
//
// Configuration is loaded from ~/.config/ragassistant/config.yaml (optional)
// and RAGASSISTANT_* environment variables. A .env file in the working
// directory is read first. See internal/config for details.
//
// Usage:
//
//	# Start the daemon with defaults
//	ragassistant
//
//	# Use a specific config file and port
//	RAGASSISTANT_SERVER_HTTP_PORT=9292 ragassistant -config /etc/ragassistant/config.yaml
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragassistant/internal/config"
	"github.com/fyrsmithlabs/ragassistant/internal/logging"
	"github.com/fyrsmithlabs/ragassistant/internal/telemetry"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml (default ~/.config/ragassistant/config.yaml)")
	flag.Parse()
	args := flag.Args()

	if len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  ragassistant           Start the assistant daemon\n")
			fmt.Fprintf(os.Stderr, "  ragassistant version   Show version information\n")
			os.Exit(1)
		}
	}

	// A missing .env is normal outside development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Warning: failed to load .env: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("Server error: %v", err)
	}
	log.Println("Server shutdown complete")
}

func printVersion() {
	fmt.Printf("ragassistant by Fyrsmith Labs\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run starts the daemon and blocks until ctx is cancelled.
//
// Startup order:
//  1. Load and validate configuration
//  2. Start telemetry, then the logger (which bridges into telemetry)
//  3. Build the service graph
//  4. Start the context worker and the HTTP server
//  5. On cancellation, stop the server, flush history and telemetry
func run(ctx context.Context, configPath string) error {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	tel, err := telemetry.New(ctx, telemetry.FromAppConfig(cfg, version))
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	logCfg, err := logging.FromAppConfig(cfg)
	if err != nil {
		return fmt.Errorf("invalid logging configuration: %w", err)
	}
	lg, err := logging.NewLogger(logCfg, tel.LoggerProvider())
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = lg.Sync()
	}()
	logger := lg.Underlying()
	dlog := lg.Named("daemon").With(zap.String("version", version))
	ctx = logging.WithLogger(ctx, dlog)

	for _, p := range tel.Problems() {
		dlog.Warn(ctx, "telemetry degraded", zap.Error(p))
	}

	dlog.Info(ctx, "Starting ragassistant",
		zap.String("addr", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)),
		zap.String("siyuan_url", cfg.SiYuan.BaseURL),
		logging.Secret("siyuan_token", cfg.SiYuan.Token),
		zap.String("storage", cfg.Storage.Provider),
		zap.String("settings", cfg.Settings.Provider),
		zap.Bool("telemetry", tel.Enabled()))

	app, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	defer app.Close()

	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		_ = app.chat.Run(ctx)
	}()

	// Pick up the persisted settings state before the first request.
	app.chat.CheckConfiguration(ctx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.server.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()

	if err := app.server.Shutdown(shutdownCtx); err != nil {
		dlog.Warn(ctx, "http server shutdown failed", zap.Error(err))
	}
	<-workerDone

	if err := tel.Shutdown(shutdownCtx); err != nil {
		dlog.Warn(ctx, "telemetry shutdown failed", zap.Error(err))
	}
	return nil
}

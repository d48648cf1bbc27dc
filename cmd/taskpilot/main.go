// Package main runs the TaskPilot server: observers connect over WebSocket,
// submit goals and watch the browser work.
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
	"time"

	"github.com/joho/godotenv"

	"github.com/entrhq/taskpilot/pkg/app"
	"github.com/entrhq/taskpilot/pkg/config"
	"github.com/entrhq/taskpilot/pkg/credentials"
	"github.com/entrhq/taskpilot/pkg/logging"
	"github.com/entrhq/taskpilot/pkg/metrics"
	"github.com/entrhq/taskpilot/pkg/server"
)

const (
	version         = "0.1.0"
	shutdownTimeout = 10 * time.Second
)

// CLIConfig holds command-line configuration
type CLIConfig struct {
	ConfigFile  string
	EnvFile     string
	Addr        string
	Headless    bool
	Verbosity   string
	ShowVersion bool
}

func main() {
	cli := parseFlags()

	if cli.ShowVersion {
		fmt.Printf("TaskPilot v%s\n", version)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cli); err != nil {
		log.Printf("TaskPilot failed: %v", err)
		os.Exit(1)
	}
}

func parseFlags() *CLIConfig {
	cli := &CLIConfig{}

	flag.StringVar(&cli.ConfigFile, "config", "", "Path to configuration file (YAML)")
	flag.StringVar(&cli.EnvFile, "env-file", ".env", "Path to a .env file (ignored if missing)")
	flag.StringVar(&cli.Addr, "addr", "", "Listen address (overrides config and TASKPILOT_ADDR)")
	flag.BoolVar(&cli.Headless, "headless", false, "Run the browser headless (overrides config)")
	flag.StringVar(&cli.Verbosity, "log-level", "", "Log level: debug, info, warn, error")
	flag.BoolVar(&cli.ShowVersion, "version", false, "Show version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "TaskPilot - browser automation agent server\n\n")
		fmt.Fprintf(os.Stderr, "Usage: taskpilot [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment:\n")
		fmt.Fprintf(os.Stderr, "  GROQ_API_KEY, GROQ_MODEL, PLANNER_BASE_URL, PLAYWRIGHT_HEADLESS, BROWSER_TIMEOUT,\n")
		fmt.Fprintf(os.Stderr, "  MAX_STEPS, WS_FRAME_INTERVAL_MS, USER_DATA_DIR, LOGIN_WAIT_MS, SLOW_MO_MS, TASKPILOT_ADDR\n")
	}

	flag.Parse()
	return cli
}

// loadConfig layers the config file, the environment and the flags.
func loadConfig(cli *CLIConfig) (*config.Config, error) {
	if err := godotenv.Load(cli.EnvFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", cli.EnvFile, err)
	}

	cfg, err := config.Load(cli.ConfigFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if cli.Addr != "" {
		cfg.Server.Addr = cli.Addr
	}
	if cli.Headless {
		cfg.Browser.Headless = true
	}
	if cli.Verbosity != "" {
		cfg.Logging.Verbosity = cli.Verbosity
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func run(ctx context.Context, cli *CLIConfig) error {
	cfg, err := loadConfig(cli)
	if err != nil {
		return err
	}

	if cfg.Logging.Dir != "" {
		logging.SetDirectory(cfg.Logging.Dir)
	}
	logger, err := logging.NewLogger("taskpilot")
	if err != nil {
		log.Printf("Warning: %v", err)
	}
	defer logger.Close()
	logger.SetLevel(logging.ParseLevel(cfg.Logging.Verbosity))

	m := metrics.New()
	hub := server.NewHub(logger.Named("hub"), m)
	creds := credentials.NewSynchronizer(cfg.Run.CredentialTimeout, hub.Publish, logger.Named("credentials"))

	runner, err := app.NewRunner(app.Deps{
		Config:      cfg,
		Emit:        hub.Publish,
		Logger:      logger,
		Metrics:     m,
		Credentials: creds,
	})
	if err != nil {
		return err
	}

	srv := server.New(hub, runner, creds, cfg.ServerOptions(), logger.Named("server"), m)
	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Infof("Serving on %s", cfg.Server.Addr)
		log.Printf("TaskPilot listening on http://%s (log: %s)", cfg.Server.Addr, logger.LogPath())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Println("Shutting down gracefully...")
	srv.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}

	// Let an in-flight run tear its browser down.
	done := make(chan struct{})
	go func() {
		runner.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		logger.Warnf("Run did not finish before shutdown deadline")
	}
	return nil
}

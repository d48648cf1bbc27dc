// Package main runs one TaskPilot goal to completion and prints its events
// to the terminal. Credential steps are answered from the environment.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/entrhq/taskpilot/pkg/app"
	"github.com/entrhq/taskpilot/pkg/config"
	"github.com/entrhq/taskpilot/pkg/logging"
	"github.com/entrhq/taskpilot/pkg/observer"
)

// CLIConfig holds command-line configuration
type CLIConfig struct {
	ConfigFile string
	EnvFile    string
	Goal       string
	Headless   bool
	Timeout    time.Duration
	Verbose    bool
}

func main() {
	cli := parseFlags()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cli); err != nil {
		log.Printf("Execution failed: %v", err)
		os.Exit(1)
	}
}

func parseFlags() *CLIConfig {
	cli := &CLIConfig{}

	flag.StringVar(&cli.ConfigFile, "config", "", "Path to configuration file (YAML)")
	flag.StringVar(&cli.EnvFile, "env-file", ".env", "Path to a .env file (ignored if missing)")
	flag.StringVar(&cli.Goal, "goal", "", "Goal to run (defaults to the remaining arguments)")
	flag.BoolVar(&cli.Headless, "headless", false, "Run the browser headless (overrides config)")
	flag.DurationVar(&cli.Timeout, "timeout", 10*time.Minute, "Run timeout")
	flag.BoolVar(&cli.Verbose, "verbose", false, "Print frame events")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "TaskPilot Headless - run one goal from the terminal\n\n")
		fmt.Fprintf(os.Stderr, "Usage: taskpilot-headless [options] <goal>\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  taskpilot-headless \"search for python tutorials on youtube\"\n")
		fmt.Fprintf(os.Stderr, "  taskpilot-headless -headless \"compare running shoes under 2000 on amazon and flipkart\"\n\n")
		fmt.Fprintf(os.Stderr, "Credential steps read TASKPILOT_USERNAME, TASKPILOT_EMAIL and TASKPILOT_PASSWORD.\n")
	}

	flag.Parse()
	if cli.Goal == "" {
		cli.Goal = strings.Join(flag.Args(), " ")
	}
	return cli
}

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
	if cli.Headless {
		cfg.Browser.Headless = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func run(ctx context.Context, cli *CLIConfig) error {
	goal := strings.TrimSpace(cli.Goal)
	if goal == "" {
		flag.Usage()
		return fmt.Errorf("a goal is required")
	}

	cfg, err := loadConfig(cli)
	if err != nil {
		return err
	}

	if cfg.Logging.Dir != "" {
		logging.SetDirectory(cfg.Logging.Dir)
	}
	logger, err := logging.NewLogger("taskpilot-headless")
	if err != nil {
		log.Printf("Warning: %v", err)
	}
	defer logger.Close()
	logger.SetLevel(logging.ParseLevel(cfg.Logging.Verbosity))

	console := observer.NewConsole(os.Stdout, cli.Verbose)
	runner, err := app.NewRunner(app.Deps{
		Config:      cfg,
		Emit:        console.Emit,
		Logger:      logger,
		Credentials: newEnvCredentials(os.Getenv, logger.Named("credentials")),
	})
	if err != nil {
		return err
	}

	if cli.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cli.Timeout)
		defer cancel()
	}
	return runner.Run(ctx, goal)
}

// Package config loads TaskPilot settings from a YAML file and the
// environment, and hands each component its own options struct.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"

	"github.com/entrhq/taskpilot/pkg/agent"
	"github.com/entrhq/taskpilot/pkg/browser"
	"github.com/entrhq/taskpilot/pkg/compare"
	"github.com/entrhq/taskpilot/pkg/planner"
	"github.com/entrhq/taskpilot/pkg/server"
)

// Config is the full process configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Planner PlannerConfig `yaml:"planner"`
	Browser BrowserConfig `yaml:"browser"`
	Run     RunConfig     `yaml:"run"`
	Safety  SafetyConfig  `yaml:"safety"`
	Compare CompareConfig `yaml:"compare"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig configures the observer transport.
type ServerConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`

	// CommandsPerSecond and CommandBurst bound START_TASK per connection.
	CommandsPerSecond float64 `yaml:"commands_per_second"`
	CommandBurst      int     `yaml:"command_burst"`
}

// PlannerConfig configures the LLM planner.
type PlannerConfig struct {
	APIKey      string        `yaml:"api_key"`
	BaseURL     string        `yaml:"base_url"`
	Model       string        `yaml:"model"`
	Temperature float64       `yaml:"temperature"`
	MaxSteps    int           `yaml:"max_steps"`
	Timeout     time.Duration `yaml:"timeout"`
}

// BrowserConfig configures browser sessions.
type BrowserConfig struct {
	Headless       bool          `yaml:"headless"`
	Timeout        time.Duration `yaml:"timeout"`
	ProbeTimeout   time.Duration `yaml:"probe_timeout"`
	SlowMo         time.Duration `yaml:"slow_mo"`
	UserDataDir    string        `yaml:"user_data_dir"`
	Highlight      bool          `yaml:"highlight"`
	HighlightPause time.Duration `yaml:"highlight_pause"`
}

// RunConfig configures single-session runs.
type RunConfig struct {
	FrameInterval     time.Duration `yaml:"frame_interval"`
	LoginWait         time.Duration `yaml:"login_wait"`
	CredentialTimeout time.Duration `yaml:"credential_timeout"`
}

// SafetyConfig configures the safety gate. Empty DenyTerms means the
// built-in list.
type SafetyConfig struct {
	DenyTerms []string `yaml:"deny_terms"`
}

// TargetConfig is one comparison target.
type TargetConfig struct {
	ID        string `yaml:"id"`
	Name      string `yaml:"name"`
	SearchURL string `yaml:"search_url"`
}

// CompareConfig configures multi-target comparison runs. Empty Targets
// means the built-in targets.
type CompareConfig struct {
	Targets       []TargetConfig `yaml:"targets"`
	SettleDelay   time.Duration  `yaml:"settle_delay"`
	BranchTimeout time.Duration  `yaml:"branch_timeout"`
	MaxCards      int            `yaml:"max_cards"`
	TopItems      int            `yaml:"top_items"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	// Verbosity is one of debug, info, warn, error.
	Verbosity string `yaml:"verbosity"`

	// Dir overrides the log directory.
	Dir string `yaml:"dir"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() *Config {
	p := planner.DefaultOptions()
	b := browser.DefaultOptions()
	c := compare.DefaultOptions()
	s := server.DefaultOptions()

	return &Config{
		Server: ServerConfig{
			Addr:              "127.0.0.1:8000",
			AllowedOrigins:    s.AllowedOrigins,
			CommandsPerSecond: float64(s.CommandRate),
			CommandBurst:      s.CommandBurst,
		},
		Planner: PlannerConfig{
			BaseURL:     p.BaseURL,
			Model:       p.Model,
			Temperature: p.Temperature,
			MaxSteps:    p.MaxSteps,
			Timeout:     p.Timeout,
		},
		Browser: BrowserConfig{
			Headless:       b.Headless,
			Timeout:        b.Timeout,
			ProbeTimeout:   b.ProbeTimeout,
			SlowMo:         b.SlowMo,
			UserDataDir:    b.UserDataDir,
			Highlight:      b.Highlight,
			HighlightPause: b.HighlightPause,
		},
		Run: RunConfig{
			FrameInterval:     agent.DefaultFrameInterval,
			LoginWait:         agent.DefaultLoginWait,
			CredentialTimeout: 5 * time.Minute,
		},
		Compare: CompareConfig{
			SettleDelay:   c.SettleDelay,
			BranchTimeout: c.BranchTimeout,
			MaxCards:      c.MaxCards,
			TopItems:      c.TopItems,
		},
		Logging: LoggingConfig{Verbosity: "info"},
	}
}

// Load reads the YAML file at path over the defaults. An empty path returns
// the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides settings from environment variables read through
// getenv. Unparseable values are reported and leave the setting unchanged.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	var errs []string
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	integer := func(key string, dst *int) {
		v := strings.TrimSpace(getenv(key))
		if v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %q is not an integer", key, v))
			return
		}
		*dst = n
	}
	millis := func(key string, dst *time.Duration) {
		n := -1
		integer(key, &n)
		if n >= 0 {
			*dst = time.Duration(n) * time.Millisecond
		}
	}

	str("TASKPILOT_ADDR", &c.Server.Addr)
	str("GROQ_API_KEY", &c.Planner.APIKey)
	str("GROQ_MODEL", &c.Planner.Model)
	str("PLANNER_BASE_URL", &c.Planner.BaseURL)
	integer("MAX_STEPS", &c.Planner.MaxSteps)
	millis("BROWSER_TIMEOUT", &c.Browser.Timeout)
	millis("SLOW_MO_MS", &c.Browser.SlowMo)
	str("USER_DATA_DIR", &c.Browser.UserDataDir)
	millis("WS_FRAME_INTERVAL_MS", &c.Run.FrameInterval)
	millis("LOGIN_WAIT_MS", &c.Run.LoginWait)
	str("TASKPILOT_LOG_LEVEL", &c.Logging.Verbosity)

	if v := strings.TrimSpace(getenv("PLAYWRIGHT_HEADLESS")); v != "" {
		c.Browser.Headless = truthy(v)
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid environment: %s", strings.Join(errs, "; "))
	}
	return nil
}

func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.Addr) == "" {
		return fmt.Errorf("server address is required")
	}
	if c.Planner.MaxSteps <= 0 {
		return fmt.Errorf("max_steps must be positive")
	}
	if c.Browser.Timeout <= 0 {
		return fmt.Errorf("browser timeout must be positive")
	}
	if c.Browser.ProbeTimeout <= 0 {
		return fmt.Errorf("probe timeout must be positive")
	}
	if c.Run.FrameInterval <= 0 {
		return fmt.Errorf("frame interval must be positive")
	}
	if c.Run.LoginWait < 0 || c.Browser.SlowMo < 0 || c.Compare.BranchTimeout < 0 {
		return fmt.Errorf("durations cannot be negative")
	}
	if c.Compare.MaxCards <= 0 || c.Compare.MaxCards > compare.MaxCardsLimit {
		return fmt.Errorf("compare max_cards must be between 1 and %d", compare.MaxCardsLimit)
	}
	if c.Compare.TopItems <= 0 || c.Compare.TopItems > compare.TopItemsLimit {
		return fmt.Errorf("compare top_items must be between 1 and %d", compare.TopItemsLimit)
	}
	if c.Server.CommandsPerSecond < 0 || c.Server.CommandBurst < 0 {
		return fmt.Errorf("command rate limit cannot be negative")
	}
	if _, err := c.CompareTargets(); err != nil {
		return err
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Verbosity)] {
		return fmt.Errorf("invalid logging verbosity: %s (must be 'debug', 'info', 'warn', or 'error')", c.Logging.Verbosity)
	}
	return nil
}

// BrowserOptions returns the driver options. The probe timeout never exceeds
// the operation timeout.
func (c *Config) BrowserOptions() browser.Options {
	opts := browser.DefaultOptions()
	opts.Timeout = c.Browser.Timeout
	opts.ProbeTimeout = min(c.Browser.ProbeTimeout, c.Browser.Timeout)
	opts.Headless = c.Browser.Headless
	opts.SlowMo = c.Browser.SlowMo
	opts.UserDataDir = c.Browser.UserDataDir
	opts.Highlight = c.Browser.Highlight
	opts.HighlightPause = c.Browser.HighlightPause
	return opts
}

// PlannerOptions returns the planner options.
func (c *Config) PlannerOptions() planner.Options {
	return planner.Options{
		APIKey:      c.Planner.APIKey,
		BaseURL:     c.Planner.BaseURL,
		Model:       c.Planner.Model,
		Temperature: c.Planner.Temperature,
		MaxSteps:    c.Planner.MaxSteps,
		Timeout:     c.Planner.Timeout,
	}
}

// CompareOptions returns the orchestrator options.
func (c *Config) CompareOptions() compare.Options {
	return compare.Options{
		SettleDelay:   c.Compare.SettleDelay,
		BranchTimeout: c.Compare.BranchTimeout,
		MaxCards:      c.Compare.MaxCards,
		TopItems:      c.Compare.TopItems,
	}
}

// CompareTargets builds the configured targets in order.
func (c *Config) CompareTargets() ([]compare.Target, error) {
	if len(c.Compare.Targets) == 0 {
		return compare.DefaultTargets(), nil
	}
	targets := make([]compare.Target, 0, len(c.Compare.Targets))
	seen := make(map[string]bool)
	for _, tc := range c.Compare.Targets {
		if seen[tc.ID] {
			return nil, fmt.Errorf("duplicate compare target %q", tc.ID)
		}
		seen[tc.ID] = true
		t, err := compare.NewTarget(tc.ID, tc.Name, tc.SearchURL)
		if err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}
	return targets, nil
}

// ServerOptions returns the transport options.
func (c *Config) ServerOptions() server.Options {
	return server.Options{
		AllowedOrigins: c.Server.AllowedOrigins,
		CommandRate:    rate.Limit(c.Server.CommandsPerSecond),
		CommandBurst:   c.Server.CommandBurst,
	}
}

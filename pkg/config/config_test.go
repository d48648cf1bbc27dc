package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func envFrom(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "llama-3.1-8b-instant", cfg.Planner.Model)
	assert.Equal(t, 20, cfg.Planner.MaxSteps)
	assert.Equal(t, 30*time.Second, cfg.Browser.Timeout)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, "user-data", cfg.Browser.UserDataDir)
	assert.Equal(t, 500*time.Millisecond, cfg.Run.FrameInterval)
	assert.Equal(t, 60*time.Second, cfg.Run.LoginWait)
	assert.Equal(t, []string{"http://localhost:5173", "http://127.0.0.1:5173"}, cfg.Server.AllowedOrigins)

	targets, err := cfg.CompareTargets()
	require.NoError(t, err)
	require.Len(t, targets, 3)
	assert.Equal(t, "amazon", targets[0].ID)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taskpilot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: 0.0.0.0:9000
browser:
  headless: true
  timeout: 10s
run:
  login_wait: 0s
safety:
  deny_terms: [checkout]
compare:
  targets:
    - id: flipkart
      search_url: https://www.flipkart.com/search?q={query}
`), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "0.0.0.0:9000", cfg.Server.Addr)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 10*time.Second, cfg.Browser.Timeout)
	assert.Equal(t, time.Duration(0), cfg.Run.LoginWait)
	assert.Equal(t, []string{"checkout"}, cfg.Safety.DenyTerms)
	// Unset keys keep their defaults.
	assert.Equal(t, 20, cfg.Planner.MaxSteps)

	targets, err := cfg.CompareTargets()
	require.NoError(t, err)
	require.Len(t, targets, 1)
	assert.Equal(t, "flipkart", targets[0].Name)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [oops"), 0600))
	_, err = Load(path)
	assert.Error(t, err)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestApplyEnv(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.ApplyEnv(envFrom(map[string]string{
		"GROQ_API_KEY":         "gsk_test",
		"GROQ_MODEL":           "llama-3.3-70b",
		"PLAYWRIGHT_HEADLESS":  "Yes",
		"BROWSER_TIMEOUT":      "15000",
		"MAX_STEPS":            "5",
		"WS_FRAME_INTERVAL_MS": "250",
		"USER_DATA_DIR":        "/tmp/profile",
		"LOGIN_WAIT_MS":        "0",
		"SLOW_MO_MS":           "100",
		"TASKPILOT_ADDR":       ":8080",
	}))
	require.NoError(t, err)

	assert.Equal(t, "gsk_test", cfg.Planner.APIKey)
	assert.Equal(t, "llama-3.3-70b", cfg.Planner.Model)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 15*time.Second, cfg.Browser.Timeout)
	assert.Equal(t, 5, cfg.Planner.MaxSteps)
	assert.Equal(t, 250*time.Millisecond, cfg.Run.FrameInterval)
	assert.Equal(t, "/tmp/profile", cfg.Browser.UserDataDir)
	assert.Equal(t, time.Duration(0), cfg.Run.LoginWait)
	assert.Equal(t, 100*time.Millisecond, cfg.Browser.SlowMo)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestApplyEnv_HeadlessFalsy(t *testing.T) {
	for _, v := range []string{"0", "false", "no", "off", "maybe"} {
		cfg := DefaultConfig()
		cfg.Browser.Headless = true
		require.NoError(t, cfg.ApplyEnv(envFrom(map[string]string{"PLAYWRIGHT_HEADLESS": v})))
		assert.False(t, cfg.Browser.Headless, v)
	}
}

func TestApplyEnv_InvalidNumber(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.ApplyEnv(envFrom(map[string]string{"MAX_STEPS": "many"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MAX_STEPS")
	assert.Equal(t, 20, cfg.Planner.MaxSteps)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty addr", func(c *Config) { c.Server.Addr = "" }},
		{"zero max steps", func(c *Config) { c.Planner.MaxSteps = 0 }},
		{"zero timeout", func(c *Config) { c.Browser.Timeout = 0 }},
		{"zero frame interval", func(c *Config) { c.Run.FrameInterval = 0 }},
		{"negative login wait", func(c *Config) { c.Run.LoginWait = -time.Second }},
		{"bad verbosity", func(c *Config) { c.Logging.Verbosity = "loud" }},
		{"zero top items", func(c *Config) { c.Compare.TopItems = 0 }},
		{"top items above limit", func(c *Config) { c.Compare.TopItems = 8 }},
		{"max cards above limit", func(c *Config) { c.Compare.MaxCards = 50 }},
		{"unknown target", func(c *Config) {
			c.Compare.Targets = []TargetConfig{{ID: "ebay", SearchURL: "https://ebay.com/?q={query}"}}
		}},
		{"duplicate target", func(c *Config) {
			c.Compare.Targets = []TargetConfig{
				{ID: "amazon", SearchURL: "https://a/?k={query}"},
				{ID: "amazon", SearchURL: "https://a/?k={query}"},
			}
		}},
		{"target without placeholder", func(c *Config) {
			c.Compare.Targets = []TargetConfig{{ID: "amazon", SearchURL: "https://a/"}}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestComponentOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Browser.Timeout = time.Second
	cfg.Browser.Headless = true
	cfg.Server.CommandsPerSecond = 2

	b := cfg.BrowserOptions()
	assert.True(t, b.Headless)
	assert.Equal(t, time.Second, b.Timeout)
	assert.Equal(t, time.Second, b.ProbeTimeout)

	p := cfg.PlannerOptions()
	assert.Equal(t, cfg.Planner.Model, p.Model)
	assert.Equal(t, 20, p.MaxSteps)

	s := cfg.ServerOptions()
	assert.Equal(t, rate.Limit(2), s.CommandRate)

	c := cfg.CompareOptions()
	assert.Equal(t, 3, c.TopItems)
}

package browser

import (
	"github.com/entrhq/taskpilot/pkg/logging"
	"github.com/entrhq/taskpilot/pkg/safety"
)

// Factory creates Playwright-backed drivers sharing one options set, one
// safety gate and a once-per-process browser installation.
type Factory struct {
	opts      Options
	gate      *safety.Gate
	logger    *logging.Logger
	installer *installer
}

// NewFactory creates a driver factory.
func NewFactory(opts Options, gate *safety.Gate, logger *logging.Logger) *Factory {
	return &Factory{
		opts:      opts,
		gate:      gate,
		logger:    logger,
		installer: &installer{},
	}
}

// NewPersistent returns a driver on the durable profile directory.
func (f *Factory) NewPersistent() *Driver {
	return NewDriver(f.launcher(true), f.gate, f.opts, f.logger.Named("browser"))
}

// NewEphemeral returns a driver on a fresh, isolated browser.
func (f *Factory) NewEphemeral() *Driver {
	return NewDriver(f.launcher(false), f.gate, f.opts, f.logger.Named("browser.ephemeral"))
}

func (f *Factory) launcher(persistent bool) *PlaywrightLauncher {
	return &PlaywrightLauncher{
		Persistent:  persistent,
		UserDataDir: f.opts.UserDataDir,
		Headless:    f.opts.Headless,
		SlowMo:      f.opts.SlowMo,
		Timeout:     f.opts.Timeout,
		installer:   f.installer,
	}
}

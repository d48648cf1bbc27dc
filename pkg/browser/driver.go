package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/entrhq/taskpilot/pkg/logging"
	"github.com/entrhq/taskpilot/pkg/safety"
	"github.com/entrhq/taskpilot/pkg/types"
)

// Default timings.
const (
	DefaultTimeout        = 30 * time.Second
	DefaultProbeTimeout   = 1500 * time.Millisecond
	DefaultSearchPause    = 400 * time.Millisecond
	DefaultHighlightPause = 500 * time.Millisecond
	DefaultUserDataDir    = "user-data"
)

// Options configures drivers and their launchers.
type Options struct {
	// Timeout bounds every page operation.
	Timeout time.Duration

	// ProbeTimeout bounds each fallback visibility probe.
	ProbeTimeout time.Duration

	// SearchPause separates clicking a search button from using the input it
	// reveals.
	SearchPause time.Duration

	// Highlight outlines targeted elements before acting on them, then pauses
	// for HighlightPause so observers can see it.
	Highlight      bool
	HighlightPause time.Duration

	Headless    bool
	SlowMo      time.Duration
	UserDataDir string
}

// DefaultOptions returns the default driver options.
func DefaultOptions() Options {
	return Options{
		Timeout:        DefaultTimeout,
		ProbeTimeout:   DefaultProbeTimeout,
		SearchPause:    DefaultSearchPause,
		Highlight:      true,
		HighlightPause: DefaultHighlightPause,
		UserDataDir:    DefaultUserDataDir,
	}
}

// Driver serializes all operations against one browser session on a
// dedicated worker goroutine. A Driver is used for one session: Start, any
// number of operations, then Stop.
type Driver struct {
	launcher Launcher
	gate     *safety.Gate
	opts     Options
	logger   *logging.Logger

	jobs   chan func()
	quit   chan struct{}
	exited chan struct{}

	startOnce sync.Once
	stopOnce  sync.Once

	// handle is only touched on the worker.
	handle *Handle
}

// NewDriver creates a driver that acquires its session from launcher. A nil
// gate allows every action.
func NewDriver(launcher Launcher, gate *safety.Gate, opts Options, logger *logging.Logger) *Driver {
	return &Driver{
		launcher: launcher,
		gate:     gate,
		opts:     opts,
		logger:   logger,
		jobs:     make(chan func()),
		quit:     make(chan struct{}),
		exited:   make(chan struct{}),
	}
}

func (d *Driver) loop() {
	defer close(d.exited)
	for {
		select {
		case job := <-d.jobs:
			job()
		case <-d.quit:
			return
		}
	}
}

// do runs fn on the worker and waits for its result. If ctx ends first the
// job still runs to completion but its result is discarded.
func (d *Driver) do(ctx context.Context, fn func() error) error {
	result := make(chan error, 1)
	job := func() { result <- fn() }

	select {
	case d.jobs <- job:
	case <-d.exited:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// page returns the live page; it must be called on the worker.
func (d *Driver) page() (Page, error) {
	if d.handle == nil {
		return nil, ErrNotStarted
	}
	return d.handle.Page, nil
}

// Start acquires the session and applies the default operation timeout.
func (d *Driver) Start(ctx context.Context) error {
	d.startOnce.Do(func() { go d.loop() })

	return d.do(ctx, func() error {
		if d.handle != nil {
			return nil
		}
		handle, err := d.launcher.Launch()
		if err != nil {
			return fmt.Errorf("failed to start browser session: %w", err)
		}
		d.handle = handle
		d.logger.Debugf("Browser session started")
		return nil
	})
}

// Stop tears the session down in stage order and stops the worker. Stage
// failures are logged and never prevent later stages. Stop is idempotent.
func (d *Driver) Stop() {
	d.stopOnce.Do(func() {
		started := true
		d.startOnce.Do(func() { started = false })
		if !started {
			close(d.exited)
			return
		}

		_ = d.do(context.Background(), func() error {
			d.teardown()
			return nil
		})
		close(d.quit)
		<-d.exited
	})
}

func (d *Driver) teardown() {
	if d.handle == nil {
		return
	}
	for _, stage := range d.handle.Stages {
		if err := stage.Close(); err != nil {
			d.logger.Warnf("Failed to close %s: %v", stage.Name, err)
		}
	}
	d.handle = nil
	d.logger.Debugf("Browser session stopped")
}

// Screenshot captures the page as PNG. It is best-effort: any failure yields
// false.
func (d *Driver) Screenshot(ctx context.Context) ([]byte, bool) {
	var data []byte
	err := d.do(ctx, func() error {
		page, err := d.page()
		if err != nil {
			return err
		}
		data, err = page.Screenshot()
		return err
	})
	if err != nil {
		d.logger.Debugf("Screenshot skipped: %v", err)
		return nil, false
	}
	return data, len(data) > 0
}

// CurrentURL returns the page URL, or "" when unavailable.
func (d *Driver) CurrentURL(ctx context.Context) string {
	var url string
	_ = d.do(ctx, func() error {
		page, err := d.page()
		if err != nil {
			return err
		}
		url = page.URL()
		return nil
	})
	return url
}

// IsLoginPage reports whether the current URL looks like an authentication
// page.
func (d *Driver) IsLoginPage(ctx context.Context) bool {
	return IsLoginURL(d.CurrentURL(ctx))
}

// Content returns the page HTML.
func (d *Driver) Content(ctx context.Context) (string, error) {
	var html string
	err := d.do(ctx, func() error {
		page, err := d.page()
		if err != nil {
			return err
		}
		html, err = page.Content()
		return err
	})
	return html, err
}

// PerformAction normalizes the action's selector, checks it against the
// safety gate and dispatches it. Wait actions sleep on the caller's goroutine
// and leave the worker free.
func (d *Driver) PerformAction(ctx context.Context, action types.Action) error {
	if sel, ok := types.Selector(action); ok {
		action = types.WithSelector(action, NormalizeSelector(sel))
	}

	if d.gate != nil {
		if err := d.gate.Check(action); err != nil {
			return err
		}
	}

	if wait, ok := action.(types.Wait); ok {
		return sleep(ctx, wait.Duration)
	}

	return d.do(ctx, func() error {
		page, err := d.page()
		if err != nil {
			return err
		}
		return d.dispatch(page, action)
	})
}

func (d *Driver) dispatch(page Page, action types.Action) error {
	c := &chain{
		page:    page,
		timeout: d.opts.Timeout,
		probe:   d.opts.ProbeTimeout,
		pause:   d.opts.SearchPause,
	}

	switch a := action.(type) {
	case types.Navigate:
		return page.Goto(a.URL)

	case types.Click:
		if IsLoginSelector(a.Selector) {
			d.logger.Infof("Skipping login click %q; waiting for manual login instead", a.Selector)
			return nil
		}
		d.highlight(page, a.Selector)
		err := page.Click(CSS(a.Selector), d.opts.Timeout)
		if !IsTimeout(err) {
			return err
		}
		d.logger.Debugf("Click on %q timed out, trying fallbacks", a.Selector)
		return c.recoverClick(a.Selector, err)

	case types.TypeText:
		d.highlight(page, a.Selector)
		err := page.Fill(CSS(a.Selector), a.Text, d.opts.Timeout)
		if !IsTimeout(err) {
			return err
		}
		d.logger.Debugf("Fill on %q timed out, trying fallbacks", a.Selector)
		return c.recoverFill(a.Selector, a.Text, err)

	case types.Press:
		d.highlight(page, a.Selector)
		err := page.Press(CSS(a.Selector), a.Key, d.opts.Timeout)
		if !IsTimeout(err) {
			return err
		}
		d.logger.Debugf("Press on %q timed out, trying fallbacks", a.Selector)
		return c.recoverPress(a.Selector, a.Key, err)

	case types.Scroll:
		return page.Wheel(a.Amount)

	case types.Wait:
		page.Pause(a.Duration)
		return nil

	case types.Screenshot:
		_, err := page.Screenshot()
		return err

	default:
		return fmt.Errorf("unsupported action %T", action)
	}
}

// highlight is best-effort and never fails the step.
func (d *Driver) highlight(page Page, selector string) {
	if !d.opts.Highlight {
		return
	}
	if err := page.Highlight(selector); err != nil {
		d.logger.Debugf("Highlight of %q failed: %v", selector, err)
		return
	}
	if d.opts.HighlightPause > 0 {
		page.Pause(d.opts.HighlightPause)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

package browser

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
)

const highlightScript = `(selector) => {
	const el = document.querySelector(selector);
	if (el) {
		el.style.border = '3px solid red';
		el.style.backgroundColor = 'rgba(255, 255, 0, 0.3)';
		el.style.transition = 'all 0.3s';
		el.scrollIntoView({behavior: 'smooth', block: 'center'});
	}
}`

func ms(d time.Duration) *float64 {
	return playwright.Float(float64(d.Milliseconds()))
}

// playwrightPage adapts a playwright.Page to Page.
type playwrightPage struct {
	page playwright.Page
}

func (p *playwrightPage) locate(loc Locator) playwright.Locator {
	switch {
	case loc.Role != "":
		opts := playwright.PageGetByRoleOptions{}
		if loc.Name != "" {
			opts.Name = loc.Name
		}
		return p.page.GetByRole(playwright.AriaRole(loc.Role), opts).First()
	case loc.Text != "":
		return p.page.GetByText(loc.Text, playwright.PageGetByTextOptions{Exact: playwright.Bool(false)}).First()
	default:
		return p.page.Locator(loc.CSS).First()
	}
}

func (p *playwrightPage) Goto(url string) error {
	waitUntil := playwright.WaitUntilState("domcontentloaded")
	_, err := p.page.Goto(url, playwright.PageGotoOptions{WaitUntil: &waitUntil})
	return mapError("navigation", err)
}

func (p *playwrightPage) Click(loc Locator, timeout time.Duration) error {
	return mapError("click", p.locate(loc).Click(playwright.LocatorClickOptions{Timeout: ms(timeout)}))
}

func (p *playwrightPage) Fill(loc Locator, text string, timeout time.Duration) error {
	return mapError("fill", p.locate(loc).Fill(text, playwright.LocatorFillOptions{Timeout: ms(timeout)}))
}

func (p *playwrightPage) Press(loc Locator, key string, timeout time.Duration) error {
	return mapError("press", p.locate(loc).Press(key, playwright.LocatorPressOptions{Timeout: ms(timeout)}))
}

func (p *playwrightPage) IsVisible(loc Locator, timeout time.Duration) (bool, error) {
	visible, err := p.locate(loc).IsVisible(playwright.LocatorIsVisibleOptions{Timeout: ms(timeout)})
	return visible, mapError("visibility probe", err)
}

func (p *playwrightPage) Wheel(deltaY int) error {
	return mapError("scroll", p.page.Mouse().Wheel(0, float64(deltaY)))
}

func (p *playwrightPage) Pause(d time.Duration) {
	p.page.WaitForTimeout(float64(d.Milliseconds()))
}

func (p *playwrightPage) Screenshot() ([]byte, error) {
	format := playwright.ScreenshotType("png")
	data, err := p.page.Screenshot(playwright.PageScreenshotOptions{Type: &format})
	return data, mapError("screenshot", err)
}

func (p *playwrightPage) Content() (string, error) {
	html, err := p.page.Content()
	return html, mapError("content", err)
}

func (p *playwrightPage) URL() string {
	return p.page.URL()
}

func (p *playwrightPage) Highlight(selector string) error {
	_, err := p.page.Evaluate(highlightScript, selector)
	return mapError("highlight", err)
}

// installer runs the Playwright driver and browser installation at most once
// per process.
type installer struct {
	once sync.Once
	err  error
}

func (i *installer) install() error {
	i.once.Do(func() {
		if err := playwright.Install(runOptions()); err != nil {
			i.err = fmt.Errorf("failed to install playwright: %w", err)
		}
	})
	return i.err
}

func runOptions() *playwright.RunOptions {
	return &playwright.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}
}

// PlaywrightLauncher launches Chromium sessions through playwright-go. Each
// launch runs its own engine, which is stopped as the last teardown stage.
type PlaywrightLauncher struct {
	Persistent  bool
	UserDataDir string
	Headless    bool
	SlowMo      time.Duration
	Timeout     time.Duration

	installer *installer
}

// Launch starts the engine, then either a persistent context on UserDataDir
// or a fresh browser with a new context, and returns the first page.
func (l *PlaywrightLauncher) Launch() (*Handle, error) {
	if l.installer != nil {
		if err := l.installer.install(); err != nil {
			return nil, err
		}
	}

	pw, err := playwright.Run(runOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}
	engine := Stage{Name: "engine", Close: pw.Stop}

	var (
		page   playwright.Page
		stages []Stage
	)
	if l.Persistent {
		page, stages, err = l.launchPersistent(pw)
	} else {
		page, stages, err = l.launchEphemeral(pw)
	}
	if err != nil {
		closeStages(append(stages, engine))
		return nil, err
	}

	page.SetDefaultTimeout(float64(l.Timeout.Milliseconds()))

	pageStage := Stage{Name: "page", Close: func() error { return page.Close() }}
	return &Handle{
		Page:   &playwrightPage{page: page},
		Stages: append(append([]Stage{pageStage}, stages...), engine),
	}, nil
}

func (l *PlaywrightLauncher) launchPersistent(pw *playwright.Playwright) (playwright.Page, []Stage, error) {
	dir, err := filepath.Abs(l.UserDataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve user data dir: %w", err)
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, nil, fmt.Errorf("failed to create user data dir: %w", err)
	}

	bctx, err := pw.Chromium.LaunchPersistentContext(dir, playwright.BrowserTypeLaunchPersistentContextOptions{
		Headless: playwright.Bool(l.Headless),
		SlowMo:   ms(l.SlowMo),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to launch persistent context: %w", err)
	}
	stages := []Stage{{Name: "context", Close: func() error { return bctx.Close() }}}

	if pages := bctx.Pages(); len(pages) > 0 {
		return pages[0], stages, nil
	}
	page, err := bctx.NewPage()
	if err != nil {
		return nil, stages, fmt.Errorf("failed to create page: %w", err)
	}
	return page, stages, nil
}

func (l *PlaywrightLauncher) launchEphemeral(pw *playwright.Playwright) (playwright.Page, []Stage, error) {
	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(l.Headless),
		SlowMo:   ms(l.SlowMo),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	browserStage := Stage{Name: "browser", Close: func() error { return browser.Close() }}

	bctx, err := browser.NewContext()
	if err != nil {
		return nil, []Stage{browserStage}, fmt.Errorf("failed to create context: %w", err)
	}
	stages := []Stage{{Name: "context", Close: func() error { return bctx.Close() }}, browserStage}

	page, err := bctx.NewPage()
	if err != nil {
		return nil, stages, fmt.Errorf("failed to create page: %w", err)
	}
	return page, stages, nil
}

// closeStages runs every stage in order, ignoring failures.
func closeStages(stages []Stage) {
	for _, s := range stages {
		_ = s.Close()
	}
}

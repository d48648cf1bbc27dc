package browser

import (
	"fmt"
	"time"
)

// Locator identifies an element. Exactly one strategy is set: CSS (any
// Playwright selector string), Text, or Role with an optional accessible Name.
// The first matching element is used.
type Locator struct {
	CSS  string
	Text string
	Role string
	Name string
}

// CSS returns a locator for a Playwright selector string.
func CSS(selector string) Locator { return Locator{CSS: selector} }

// ByText returns a locator matching elements that contain text.
func ByText(text string) Locator { return Locator{Text: text} }

// ByRole returns a locator matching an ARIA role, optionally by name.
func ByRole(role, name string) Locator { return Locator{Role: role, Name: name} }

func (l Locator) String() string {
	switch {
	case l.Role != "" && l.Name != "":
		return fmt.Sprintf("role=%s[name=%q]", l.Role, l.Name)
	case l.Role != "":
		return "role=" + l.Role
	case l.Text != "":
		return fmt.Sprintf("text~%q", l.Text)
	default:
		return l.CSS
	}
}

// Page is the subset of a browser page the driver needs. Implementations are
// not safe for concurrent use; the driver serializes every call.
type Page interface {
	Goto(url string) error
	Click(loc Locator, timeout time.Duration) error
	Fill(loc Locator, text string, timeout time.Duration) error
	Press(loc Locator, key string, timeout time.Duration) error
	IsVisible(loc Locator, timeout time.Duration) (bool, error)
	Wheel(deltaY int) error
	Pause(d time.Duration)
	Screenshot() ([]byte, error)
	Content() (string, error)
	URL() string
	Highlight(selector string) error
}

// Stage is one teardown step of a launched session.
type Stage struct {
	Name  string
	Close func() error
}

// Handle is a launched session: its page plus the teardown stages, ordered
// page first and engine last.
type Handle struct {
	Page   Page
	Stages []Stage
}

// Launcher acquires a new session. Launch is called on the driver's worker.
type Launcher interface {
	Launch() (*Handle, error)
}

// LauncherFunc adapts a function to the Launcher interface.
type LauncherFunc func() (*Handle, error)

// Launch calls f.
func (f LauncherFunc) Launch() (*Handle, error) { return f() }

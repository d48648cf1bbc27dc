// Package observer renders run events for a terminal.
package observer

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/entrhq/taskpilot/pkg/types"
)

// Console prints events as styled lines. It is safe for concurrent use and
// its Emit method satisfies types.EventEmitter.
type Console struct {
	mu      sync.Mutex
	w       io.Writer
	verbose bool
	frames  int
}

// NewConsole creates a console writing to w. Frame events are counted, and
// printed only when verbose is set.
func NewConsole(w io.Writer, verbose bool) *Console {
	return &Console{w: w, verbose: verbose}
}

// Frames returns how many frame events were received.
func (c *Console) Frames() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frames
}

// Emit prints one event.
func (c *Console) Emit(e *types.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch e.Type {
	case types.EventTypeRunStarted:
		c.header(e.Goal)
		for i, a := range e.Steps {
			c.line(mutedStyle, "  %d. %s", i+1, types.Describe(a))
		}
	case types.EventTypeStepStarted:
		c.line(stepStyle, "\n[%d] %s", e.Index+1, types.Describe(e.Action))
	case types.EventTypeStepCompleted:
		c.line(successStyle, "  ✓ done in %s", e.Duration.Round(time.Millisecond))
	case types.EventTypeStepFailed:
		c.line(errorStyle, "  ✗ %s", e.Error)
	case types.EventTypeRunCompleted:
		if e.Error != "" {
			c.line(errorStyle, "\n✗ Task failed: %s", e.Error)
		} else {
			c.line(successStyle, "\n✓ Task completed")
		}
	case types.EventTypeLog:
		c.log(e.Level, e.Message)
	case types.EventTypeFrame:
		c.frames++
		if c.verbose && e.Frame != nil {
			c.line(mutedStyle, "  → frame %d (%d bytes) %s", c.frames, len(e.Frame.Image), e.Frame.Source)
		}
	case types.EventTypeCredentialsRequired:
		c.line(warnStyle, "⚠ Credentials required: %s", fieldList(e.Fields))
	case types.EventTypeCompareResults:
		c.results(e.Compare)
	}
}

func (c *Console) header(goal string) {
	rule := strings.Repeat("=", 70)
	fmt.Fprintln(c.w, headerStyle.Render(rule))
	fmt.Fprintln(c.w, headerStyle.Render("  "+goal))
	fmt.Fprintln(c.w, headerStyle.Render(rule))
}

func (c *Console) log(level types.LogLevel, msg string) {
	switch level {
	case types.LogLevelError:
		c.line(errorStyle, "✗ Error: %s", msg)
	case types.LogLevelWarn:
		c.line(warnStyle, "⚠ Warning: %s", msg)
	default:
		c.line(infoStyle, "%s", msg)
	}
}

func (c *Console) results(r *types.CompareResults) {
	if r == nil {
		return
	}
	title := "Results for " + r.Query
	if r.MaxPrice != nil {
		title += fmt.Sprintf(" (under %.0f)", *r.MaxPrice)
	}
	c.line(headerStyle, "\n%s", title)

	for _, p := range r.Results {
		c.line(stepStyle, "\n▶ %s", p.Name)
		c.line(mutedStyle, "%s", strings.Repeat("─", 50))
		if p.Error != "" {
			c.line(errorStyle, "  ✗ %s", p.Error)
		}
		if len(p.Items) == 0 && p.Error == "" {
			c.line(mutedStyle, "  no matching items")
		}
		for _, item := range p.Items {
			price := "n/a"
			if item.Price != nil {
				price = fmt.Sprintf("%.2f", *item.Price)
			}
			fmt.Fprintf(c.w, "  %s  %s\n", priceStyle.Render(price), item.Title)
			if item.URL != "" {
				c.line(mutedStyle, "     %s", item.URL)
			}
		}
	}
}

func (c *Console) line(style lipgloss.Style, format string, args ...interface{}) {
	fmt.Fprintln(c.w, style.Render(fmt.Sprintf(format, args...)))
}

func fieldList(fields map[string]bool) string {
	var names []string
	for _, name := range []string{"username", "email", "password"} {
		if fields[name] {
			names = append(names, name)
		}
	}
	return strings.Join(names, ", ")
}

package browser

import (
	"strings"
	"time"
)

// Well-known search controls, in probe order.
var (
	searchInputs = []Locator{
		CSS("input[type='search']"),
		CSS("input[placeholder*='search' i]"),
		CSS("input[name*='search' i]"),
		CSS("input[id*='search' i]"),
		CSS("input[aria-label*='search' i]"),
		CSS("input[placeholder*='query' i]"),
		CSS("input[name*='query' i]"),
	}

	searchButtons = []Locator{
		CSS("button[aria-label*='search' i]"),
		CSS("button[title*='search' i]"),
		CSS("button[type='submit']"),
		CSS("button svg[aria-label*='search' i]"),
	}

	headingLinks = []Locator{
		CSS("a:has(h3)"),
		ByRole("link", ""),
		CSS("a[href]"),
	}
)

const headingLinkSelector = "a h3"

// textCandidates expands a text= selector into its locator cascade.
func textCandidates(selector string) []Locator {
	value := strings.TrimSpace(strings.Trim(strings.TrimSpace(strings.TrimPrefix(selector, "text=")), `"'`))
	safe := strings.ReplaceAll(value, "'", `\'`)
	return []Locator{
		ByText(value),
		ByRole("button", value),
		ByRole("link", value),
		CSS("a:has-text('" + safe + "')"),
		CSS("button:has-text('" + safe + "')"),
	}
}

// chain runs fallback strategies against one page. Every candidate is probed
// for visibility before it receives an action.
type chain struct {
	page    Page
	timeout time.Duration
	probe   time.Duration
	pause   time.Duration
}

func (c *chain) visible(loc Locator) bool {
	visible, err := c.page.IsVisible(loc, c.probe)
	return err == nil && visible
}

// each applies act to the visible candidates in order until one succeeds.
// Hidden candidates are skipped without an action attempt. A timeout moves on
// to the next candidate; any other error ends the chain.
func (c *chain) each(candidates []Locator, act func(Locator) error) (bool, error) {
	for _, loc := range candidates {
		if !c.visible(loc) {
			continue
		}
		err := act(loc)
		if err == nil {
			return true, nil
		}
		if !IsTimeout(err) {
			return true, err
		}
	}
	return false, nil
}

func (c *chain) click(loc Locator) error { return c.page.Click(loc, c.timeout) }

// resolve returns err unless a strategy recovered the step.
func resolve(done bool, err, original error) error {
	if done {
		return err
	}
	return original
}

func (c *chain) recoverClick(selector string, original error) error {
	trimmed := strings.TrimSpace(selector)

	if trimmed == headingLinkSelector {
		if done, err := c.each(headingLinks, c.click); done {
			return err
		}
	}
	if strings.HasPrefix(trimmed, "text=") {
		if done, err := c.each(textCandidates(trimmed), c.click); done {
			return err
		}
	}
	if !IsSearchSelector(selector) {
		return original
	}

	if done, err := c.each(searchButtons, c.click); done {
		return err
	}
	done, err := c.each(searchInputs, func(loc Locator) error {
		return c.page.Press(loc, "Enter", c.timeout)
	})
	return resolve(done, err, original)
}

func (c *chain) recoverFill(selector, text string, original error) error {
	if !IsSearchSelector(selector) {
		return original
	}
	fill := func(loc Locator) error { return c.page.Fill(loc, text, c.timeout) }

	if done, err := c.each(searchInputs, fill); done {
		return err
	}
	if done, err := c.each(searchButtons, c.click); !done || err != nil {
		return resolve(done, err, original)
	}
	c.page.Pause(c.pause)
	done, err := c.each(searchInputs, fill)
	return resolve(done, err, original)
}

func (c *chain) recoverPress(selector, key string, original error) error {
	if !IsSearchSelector(selector) {
		return original
	}
	press := func(loc Locator) error { return c.page.Press(loc, key, c.timeout) }

	if done, err := c.each(searchInputs, press); done {
		return err
	}
	if done, err := c.each(searchButtons, c.click); !done || err != nil {
		return resolve(done, err, original)
	}
	c.page.Pause(c.pause)
	done, err := c.each(searchInputs, press)
	return resolve(done, err, original)
}

package browser

import (
	"fmt"
	"strings"
)

// NormalizeSelector rewrites shorthand selector prefixes into canonical
// locator form:
//
//	aria-label=v  ->  [aria-label="v"]
//	name=v        ->  [name="v"]
//	id=v          ->  #v
//
// text= selectors and everything else are returned trimmed. The result is a
// fixed point: NormalizeSelector(NormalizeSelector(s)) == NormalizeSelector(s).
func NormalizeSelector(selector string) string {
	trimmed := strings.TrimSpace(selector)
	lowered := strings.ToLower(trimmed)

	switch {
	case strings.HasPrefix(lowered, "aria-label="):
		return fmt.Sprintf(`[aria-label="%s"]`, shorthandValue(trimmed))
	case strings.HasPrefix(lowered, "name="):
		return fmt.Sprintf(`[name="%s"]`, shorthandValue(trimmed))
	case strings.HasPrefix(lowered, "id="):
		return "#" + shorthandValue(trimmed)
	default:
		return trimmed
	}
}

// shorthandValue returns the unquoted value after the first '='.
func shorthandValue(s string) string {
	_, value, _ := strings.Cut(s, "=")
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(value), `"'`))
}

func containsAny(s string, subs ...string) bool {
	lowered := strings.ToLower(s)
	for _, sub := range subs {
		if strings.Contains(lowered, sub) {
			return true
		}
	}
	return false
}

// IsSearchSelector reports whether selector suggests a search box or button.
func IsSearchSelector(selector string) bool {
	return containsAny(selector, "search", "query", "submit")
}

// IsLoginSelector reports whether selector targets a login control.
func IsLoginSelector(selector string) bool {
	return containsAny(selector, "login", "sign in", "signin")
}

// IsLoginURL reports whether url looks like an authentication page.
func IsLoginURL(url string) bool {
	return containsAny(url, "accounts.google.com", "login", "signin")
}

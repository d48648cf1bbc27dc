// Package safety implements the deny-list gate that blocks transactional and
// enrollment actions before they reach a browser session.
package safety

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gobwas/glob"

	"github.com/entrhq/taskpilot/pkg/types"
)

// DefaultDenyTerms is the deny-list used when none is configured.
var DefaultDenyTerms = []string{
	"checkout",
	"payment",
	"pay",
	"enroll",
	"subscribe",
	"purchase",
	"buy",
}

// BlockedError reports an action refused by the gate. It is always fatal to
// the run.
type BlockedError struct {
	Term   string
	Action types.ActionKind
	Reason string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("blocked by safe mode: %s (matched %q)", e.Reason, e.Term)
}

// IsBlocked reports whether err is, or wraps, a *BlockedError.
func IsBlocked(err error) bool {
	var blocked *BlockedError
	return errors.As(err, &blocked)
}

type term struct {
	raw     string
	pattern glob.Glob
}

// Gate is a pure predicate over an action's text fields. It is safe for
// concurrent use.
type Gate struct {
	terms []term
}

// NewGate compiles terms into substring matchers. Each term may contain glob
// wildcards; it matches anywhere in the lower-cased action text. An empty list
// selects DefaultDenyTerms.
func NewGate(terms []string) (*Gate, error) {
	if len(terms) == 0 {
		terms = DefaultDenyTerms
	}

	g := &Gate{}
	for _, raw := range terms {
		t := strings.ToLower(strings.TrimSpace(raw))
		if t == "" {
			continue
		}
		pattern, err := glob.Compile("*" + t + "*")
		if err != nil {
			return nil, fmt.Errorf("invalid deny term '%s': %w", raw, err)
		}
		g.terms = append(g.terms, term{raw: t, pattern: pattern})
	}
	return g, nil
}

// MustNewGate is NewGate for fixed term lists; it panics on a bad pattern.
func MustNewGate(terms []string) *Gate {
	g, err := NewGate(terms)
	if err != nil {
		panic(err)
	}
	return g
}

// Match returns the first deny term found in text, if any.
func (g *Gate) Match(text string) (string, bool) {
	lowered := strings.ToLower(text)
	for _, t := range g.terms {
		if t.pattern.Match(lowered) {
			return t.raw, true
		}
	}
	return "", false
}

// Check returns a *BlockedError if any text field of a hits the deny-list.
func (g *Gate) Check(a types.Action) error {
	text := strings.Join(types.TextFields(a), " ")
	if matched, ok := g.Match(text); ok {
		return &BlockedError{
			Term:   matched,
			Action: a.Kind(),
			Reason: "login/payment/enrollment action detected",
		}
	}
	return nil
}

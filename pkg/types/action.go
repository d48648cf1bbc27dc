package types

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ActionKind is the wire tag of an action.
type ActionKind string

const (
	ActionNavigate   ActionKind = "navigate"   // ActionNavigate loads a URL in the page.
	ActionClick      ActionKind = "click"      // ActionClick clicks the element matching a selector.
	ActionType       ActionKind = "type"       // ActionType fills text into the element matching a selector.
	ActionPress      ActionKind = "press"      // ActionPress presses a key on the element matching a selector.
	ActionScroll     ActionKind = "scroll"     // ActionScroll scrolls the page vertically.
	ActionWait       ActionKind = "wait"       // ActionWait pauses for a fixed duration.
	ActionScreenshot ActionKind = "screenshot" // ActionScreenshot captures the page.
)

// Defaults applied when the planner omits optional fields.
const (
	DefaultPressKey     = "Enter"
	DefaultScrollAmount = 800
	DefaultWait         = time.Second
)

// Bounds on planner-supplied numbers.
const (
	MaxScrollAmount = 100000
	MaxWait         = 2 * time.Minute
)

// Action is one atomic browser operation. The set of implementations is
// closed: Navigate, Click, TypeText, Press, Scroll, Wait and Screenshot.
type Action interface {
	// Kind returns the wire tag of the action.
	Kind() ActionKind

	isAction()
}

// Navigate loads URL in the session's page.
type Navigate struct {
	URL string
}

// Click clicks the element matching Selector.
type Click struct {
	Selector string
}

// TypeText fills Text into the element matching Selector. An empty Text on a
// credential selector asks the observer for the value.
type TypeText struct {
	Selector string
	Text     string
}

// Press presses Key on the element matching Selector.
type Press struct {
	Selector string
	Key      string
}

// Scroll scrolls the page by Amount pixels.
type Scroll struct {
	Amount int
}

// Wait pauses for Duration.
type Wait struct {
	Duration time.Duration
}

// Screenshot captures the current page.
type Screenshot struct{}

func (Navigate) Kind() ActionKind   { return ActionNavigate }
func (Click) Kind() ActionKind      { return ActionClick }
func (TypeText) Kind() ActionKind   { return ActionType }
func (Press) Kind() ActionKind      { return ActionPress }
func (Scroll) Kind() ActionKind     { return ActionScroll }
func (Wait) Kind() ActionKind       { return ActionWait }
func (Screenshot) Kind() ActionKind { return ActionScreenshot }

func (Navigate) isAction()   {}
func (Click) isAction()      {}
func (TypeText) isAction()   {}
func (Press) isAction()      {}
func (Scroll) isAction()     {}
func (Wait) isAction()       {}
func (Screenshot) isAction() {}

// Selector returns the selector carried by a, if its kind has one.
func Selector(a Action) (string, bool) {
	switch v := a.(type) {
	case Click:
		return v.Selector, true
	case TypeText:
		return v.Selector, true
	case Press:
		return v.Selector, true
	default:
		return "", false
	}
}

// WithSelector returns a copy of a with its selector replaced. Actions without
// a selector are returned unchanged.
func WithSelector(a Action, selector string) Action {
	switch v := a.(type) {
	case Click:
		v.Selector = selector
		return v
	case TypeText:
		v.Selector = selector
		return v
	case Press:
		v.Selector = selector
		return v
	default:
		return a
	}
}

// TextFields returns the url, selector, text and key fields of a, in that
// order, skipping the ones its kind does not carry.
func TextFields(a Action) []string {
	switch v := a.(type) {
	case Navigate:
		return []string{v.URL}
	case Click:
		return []string{v.Selector}
	case TypeText:
		return []string{v.Selector, v.Text}
	case Press:
		return []string{v.Selector, v.Key}
	case Scroll, Wait, Screenshot:
		return nil
	default:
		panic(fmt.Sprintf("types: unknown action %T", a))
	}
}

// Describe returns a short human-readable label such as "click #submit".
func Describe(a Action) string {
	switch v := a.(type) {
	case Navigate:
		return "navigate " + v.URL
	case Click:
		return "click " + v.Selector
	case TypeText:
		return "type into " + v.Selector
	case Press:
		return fmt.Sprintf("press %s on %s", v.Key, v.Selector)
	case Scroll:
		return fmt.Sprintf("scroll %d", v.Amount)
	case Wait:
		return fmt.Sprintf("wait %s", v.Duration)
	case Screenshot:
		return "screenshot"
	default:
		return string(a.Kind())
	}
}

// wireAction is the JSON shape exchanged with the planner and observers.
type wireAction struct {
	Action   ActionKind `json:"action"`
	URL      *string    `json:"url,omitempty"`
	Selector *string    `json:"selector,omitempty"`
	Text     *string    `json:"text,omitempty"`
	Key      *string    `json:"key,omitempty"`
	Amount   *float64   `json:"amount,omitempty"`
	MS       *float64   `json:"ms,omitempty"`
}

func (a Navigate) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireAction{Action: ActionNavigate, URL: &a.URL})
}

func (a Click) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireAction{Action: ActionClick, Selector: &a.Selector})
}

func (a TypeText) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireAction{Action: ActionType, Selector: &a.Selector, Text: &a.Text})
}

func (a Press) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireAction{Action: ActionPress, Selector: &a.Selector, Key: &a.Key})
}

func (a Scroll) MarshalJSON() ([]byte, error) {
	amount := float64(a.Amount)
	return json.Marshal(wireAction{Action: ActionScroll, Amount: &amount})
}

func (a Wait) MarshalJSON() ([]byte, error) {
	ms := float64(a.Duration.Milliseconds())
	return json.Marshal(wireAction{Action: ActionWait, MS: &ms})
}

func (a Screenshot) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireAction{Action: ActionScreenshot})
}

// ValidationError reports a malformed action.
type ValidationError struct {
	Kind    ActionKind
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid %s action: %s: %s", e.Kind, e.Field, e.Message)
	}
	return fmt.Sprintf("invalid %s action: %s", e.Kind, e.Message)
}

// ParseAction decodes one untrusted action object. Unknown tags and missing
// required fields are rejected with a *ValidationError.
func ParseAction(data []byte) (Action, error) {
	var w wireAction
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, &ValidationError{Message: fmt.Sprintf("malformed json: %v", err)}
	}

	required := func(field string, v *string) (string, error) {
		if v == nil || strings.TrimSpace(*v) == "" {
			return "", &ValidationError{Kind: w.Action, Field: field, Message: "is required"}
		}
		return strings.TrimSpace(*v), nil
	}

	switch w.Action {
	case ActionNavigate:
		u, err := required("url", w.URL)
		if err != nil {
			return nil, err
		}
		return Navigate{URL: u}, nil

	case ActionClick:
		sel, err := required("selector", w.Selector)
		if err != nil {
			return nil, err
		}
		return Click{Selector: sel}, nil

	case ActionType:
		sel, err := required("selector", w.Selector)
		if err != nil {
			return nil, err
		}
		a := TypeText{Selector: sel}
		if w.Text != nil {
			a.Text = *w.Text
		}
		return a, nil

	case ActionPress:
		sel, err := required("selector", w.Selector)
		if err != nil {
			return nil, err
		}
		a := Press{Selector: sel, Key: DefaultPressKey}
		if w.Key != nil && strings.TrimSpace(*w.Key) != "" {
			a.Key = strings.TrimSpace(*w.Key)
		}
		return a, nil

	case ActionScroll:
		a := Scroll{Amount: DefaultScrollAmount}
		if w.Amount != nil {
			if *w.Amount > MaxScrollAmount || *w.Amount < -MaxScrollAmount {
				return nil, &ValidationError{Kind: ActionScroll, Field: "amount", Message: fmt.Sprintf("must be between -%d and %d", MaxScrollAmount, MaxScrollAmount)}
			}
			a.Amount = int(*w.Amount)
		}
		return a, nil

	case ActionWait:
		a := Wait{Duration: DefaultWait}
		if w.MS != nil {
			if *w.MS < 0 {
				return nil, &ValidationError{Kind: ActionWait, Field: "ms", Message: "must not be negative"}
			}
			if *w.MS > float64(MaxWait.Milliseconds()) {
				return nil, &ValidationError{Kind: ActionWait, Field: "ms", Message: fmt.Sprintf("must not exceed %d", MaxWait.Milliseconds())}
			}
			a.Duration = time.Duration(*w.MS) * time.Millisecond
		}
		return a, nil

	case ActionScreenshot:
		return Screenshot{}, nil

	case "":
		return nil, &ValidationError{Field: "action", Message: "is required"}

	default:
		return nil, &ValidationError{Kind: w.Action, Field: "action", Message: "unknown action"}
	}
}

// ParseActions decodes a batch of untrusted actions. Invalid entries are
// dropped individually and reported in the returned error slice; at most max
// actions are accepted (max <= 0 means no cap).
func ParseActions(raw []json.RawMessage, max int) ([]Action, []error) {
	actions := make([]Action, 0, len(raw))
	var errs []error
	for i, entry := range raw {
		if max > 0 && len(actions) >= max {
			break
		}
		a, err := ParseAction(entry)
		if err != nil {
			errs = append(errs, fmt.Errorf("step %d: %w", i, err))
			continue
		}
		actions = append(actions, a)
	}
	return actions, errs
}

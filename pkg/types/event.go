package types

import (
	"encoding/json"
	"time"
)

// EventType defines the type of event sent to observers. Values are the wire
// names understood by the web frontend.
type EventType string

const (
	EventTypeRunStarted          EventType = "TASK_STARTED"         // EventTypeRunStarted indicates a run has started with its planned actions.
	EventTypeStepStarted         EventType = "STEP_STARTED"         // EventTypeStepStarted indicates an action is about to be dispatched.
	EventTypeStepCompleted       EventType = "STEP_COMPLETED"       // EventTypeStepCompleted indicates an action succeeded.
	EventTypeStepFailed          EventType = "STEP_FAILED"          // EventTypeStepFailed indicates an action failed.
	EventTypeRunCompleted        EventType = "TASK_COMPLETED"       // EventTypeRunCompleted indicates a run has finished, with an optional error.
	EventTypeLog                 EventType = "LOG"                  // EventTypeLog carries a human-readable progress message.
	EventTypeFrame               EventType = "BROWSER_FRAME"        // EventTypeFrame carries a screenshot of a live session.
	EventTypeCredentialsRequired EventType = "CREDENTIALS_REQUIRED" // EventTypeCredentialsRequired asks the observer for credential values.
	EventTypeCompareResults      EventType = "PRICE_RESULTS"        // EventTypeCompareResults carries aggregated multi-target results.
)

// LogLevel is the severity of a log event.
type LogLevel string

const (
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// Frame is one captured image of a session.
type Frame struct {
	// Image is the encoded PNG.
	Image []byte

	// Source labels the producer (page URL or target name). Optional.
	Source string
}

// Event represents an event emitted to observers during a run.
type Event struct {
	// Type indicates the kind of event.
	Type EventType

	// Goal is the task goal (run events).
	Goal string

	// Steps are the planned actions (run started).
	Steps []Action

	// Index is the zero-based step index (step events).
	Index int

	// Action is a snapshot of the step's action (step events).
	Action Action

	// Duration is the elapsed time of the step (step terminal events).
	Duration time.Duration

	// Error is the failure message for failed steps and runs.
	Error string

	// Level and Message describe a log event.
	Level   LogLevel
	Message string

	// Frame is set for frame events.
	Frame *Frame

	// Fields lists the requested credential fields.
	Fields map[string]bool

	// Compare holds aggregated multi-target results.
	Compare *CompareResults

	// Timestamp is when the event was created.
	Timestamp time.Time
}

// EventEmitter is a function type for emitting events.
type EventEmitter func(event *Event)

// NewRunStartedEvent creates a run started event.
func NewRunStartedEvent(goal string, steps []Action) *Event {
	return &Event{Type: EventTypeRunStarted, Goal: goal, Steps: steps, Timestamp: time.Now()}
}

// NewRunCompletedEvent creates a run completed event. A nil err means success.
func NewRunCompletedEvent(goal string, err error) *Event {
	e := &Event{Type: EventTypeRunCompleted, Goal: goal, Timestamp: time.Now()}
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

// NewStepStartedEvent creates a step started event.
func NewStepStartedEvent(index int, action Action) *Event {
	return &Event{Type: EventTypeStepStarted, Index: index, Action: action, Timestamp: time.Now()}
}

// NewStepCompletedEvent creates a step completed event.
func NewStepCompletedEvent(index int, action Action, d time.Duration) *Event {
	return &Event{Type: EventTypeStepCompleted, Index: index, Action: action, Duration: d, Timestamp: time.Now()}
}

// NewStepFailedEvent creates a step failed event.
func NewStepFailedEvent(index int, action Action, d time.Duration, err error) *Event {
	e := &Event{Type: EventTypeStepFailed, Index: index, Action: action, Duration: d, Timestamp: time.Now()}
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

// NewLogEvent creates a log event.
func NewLogEvent(level LogLevel, message string) *Event {
	return &Event{Type: EventTypeLog, Level: level, Message: message, Timestamp: time.Now()}
}

// NewFrameEvent creates a frame event.
func NewFrameEvent(image []byte, source string) *Event {
	return &Event{Type: EventTypeFrame, Frame: &Frame{Image: image, Source: source}, Timestamp: time.Now()}
}

// NewCredentialsRequiredEvent creates a credential request event.
func NewCredentialsRequiredEvent(fields map[string]bool) *Event {
	return &Event{Type: EventTypeCredentialsRequired, Fields: fields, Timestamp: time.Now()}
}

// NewCompareResultsEvent creates an aggregated multi-target results event.
func NewCompareResultsEvent(results *CompareResults) *Event {
	return &Event{Type: EventTypeCompareResults, Compare: results, Timestamp: time.Now()}
}

// IsTerminalStep reports whether e closes a step.
func (e *Event) IsTerminalStep() bool {
	return e.Type == EventTypeStepCompleted || e.Type == EventTypeStepFailed
}

// MarshalJSON encodes the event in the flat wire format: a "type" key plus the
// payload fields of that type.
func (e *Event) MarshalJSON() ([]byte, error) {
	m := map[string]interface{}{"type": e.Type}

	switch e.Type {
	case EventTypeRunStarted:
		steps := e.Steps
		if steps == nil {
			steps = []Action{}
		}
		m["goal"] = e.Goal
		m["steps"] = steps
	case EventTypeRunCompleted:
		m["goal"] = e.Goal
		if e.Error != "" {
			m["error"] = e.Error
		}
	case EventTypeStepStarted:
		m["index"] = e.Index
		m["step"] = e.Action
	case EventTypeStepCompleted:
		m["index"] = e.Index
		m["step"] = e.Action
		m["duration_ms"] = e.Duration.Milliseconds()
	case EventTypeStepFailed:
		m["index"] = e.Index
		m["step"] = e.Action
		m["duration_ms"] = e.Duration.Milliseconds()
		m["error"] = e.Error
	case EventTypeLog:
		m["level"] = e.Level
		m["message"] = e.Message
	case EventTypeFrame:
		if e.Frame != nil {
			m["image"] = e.Frame.Image
			if e.Frame.Source != "" {
				m["source"] = e.Frame.Source
			}
		}
	case EventTypeCredentialsRequired:
		m["fields"] = e.Fields
	case EventTypeCompareResults:
		if e.Compare != nil {
			m["query"] = e.Compare.Query
			m["max_price"] = e.Compare.MaxPrice
			m["results"] = e.Compare.Results
		}
	}

	return json.Marshal(m)
}

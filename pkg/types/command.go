package types

import (
	"encoding/json"
	"fmt"
)

// CommandType defines the type of command sent by an observer.
type CommandType string

const (
	CommandTypeStartTask           CommandType = "START_TASK"           // CommandTypeStartTask asks for a new run of Goal.
	CommandTypeCredentialsProvided CommandType = "CREDENTIALS_PROVIDED" // CommandTypeCredentialsProvided answers an outstanding credential request.
)

// Command represents an inbound message from an observer.
type Command struct {
	// Type indicates the kind of command.
	Type CommandType `json:"type"`

	// Goal is the natural-language task for START_TASK.
	Goal string `json:"goal,omitempty"`

	// Data holds credential values keyed by field name for CREDENTIALS_PROVIDED.
	Data map[string]string `json:"data,omitempty"`
}

// NewStartTaskCommand creates a start task command.
func NewStartTaskCommand(goal string) *Command {
	return &Command{Type: CommandTypeStartTask, Goal: goal}
}

// NewCredentialsCommand creates a credentials provided command.
func NewCredentialsCommand(data map[string]string) *Command {
	return &Command{Type: CommandTypeCredentialsProvided, Data: data}
}

// IsStartTask returns true if this is a start task command.
func (c *Command) IsStartTask() bool {
	return c.Type == CommandTypeStartTask
}

// IsCredentials returns true if this is a credentials command.
func (c *Command) IsCredentials() bool {
	return c.Type == CommandTypeCredentialsProvided
}

// ParseCommand decodes an inbound message. Credential data that is not a
// string map leaves Data nil.
func ParseCommand(data []byte) (*Command, error) {
	var raw struct {
		Type CommandType     `json:"type"`
		Goal string          `json:"goal"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("malformed command: %w", err)
	}

	cmd := &Command{Type: raw.Type, Goal: raw.Goal}
	if len(raw.Data) > 0 {
		var values map[string]string
		if err := json.Unmarshal(raw.Data, &values); err == nil {
			cmd.Data = values
		}
	}
	return cmd, nil
}

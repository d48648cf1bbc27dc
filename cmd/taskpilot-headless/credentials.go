package main

import (
	"context"
	"errors"
	"strings"

	"github.com/entrhq/taskpilot/pkg/credentials"
	"github.com/entrhq/taskpilot/pkg/logging"
)

var errNoCredentials = errors.New("no credentials in environment for the requested fields")

var credentialEnv = map[string]string{
	credentials.FieldUsername: "TASKPILOT_USERNAME",
	credentials.FieldEmail:    "TASKPILOT_EMAIL",
	credentials.FieldPassword: "TASKPILOT_PASSWORD",
}

// envCredentials answers credential requests from environment variables.
type envCredentials struct {
	getenv func(string) string
	logger *logging.Logger
}

func newEnvCredentials(getenv func(string) string, logger *logging.Logger) *envCredentials {
	return &envCredentials{getenv: getenv, logger: logger}
}

func (e *envCredentials) Request(ctx context.Context, fields map[string]bool) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	answer := make(map[string]string)
	for field, wanted := range fields {
		if !wanted {
			continue
		}
		if v := strings.TrimSpace(e.getenv(credentialEnv[field])); v != "" {
			answer[field] = v
		}
	}
	if len(answer) == 0 {
		return nil, errNoCredentials
	}
	e.logger.Infof("Answered credential request for %d field(s) from environment", len(answer))
	return answer, nil
}

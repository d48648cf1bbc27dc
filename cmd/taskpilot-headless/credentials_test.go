package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/taskpilot/pkg/logging"
)

func TestEnvCredentials(t *testing.T) {
	env := map[string]string{
		"TASKPILOT_USERNAME": "alice",
		"TASKPILOT_PASSWORD": "s3cret",
	}
	creds := newEnvCredentials(func(k string) string { return env[k] }, logging.Discard())

	answer, err := creds.Request(context.Background(), map[string]bool{"username": true, "email": true, "password": false})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"username": "alice"}, answer)

	_, err = creds.Request(context.Background(), map[string]bool{"email": true})
	assert.ErrorIs(t, err, errNoCredentials)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = creds.Request(ctx, map[string]bool{"password": true})
	assert.ErrorIs(t, err, context.Canceled)
}

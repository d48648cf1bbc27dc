package types

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventWireFormat(t *testing.T) {
	price := 999.0
	tests := []struct {
		name  string
		event *Event
		want  string
	}{
		{
			name:  "run started without steps",
			event: NewRunStartedEvent("compare shoes", nil),
			want:  `{"type":"TASK_STARTED","goal":"compare shoes","steps":[]}`,
		},
		{
			name:  "run completed with error",
			event: NewRunCompletedEvent("g", errors.New("boom")),
			want:  `{"type":"TASK_COMPLETED","goal":"g","error":"boom"}`,
		},
		{
			name:  "run completed",
			event: NewRunCompletedEvent("g", nil),
			want:  `{"type":"TASK_COMPLETED","goal":"g"}`,
		},
		{
			name:  "step completed",
			event: NewStepCompletedEvent(2, Click{Selector: "#a"}, 1500*time.Millisecond),
			want:  `{"type":"STEP_COMPLETED","index":2,"step":{"action":"click","selector":"#a"},"duration_ms":1500}`,
		},
		{
			name:  "step failed",
			event: NewStepFailedEvent(0, Navigate{URL: "https://x.io"}, 0, errors.New("timeout")),
			want:  `{"type":"STEP_FAILED","index":0,"step":{"action":"navigate","url":"https://x.io"},"duration_ms":0,"error":"timeout"}`,
		},
		{
			name:  "log",
			event: NewLogEvent(LogLevelWarn, "careful"),
			want:  `{"type":"LOG","level":"warn","message":"careful"}`,
		},
		{
			name:  "frame",
			event: NewFrameEvent([]byte("png"), "Amazon"),
			want:  `{"type":"BROWSER_FRAME","image":"cG5n","source":"Amazon"}`,
		},
		{
			name:  "credentials",
			event: NewCredentialsRequiredEvent(map[string]bool{"password": true}),
			want:  `{"type":"CREDENTIALS_REQUIRED","fields":{"password":true}}`,
		},
		{
			name: "compare results",
			event: NewCompareResultsEvent(&CompareResults{
				Query: "shoes",
				Results: []PlatformResult{{
					Target: "amazon", Name: "Amazon",
					Items: []PriceItem{{Title: "Runner", Price: &price, URL: "https://a/1"}},
				}},
			}),
			want: `{"type":"PRICE_RESULTS","query":"shoes","max_price":null,"results":[{"target":"amazon","platform":"Amazon","items":[{"title":"Runner","price":999,"url":"https://a/1"}]}]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.event)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(data))
		})
	}
}

func TestIsTerminalStep(t *testing.T) {
	assert.False(t, NewStepStartedEvent(0, Screenshot{}).IsTerminalStep())
	assert.True(t, NewStepCompletedEvent(0, Screenshot{}, 0).IsTerminalStep())
	assert.True(t, NewStepFailedEvent(0, Screenshot{}, 0, nil).IsTerminalStep())
}

func TestParseCommand(t *testing.T) {
	cmd, err := ParseCommand([]byte(`{"type":"START_TASK","goal":"find cats"}`))
	require.NoError(t, err)
	assert.True(t, cmd.IsStartTask())
	assert.Equal(t, "find cats", cmd.Goal)

	cmd, err = ParseCommand([]byte(`{"type":"CREDENTIALS_PROVIDED","data":{"password":"s3cret"}}`))
	require.NoError(t, err)
	assert.True(t, cmd.IsCredentials())
	assert.Equal(t, "s3cret", cmd.Data["password"])

	cmd, err = ParseCommand([]byte(`{"type":"CREDENTIALS_PROVIDED","data":["x"]}`))
	require.NoError(t, err)
	assert.Nil(t, cmd.Data)

	_, err = ParseCommand([]byte(`{`))
	assert.Error(t, err)
}

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/entrhq/taskpilot/pkg/agent"
	"github.com/entrhq/taskpilot/pkg/logging"
	"github.com/entrhq/taskpilot/pkg/metrics"
	"github.com/entrhq/taskpilot/pkg/types"
)

type stubRunner struct {
	mu    sync.Mutex
	goals []string
	err   error
}

func (r *stubRunner) Start(ctx context.Context, goal string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.goals = append(r.goals, goal)
	return nil
}

func (r *stubRunner) started() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.goals...)
}

type stubCreds struct {
	mu      sync.Mutex
	answers []map[string]string
}

func (c *stubCreds) Provide(answer map[string]string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.answers = append(c.answers, answer)
	return true
}

func (c *stubCreds) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.answers)
}

type harness struct {
	srv    *Server
	hub    *Hub
	runner *stubRunner
	creds  *stubCreds
	http   *httptest.Server
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	h := &harness{runner: &stubRunner{}, creds: &stubCreds{}}
	h.hub = NewHub(logging.Discard(), nil)
	h.srv = New(h.hub, h.runner, h.creds, opts, logging.Discard(), metrics.New())
	h.http = httptest.NewServer(h.srv.Handler())
	t.Cleanup(func() {
		h.http.Close()
		h.srv.Close()
	})
	return h
}

func (h *harness) dial(t *testing.T, header http.Header) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(h.http.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &m))
	return m
}

func send(t *testing.T, conn *websocket.Conn, msg string) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(msg)))
}

func TestHealth(t *testing.T) {
	h := newHarness(t, DefaultOptions())

	resp, err := http.Get(h.http.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestMetricsRoute(t *testing.T) {
	h := newHarness(t, DefaultOptions())

	resp, err := http.Get(h.http.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCORS(t *testing.T) {
	h := newHarness(t, DefaultOptions())

	req, _ := http.NewRequest(http.MethodGet, h.http.URL+"/health", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "http://localhost:5173", resp.Header.Get("Access-Control-Allow-Origin"))

	req.Header.Set("Origin", "https://evil.example")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestWS_RejectsForeignOrigin(t *testing.T) {
	h := newHarness(t, DefaultOptions())
	url := "ws" + strings.TrimPrefix(h.http.URL, "http") + "/ws"

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": []string{"https://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestWS_ConnectedThenBroadcast(t *testing.T) {
	h := newHarness(t, DefaultOptions())
	conn := h.dial(t, http.Header{"Origin": []string{"http://127.0.0.1:5173"}})

	hello := readEvent(t, conn)
	assert.Equal(t, "LOG", hello["type"])
	assert.Equal(t, "Connected", hello["message"])

	require.Eventually(t, func() bool { return h.hub.Count() == 1 }, time.Second, 5*time.Millisecond)
	h.hub.Publish(types.NewRunStartedEvent("goal", nil))

	ev := readEvent(t, conn)
	assert.Equal(t, "TASK_STARTED", ev["type"])
	assert.Equal(t, "goal", ev["goal"])
}

func TestWS_StartTask(t *testing.T) {
	h := newHarness(t, DefaultOptions())
	conn := h.dial(t, nil)
	readEvent(t, conn)

	send(t, conn, `{"type":"START_TASK","goal":"  find cats  "}`)
	require.Eventually(t, func() bool { return len(h.runner.started()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"find cats"}, h.runner.started())
}

func TestWS_BusyRunnerAnswersWithWarning(t *testing.T) {
	h := newHarness(t, DefaultOptions())
	h.runner.err = agent.ErrBusy
	conn := h.dial(t, nil)
	readEvent(t, conn)

	send(t, conn, `{"type":"START_TASK","goal":"second"}`)
	ev := readEvent(t, conn)
	assert.Equal(t, "LOG", ev["type"])
	assert.Equal(t, "warn", ev["level"])
	assert.Equal(t, "A task is already running", ev["message"])
}

func TestWS_UnknownAndMalformed(t *testing.T) {
	h := newHarness(t, DefaultOptions())
	conn := h.dial(t, nil)
	readEvent(t, conn)

	send(t, conn, `{"type":"DANCE"}`)
	ev := readEvent(t, conn)
	assert.Equal(t, "Unknown message: DANCE", ev["message"])

	send(t, conn, `{not json`)
	ev = readEvent(t, conn)
	assert.Equal(t, "warn", ev["level"])
	assert.Contains(t, ev["message"], "Malformed message")
}

func TestWS_CredentialsForwarded(t *testing.T) {
	h := newHarness(t, DefaultOptions())
	conn := h.dial(t, nil)
	readEvent(t, conn)

	send(t, conn, `{"type":"CREDENTIALS_PROVIDED","data":{"password":"pw"}}`)
	require.Eventually(t, func() bool { return h.creds.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "pw", h.creds.answers[0]["password"])
}

func TestWS_RateLimitsTaskCommands(t *testing.T) {
	h := newHarness(t, Options{CommandRate: rate.Every(time.Hour), CommandBurst: 1})
	conn := h.dial(t, nil)
	readEvent(t, conn)

	send(t, conn, `{"type":"START_TASK","goal":"one"}`)
	send(t, conn, `{"type":"START_TASK","goal":"two"}`)

	ev := readEvent(t, conn)
	assert.Equal(t, "Too many task requests, slow down", ev["message"])
	assert.Equal(t, []string{"one"}, h.runner.started())
}

func TestWS_DisconnectUnregisters(t *testing.T) {
	h := newHarness(t, DefaultOptions())
	conn := h.dial(t, nil)
	readEvent(t, conn)
	require.Eventually(t, func() bool { return h.hub.Count() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return h.hub.Count() == 0 }, 2*time.Second, 5*time.Millisecond)
}

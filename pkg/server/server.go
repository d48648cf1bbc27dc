// Package server exposes a running agent to observers over HTTP and
// WebSocket.
//
// Observers connect to /ws. Every run event is broadcast to all of them as
// JSON text frames; inbound frames are commands (START_TASK and
// CREDENTIALS_PROVIDED). /health and /metrics are plain HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/entrhq/taskpilot/pkg/agent"
	"github.com/entrhq/taskpilot/pkg/logging"
	"github.com/entrhq/taskpilot/pkg/metrics"
	"github.com/entrhq/taskpilot/pkg/types"
)

const (
	readTimeout    = 90 * time.Second
	maxMessageSize = 1 << 20
)

// TaskStarter starts a run in the background. agent.Runner satisfies it.
type TaskStarter interface {
	Start(ctx context.Context, goal string) error
}

// CredentialSink receives observer answers to credential requests.
// credentials.Synchronizer satisfies it.
type CredentialSink interface {
	Provide(answer map[string]string) bool
}

// Options configures the server.
type Options struct {
	// AllowedOrigins lists browser origins allowed to connect. "*" allows any.
	// Requests without an Origin header are always allowed.
	AllowedOrigins []string

	// CommandRate and CommandBurst bound START_TASK commands per connection.
	// A zero rate disables the limit.
	CommandRate  rate.Limit
	CommandBurst int
}

// DefaultOptions returns options for a local development frontend.
func DefaultOptions() Options {
	return Options{
		AllowedOrigins: []string{"http://localhost:5173", "http://127.0.0.1:5173"},
		CommandRate:    rate.Every(2 * time.Second),
		CommandBurst:   3,
	}
}

// Server routes observer traffic to the hub, the runner and the credential
// synchronizer.
type Server struct {
	hub     *Hub
	runner  TaskStarter
	creds   CredentialSink
	opts    Options
	logger  *logging.Logger
	metrics *metrics.Metrics

	upgrader websocket.Upgrader

	// runs outlive the connection that started them.
	runCtx    context.Context
	cancelRun context.CancelFunc
}

// New creates a server. creds may be nil, in which case credential answers
// are dropped.
func New(hub *Hub, runner TaskStarter, creds CredentialSink, opts Options, logger *logging.Logger, m *metrics.Metrics) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		hub:       hub,
		runner:    runner,
		creds:     creds,
		opts:      opts,
		logger:    logger,
		metrics:   m,
		runCtx:    ctx,
		cancelRun: cancel,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || s.originAllowed(origin)
		},
	}
	return s
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.corsMiddleware)

	r.Get("/health", s.handleHealth)
	r.Get("/ws", s.handleWS)
	r.Handle("/metrics", s.metrics.Handler())
	return r
}

// Close cancels runs started through the server.
func (s *Server) Close() {
	s.cancelRun()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" && s.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) originAllowed(origin string) bool {
	parsed, err := url.Parse(strings.TrimSpace(origin))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return false
	}
	normalized := strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host)

	for _, allowed := range s.opts.AllowedOrigins {
		allowed = strings.TrimSpace(allowed)
		if allowed == "*" || strings.EqualFold(strings.TrimRight(allowed, "/"), normalized) {
			return true
		}
	}
	return false
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warnf("WebSocket upgrade failed: %v", err)
		return
	}

	c := s.hub.register(uuid.New().String(), conn)
	s.logger.Infof("Observer %s connected from %s", c.id, r.RemoteAddr)
	go func() {
		if err := c.writeLoop(); err != nil {
			s.logger.Debugf("Observer %s write failed: %v", c.id, err)
		}
	}()

	c.sendEvent(types.NewLogEvent(types.LogLevelInfo, "Connected"))
	s.readLoop(conn, c)
}

// readLoop dispatches inbound commands until the connection fails.
func (s *Server) readLoop(conn *websocket.Conn, c *client) {
	defer func() {
		s.hub.remove(c, false)
		s.logger.Infof("Observer %s disconnected", c.id)
	}()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	var limiter *rate.Limiter
	if s.opts.CommandRate > 0 {
		limiter = rate.NewLimiter(s.opts.CommandRate, s.opts.CommandBurst)
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debugf("Observer %s read failed: %v", c.id, err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		s.handleCommand(c, data, limiter)
	}
}

func (s *Server) handleCommand(c *client, data []byte, limiter *rate.Limiter) {
	cmd, err := types.ParseCommand(data)
	if err != nil {
		s.warn(c, "Malformed message: %v", err)
		return
	}

	switch {
	case cmd.IsStartTask():
		goal := strings.TrimSpace(cmd.Goal)
		if goal == "" {
			s.warn(c, "Empty goal")
			return
		}
		if limiter != nil && !limiter.Allow() {
			s.metrics.CommandRateLimited()
			s.warn(c, "Too many task requests, slow down")
			return
		}
		if err := s.runner.Start(s.runCtx, goal); err != nil {
			if errors.Is(err, agent.ErrBusy) {
				s.warn(c, "A task is already running")
				return
			}
			s.warn(c, "Could not start task: %v", err)
		}
	case cmd.IsCredentials():
		if s.creds == nil || !s.creds.Provide(cmd.Data) {
			s.logger.Debugf("Credential answer from %s dropped", c.id)
		}
	default:
		s.warn(c, "Unknown message: %s", cmd.Type)
	}
}

// warn answers a single client with a warn log event.
func (s *Server) warn(c *client, format string, args ...interface{}) {
	event := types.NewLogEvent(types.LogLevelWarn, fmt.Sprintf(format, args...))
	s.logger.Warnf("%s", event.Message)
	c.sendEvent(event)
}

package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/entrhq/taskpilot/pkg/logging"
	"github.com/entrhq/taskpilot/pkg/metrics"
	"github.com/entrhq/taskpilot/pkg/types"
)

// ErrBusy is returned when a task is started while another one runs.
var ErrBusy = errors.New("a task is already running")

// Runner executes one task at a time from goal to completion.
type Runner struct {
	planner    Planner
	newSession func() LifecycleSession
	comparer   Comparer
	creds      CredentialRequester

	loginWait     time.Duration
	frameInterval time.Duration

	emit    types.EventEmitter
	logger  *logging.Logger
	metrics *metrics.Metrics

	mu     sync.Mutex
	active bool
	wg     sync.WaitGroup
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithComparer routes matching goals to a multi-target comparer.
func WithComparer(c Comparer) RunnerOption {
	return func(r *Runner) {
		r.comparer = c
	}
}

// WithCredentials sets the source of credential values.
func WithCredentials(c CredentialRequester) RunnerOption {
	return func(r *Runner) {
		r.creds = c
	}
}

// WithEmitter sets where run events are published.
func WithEmitter(emit types.EventEmitter) RunnerOption {
	return func(r *Runner) {
		if emit != nil {
			r.emit = emit
		}
	}
}

// WithLoginWait sets the manual-login pause.
func WithLoginWait(d time.Duration) RunnerOption {
	return func(r *Runner) {
		r.loginWait = d
	}
}

// WithFrameInterval sets the frame capture interval.
func WithFrameInterval(d time.Duration) RunnerOption {
	return func(r *Runner) {
		r.frameInterval = d
	}
}

// WithLogger sets the runner's logger.
func WithLogger(l *logging.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = l
	}
}

// WithMetrics sets the collectors runs are recorded on.
func WithMetrics(m *metrics.Metrics) RunnerOption {
	return func(r *Runner) {
		r.metrics = m
	}
}

// NewRunner creates a runner. newSession must return a fresh, unstarted
// session on every call.
func NewRunner(planner Planner, newSession func() LifecycleSession, opts ...RunnerOption) *Runner {
	r := &Runner{
		planner:       planner,
		newSession:    newSession,
		loginWait:     DefaultLoginWait,
		frameInterval: DefaultFrameInterval,
		emit:          func(*types.Event) {},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Runner) acquire() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active {
		return false
	}
	r.active = true
	r.wg.Add(1)
	return true
}

func (r *Runner) release() {
	r.mu.Lock()
	r.active = false
	r.mu.Unlock()
	r.wg.Done()
}

// Busy reports whether a task is running.
func (r *Runner) Busy() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Start runs goal in the background. It returns ErrBusy if a task is
// already running.
func (r *Runner) Start(ctx context.Context, goal string) error {
	if !r.acquire() {
		return ErrBusy
	}
	go func() {
		defer r.release()
		_ = r.run(ctx, goal)
	}()
	return nil
}

// Run runs goal and returns its run-level error.
func (r *Runner) Run(ctx context.Context, goal string) error {
	if !r.acquire() {
		return ErrBusy
	}
	defer r.release()
	return r.run(ctx, goal)
}

// Wait blocks until no task is running.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) run(ctx context.Context, goal string) (err error) {
	r.logger.Infof("Task started: %q", goal)

	if r.comparer != nil && r.comparer.Matches(goal) {
		return r.runCompare(ctx, goal)
	}

	r.metrics.RunStarted("single")
	defer func() {
		if err != nil {
			r.info(types.LogLevelError, "Execution error: %v", err)
		}
		r.emit(types.NewRunCompletedEvent(goal, err))
		r.metrics.RunCompleted(err)
	}()

	r.info(types.LogLevelInfo, "Planning steps")
	plan := r.planner.Plan(ctx, goal)
	r.info(types.LogLevelInfo, "Plan source: %s", plan.Source)

	r.info(types.LogLevelInfo, "Starting browser")
	session := r.newSession()
	if err := session.Start(ctx); err != nil {
		session.Stop()
		return fmt.Errorf("failed to start browser: %w", err)
	}

	frames := StartFrameLoop(ctx, session, r.frameInterval, r.emit, r.metrics)
	defer func() {
		frames.Stop()
		session.Stop()
	}()

	r.emit(types.NewRunStartedEvent(goal, plan.Actions))
	executor := NewExecutor(session, r.creds, r.loginWait, r.emit, r.logger, r.metrics)
	return executor.Execute(ctx, plan.Actions)
}

func (r *Runner) runCompare(ctx context.Context, goal string) error {
	r.metrics.RunStarted("compare")
	r.info(types.LogLevelInfo, "Price comparison mode: parallel platforms")
	r.emit(types.NewRunStartedEvent(goal, nil))

	r.comparer.Run(ctx, goal)

	err := ctx.Err()
	r.emit(types.NewRunCompletedEvent(goal, err))
	r.metrics.RunCompleted(err)
	return err
}

func (r *Runner) info(level types.LogLevel, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	r.emit(types.NewLogEvent(level, msg))
	if level == types.LogLevelError {
		r.logger.Errorf("%s", msg)
		return
	}
	r.logger.Infof("%s", msg)
}

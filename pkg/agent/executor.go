package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/entrhq/taskpilot/pkg/credentials"
	"github.com/entrhq/taskpilot/pkg/logging"
	"github.com/entrhq/taskpilot/pkg/metrics"
	"github.com/entrhq/taskpilot/pkg/safety"
	"github.com/entrhq/taskpilot/pkg/types"
)

// DefaultLoginWait is how long a run pauses on a login page for the user to
// sign in by hand.
const DefaultLoginWait = 60 * time.Second

// ErrNoCredentialSource is returned for credential steps when no requester is
// configured.
var ErrNoCredentialSource = errors.New("credentials required but no observer can supply them")

// Executor drives one action list through one session, strictly in order.
type Executor struct {
	session   Session
	creds     CredentialRequester
	loginWait time.Duration
	emit      types.EventEmitter
	logger    *logging.Logger
	metrics   *metrics.Metrics
}

// NewExecutor creates an executor. creds may be nil, in which case
// credential steps fail.
func NewExecutor(session Session, creds CredentialRequester, loginWait time.Duration, emit types.EventEmitter, logger *logging.Logger, m *metrics.Metrics) *Executor {
	if emit == nil {
		emit = func(*types.Event) {}
	}
	return &Executor{
		session:   session,
		creds:     creds,
		loginWait: loginWait,
		emit:      emit,
		logger:    logger,
		metrics:   m,
	}
}

// Execute runs actions in order. A failed step is reported and execution
// continues, except for safety blocks and context cancellation, which abort
// the run and are returned.
func (e *Executor) Execute(ctx context.Context, actions []types.Action) error {
	for i, action := range actions {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.step(ctx, i, action); err != nil {
			return err
		}
	}
	return nil
}

// step runs one action and returns an error only when the run must stop.
func (e *Executor) step(ctx context.Context, index int, action types.Action) error {
	e.emit(types.NewStepStartedEvent(index, action))
	e.log(types.LogLevelInfo, "Executing step %d: %s", index+1, action.Kind())
	start := time.Now()

	snapshot, err := e.run(ctx, action)
	elapsed := time.Since(start)
	e.metrics.StepFinished(string(action.Kind()), elapsed, err)

	if err == nil {
		e.emit(types.NewStepCompletedEvent(index, snapshot, elapsed))
		e.log(types.LogLevelInfo, "Completed step %d", index+1)
		return nil
	}

	e.emit(types.NewStepFailedEvent(index, snapshot, elapsed, err))
	e.log(types.LogLevelError, "Step failed: %v", err)

	switch {
	case safety.IsBlocked(err):
		e.metrics.SafetyBlocked()
		return fmt.Errorf("step %d: %w", index+1, err)
	case ctx.Err() != nil:
		return ctx.Err()
	default:
		return nil
	}
}

// run prepares and dispatches action, then pauses on login pages. It returns
// the action as reported to observers, which never carries credential values.
func (e *Executor) run(ctx context.Context, action types.Action) (types.Action, error) {
	if nav, ok := action.(types.Navigate); ok {
		action = types.Navigate{URL: SanitizeURL(nav.URL)}
	}
	snapshot := action

	if typing, ok := action.(types.TypeText); ok && isCredentialStep(typing) {
		filled, err := e.fillCredential(ctx, typing)
		if err != nil {
			return snapshot, err
		}
		action = filled
	}

	if err := e.session.PerformAction(ctx, action); err != nil {
		return snapshot, err
	}

	if e.loginWait > 0 && e.session.IsLoginPage(ctx) {
		e.log(types.LogLevelInfo, "Login page detected. Waiting %dms for manual login.", e.loginWait.Milliseconds())
		if err := e.session.PerformAction(ctx, types.Wait{Duration: e.loginWait}); err != nil {
			return snapshot, err
		}
	}
	return snapshot, nil
}

func isCredentialStep(a types.TypeText) bool {
	if strings.TrimSpace(a.Text) != "" {
		return false
	}
	sel := strings.ToLower(a.Selector)
	return strings.Contains(sel, "password") || strings.Contains(sel, "username") || strings.Contains(sel, "email")
}

// credentialFields names the fields an observer should supply for selector.
func credentialFields(selector string) map[string]bool {
	sel := strings.ToLower(selector)
	return map[string]bool{
		credentials.FieldUsername: strings.Contains(sel, "user") || strings.Contains(sel, "email"),
		credentials.FieldEmail:    strings.Contains(sel, "email"),
		credentials.FieldPassword: strings.Contains(sel, "password"),
	}
}

// fillCredential suspends until the observer answers, then picks the value
// for the selector: password, then email, then username.
func (e *Executor) fillCredential(ctx context.Context, a types.TypeText) (types.TypeText, error) {
	if e.creds == nil {
		return a, ErrNoCredentialSource
	}
	e.log(types.LogLevelInfo, "Waiting for credentials for %s", a.Selector)

	answer, err := e.creds.Request(ctx, credentialFields(a.Selector))
	if err != nil {
		return a, fmt.Errorf("credential request failed: %w", err)
	}

	sel := strings.ToLower(a.Selector)
	switch {
	case strings.Contains(sel, "password") && answer[credentials.FieldPassword] != "":
		a.Text = answer[credentials.FieldPassword]
	case strings.Contains(sel, "email") && answer[credentials.FieldEmail] != "":
		a.Text = answer[credentials.FieldEmail]
	case answer[credentials.FieldUsername] != "":
		a.Text = answer[credentials.FieldUsername]
	}
	return a, nil
}

func (e *Executor) log(level types.LogLevel, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	e.emit(types.NewLogEvent(level, msg))
	switch level {
	case types.LogLevelError:
		e.logger.Errorf("%s", msg)
	case types.LogLevelWarn:
		e.logger.Warnf("%s", msg)
	default:
		e.logger.Infof("%s", msg)
	}
}

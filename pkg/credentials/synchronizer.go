// Package credentials implements the single-slot handshake that suspends a
// run until an observer supplies login field values.
package credentials

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/entrhq/taskpilot/pkg/logging"
	"github.com/entrhq/taskpilot/pkg/types"
)

// Field names understood by observers.
const (
	FieldUsername = "username"
	FieldEmail    = "email"
	FieldPassword = "password"
)

var (
	// ErrRequestPending is returned when a request is made while another one
	// is still outstanding.
	ErrRequestPending = errors.New("credentials: a request is already pending")

	// ErrTimeout is returned when no answer arrives within the configured
	// timeout.
	ErrTimeout = errors.New("credentials: timed out waiting for answer")
)

// Synchronizer hands one credential request at a time to observers and
// blocks the requester until it is answered.
type Synchronizer struct {
	timeout   time.Duration
	emitEvent types.EventEmitter
	logger    *logging.Logger

	mu      sync.Mutex
	pending *pendingRequest
}

// pendingRequest tracks the request waiting for an answer
type pendingRequest struct {
	id       string
	response chan map[string]string
}

// NewSynchronizer creates a synchronizer. A zero timeout waits until the
// requester's context ends.
func NewSynchronizer(timeout time.Duration, emitEvent types.EventEmitter, logger *logging.Logger) *Synchronizer {
	return &Synchronizer{
		timeout:   timeout,
		emitEvent: emitEvent,
		logger:    logger,
	}
}

// Request publishes a credential-required event for fields and blocks until
// Provide answers it, ctx ends or the timeout fires.
func (s *Synchronizer) Request(ctx context.Context, fields map[string]bool) (map[string]string, error) {
	pr, err := s.setupPending()
	if err != nil {
		return nil, err
	}
	defer s.cleanupPending(pr)

	s.logger.Infof("Credential request %s published for %v", pr.id, fields)
	if s.emitEvent != nil {
		s.emitEvent(types.NewCredentialsRequiredEvent(fields))
	}

	var timeout <-chan time.Time
	if s.timeout > 0 {
		timer := time.NewTimer(s.timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case answer := <-pr.response:
		s.logger.Infof("Credential request %s answered", pr.id)
		return answer, nil
	case <-timeout:
		s.logger.Warnf("Credential request %s timed out after %s", pr.id, s.timeout)
		return nil, ErrTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Provide delivers answer to the outstanding request. It returns false, and
// drops the answer, when nothing is pending.
func (s *Synchronizer) Provide(answer map[string]string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending == nil {
		s.logger.Debugf("Dropping credential answer: no request pending")
		return false
	}

	if answer == nil {
		answer = map[string]string{}
	}
	select {
	case s.pending.response <- answer:
		return true
	default:
		// Already answered.
		return false
	}
}

// Pending reports whether a request is outstanding.
func (s *Synchronizer) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending != nil
}

func (s *Synchronizer) setupPending() (*pendingRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending != nil {
		return nil, ErrRequestPending
	}
	s.pending = &pendingRequest{
		id:       uuid.New().String(),
		response: make(chan map[string]string, 1),
	}
	return s.pending, nil
}

func (s *Synchronizer) cleanupPending(pr *pendingRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == pr {
		s.pending = nil
	}
}

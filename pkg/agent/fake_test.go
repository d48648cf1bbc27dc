package agent

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/entrhq/taskpilot/pkg/planner"
	"github.com/entrhq/taskpilot/pkg/types"
)

type fakeSession struct {
	mu        sync.Mutex
	performed []types.Action
	failOn    map[types.ActionKind]error
	loginPage bool
	startErr  error
	started   bool
	stopped   int
	shots     int
	url       string
}

func newFakeSession() *fakeSession {
	return &fakeSession{failOn: map[types.ActionKind]error{}, url: "https://example.com/"}
}

func (s *fakeSession) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = true
	return s.startErr
}

func (s *fakeSession) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped++
}

func (s *fakeSession) PerformAction(ctx context.Context, a types.Action) error {
	s.mu.Lock()
	s.performed = append(s.performed, a)
	err := s.failOn[a.Kind()]
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return ctx.Err()
}

func (s *fakeSession) IsLoginPage(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loginPage
}

func (s *fakeSession) Screenshot(ctx context.Context) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shots++
	return []byte("png"), true
}

func (s *fakeSession) CurrentURL(ctx context.Context) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.url
}

func (s *fakeSession) actions() []types.Action {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.Action(nil), s.performed...)
}

func (s *fakeSession) screenshots() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shots
}

type recorder struct {
	mu     sync.Mutex
	events []*types.Event
}

func (r *recorder) emit(e *types.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) ofType(t types.EventType) []*types.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*types.Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func (r *recorder) messages() []string {
	var out []string
	for _, e := range r.ofType(types.EventTypeLog) {
		out = append(out, e.Message)
	}
	return out
}

type fakeCreds struct {
	answer map[string]string
	err    error
	asked  []map[string]bool
}

func (c *fakeCreds) Request(ctx context.Context, fields map[string]bool) (map[string]string, error) {
	c.asked = append(c.asked, fields)
	return c.answer, c.err
}

type fakePlanner struct {
	plan *planner.Plan
}

func (p fakePlanner) Plan(ctx context.Context, goal string) *planner.Plan {
	return p.plan
}

type fakeComparer struct {
	match bool
	ran   chan string
}

func (c *fakeComparer) Matches(goal string) bool { return c.match }

func (c *fakeComparer) Run(ctx context.Context, goal string) *types.CompareResults {
	if c.ran != nil {
		c.ran <- goal
	}
	return &types.CompareResults{Query: goal}
}

// blockingSession holds PerformAction until release is closed.
type blockingSession struct {
	*fakeSession
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *blockingSession) PerformAction(ctx context.Context, a types.Action) error {
	s.once.Do(func() { close(s.entered) })
	select {
	case <-s.release:
	case <-time.After(5 * time.Second):
		return errors.New("never released")
	}
	return s.fakeSession.PerformAction(ctx, a)
}

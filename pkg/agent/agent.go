// Package agent runs planned browser actions against a live session.
//
// A Runner owns the lifecycle of one task: it routes comparison goals to the
// multi-target orchestrator, plans everything else, starts a persistent
// browser session with a frame loop beside it, and hands the plan to an
// Executor. The Executor drives the actions one at a time and reports every
// step to observers as events.
package agent

import (
	"context"

	"github.com/entrhq/taskpilot/pkg/planner"
	"github.com/entrhq/taskpilot/pkg/types"
)

// Session is the browser session the executor drives. browser.Driver
// satisfies it.
type Session interface {
	PerformAction(ctx context.Context, action types.Action) error
	IsLoginPage(ctx context.Context) bool
	Screenshot(ctx context.Context) ([]byte, bool)
	CurrentURL(ctx context.Context) string
}

// LifecycleSession is a Session the runner starts and stops.
type LifecycleSession interface {
	Session
	Start(ctx context.Context) error
	Stop()
}

// CredentialRequester obtains credential values from an observer.
// credentials.Synchronizer satisfies it.
type CredentialRequester interface {
	Request(ctx context.Context, fields map[string]bool) (map[string]string, error)
}

// Planner turns a goal into actions. planner.Planner satisfies it.
type Planner interface {
	Plan(ctx context.Context, goal string) *planner.Plan
}

// Comparer runs multi-target comparison goals.
type Comparer interface {
	Matches(goal string) bool
	Run(ctx context.Context, goal string) *types.CompareResults
}

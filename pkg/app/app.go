// Package app assembles a Runner and its collaborators from a Config.
package app

import (
	"fmt"

	"github.com/entrhq/taskpilot/pkg/agent"
	"github.com/entrhq/taskpilot/pkg/browser"
	"github.com/entrhq/taskpilot/pkg/compare"
	"github.com/entrhq/taskpilot/pkg/config"
	"github.com/entrhq/taskpilot/pkg/logging"
	"github.com/entrhq/taskpilot/pkg/metrics"
	"github.com/entrhq/taskpilot/pkg/planner"
	"github.com/entrhq/taskpilot/pkg/safety"
	"github.com/entrhq/taskpilot/pkg/types"
)

// Deps are the process-wide pieces a Runner is built around.
type Deps struct {
	Config  *config.Config
	Emit    types.EventEmitter
	Logger  *logging.Logger
	Metrics *metrics.Metrics

	// Credentials answers credential steps. Nil makes them fail.
	Credentials agent.CredentialRequester
}

// NewRunner builds the planner, the browser factory, the comparison
// orchestrator and the runner that ties them together. No browser is
// launched until a task runs.
func NewRunner(d Deps) (*agent.Runner, error) {
	cfg := d.Config

	gate, err := safety.NewGate(cfg.Safety.DenyTerms)
	if err != nil {
		return nil, fmt.Errorf("failed to build safety gate: %w", err)
	}
	targets, err := cfg.CompareTargets()
	if err != nil {
		return nil, fmt.Errorf("failed to build compare targets: %w", err)
	}

	factory := browser.NewFactory(cfg.BrowserOptions(), gate, d.Logger)
	orchestrator := compare.NewOrchestrator(
		targets,
		func() compare.Session { return factory.NewEphemeral() },
		cfg.CompareOptions(),
		d.Emit,
		d.Logger.Named("compare"),
		d.Metrics,
	)

	opts := []agent.RunnerOption{
		agent.WithComparer(orchestrator),
		agent.WithEmitter(d.Emit),
		agent.WithLogger(d.Logger.Named("agent")),
		agent.WithMetrics(d.Metrics),
		agent.WithLoginWait(cfg.Run.LoginWait),
		agent.WithFrameInterval(cfg.Run.FrameInterval),
	}
	if d.Credentials != nil {
		opts = append(opts, agent.WithCredentials(d.Credentials))
	}

	return agent.NewRunner(
		planner.New(cfg.PlannerOptions(), d.Logger.Named("planner")),
		func() agent.LifecycleSession { return factory.NewPersistent() },
		opts...,
	), nil
}

// Package compare fans one price-comparison goal out to several shopping
// targets in parallel and aggregates their top results.
package compare

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"

	"github.com/entrhq/taskpilot/pkg/logging"
	"github.com/entrhq/taskpilot/pkg/metrics"
	"github.com/entrhq/taskpilot/pkg/types"
)

// Defaults for Options.
const (
	DefaultSettleDelay = 1500 * time.Millisecond
	DefaultTopItems    = 3
)

// Upper bounds for Options. Larger values are lowered to them.
const (
	MaxCardsLimit = DefaultMaxCards
	TopItemsLimit = DefaultTopItems
)

// Session is the browser session a branch drives. browser.Driver satisfies
// it.
type Session interface {
	Start(ctx context.Context) error
	Stop()
	PerformAction(ctx context.Context, action types.Action) error
	Content(ctx context.Context) (string, error)
	Screenshot(ctx context.Context) ([]byte, bool)
}

// Options configures an Orchestrator.
type Options struct {
	// SettleDelay is waited after navigation before reading the page.
	SettleDelay time.Duration

	// BranchTimeout bounds each branch; zero means no bound.
	BranchTimeout time.Duration

	// MaxCards bounds how many result cards are read per target, at most
	// MaxCardsLimit.
	MaxCards int

	// TopItems bounds how many filtered items are reported per target, at
	// most TopItemsLimit.
	TopItems int
}

// DefaultOptions returns the default orchestrator options.
func DefaultOptions() Options {
	return Options{
		SettleDelay: DefaultSettleDelay,
		MaxCards:    DefaultMaxCards,
		TopItems:    DefaultTopItems,
	}
}

// Orchestrator runs comparison branches, one ephemeral session per target.
type Orchestrator struct {
	targets    []Target
	newSession func() Session
	opts       Options
	emit       types.EventEmitter
	logger     *logging.Logger
	metrics    *metrics.Metrics
}

// NewOrchestrator creates an orchestrator. newSession must return a fresh,
// unstarted session on every call.
func NewOrchestrator(targets []Target, newSession func() Session, opts Options, emit types.EventEmitter, logger *logging.Logger, m *metrics.Metrics) *Orchestrator {
	if opts.MaxCards <= 0 || opts.MaxCards > MaxCardsLimit {
		opts.MaxCards = MaxCardsLimit
	}
	if opts.TopItems <= 0 || opts.TopItems > TopItemsLimit {
		opts.TopItems = TopItemsLimit
	}
	if emit == nil {
		emit = func(*types.Event) {}
	}
	return &Orchestrator{
		targets:    targets,
		newSession: newSession,
		opts:       opts,
		emit:       emit,
		logger:     logger,
		metrics:    m,
	}
}

// Targets returns the configured targets.
func (o *Orchestrator) Targets() []Target {
	return o.targets
}

// Matches reports whether goal should run as a comparison.
func (o *Orchestrator) Matches(goal string) bool {
	return IsCompareGoal(goal, o.targets)
}

// Run parses goal, runs every branch concurrently and emits one aggregate
// results event once all of them finished. A failing branch never affects
// its siblings; it is reported through PlatformResult.Error.
func (o *Orchestrator) Run(ctx context.Context, goal string) *types.CompareResults {
	query, maxPrice := ParseGoal(goal, o.targets)

	limit := "no limit"
	if maxPrice != nil {
		limit = fmt.Sprintf("%g", *maxPrice)
	}
	o.emit(types.NewLogEvent(types.LogLevelInfo, fmt.Sprintf("Price compare: '%s' under %s", query, limit)))
	o.logger.Infof("Comparing %q across %d targets (max price: %s)", query, len(o.targets), limit)

	results := make([]types.PlatformResult, len(o.targets))

	var g errgroup.Group
	for i, target := range o.targets {
		g.Go(func() error {
			results[i] = o.runBranch(ctx, target, query, maxPrice)
			return nil
		})
	}
	_ = g.Wait()

	aggregate := &types.CompareResults{Query: query, MaxPrice: maxPrice, Results: results}
	o.emit(types.NewCompareResultsEvent(aggregate))
	return aggregate
}

// runBranch is the error boundary of one target: errors and panics become an
// empty result carrying the error message.
func (o *Orchestrator) runBranch(ctx context.Context, target Target, query string, maxPrice *float64) (result types.PlatformResult) {
	result = types.PlatformResult{Target: target.ID, Name: target.Name, Items: []types.PriceItem{}}

	var err error
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			result.Items = []types.PriceItem{}
		}
		if err != nil {
			result.Error = err.Error()
			o.logger.Warnf("Branch %s failed: %v", target.ID, err)
			o.emit(types.NewLogEvent(types.LogLevelWarn, fmt.Sprintf("%s: %v", target.Name, err)))
		}
		o.metrics.BranchFinished(target.ID, err)
	}()

	if o.opts.BranchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.BranchTimeout)
		defer cancel()
	}

	result.Items, err = o.scrape(ctx, target, query, maxPrice)
	return result
}

func (o *Orchestrator) scrape(ctx context.Context, target Target, query string, maxPrice *float64) ([]types.PriceItem, error) {
	session := o.newSession()
	if err := session.Start(ctx); err != nil {
		session.Stop()
		return []types.PriceItem{}, err
	}
	defer session.Stop()

	if err := session.PerformAction(ctx, types.Navigate{URL: target.SearchURLFor(query)}); err != nil {
		return []types.PriceItem{}, err
	}
	if err := session.PerformAction(ctx, types.Wait{Duration: o.opts.SettleDelay}); err != nil {
		return []types.PriceItem{}, err
	}

	html, err := session.Content(ctx)
	if err != nil {
		return []types.PriceItem{}, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return []types.PriceItem{}, fmt.Errorf("failed to parse results page: %w", err)
	}

	items := FilterByPrice(target.Extract(doc, target.base(), o.opts.MaxCards), maxPrice)
	if len(items) > o.opts.TopItems {
		items = items[:o.opts.TopItems]
	}

	if frame, ok := session.Screenshot(ctx); ok {
		o.emit(types.NewFrameEvent(frame, target.Name))
		o.metrics.FramePublished()
	}
	return items, nil
}

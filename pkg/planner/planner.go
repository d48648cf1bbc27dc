// Package planner turns a natural-language goal into a list of browser
// actions, using an OpenAI-compatible chat model with a deterministic fallback.
package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/entrhq/taskpilot/pkg/logging"
	"github.com/entrhq/taskpilot/pkg/types"
)

// Defaults for Options.
const (
	DefaultBaseURL  = "https://api.groq.com/openai/v1"
	DefaultModel    = "llama-3.1-8b-instant"
	DefaultMaxSteps = 20
	DefaultTimeout  = 30 * time.Second
)

// Plan sources reported to observers.
const (
	SourceLLM      = "llm"
	SourceFallback = "fallback"
)

// Options configures a Planner.
type Options struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxSteps    int
	Timeout     time.Duration
}

// DefaultOptions returns the default planner options.
func DefaultOptions() Options {
	return Options{
		BaseURL:     DefaultBaseURL,
		Model:       DefaultModel,
		Temperature: 0.2,
		MaxSteps:    DefaultMaxSteps,
		Timeout:     DefaultTimeout,
	}
}

// Completer returns the model's reply to a system and a user message.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Plan is the outcome of planning one goal.
type Plan struct {
	Actions []types.Action
	Source  string

	// Dropped holds the reasons planner entries were rejected.
	Dropped []error
}

// Planner produces action lists for goals.
type Planner struct {
	completer Completer
	maxSteps  int
	logger    *logging.Logger
}

// New creates a planner backed by an OpenAI-compatible endpoint. Without an
// API key it only produces fallback plans.
func New(opts Options, logger *logging.Logger) *Planner {
	var completer Completer
	if opts.APIKey != "" {
		completer = newOpenAICompleter(opts)
	} else {
		logger.Warnf("No planner API key configured; using fallback plans only")
	}
	return NewWithCompleter(completer, opts.MaxSteps, logger)
}

// NewWithCompleter creates a planner around an arbitrary completer. A nil
// completer always falls back.
func NewWithCompleter(completer Completer, maxSteps int, logger *logging.Logger) *Planner {
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}
	return &Planner{completer: completer, maxSteps: maxSteps, logger: logger}
}

// Plan asks the model for actions. Invalid entries are dropped one by one;
// when the model fails or yields nothing usable the fallback plan is used.
func (p *Planner) Plan(ctx context.Context, goal string) *Plan {
	if p.completer != nil {
		plan, err := p.planWithModel(ctx, goal)
		if err == nil {
			return plan
		}
		p.logger.Warnf("Model planning failed, using fallback: %v", err)
	}
	return &Plan{Actions: FallbackPlan(goal), Source: SourceFallback}
}

func (p *Planner) planWithModel(ctx context.Context, goal string) (*Plan, error) {
	reply, err := p.completer.Complete(ctx, SystemPrompt, userPrompt(goal))
	if err != nil {
		return nil, fmt.Errorf("completion failed: %w", err)
	}

	raw, err := ExtractJSONArray(reply)
	if err != nil {
		return nil, err
	}

	actions, dropped := types.ParseActions(raw, p.maxSteps)
	for _, d := range dropped {
		p.logger.Debugf("Dropped planner step: %v", d)
	}
	if len(actions) == 0 {
		return nil, errors.New("model returned no valid steps")
	}
	return &Plan{Actions: actions, Source: SourceLLM, Dropped: dropped}, nil
}

var (
	arrayRe = regexp.MustCompile(`(?s)\[.*\]`)
	urlRe   = regexp.MustCompile(`https?://\S+`)
)

// ExtractJSONArray finds the JSON array in free-form model output, ignoring
// code fences and surrounding prose.
func ExtractJSONArray(text string) ([]json.RawMessage, error) {
	cleaned := strings.NewReplacer("```json", "", "```", "").Replace(text)
	match := arrayRe.FindString(cleaned)
	if match == "" {
		return nil, errors.New("no JSON array in model output")
	}
	var raw []json.RawMessage
	if err := json.Unmarshal([]byte(match), &raw); err != nil {
		return nil, fmt.Errorf("invalid JSON array in model output: %w", err)
	}
	return raw, nil
}

var fallbackStopwords = map[string]bool{"find": true, "course": true, "on": true}

// FallbackPlan builds a plan without the model. A goal containing a URL opens
// it and searches the site; anything else becomes a web search.
func FallbackPlan(goal string) []types.Action {
	site := urlRe.FindString(goal)

	var words []string
	for _, w := range strings.Fields(urlRe.ReplaceAllString(goal, " ")) {
		if !fallbackStopwords[strings.ToLower(w)] {
			words = append(words, w)
		}
	}
	query := strings.Join(words, " ")

	if site != "" {
		const searchInput = "input[type='search']"
		return []types.Action{
			types.Navigate{URL: site},
			types.Wait{Duration: 500 * time.Millisecond},
			types.TypeText{Selector: searchInput, Text: query},
			types.Press{Selector: searchInput, Key: types.DefaultPressKey},
		}
	}
	return []types.Action{
		types.Navigate{URL: "https://www.google.com/search?q=" + url.QueryEscape(query)},
		types.Wait{Duration: 500 * time.Millisecond},
	}
}

// openAICompleter calls the chat completions API.
type openAICompleter struct {
	client      openai.Client
	model       string
	temperature float64
	timeout     time.Duration
}

func newOpenAICompleter(opts Options) *openAICompleter {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	model := opts.Model
	if model == "" {
		model = DefaultModel
	}
	return &openAICompleter{
		client: openai.NewClient(
			option.WithAPIKey(opts.APIKey),
			option.WithBaseURL(baseURL),
			option.WithMaxRetries(1),
		),
		model:       model,
		temperature: opts.Temperature,
		timeout:     opts.Timeout,
	}
}

func (c *openAICompleter) Complete(ctx context.Context, system, user string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Temperature: openai.Float(c.temperature),
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("completion has no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

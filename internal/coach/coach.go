// Package coach turns transcripts into LLM coaching: it fills the fixed
// prompt templates, sends exactly one chat request per call and parses the
// weakest-point reply into typed fields.
//
// Every call is bounded by a timeout (two minutes by default) and never
// retried. Transport failures, including non-success statuses, are returned to
// the caller. A reply without the expected structure is not an error: it
// degrades to the defaults documented on [ParseWeakestPoint].
package coach

import (
	"context"
	"fmt"
	"time"

	"github.com/MrWong99/lingocoach/internal/observe"
	"github.com/MrWong99/lingocoach/pkg/provider/llm"
)

// DefaultTimeout bounds a single LLM call.
const DefaultTimeout = 2 * time.Minute

// Disabled is the placeholder shown for weakest point and practice module
// when the LLM is switched off.
const Disabled = "(LLM disabled)"

// DisabledWeakestPoint returns the result used when the LLM is switched off.
func DisabledWeakestPoint() WeakestPoint {
	return WeakestPoint{Phrase: Disabled, Fixes: []string{}}
}

// WeakestPointInput fills the weakest-point prompt.
type WeakestPointInput struct {
	Text             string
	DetectedLanguage string
	TargetLanguage   string
	NativeLanguage   string

	// GrammarSummary is the one-line summary produced by the grammar adapter.
	GrammarSummary string
}

// PracticeInput fills the practice-module prompt.
type PracticeInput struct {
	Text             string
	DetectedLanguage string
	TargetLanguage   string
	NativeLanguage   string

	// WeakestPoint is the phrase from a previous [Coach.WeakestPoint] call.
	WeakestPoint string
}

// PronunciationInput fills the pronunciation-coaching prompt.
type PronunciationInput struct {
	Text           string
	TargetLanguage string

	// LatinHint is the approximate pronunciation produced by the latin package.
	LatinHint string

	// SoundAlikes optionally lists groups of similar-sounding words found in
	// the transcript.
	SoundAlikes [][]string
}

// Option configures a [Coach].
type Option func(*Coach)

// WithModel overrides the provider's default model for every request.
func WithModel(model string) Option {
	return func(c *Coach) {
		c.model = model
	}
}

// WithTimeout sets the per-call deadline. Non-positive values disable it.
// Default: 2m.
func WithTimeout(d time.Duration) Option {
	return func(c *Coach) {
		c.timeout = d
	}
}

// WithMetrics records call latency and errors on m.
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Coach) {
		c.metrics = m
	}
}

// WithProviderName sets the provider label used in metrics. Default: "llm".
func WithProviderName(name string) Option {
	return func(c *Coach) {
		c.providerName = name
	}
}

// Coach issues coaching requests against an [llm.Provider]. It is safe for
// concurrent use.
type Coach struct {
	provider     llm.Provider
	model        string
	timeout      time.Duration
	metrics      *observe.Metrics
	providerName string
}

// New creates a Coach backed by provider.
func New(provider llm.Provider, opts ...Option) *Coach {
	c := &Coach{
		provider:     provider,
		timeout:      DefaultTimeout,
		providerName: "llm",
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Model returns the model name requests are sent with.
func (c *Coach) Model() string {
	if c.model != "" {
		return c.model
	}
	return c.provider.Model()
}

// Provider returns the underlying LLM provider.
func (c *Coach) Provider() llm.Provider {
	return c.provider
}

// WeakestPoint asks the model for the learner's single weakest point and
// parses the reply.
func (c *Coach) WeakestPoint(ctx context.Context, in WeakestPointInput) (WeakestPoint, error) {
	prompt, err := render(weakestPointTmpl, in)
	if err != nil {
		return WeakestPoint{}, fmt.Errorf("coach: render weakest point prompt: %w", err)
	}
	reply, err := c.chat(ctx, weakestPointPersona, prompt)
	if err != nil {
		return WeakestPoint{}, fmt.Errorf("coach: weakest point: %w", err)
	}
	return ParseWeakestPoint(reply), nil
}

// PracticeModule asks the model for a practice lesson targeting
// in.WeakestPoint. The reply is returned as-is.
func (c *Coach) PracticeModule(ctx context.Context, in PracticeInput) (string, error) {
	prompt, err := render(practiceTmpl, in)
	if err != nil {
		return "", fmt.Errorf("coach: render practice prompt: %w", err)
	}
	reply, err := c.chat(ctx, practicePersona, prompt)
	if err != nil {
		return "", fmt.Errorf("coach: practice module: %w", err)
	}
	return reply, nil
}

// PronunciationFeedback asks the model for cautious pronunciation tips based
// on the transcript and its Latin hint. The reply is returned as-is.
func (c *Coach) PronunciationFeedback(ctx context.Context, in PronunciationInput) (string, error) {
	prompt, err := render(pronunciationTmpl, in)
	if err != nil {
		return "", fmt.Errorf("coach: render pronunciation prompt: %w", err)
	}
	reply, err := c.chat(ctx, pronunciationPersona, prompt)
	if err != nil {
		return "", fmt.Errorf("coach: pronunciation feedback: %w", err)
	}
	return reply, nil
}

// chat sends a single system+user exchange and returns the reply text.
func (c *Coach) chat(ctx context.Context, system, user string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	ctx, span := observe.StartSpan(ctx, "coach.chat",
		observe.AttrProvider.String(c.providerName),
		observe.AttrModel.String(c.Model()),
	)
	defer span.End()

	start := time.Now()
	resp, err := c.provider.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: system,
		Messages:     []llm.Message{llm.UserMessage(user)},
		Model:        c.model,
	})
	if c.metrics != nil {
		c.metrics.ObserveCall(ctx, observe.KindLLM, c.providerName, start, err)
	}
	if err != nil {
		return "", observe.Fail(span, err)
	}

	observe.Logger(ctx).Debug("coach: llm reply received",
		"model", c.Model(),
		"chars", len(resp.Content),
		"completion_tokens", resp.Usage.CompletionTokens,
	)
	return resp.Content, nil
}

// Package grammar adapts a grammar-checking backend to the coaching flow.
//
// [Adapter] maps short language codes to backend codes, keeps one checker per
// backend language for the life of the process, and condenses the backend's
// matches into a [Feedback] value with a one-line summary. Checkers are
// created lazily on first use. Concurrent first uses of the same language
// share a single construction, and each cached checker sits behind its own
// circuit breaker so a grammar server that is down fails fast.
package grammar

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/MrWong99/lingocoach/internal/observe"
	"github.com/MrWong99/lingocoach/internal/resilience"
	"github.com/MrWong99/lingocoach/pkg/provider/grammar"
)

// DefaultLanguage is the backend language used for unrecognised codes.
const DefaultLanguage = "en-US"

// MapLanguage maps a short language code to a LanguageTool code by
// case-insensitive prefix: en → en-US, de → de-DE, es → es, fr → fr.
// Anything else, including "unknown" and the empty string, maps to en-US.
func MapLanguage(code string) string {
	code = strings.ToLower(code)
	switch {
	case strings.HasPrefix(code, "en"):
		return "en-US"
	case strings.HasPrefix(code, "de"):
		return "de-DE"
	case strings.HasPrefix(code, "es"):
		return "es"
	case strings.HasPrefix(code, "fr"):
		return "fr"
	default:
		return DefaultLanguage
	}
}

// Feedback is the condensed result of one grammar check.
type Feedback struct {
	// NumMatches is the number of issues the backend flagged.
	NumMatches int `json:"num_matches"`

	// Summary is "<N> potential issues flagged by LanguageTool.".
	Summary string `json:"summary"`

	// Matches lists the issues with newlines in their context replaced by
	// spaces.
	Matches []grammar.Match `json:"matches"`
}

// pingText is checked by [Adapter.Ping] for checkers without a Ping method.
const pingText = "This is a test."

// Summarize builds the one-line summary for n flagged issues.
func Summarize(n int) string {
	return fmt.Sprintf("%d potential issues flagged by LanguageTool.", n)
}

// entry is one cached checker with its breaker.
type entry struct {
	checker grammar.Checker
	breaker *resilience.CircuitBreaker
}

// Option configures an [Adapter].
type Option func(*Adapter)

// WithMetrics records check latency, errors and breaker transitions on m.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *Adapter) {
		a.metrics = m
	}
}

// WithBreakerConfig sets the tuning used for every per-language breaker. The
// Name and OnStateChange fields are filled in by the adapter.
func WithBreakerConfig(cfg resilience.CircuitBreakerConfig) Option {
	return func(a *Adapter) {
		a.breakerCfg = cfg
	}
}

// WithProviderName sets the provider label used in metrics and breaker
// names. Default: "languagetool".
func WithProviderName(name string) Option {
	return func(a *Adapter) {
		a.providerName = name
	}
}

// Adapter owns the per-language checker cache. It is safe for concurrent use.
type Adapter struct {
	factory      grammar.Factory
	metrics      *observe.Metrics
	breakerCfg   resilience.CircuitBreakerConfig
	providerName string

	mu       sync.RWMutex
	checkers map[string]*entry
	inflight singleflight.Group
}

// New creates an Adapter that builds checkers with factory.
func New(factory grammar.Factory, opts ...Option) *Adapter {
	a := &Adapter{
		factory:      factory,
		providerName: "languagetool",
		checkers:     make(map[string]*entry),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Feedback checks text with the checker for langCode and condenses the
// result. Backend failures, including an open breaker, are returned.
func (a *Adapter) Feedback(ctx context.Context, text, langCode string) (Feedback, error) {
	key := MapLanguage(langCode)
	e, err := a.get(key)
	if err != nil {
		return Feedback{}, err
	}

	ctx, span := observe.StartSpan(ctx, "grammar.check",
		observe.AttrLanguage.String(key),
		observe.AttrProvider.String(a.providerName),
	)
	defer span.End()

	var matches []grammar.Match
	start := time.Now()
	err = e.breaker.Execute(func() error {
		var cerr error
		matches, cerr = e.checker.Check(ctx, text)
		return cerr
	})
	if a.metrics != nil {
		a.metrics.ObserveCall(ctx, observe.KindGrammar, a.providerName, start, err)
	}
	if err != nil {
		return Feedback{}, observe.Fail(span, fmt.Errorf("grammar: check %s: %w", key, err))
	}

	simplified := make([]grammar.Match, len(matches))
	for i, m := range matches {
		if m.Rule == "" {
			m.Rule = grammar.DefaultRule
		}
		m.Context = strings.ReplaceAll(m.Context, "\n", " ")
		simplified[i] = m
	}
	return Feedback{
		NumMatches: len(matches),
		Summary:    Summarize(len(matches)),
		Matches:    simplified,
	}, nil
}

// Ping tests the backend serving langCode outside the circuit breaker, so a
// failing readiness check never opens it for real traffic. Checkers that
// implement [grammar.Pinger] are pinged; others check a short sentence.
func (a *Adapter) Ping(ctx context.Context, langCode string) error {
	e, err := a.get(MapLanguage(langCode))
	if err != nil {
		return err
	}
	if p, ok := e.checker.(grammar.Pinger); ok {
		return p.Ping(ctx)
	}
	_, err = e.checker.Check(ctx, pingText)
	return err
}

// Languages returns the backend languages with a cached checker, sorted.
func (a *Adapter) Languages() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]string, 0, len(a.checkers))
	for k := range a.checkers {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// get returns the cached entry for key, constructing it once if needed.
func (a *Adapter) get(key string) (*entry, error) {
	a.mu.RLock()
	e, ok := a.checkers[key]
	a.mu.RUnlock()
	if ok {
		return e, nil
	}

	v, err, _ := a.inflight.Do(key, func() (any, error) {
		a.mu.RLock()
		e, ok := a.checkers[key]
		a.mu.RUnlock()
		if ok {
			return e, nil
		}

		checker, err := a.factory(key)
		if err != nil {
			return nil, fmt.Errorf("grammar: create checker for %s: %w", key, err)
		}
		cfg := a.breakerCfg
		cfg.Name = a.providerName + ":" + key
		if a.metrics != nil {
			m := a.metrics
			cfg.OnStateChange = func(name string, _, to resilience.State) {
				m.RecordCircuitStateChange(context.Background(), name, to.String())
			}
		}
		e = &entry{checker: checker, breaker: resilience.NewCircuitBreaker(cfg)}

		a.mu.Lock()
		a.checkers[key] = e
		a.mu.Unlock()
		return e, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*entry), nil
}

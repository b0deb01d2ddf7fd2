// Package app wires all lingocoach subsystems into a running application.
//
// The App struct owns the full lifecycle: New opens the attempt store and
// assembles the coaching service, Run serves the HTTP API until the context
// is cancelled, and Shutdown tears everything down in order.
//
// For testing, inject doubles via functional options (WithStore, WithClock).
// When an option is not provided, New creates real implementations from the
// config.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/MrWong99/lingocoach/internal/analysis"
	"github.com/MrWong99/lingocoach/internal/coach"
	"github.com/MrWong99/lingocoach/internal/config"
	"github.com/MrWong99/lingocoach/internal/grammar"
	"github.com/MrWong99/lingocoach/internal/health"
	"github.com/MrWong99/lingocoach/internal/observe"
	"github.com/MrWong99/lingocoach/internal/progress"
	"github.com/MrWong99/lingocoach/internal/pronounce"
	"github.com/MrWong99/lingocoach/internal/web"
	grammarprovider "github.com/MrWong99/lingocoach/pkg/provider/grammar"
	"github.com/MrWong99/lingocoach/pkg/provider/langid"
	"github.com/MrWong99/lingocoach/pkg/provider/llm"
	"github.com/MrWong99/lingocoach/pkg/provider/stt"
)

// readHeaderTimeout bounds how long a client may take to send request headers.
const readHeaderTimeout = 10 * time.Second

// Providers holds one value per collaborator slot. Populated by main.go via
// the config registry. LLM may be nil when the coach is configured without
// one; the other slots are required.
type Providers struct {
	LLM     llm.Provider
	STT     stt.Provider
	Grammar grammarprovider.Factory
	LangID  langid.Identifier
}

// App owns all subsystem lifetimes and serves the lingocoach HTTP API.
type App struct {
	cfg       *config.Config
	providers *Providers

	store   progress.Store
	metrics *observe.Metrics
	now     func() time.Time
	service *analysis.Service
	handler http.Handler
	server  *http.Server

	// closers are called in order during Shutdown.
	closers []func() error

	mu   sync.Mutex
	addr net.Addr

	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithStore injects an attempt store instead of opening one from config.
// The injected store is not closed on Shutdown.
func WithStore(s progress.Store) Option {
	return func(a *App) { a.store = s }
}

// WithMetrics records on m instead of [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithClock replaces the clock used to stamp attempts.
func WithClock(now func() time.Time) Option {
	return func(a *App) { a.now = now }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry).
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if err := checkProviders(cfg, providers); err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	a := &App{
		cfg:       cfg,
		providers: providers,
		now:       time.Now,
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	// ── 1. Attempt store ─────────────────────────────────────────────────
	if err := a.initStore(ctx); err != nil {
		return nil, fmt.Errorf("app: init store: %w", err)
	}

	// Providers holding native resources, such as an in-process whisper model,
	// are released last.
	if c, ok := providers.STT.(io.Closer); ok {
		a.closers = append(a.closers, c.Close)
	}

	// ── 2. Coaching service ──────────────────────────────────────────────
	gc := grammar.New(providers.Grammar,
		grammar.WithMetrics(a.metrics),
		grammar.WithProviderName(cfg.Providers.Grammar.Name),
	)
	c := a.buildCoach()
	a.service = analysis.New(providers.STT, providers.LangID, gc, c, a.store,
		analysis.WithDefaults(analysis.Defaults{
			TargetLanguage:        cfg.Coach.TargetLanguage,
			NativeLanguage:        cfg.Coach.NativeLanguage,
			SpeakerID:             cfg.Coach.SpeakerID,
			UseLLM:                cfg.Coach.LLMEnabled(),
			PronunciationFeedback: cfg.Coach.PronunciationFeedback,
		}),
		analysis.WithTargets(pronounce.Options{
			BiggestWords:  cfg.Coach.BiggestWords,
			MismatchWords: cfg.Coach.MismatchWords,
			SoundAlikes:   cfg.Coach.SoundAlikeGroups,
		}),
		analysis.WithProbeTimeout(cfg.Coach.ProbeTimeout),
		analysis.WithMetrics(a.metrics),
		analysis.WithClock(a.now),
		analysis.WithSTTName(cfg.Providers.STT.Name),
	)

	// ── 3. HTTP surface ──────────────────────────────────────────────────
	checks := []health.Checker{
		health.PingCheck("store", a.store),
		{Name: "grammar", Check: func(ctx context.Context) error {
			return gc.Ping(ctx, cfg.Coach.TargetLanguage)
		}},
	}
	if c != nil && cfg.Coach.LLMEnabled() {
		checks = append(checks, health.ModelCheck("llm", c.Model(), func(ctx context.Context, model string) bool {
			return llm.HasModel(ctx, c.Provider(), model)
		}))
	}
	a.handler = web.New(a.service,
		web.WithHealth(health.New(checks...)),
		web.WithMetrics(a.metrics),
		web.WithMetricsHandler(observe.MetricsHandler()),
	).Handler()
	a.server = &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           a.handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	return a, nil
}

// checkProviders reports missing required collaborators.
func checkProviders(cfg *config.Config, p *Providers) error {
	if p == nil {
		return errors.New("providers must not be nil")
	}
	var errs []error
	if p.STT == nil {
		errs = append(errs, errors.New("an STT provider is required"))
	}
	if p.Grammar == nil {
		errs = append(errs, errors.New("a grammar backend is required"))
	}
	if p.LangID == nil {
		errs = append(errs, errors.New("a language identifier is required"))
	}
	if p.LLM == nil && cfg.Coach.LLMEnabled() {
		slog.Warn("coach.use_llm is on but no LLM provider is configured; coaching runs without the LLM")
	}
	return errors.Join(errs...)
}

// initStore opens the configured attempt store unless one was injected.
func (a *App) initStore(ctx context.Context) error {
	if a.store != nil {
		return nil
	}
	store, err := progress.Open(ctx, progress.Config{
		Driver: string(a.cfg.Store.Driver),
		Path:   a.cfg.Store.Path,
		DSN:    a.cfg.Store.DSN,
	})
	if err != nil {
		return err
	}
	a.store = store
	a.closers = append(a.closers, store.Close)
	slog.Info("attempt store opened", "driver", a.cfg.Store.Driver)
	return nil
}

// buildCoach returns nil when no LLM provider is configured.
func (a *App) buildCoach() *coach.Coach {
	if a.providers.LLM == nil {
		return nil
	}
	// The configured model is already bound to the provider; leaving the
	// request model empty lets each fallback backend use its own.
	return coach.New(a.providers.LLM,
		coach.WithTimeout(a.cfg.Coach.LLMTimeout),
		coach.WithMetrics(a.metrics),
		coach.WithProviderName(a.cfg.Providers.LLM.Name),
	)
}

// Service returns the coaching service.
func (a *App) Service() *analysis.Service {
	return a.service
}

// Handler returns the HTTP handler serving the lingocoach API.
func (a *App) Handler() http.Handler {
	return a.handler
}

// Addr returns the address the server listens on, or nil before Run has
// bound its listener.
func (a *App) Addr() net.Addr {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.addr
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run serves the HTTP API and blocks until ctx is cancelled or the server
// fails. When ctx is done, Run returns context.Canceled (or the underlying
// cause). Call Shutdown afterwards to drain connections and close the store.
func (a *App) Run(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", a.server.Addr)
	if err != nil {
		return fmt.Errorf("app: listen %s: %w", a.server.Addr, err)
	}
	a.mu.Lock()
	a.addr = ln.Addr()
	a.mu.Unlock()

	errc := make(chan error, 1)
	go func() {
		if tls := a.cfg.Server.TLS; tls != nil {
			errc <- a.server.ServeTLS(ln, tls.CertFile, tls.KeyFile)
			return
		}
		errc <- a.server.Serve(ln)
	}()

	slog.Info("app running",
		"addr", ln.Addr().String(),
		"tls", a.cfg.Server.TLS != nil,
		"llm", a.cfg.Coach.LLMEnabled() && a.providers.LLM != nil,
	)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("app: serve: %w", err)
	}
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown stops the HTTP server, waiting for in-flight requests, then runs
// the closers in order. It respects the context deadline: if ctx expires
// before all closers finish, remaining closers are skipped and the context
// error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		if err := a.server.Shutdown(ctx); err != nil {
			slog.Warn("http server shutdown error", "err", err)
			shutdownErr = err
		}

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/lingocoach/internal/app"
	"github.com/MrWong99/lingocoach/internal/config"
	"github.com/MrWong99/lingocoach/internal/observe"
	"github.com/MrWong99/lingocoach/internal/resilience"
	"github.com/MrWong99/lingocoach/pkg/provider/grammar"
	"github.com/MrWong99/lingocoach/pkg/provider/grammar/languagetool"
	"github.com/MrWong99/lingocoach/pkg/provider/langid"
	"github.com/MrWong99/lingocoach/pkg/provider/langid/lingua"
	"github.com/MrWong99/lingocoach/pkg/provider/llm"
	"github.com/MrWong99/lingocoach/pkg/provider/llm/anyllm"
	"github.com/MrWong99/lingocoach/pkg/provider/llm/ollama"
	"github.com/MrWong99/lingocoach/pkg/provider/llm/openai"
	"github.com/MrWong99/lingocoach/pkg/provider/stt"
	"github.com/MrWong99/lingocoach/pkg/provider/stt/deepgram"
	"github.com/MrWong99/lingocoach/pkg/provider/stt/whisper"
)

// extraRegistrations are applied after the built-in providers. Build-tagged
// files append to it from init.
var extraRegistrations []func(*config.Registry)

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the appropriate
// provider from the real implementation packages.
func registerBuiltinProviders(reg *config.Registry) {
	// ── LLM ───────────────────────────────────────────────────────────────────

	// ollama talks to the local server directly; BaseURL is the address.
	reg.RegisterLLM("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []ollama.Option
		if d := optDuration(entry.Options, "timeout"); d > 0 {
			opts = append(opts, ollama.WithTimeout(d))
		}
		if d := optDuration(entry.Options, "probe_timeout"); d > 0 {
			opts = append(opts, ollama.WithProbeTimeout(d))
		}
		return ollama.New(entry.BaseURL, entry.Model, opts...)
	})

	reg.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []openai.Option
		if entry.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(entry.BaseURL))
		}
		if org := optString(entry.Options, "organization"); org != "" {
			opts = append(opts, openai.WithOrganization(org))
		}
		return openai.New(entry.APIKey, entry.Model, opts...)
	})

	// Every other any-llm-go backend takes an optional key and base URL.
	// ollama and openai keep their dedicated clients.
	for _, providerName := range anyllm.Backends() {
		if providerName == "ollama" || providerName == "openai" {
			continue
		}
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	// ── STT ───────────────────────────────────────────────────────────────────

	reg.RegisterSTT("whisper", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []whisper.Option
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		if d := optDuration(entry.Options, "timeout"); d > 0 {
			opts = append(opts, whisper.WithTimeout(d))
		}
		return whisper.New(entry.BaseURL, opts...)
	})

	reg.RegisterSTT("deepgram", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []deepgram.Option
		if entry.Model != "" {
			opts = append(opts, deepgram.WithModel(entry.Model))
		}
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, deepgram.WithLanguage(lang))
		}
		if entry.BaseURL != "" {
			opts = append(opts, deepgram.WithEndpoint(entry.BaseURL))
		}
		return deepgram.New(entry.APIKey, opts...)
	})

	// ── Grammar ───────────────────────────────────────────────────────────────

	reg.RegisterGrammar("languagetool", func(entry config.ProviderEntry) (grammar.Factory, error) {
		var opts []languagetool.Option
		if d := optDuration(entry.Options, "timeout"); d > 0 {
			opts = append(opts, languagetool.WithTimeout(d))
		}
		return languagetool.NewFactory(entry.BaseURL, opts...), nil
	})

	// ── Language identification ───────────────────────────────────────────────

	reg.RegisterLangID("lingua", func(entry config.ProviderEntry) (langid.Identifier, error) {
		var opts []lingua.Option
		if codes := optStrings(entry.Options, "languages"); len(codes) > 0 {
			opts = append(opts, lingua.WithLanguages(codes...))
		}
		if d := optFloat(entry.Options, "minimum_relative_distance"); d > 0 {
			opts = append(opts, lingua.WithMinimumRelativeDistance(d))
		}
		if optBool(entry.Options, "preload") {
			opts = append(opts, lingua.WithPreloadedModels())
		}
		if optBool(entry.Options, "low_accuracy") {
			opts = append(opts, lingua.WithLowAccuracyMode())
		}
		return lingua.New(opts...)
	})

	for _, register := range extraRegistrations {
		register(reg)
	}

	for _, kind := range []string{"llm", "stt", "grammar", "langid"} {
		slog.Debug("registered providers", "kind", kind, "names", reg.Names(kind))
	}
}

// buildProviders instantiates all providers named in cfg using the registry
// and returns them in an [app.Providers] struct for the application to consume.
// The LLM is skipped entirely when the coach runs without it.
func buildProviders(cfg *config.Config, reg *config.Registry) (*app.Providers, error) {
	ps := &app.Providers{}
	var errs []error

	if cfg.Coach.LLMEnabled() {
		p, err := buildLLM(cfg.Providers, reg)
		if err != nil {
			errs = append(errs, err)
		} else {
			ps.LLM = p
		}
	} else {
		slog.Info("llm disabled, coaching runs on grammar feedback only")
	}

	if p, err := buildSTT(cfg.Providers, reg); err != nil {
		errs = append(errs, err)
	} else {
		ps.STT = p
	}

	if f, err := reg.CreateGrammar(cfg.Providers.Grammar); err != nil {
		errs = append(errs, fmt.Errorf("create grammar backend %q: %w", cfg.Providers.Grammar.Name, err))
	} else {
		ps.Grammar = f
		slog.Info("provider created", "kind", "grammar", "name", cfg.Providers.Grammar.Name)
	}

	if id, err := reg.CreateLangID(cfg.Providers.LangID); err != nil {
		errs = append(errs, fmt.Errorf("create language identifier %q: %w", cfg.Providers.LangID.Name, err))
	} else {
		ps.LangID = id
		slog.Info("provider created", "kind", "langid", "name", cfg.Providers.LangID.Name)
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return ps, nil
}

// buildLLM creates the primary LLM and wraps it in a failover group when
// fallbacks are configured.
func buildLLM(pc config.ProvidersConfig, reg *config.Registry) (llm.Provider, error) {
	primary, err := reg.CreateLLM(pc.LLM)
	if err != nil {
		return nil, fmt.Errorf("create llm provider %q: %w", pc.LLM.Name, err)
	}
	slog.Info("provider created", "kind", "llm", "name", pc.LLM.Name)
	if len(pc.LLMFallbacks) == 0 {
		return primary, nil
	}
	fb := resilience.NewLLMFallback(primary, pc.LLM.Name, fallbackConfig())
	for i, entry := range pc.LLMFallbacks {
		p, err := reg.CreateLLM(entry)
		if err != nil {
			return nil, fmt.Errorf("create llm fallback %d %q: %w", i, entry.Name, err)
		}
		fb.AddFallback(entry.Name, p)
	}
	slog.Info("llm failover enabled", "order", fb.Names())
	return fb, nil
}

// buildSTT creates the primary STT engine and wraps it in a failover group
// when fallbacks are configured.
func buildSTT(pc config.ProvidersConfig, reg *config.Registry) (stt.Provider, error) {
	primary, err := reg.CreateSTT(pc.STT)
	if err != nil {
		return nil, fmt.Errorf("create stt provider %q: %w", pc.STT.Name, err)
	}
	slog.Info("provider created", "kind", "stt", "name", pc.STT.Name)
	if len(pc.STTFallbacks) == 0 {
		return primary, nil
	}
	fb := resilience.NewSTTFallback(primary, pc.STT.Name, fallbackConfig())
	for i, entry := range pc.STTFallbacks {
		p, err := reg.CreateSTT(entry)
		if err != nil {
			return nil, fmt.Errorf("create stt fallback %d %q: %w", i, entry.Name, err)
		}
		fb.AddFallback(entry.Name, p)
	}
	slog.Info("stt failover enabled", "order", fb.Names())
	return fb, nil
}

// fallbackConfig reports breaker transitions of fallback members on the
// default metrics.
func fallbackConfig() resilience.FallbackConfig {
	m := observe.DefaultMetrics()
	return resilience.FallbackConfig{CircuitBreaker: resilience.CircuitBreakerConfig{
		OnStateChange: func(name string, _, to resilience.State) {
			m.RecordCircuitStateChange(context.Background(), name, to.String())
		},
	}}
}

// ── Option helpers ────────────────────────────────────────────────────────────

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	s, _ := opts[key].(string)
	return s
}

// optStrings extracts a YAML sequence of strings. Non-string elements are
// skipped.
func optStrings(opts map[string]any, key string) []string {
	raw, ok := opts[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// optFloat accepts both YAML floats and integers.
func optFloat(opts map[string]any, key string) float64 {
	switch v := opts[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

func optBool(opts map[string]any, key string) bool {
	b, _ := opts[key].(bool)
	return b
}

// optDuration parses a Go duration string such as "45s". Invalid values are
// logged and ignored.
func optDuration(opts map[string]any, key string) time.Duration {
	s := optString(opts, key)
	if s == "" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		slog.Warn("ignoring invalid provider option", "key", key, "value", s, "err", err)
		return 0
	}
	return d
}

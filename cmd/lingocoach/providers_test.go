package main

import (
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/MrWong99/lingocoach/internal/config"
	"github.com/MrWong99/lingocoach/internal/resilience"
)

func defaultConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	return cfg
}

func TestRegisterBuiltinProviders(t *testing.T) {
	t.Parallel()

	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	for kind, want := range map[string][]string{
		"llm":     {"ollama", "openai", "anthropic", "groq"},
		"stt":     {"whisper", "deepgram"},
		"grammar": {"languagetool"},
		"langid":  {"lingua"},
	} {
		got := reg.Names(kind)
		for _, name := range want {
			if !slices.Contains(got, name) {
				t.Errorf("%s providers %q missing %q", kind, got, name)
			}
		}
	}
}

func TestBuildProviders_Defaults(t *testing.T) {
	t.Parallel()

	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	ps, err := buildProviders(defaultConfig(t), reg)
	if err != nil {
		t.Fatalf("buildProviders: %v", err)
	}
	if ps.LLM == nil || ps.STT == nil || ps.Grammar == nil || ps.LangID == nil {
		t.Errorf("providers = %+v, want every slot filled", ps)
	}
	if got := ps.LLM.Model(); got != config.DefaultOllamaModel {
		t.Errorf("llm model = %q, want %q", got, config.DefaultOllamaModel)
	}
}

func TestBuildProviders_LLMDisabled(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig(t)
	off := false
	cfg.Coach.UseLLM = &off
	cfg.Providers.LLM.Name = "not-registered"

	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	ps, err := buildProviders(cfg, reg)
	if err != nil {
		t.Fatalf("buildProviders: %v", err)
	}
	if ps.LLM != nil {
		t.Error("llm should not be built when the coach runs without it")
	}
}

func TestBuildProviders_UnknownNames(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig(t)
	cfg.Providers.STT.Name = "nope"
	cfg.Providers.Grammar.Name = "nope"

	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	_, err := buildProviders(cfg, reg)
	if !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Fatalf("err = %v, want ErrProviderNotRegistered", err)
	}
}

func TestBuildProviders_Fallbacks(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig(t)
	cfg.Providers.LLMFallbacks = []config.ProviderEntry{{Name: "openai", APIKey: "sk-test", Model: "gpt-4o-mini"}}
	cfg.Providers.STTFallbacks = []config.ProviderEntry{{Name: "deepgram", APIKey: "dg-test"}}

	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	ps, err := buildProviders(cfg, reg)
	if err != nil {
		t.Fatalf("buildProviders: %v", err)
	}
	llmFB, ok := ps.LLM.(*resilience.LLMFallback)
	if !ok {
		t.Fatalf("llm = %T, want *resilience.LLMFallback", ps.LLM)
	}
	if got := llmFB.Names(); !slices.Equal(got, []string{"ollama", "openai"}) {
		t.Errorf("llm order = %q", got)
	}
	if got := llmFB.Model(); got != config.DefaultOllamaModel {
		t.Errorf("llm model = %q, want the primary's", got)
	}
	sttFB, ok := ps.STT.(*resilience.STTFallback)
	if !ok {
		t.Fatalf("stt = %T, want *resilience.STTFallback", ps.STT)
	}
	if got := sttFB.Names(); !slices.Equal(got, []string{"whisper", "deepgram"}) {
		t.Errorf("stt order = %q", got)
	}
}

func TestBuildProviders_UnknownFallback(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig(t)
	cfg.Providers.STTFallbacks = []config.ProviderEntry{{Name: "nope"}}

	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	if _, err := buildProviders(cfg, reg); !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("err = %v, want ErrProviderNotRegistered", err)
	}
}

func TestOptionHelpers(t *testing.T) {
	t.Parallel()

	opts := map[string]any{
		"language":  "de",
		"languages": []any{"en", 3, "fr"},
		"distance":  0.25,
		"threads":   4,
		"preload":   true,
		"timeout":   "45s",
		"bad":       "soon",
	}
	if got := optString(opts, "language"); got != "de" {
		t.Errorf("optString = %q", got)
	}
	if got := optString(nil, "language"); got != "" {
		t.Errorf("optString(nil) = %q", got)
	}
	if got := optStrings(opts, "languages"); !slices.Equal(got, []string{"en", "fr"}) {
		t.Errorf("optStrings = %q", got)
	}
	if got := optFloat(opts, "distance"); got != 0.25 {
		t.Errorf("optFloat(distance) = %v", got)
	}
	if got := optFloat(opts, "threads"); got != 4 {
		t.Errorf("optFloat(threads) = %v", got)
	}
	if !optBool(opts, "preload") || optBool(opts, "language") {
		t.Error("optBool mismatch")
	}
	if got := optDuration(opts, "timeout"); got != 45*time.Second {
		t.Errorf("optDuration = %s", got)
	}
	if got := optDuration(opts, "bad"); got != 0 {
		t.Errorf("optDuration(bad) = %s, want 0", got)
	}
}

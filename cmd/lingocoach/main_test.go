package main

import (
	"log/slog"
	"strings"
	"testing"

	"github.com/MrWong99/lingocoach/internal/config"
)

func TestRun_Flags(t *testing.T) {
	t.Parallel()

	tests := []struct {
		args []string
		want int
	}{
		{[]string{"-version"}, 0},
		{[]string{"-h"}, 0},
		{[]string{"-no-such-flag"}, 2},
		{[]string{"-config", "/nonexistent/lingocoach.yaml"}, 1},
	}
	for _, tt := range tests {
		if got := run(tt.args); got != tt.want {
			t.Errorf("run(%q) = %d, want %d", tt.args, got, tt.want)
		}
	}
}

func TestWriteSummary(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig(t)
	cfg.Providers.LLMFallbacks = []config.ProviderEntry{{Name: "openai", Model: "llama3.2-3b-instruct"}}

	var sb strings.Builder
	writeSummary(&sb, cfg)
	out := sb.String()
	for _, want := range []string{
		"ollama / " + config.DefaultOllamaModel + ", then openai",
		"languagetool",
		"sqlite",
		cfg.Coach.TargetLanguage + " (native " + cfg.Coach.NativeLanguage + ")",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("summary lacks %q:\n%s", want, out)
		}
	}

	off := false
	cfg.Coach.UseLLM = &off
	sb.Reset()
	writeSummary(&sb, cfg)
	if !strings.Contains(sb.String(), "(disabled)") {
		t.Errorf("summary with LLM off:\n%s", sb.String())
	}
}

func TestSlogLevel(t *testing.T) {
	t.Parallel()

	for in, want := range map[config.LogLevel]slog.Level{
		config.LogDebug: slog.LevelDebug,
		config.LogInfo:  slog.LevelInfo,
		config.LogWarn:  slog.LevelWarn,
		config.LogError: slog.LevelError,
		"":              slog.LevelInfo,
	} {
		if got := slogLevel(in); got != want {
			t.Errorf("slogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

// Command lingocoach serves the offline speaking coach: it transcribes a
// learner's recording, checks its grammar and asks a local LLM for the
// weakest point and a practice drill, keeping every attempt for progress
// tracking.
//
//	lingocoach -config configs/example.yaml
//	lingocoach -check            # validate configuration and providers, then exit
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/MrWong99/lingocoach/internal/app"
	"github.com/MrWong99/lingocoach/internal/config"
	"github.com/MrWong99/lingocoach/internal/observe"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

// shutdownTimeout bounds graceful shutdown after a signal.
const shutdownTimeout = 15 * time.Second

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("lingocoach", flag.ContinueOnError)
	configPath := fs.String("config", "", "YAML configuration `file`; defaults and environment apply without one")
	check := fs.Bool("check", false, "validate the configuration, build all providers and exit")
	showVersion := fs.Bool("version", false, "print the version and exit")
	fs.Usage = func() {
		out := fs.Output()
		fmt.Fprintf(out, "Usage: lingocoach [flags]\n\nFlags:\n")
		fs.PrintDefaults()
		fmt.Fprintf(out, "\n%s", config.EnvUsage())
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if *showVersion {
		fmt.Println("lingocoach", version)
		return 0
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "lingocoach: config file %q not found; see configs/example.yaml\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "lingocoach: %v\n", err)
		}
		return 1
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slogLevel(cfg.Server.LogLevel),
	})))

	reg := config.NewRegistry()
	registerBuiltinProviders(reg)
	providers, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}
	writeSummary(os.Stdout, cfg)
	if *check {
		fmt.Println("configuration ok")
		return 0
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return serve(ctx, cfg, providers)
}

// serve runs the application until ctx is cancelled and shuts it down.
func serve(ctx context.Context, cfg *config.Config, providers *app.Providers) int {
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: version})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}

	application, err := app.New(ctx, cfg, providers)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}
	slog.Info("lingocoach ready", "version", version, "listen_addr", cfg.Server.ListenAddr)

	code := 0
	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("server stopped", "err", err)
		code = 1
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	slog.Info("shutting down")
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown", "err", err)
		code = 1
	}
	if err := otelShutdown(shutdownCtx); err != nil {
		slog.Warn("telemetry shutdown", "err", err)
	}
	return code
}

// writeSummary prints the resolved collaborators as an aligned table.
func writeSummary(w io.Writer, cfg *config.Config) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	row := func(k, v string) { fmt.Fprintf(tw, "  %s\t%s\n", k, v) }

	fmt.Fprintln(tw, "lingocoach", version)
	if cfg.Coach.LLMEnabled() {
		row("llm", describe(cfg.Providers.LLM, cfg.Providers.LLMFallbacks))
	} else {
		row("llm", "(disabled)")
	}
	row("stt", describe(cfg.Providers.STT, cfg.Providers.STTFallbacks))
	row("grammar", describe(cfg.Providers.Grammar, nil))
	row("langid", describe(cfg.Providers.LangID, nil))
	row("store", string(cfg.Store.Driver))
	row("languages", cfg.Coach.TargetLanguage+" (native "+cfg.Coach.NativeLanguage+")")
	row("listen", cfg.Server.ListenAddr)
	_ = tw.Flush()
}

func describe(e config.ProviderEntry, fallbacks []config.ProviderEntry) string {
	s := e.Name
	if e.Model != "" {
		s += " / " + e.Model
	}
	for _, fb := range fallbacks {
		s += ", then " + fb.Name
	}
	return s
}

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	}
	return slog.LevelInfo
}

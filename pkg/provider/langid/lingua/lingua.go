// Package lingua provides a langid.Identifier backed by the lingua-go
// statistical language detector. Everything runs in-process; no network
// access is needed.
//
// Example:
//
//	id, err := lingua.New(lingua.WithLanguages("en", "de", "es", "fr"))
//	code := id.Identify("Ich habe Hunger") // "de"
package lingua

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	lg "github.com/pemistahl/lingua-go"

	"github.com/MrWong99/lingocoach/pkg/provider/langid"
)

var _ langid.Identifier = (*Identifier)(nil)

// Option configures an [Identifier].
type Option func(*options)

type options struct {
	codes       []string
	minDistance float64
	preload     bool
	lowAccuracy bool
}

// WithLanguages restricts detection to the given ISO 639-1 codes. At least
// two codes are required. Default: every language lingua knows.
func WithLanguages(codes ...string) Option {
	return func(o *options) {
		o.codes = codes
	}
}

// WithMinimumRelativeDistance makes the detector answer [langid.Unknown]
// when the top two candidates are closer than d (0 to 0.99).
func WithMinimumRelativeDistance(d float64) Option {
	return func(o *options) {
		o.minDistance = d
	}
}

// WithPreloadedModels loads every language model at construction instead of
// lazily on first use.
func WithPreloadedModels() Option {
	return func(o *options) {
		o.preload = true
	}
}

// WithLowAccuracyMode trades accuracy on short texts for lower memory use and
// faster detection.
func WithLowAccuracyMode() Option {
	return func(o *options) {
		o.lowAccuracy = true
	}
}

// Identifier wraps a lingua-go detector. It is safe for concurrent use.
type Identifier struct {
	detector lg.LanguageDetector
}

// New builds a detector from opts.
func New(opts ...Option) (*Identifier, error) {
	var o options
	for _, fn := range opts {
		fn(&o)
	}
	if o.minDistance < 0 || o.minDistance >= 1 {
		return nil, fmt.Errorf("lingua: minimum relative distance %v out of range [0, 1)", o.minDistance)
	}

	var builder lg.LanguageDetectorBuilder
	if len(o.codes) == 0 {
		builder = lg.NewLanguageDetectorBuilder().FromAllLanguages()
	} else {
		langs, err := resolve(o.codes)
		if err != nil {
			return nil, err
		}
		builder = lg.NewLanguageDetectorBuilder().FromLanguages(langs...)
	}
	if o.minDistance > 0 {
		builder = builder.WithMinimumRelativeDistance(o.minDistance)
	}
	if o.preload {
		builder = builder.WithPreloadedLanguageModels()
	}
	if o.lowAccuracy {
		builder = builder.WithLowAccuracyMode()
	}
	return &Identifier{detector: builder.Build()}, nil
}

// resolve maps ISO 639-1 codes to lingua languages.
func resolve(codes []string) ([]lg.Language, error) {
	known := make(map[string]lg.Language)
	for _, l := range lg.AllLanguages() {
		known[strings.ToLower(l.IsoCode639_1().String())] = l
	}

	seen := make(map[lg.Language]bool, len(codes))
	langs := make([]lg.Language, 0, len(codes))
	var errs []error
	for _, c := range codes {
		l, ok := known[strings.ToLower(strings.TrimSpace(c))]
		if !ok {
			errs = append(errs, fmt.Errorf("lingua: unsupported language code %q", c))
			continue
		}
		if !seen[l] {
			seen[l] = true
			langs = append(langs, l)
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	if len(langs) < 2 {
		return nil, errors.New("lingua: at least two distinct languages are required")
	}
	return langs, nil
}

// Identify implements langid.Identifier.
func (id *Identifier) Identify(text string) (code string) {
	if strings.TrimSpace(text) == "" {
		return langid.Unknown
	}
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("lingua: detector panicked", "panic", r)
			code = langid.Unknown
		}
	}()

	lang, ok := id.detector.DetectLanguageOf(text)
	if !ok {
		return langid.Unknown
	}
	return strings.ToLower(lang.IsoCode639_1().String())
}

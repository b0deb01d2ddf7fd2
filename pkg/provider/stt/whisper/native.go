//go:build whisper_native

// This file contains the NativeProvider implementation backed by the
// whisper.cpp CGO bindings. The whisper.cpp static library (libwhisper.a)
// and headers (whisper.h) must be available at link time via LIBRARY_PATH
// and C_INCLUDE_PATH environment variables. Build with -tags whisper_native.

package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/MrWong99/lingocoach/pkg/audio"
	"github.com/MrWong99/lingocoach/pkg/provider/stt"
	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

// Compile-time assertion that NativeProvider satisfies stt.Provider.
var _ stt.Provider = (*NativeProvider)(nil)

// NativeProvider implements stt.Provider using whisper.cpp Go bindings
// (CGO), eliminating HTTP overhead entirely. The model is loaded once at
// construction and shared by every call; inference is serialised so that a
// single host never runs two decodes of the same model at once.
type NativeProvider struct {
	mu       sync.Mutex
	model    whisperlib.Model
	language string
	threads  uint
}

// NativeOption is a functional option for configuring a NativeProvider.
type NativeOption func(*NativeProvider)

// WithNativeLanguage sets the language used when a call passes no hint
// (e.g., "en", "de", "fr"). Defaults to automatic detection.
func WithNativeLanguage(lang string) NativeOption {
	return func(p *NativeProvider) { p.language = lang }
}

// WithNativeThreads sets the number of CPU threads whisper.cpp may use.
// Zero keeps the library default.
func WithNativeThreads(n uint) NativeOption {
	return func(p *NativeProvider) { p.threads = n }
}

// NewNative creates a NativeProvider that loads the whisper.cpp model from
// the given file path. The caller must call Close when the provider is no
// longer needed.
func NewNative(modelPath string, opts ...NativeOption) (*NativeProvider, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}

	p := &NativeProvider{model: model}
	for _, o := range opts {
		o(p)
	}
	slog.Info("whisper: native model loaded", "path", modelPath, "multilingual", model.IsMultilingual())
	return p, nil
}

// Close releases the whisper model.
func (p *NativeProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.model == nil {
		return nil
	}
	err := p.model.Close()
	p.model = nil
	return err
}

// Transcribe implements stt.Provider. The recording must be a 16-bit PCM WAV
// file; it is down-mixed to mono and resampled to 16 kHz before inference.
// ctx is only checked before inference starts because whisper.cpp cannot be
// interrupted mid-decode.
func (p *NativeProvider) Transcribe(ctx context.Context, data []byte, languageHint string) (stt.Result, error) {
	if len(data) == 0 {
		return stt.Result{}, stt.ErrEmptyAudio
	}
	clip, err := audio.PrepareForSpeech(data)
	if err != nil {
		return stt.Result{}, fmt.Errorf("whisper: decode audio: %w", err)
	}

	lang := languageHint
	if lang == "" {
		lang = p.language
	}
	if lang == "" {
		lang = autoLanguage
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return stt.Result{}, fmt.Errorf("whisper: %w", err)
	}
	if p.model == nil {
		return stt.Result{}, errors.New("whisper: provider is closed")
	}

	// Each context is NOT thread-safe, but the model can be shared.
	wctx, err := p.model.NewContext()
	if err != nil {
		return stt.Result{}, fmt.Errorf("whisper: create context: %w", err)
	}
	if p.threads > 0 {
		wctx.SetThreads(p.threads)
	}
	if err := wctx.SetLanguage(lang); err != nil {
		slog.Warn("whisper: failed to set language, using auto", "language", lang, "error", err)
		_ = wctx.SetLanguage(autoLanguage)
	}

	if err := wctx.Process(audio.PCMToFloat32(clip.Data), nil, nil, nil); err != nil {
		return stt.Result{}, fmt.Errorf("whisper: process audio: %w", err)
	}

	var sb strings.Builder
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stt.Result{}, fmt.Errorf("whisper: read segment: %w", err)
		}
		sb.WriteString(segment.Text)
	}

	detected := lang
	if lang == autoLanguage {
		detected = wctx.DetectedLanguage()
	}

	return stt.Result{
		Text:     strings.TrimSpace(sb.String()),
		Language: detected,
		Duration: clip.Duration(),
	}, nil
}

//go:build whisper_native

package whisper_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/MrWong99/lingocoach/pkg/audio"
	"github.com/MrWong99/lingocoach/pkg/provider/stt"
	"github.com/MrWong99/lingocoach/pkg/provider/stt/whisper"
)

// nativeModel loads the ggml model named by WHISPER_MODEL_PATH or skips.
func nativeModel(t *testing.T, opts ...whisper.NativeOption) *whisper.NativeProvider {
	t.Helper()
	path := os.Getenv("WHISPER_MODEL_PATH")
	if path == "" {
		t.Skip("WHISPER_MODEL_PATH not set")
	}
	p, err := whisper.NewNative(path, opts...)
	if err != nil {
		t.Fatalf("NewNative(%q): %v", path, err)
	}
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestNewNative_BadPath(t *testing.T) {
	for _, path := range []string{"", "/nonexistent/ggml-base.bin"} {
		if _, err := whisper.NewNative(path); err == nil {
			t.Errorf("NewNative(%q) succeeded", path)
		}
	}
}

func TestNative_BrowserRecording(t *testing.T) {
	p := nativeModel(t, whisper.WithNativeLanguage("fr"), whisper.WithNativeThreads(2))

	// A browser recorder typically delivers 48 kHz stereo; the provider must
	// down-mix and resample it before inference.
	wav := audio.EncodeWAV(audio.Clip{
		Data:   make([]byte, 3*48000*4),
		Format: audio.Format{SampleRate: 48000, Channels: 2},
	})
	res, err := p.Transcribe(context.Background(), wav, "")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if res.Language != "fr" {
		t.Errorf("Language = %q, want the configured fr", res.Language)
	}
	if res.Duration != 3*time.Second {
		t.Errorf("Duration = %v, want 3s", res.Duration)
	}

	// A per-call hint overrides the configured language.
	res, err = p.Transcribe(context.Background(), wav, "de")
	if err != nil {
		t.Fatalf("Transcribe with hint: %v", err)
	}
	if res.Language != "de" {
		t.Errorf("Language = %q, want the hinted de", res.Language)
	}
}

func TestNative_Errors(t *testing.T) {
	p := nativeModel(t)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	silence := audio.EncodeWAV(audio.Clip{Data: make([]byte, 32000), Format: audio.Format{SampleRate: 16000, Channels: 1}})

	tests := []struct {
		name string
		ctx  context.Context
		data []byte
		want error
	}{
		{"empty", context.Background(), nil, stt.ErrEmptyAudio},
		{"not wav", context.Background(), []byte("not audio"), audio.ErrNotWAV},
		{"cancelled", cancelled, silence, context.Canceled},
	}
	for _, tt := range tests {
		if _, err := p.Transcribe(tt.ctx, tt.data, ""); !errors.Is(err, tt.want) {
			t.Errorf("%s: error = %v, want %v", tt.name, err, tt.want)
		}
	}

	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := p.Transcribe(context.Background(), silence, ""); err == nil {
		t.Error("Transcribe after Close succeeded")
	}
}

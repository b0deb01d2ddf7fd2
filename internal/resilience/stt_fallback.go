package resilience

import (
	"context"
	"errors"

	"github.com/MrWong99/lingocoach/pkg/provider/stt"
)

// STTFallback implements [stt.Provider] with failover across several
// transcription engines, each behind its own circuit breaker.
type STTFallback struct {
	group *FallbackGroup[stt.Provider]
}

var _ stt.Provider = (*STTFallback)(nil)

// NewSTTFallback creates an [STTFallback] with primary as the preferred engine.
func NewSTTFallback(primary stt.Provider, primaryName string, cfg FallbackConfig) *STTFallback {
	return &STTFallback{group: NewFallbackGroup(primary, primaryName, cfg)}
}

// AddFallback registers an additional STT provider.
func (f *STTFallback) AddFallback(name string, provider stt.Provider) {
	f.group.AddFallback(name, provider)
}

// Names returns the engine names in try order.
func (f *STTFallback) Names() []string {
	return f.group.Names()
}

// Transcribe runs the recording through the first healthy engine. Empty
// audio is rejected up front instead of being tried on every engine.
func (f *STTFallback) Transcribe(ctx context.Context, audio []byte, languageHint string) (stt.Result, error) {
	if len(audio) == 0 {
		return stt.Result{}, stt.ErrEmptyAudio
	}
	return ExecuteWithResult(ctx, f.group, func(p stt.Provider) (stt.Result, error) {
		return p.Transcribe(ctx, audio, languageHint)
	})
}

// Close closes every engine that holds resources and joins their errors.
func (f *STTFallback) Close() error {
	var errs []error
	for _, e := range f.group.entries {
		if c, ok := e.value.(interface{ Close() error }); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}

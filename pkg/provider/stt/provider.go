// Package stt defines the Provider interface for Speech-to-Text backends.
//
// An STT provider wraps a transcription engine (a whisper.cpp server, the
// in-process whisper.cpp bindings, or Deepgram's prerecorded API) and turns a
// finished recording into text in one blocking call. Recordings are passed as
// the raw bytes of an audio file, typically a 16-bit PCM WAV.
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"
	"errors"
)

// ErrEmptyAudio is returned when Transcribe is called without audio bytes.
var ErrEmptyAudio = errors.New("stt: empty audio")

// Provider is the abstraction over any STT backend.
type Provider interface {
	// Transcribe converts a recording into text. languageHint is an ISO 639-1
	// code (e.g., "en", "de"); an empty hint lets the engine detect the
	// language.
	//
	// Returns an error if the audio cannot be decoded, the engine answers with
	// a failure, or ctx is cancelled.
	Transcribe(ctx context.Context, audio []byte, languageHint string) (Result, error)
}

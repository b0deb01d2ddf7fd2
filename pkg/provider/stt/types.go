package stt

import "time"

// Result is the outcome of transcribing one recording.
type Result struct {
	// Text is the transcribed speech with surrounding whitespace removed.
	Text string

	// Language is the language the engine transcribed in: the hint when one
	// was given, otherwise the detected language. Empty if unknown.
	Language string

	// LanguageProbability is the engine's confidence in Language (0.0–1.0).
	// Zero when the provider does not report it.
	LanguageProbability float64

	// Duration is the length of the recording.
	Duration time.Duration
}

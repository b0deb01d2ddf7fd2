// Package audio decodes and normalises recorded speech for transcription.
//
// Recordings arrive as RIFF/WAV files holding 16-bit signed little-endian PCM.
// [DecodeWAV] extracts the samples into a [Clip], [Convert] resamples and
// down-mixes it to the format a speech model expects, and [EncodeWAV] wraps
// PCM back into a WAV container for upload.
package audio

import "time"

// Format describes the sample rate and channel count of PCM audio.
type Format struct {
	SampleRate int
	Channels   int
}

// SpeechFormat is the 16 kHz mono format expected by whisper models.
var SpeechFormat = Format{SampleRate: 16000, Channels: 1}

// Clip is a finished recording of 16-bit signed little-endian PCM.
type Clip struct {
	// Data holds interleaved int16 samples, two bytes each.
	Data []byte

	Format
}

// Frames returns the number of sample frames (one sample per channel) in c.
func (c Clip) Frames() int {
	if c.Channels <= 0 {
		return 0
	}
	return len(c.Data) / (2 * c.Channels)
}

// Duration returns the playback length of c.
func (c Clip) Duration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(c.Frames()) * time.Second / time.Duration(c.SampleRate)
}

package audio_test

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/MrWong99/lingocoach/pkg/audio"
)

// samplesToBytes converts a slice of int16 samples to little-endian byte representation.
func samplesToBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

// bytesToSamples converts a little-endian byte slice to int16 samples.
func bytesToSamples(b []byte) []int16 {
	samples := make([]int16, len(b)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return samples
}

func equalSamples(t *testing.T, got, want []int16) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d: got %d, want %d", i, got[i], want[i])
		}
	}
}

func TestStereoToMono(t *testing.T) {
	t.Parallel()
	// Two stereo frames: L=100,R=200 and L=-100,R=-200
	stereo := samplesToBytes([]int16{100, 200, -100, -200})
	equalSamples(t, bytesToSamples(audio.StereoToMono(stereo)), []int16{150, -150})
}

func TestStereoToMono_NoOverflow(t *testing.T) {
	t.Parallel()
	stereo := samplesToBytes([]int16{32767, 32767, -32768, -32768})
	equalSamples(t, bytesToSamples(audio.StereoToMono(stereo)), []int16{32767, -32768})
}

func TestDownmixToMono_ThreeChannels(t *testing.T) {
	t.Parallel()
	pcm := samplesToBytes([]int16{300, 600, 900, 3, 6, 9, 1})
	// The trailing partial frame is dropped.
	equalSamples(t, bytesToSamples(audio.DownmixToMono(pcm, 3)), []int16{600, 6})
}

func TestResampleMono16_Upsample(t *testing.T) {
	t.Parallel()
	// 2 samples at 16kHz → 6 samples at 48kHz (3x)
	pcm := samplesToBytes([]int16{1000, 2000})
	got := bytesToSamples(audio.ResampleMono16(pcm, 16000, 48000))
	if len(got) != 6 {
		t.Fatalf("expected 6 samples, got %d", len(got))
	}
	if got[0] != 1000 {
		t.Errorf("first sample: got %d, want 1000", got[0])
	}
	last := got[len(got)-1]
	if last < 1800 || last > 2200 {
		t.Errorf("last sample: got %d, want close to 2000", last)
	}
}

func TestResampleMono16_Downsample(t *testing.T) {
	t.Parallel()
	// 6 samples at 48kHz → 2 samples at 16kHz (1/3x)
	pcm := samplesToBytes([]int16{100, 200, 300, 400, 500, 600})
	equalSamples(t, bytesToSamples(audio.ResampleMono16(pcm, 48000, 16000)), []int16{100, 400})
}

func TestResampleMono16_ZeroRate(t *testing.T) {
	t.Parallel()
	pcm := samplesToBytes([]int16{100, 200})
	for _, rates := range [][2]int{{0, 48000}, {48000, 0}, {-1, 48000}} {
		if out := audio.ResampleMono16(pcm, rates[0], rates[1]); len(out) != len(pcm) {
			t.Errorf("ResampleMono16(%d, %d): expected unchanged output, got len %d", rates[0], rates[1], len(out))
		}
	}
}

func TestConvert_NoOp(t *testing.T) {
	t.Parallel()
	clip := audio.Clip{Data: samplesToBytes([]int16{100, 200}), Format: audio.SpeechFormat}
	got := audio.Convert(clip, audio.SpeechFormat)
	if &got.Data[0] != &clip.Data[0] {
		t.Error("expected the same slice when formats match")
	}
}

func TestConvert_StereoToSpeechFormat(t *testing.T) {
	t.Parallel()
	// 48 stereo frames at 48kHz: L=1000, R=3000.
	samples := make([]int16, 0, 96)
	for range 48 {
		samples = append(samples, 1000, 3000)
	}
	clip := audio.Clip{Data: samplesToBytes(samples), Format: audio.Format{SampleRate: 48000, Channels: 2}}

	got := audio.Convert(clip, audio.SpeechFormat)
	if got.Format != audio.SpeechFormat {
		t.Fatalf("Format = %+v, want %+v", got.Format, audio.SpeechFormat)
	}
	mono := bytesToSamples(got.Data)
	if len(mono) != 16 {
		t.Fatalf("expected 16 samples, got %d", len(mono))
	}
	for i, s := range mono {
		if s != 2000 {
			t.Errorf("sample %d: got %d, want 2000", i, s)
		}
	}
}

func TestClip_Duration(t *testing.T) {
	t.Parallel()
	clip := audio.Clip{Data: make([]byte, 16000*2*2), Format: audio.Format{SampleRate: 16000, Channels: 2}}
	if got := clip.Duration(); got != time.Second {
		t.Errorf("Duration() = %v, want 1s", got)
	}
	if got := (audio.Clip{}).Duration(); got != 0 {
		t.Errorf("zero Clip Duration() = %v, want 0", got)
	}
}

func TestPCMToFloat32(t *testing.T) {
	t.Parallel()
	got := audio.PCMToFloat32(append(samplesToBytes([]int16{0, 16384, -32768}), 0x7f))
	want := []float32{0, 0.5, -1}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

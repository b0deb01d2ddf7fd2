package audio

import (
	"encoding/binary"
	"fmt"
	"log/slog"
)

// Convert returns c in the target format. If the source already matches, c
// is returned unchanged. Conversion order: down-mix first, then resample.
// Only down-mixing is supported; a target with more channels than the source
// keeps the source channel count.
func Convert(c Clip, target Format) Clip {
	if c.Format == target {
		return c
	}

	slog.Debug("audio: converting clip",
		"from", formatString(c.SampleRate, c.Channels),
		"to", formatString(target.SampleRate, target.Channels),
	)

	pcm := c.Data
	channels := c.Channels
	if target.Channels == 1 && channels > 1 {
		pcm = DownmixToMono(pcm, channels)
		channels = 1
	}

	rate := c.SampleRate
	if target.SampleRate > 0 && rate != target.SampleRate {
		if channels == 1 {
			pcm = ResampleMono16(pcm, rate, target.SampleRate)
		} else {
			pcm = resampleInterleaved16(pcm, channels, rate, target.SampleRate)
		}
		rate = target.SampleRate
	}

	return Clip{Data: pcm, Format: Format{SampleRate: rate, Channels: channels}}
}

// DownmixToMono averages every frame of interleaved 16-bit PCM with the given
// channel count into one mono sample. Uses int32 arithmetic to prevent
// overflow. A trailing partial frame is dropped.
func DownmixToMono(pcm []byte, channels int) []byte {
	if channels <= 1 {
		return pcm
	}
	frameBytes := 2 * channels
	frames := len(pcm) / frameBytes
	out := make([]byte, frames*2)
	for i := range frames {
		var sum int32
		for ch := range channels {
			idx := i*frameBytes + ch*2
			sum += int32(int16(binary.LittleEndian.Uint16(pcm[idx:])))
		}
		avg := sum / int32(channels)
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(avg)))
	}
	return out
}

// StereoToMono averages L+R per stereo frame (4 bytes) to produce mono output.
func StereoToMono(pcm []byte) []byte {
	return DownmixToMono(pcm, 2)
}

// ResampleMono16 resamples 16-bit mono PCM from srcRate to dstRate using linear
// interpolation. The input must be little-endian int16 samples. If srcRate ==
// dstRate, the input is returned unchanged.
func ResampleMono16(pcm []byte, srcRate, dstRate int) []byte {
	return resampleInterleaved16(pcm, 1, srcRate, dstRate)
}

// resampleInterleaved16 resamples interleaved 16-bit PCM with any channel
// count using per-channel linear interpolation.
func resampleInterleaved16(pcm []byte, channels, srcRate, dstRate int) []byte {
	if srcRate <= 0 || dstRate <= 0 || channels <= 0 {
		return pcm
	}
	frameBytes := 2 * channels
	if srcRate == dstRate || len(pcm) < frameBytes {
		return pcm
	}
	srcFrames := len(pcm) / frameBytes
	dstFrames := int(int64(srcFrames) * int64(dstRate) / int64(srcRate))
	if dstFrames == 0 {
		return nil
	}

	sample := func(frame, ch int) int16 {
		return int16(binary.LittleEndian.Uint16(pcm[frame*frameBytes+ch*2:]))
	}

	out := make([]byte, dstFrames*frameBytes)
	ratio := float64(srcRate) / float64(dstRate)

	for i := range dstFrames {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := srcPos - float64(srcIdx)

		for ch := range channels {
			s0 := sample(srcIdx, ch)
			s1 := s0
			if srcIdx+1 < srcFrames {
				s1 = sample(srcIdx+1, ch)
			}
			v := int16(float64(s0)*(1-frac) + float64(s1)*frac)
			binary.LittleEndian.PutUint16(out[i*frameBytes+ch*2:], uint16(v))
		}
	}
	return out
}

// PCMToFloat32 converts 16-bit signed little-endian PCM audio to float32
// samples normalised to the range [-1.0, 1.0]. Any trailing odd byte is
// ignored.
func PCMToFloat32(pcm []byte) []float32 {
	n := len(pcm) / 2
	samples := make([]float32, n)
	for i := range n {
		s := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		samples[i] = float32(s) / 32768.0
	}
	return samples
}

// formatString returns a human-readable string for a sample rate and channel count,
// e.g. "48000Hz stereo".
func formatString(rate, channels int) string {
	ch := "mono"
	if channels == 2 {
		ch = "stereo"
	} else if channels > 2 {
		ch = fmt.Sprintf("%dch", channels)
	}
	return fmt.Sprintf("%dHz %s", rate, ch)
}

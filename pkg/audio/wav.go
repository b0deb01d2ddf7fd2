package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	// ErrNotWAV is returned by [DecodeWAV] when the input is not a RIFF/WAVE file.
	ErrNotWAV = errors.New("audio: not a RIFF/WAVE file")

	// ErrUnsupportedWAV is returned for WAV files that do not hold 16-bit PCM.
	ErrUnsupportedWAV = errors.New("audio: unsupported WAV encoding")
)

const (
	wavFormatPCM        = 1
	wavFormatExtensible = 0xFFFE
	bitsPerSample       = 16
)

// IsWAV reports whether data starts with a RIFF/WAVE header.
func IsWAV(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE"
}

// DecodeWAV parses a RIFF/WAVE file holding 16-bit PCM and returns its
// samples. Unknown chunks such as LIST are skipped. A data chunk whose
// declared size runs past the end of the input is truncated to what is
// present, which happens with recordings streamed before their header was
// finalised.
func DecodeWAV(data []byte) (Clip, error) {
	if !IsWAV(data) {
		return Clip{}, ErrNotWAV
	}

	var (
		format  Format
		haveFmt bool
	)
	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8
		end := body + size
		if size < 0 || end > len(data) || end < body {
			end = len(data)
		}

		switch id {
		case "fmt ":
			if end-body < 16 {
				return Clip{}, fmt.Errorf("%w: fmt chunk too short", ErrUnsupportedWAV)
			}
			tag := binary.LittleEndian.Uint16(data[body:])
			channels := int(binary.LittleEndian.Uint16(data[body+2:]))
			rate := int(binary.LittleEndian.Uint32(data[body+4:]))
			bits := int(binary.LittleEndian.Uint16(data[body+14:]))
			if tag != wavFormatPCM && tag != wavFormatExtensible {
				return Clip{}, fmt.Errorf("%w: format tag %#x", ErrUnsupportedWAV, tag)
			}
			if bits != bitsPerSample {
				return Clip{}, fmt.Errorf("%w: %d bits per sample", ErrUnsupportedWAV, bits)
			}
			if channels <= 0 || rate <= 0 {
				return Clip{}, fmt.Errorf("%w: %d channels at %d Hz", ErrUnsupportedWAV, channels, rate)
			}
			format = Format{SampleRate: rate, Channels: channels}
			haveFmt = true

		case "data":
			if !haveFmt {
				return Clip{}, fmt.Errorf("%w: data chunk before fmt chunk", ErrUnsupportedWAV)
			}
			pcm := data[body:end]
			// Drop a trailing partial frame.
			frameBytes := 2 * format.Channels
			pcm = pcm[:len(pcm)-len(pcm)%frameBytes]
			return Clip{Data: pcm, Format: format}, nil
		}

		// Chunks are padded to an even size.
		pos = end + size%2
	}

	if !haveFmt {
		return Clip{}, fmt.Errorf("%w: missing fmt chunk", ErrUnsupportedWAV)
	}
	return Clip{}, fmt.Errorf("%w: missing data chunk", ErrUnsupportedWAV)
}

// EncodeWAV wraps c in a canonical 44-byte-header RIFF/WAV container.
func EncodeWAV(c Clip) []byte {
	byteRate := c.SampleRate * c.Channels * bitsPerSample / 8
	blockAlign := c.Channels * bitsPerSample / 8
	dataSize := len(c.Data)

	buf := make([]byte, 44+dataSize)

	// RIFF chunk descriptor
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize)) // file size - 8
	copy(buf[8:12], "WAVE")

	// fmt sub-chunk
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)                   // sub-chunk size (PCM)
	binary.LittleEndian.PutUint16(buf[20:22], wavFormatPCM)         // audio format
	binary.LittleEndian.PutUint16(buf[22:24], uint16(c.Channels))   // num channels
	binary.LittleEndian.PutUint32(buf[24:28], uint32(c.SampleRate)) // sample rate
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))     // byte rate
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))   // block align
	binary.LittleEndian.PutUint16(buf[34:36], bitsPerSample)        // bits per sample

	// data sub-chunk
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	copy(buf[44:], c.Data)

	return buf
}

// PrepareForSpeech decodes a WAV recording and converts it to [SpeechFormat].
func PrepareForSpeech(data []byte) (Clip, error) {
	clip, err := DecodeWAV(data)
	if err != nil {
		return Clip{}, err
	}
	return Convert(clip, SpeechFormat), nil
}

package audio

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	// DefaultPlaybackRate is the sample rate of synthesized speech.
	DefaultPlaybackRate = 24000

	// DefaultCaptureRate is the sample rate expected by the live endpoint.
	DefaultCaptureRate = 16000

	// WAVHeaderSize is the size of the canonical PCM WAV header.
	WAVHeaderSize = 44

	pcmScale = 0x7FFF
)

// ErrDecode is returned when an audio payload cannot be decoded.
var ErrDecode = errors.New("audio decode failed")

// PCMToWAV wraps base64 encoded 16-bit mono PCM in a canonical 44-byte WAV
// container and returns the container as base64. A sampleRate of zero or less
// selects DefaultPlaybackRate.
func PCMToWAV(base64PCM string, sampleRate int) (string, error) {
	if sampleRate <= 0 {
		sampleRate = DefaultPlaybackRate
	}

	pcm, err := base64.StdEncoding.DecodeString(base64PCM)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecode, err)
	}

	var out strings.Builder
	out.Grow(base64.StdEncoding.EncodedLen(WAVHeaderSize + len(pcm)))

	// Stream through the encoder so large payloads are encoded in pieces.
	enc := base64.NewEncoder(base64.StdEncoding, &out)
	if _, err := enc.Write(WAVHeader(len(pcm), sampleRate)); err != nil {
		return "", err
	}
	if err := writeChunked(enc, pcm, 0x8000); err != nil {
		return "", err
	}
	if err := enc.Close(); err != nil {
		return "", err
	}

	return out.String(), nil
}

// WAVHeader builds the 44-byte header for dataSize bytes of 16-bit mono PCM.
func WAVHeader(dataSize, sampleRate int) []byte {
	const (
		channels      = 1
		bitsPerSample = 16
	)
	blockAlign := channels * bitsPerSample / 8
	byteRate := sampleRate * blockAlign

	h := make([]byte, WAVHeaderSize)
	copy(h[0:4], "RIFF")
	binary.LittleEndian.PutUint32(h[4:8], uint32(36+dataSize))
	copy(h[8:12], "WAVE")
	copy(h[12:16], "fmt ")
	binary.LittleEndian.PutUint32(h[16:20], 16)
	binary.LittleEndian.PutUint16(h[20:22], 1)
	binary.LittleEndian.PutUint16(h[22:24], channels)
	binary.LittleEndian.PutUint32(h[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(h[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(h[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(h[34:36], bitsPerSample)
	copy(h[36:40], "data")
	binary.LittleEndian.PutUint32(h[40:44], uint32(dataSize))
	return h
}

func writeChunked(w io.Writer, data []byte, chunkSize int) error {
	for start := 0; start < len(data); start += chunkSize {
		end := start + chunkSize
		if end > len(data) {
			end = len(data)
		}
		if _, err := w.Write(data[start:end]); err != nil {
			return err
		}
	}
	return nil
}

// DecodeBase64PCM16 decodes base64 little-endian 16-bit PCM into samples in
// [-1, 1]. Malformed input yields an empty slice and an error wrapping
// ErrDecode; callers log and carry on. A trailing odd byte is ignored.
func DecodeBase64PCM16(b64 string) ([]float32, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return []float32{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return Int16ToFloat32(BytesToInt16(raw)), nil
}

// EncodeFloat32ToBase64PCM16 converts samples to little-endian 16-bit PCM and
// returns it base64 encoded. Samples outside [-1, 1] are clamped.
func EncodeFloat32ToBase64PCM16(samples []float32) string {
	return base64.StdEncoding.EncodeToString(Int16ToBytes(Float32ToInt16(samples)))
}

// BytesToInt16 reinterprets little-endian bytes as 16-bit samples.
func BytesToInt16(data []byte) []int16 {
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return samples
}

// Int16ToBytes serializes samples as little-endian bytes.
func Int16ToBytes(samples []int16) []byte {
	data := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(s))
	}
	return data
}

// Int16ToFloat32 scales 16-bit samples into [-1, 1].
func Int16ToFloat32(samples []int16) []float32 {
	out := make([]float32, len(samples))
	for i, s := range samples {
		v := float32(s) / pcmScale
		if v < -1 {
			v = -1
		}
		out[i] = v
	}
	return out
}

// Float32ToInt16 clamps samples to [-1, 1] and scales them to 16-bit range.
func Float32ToInt16(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		out[i] = int16(s * pcmScale)
	}
	return out
}

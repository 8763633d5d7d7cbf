// Package audio converts capture-device float blocks into the wire PCM
// representation and computes the RMS energy the segmenter classifies on.
package audio

import (
	"encoding/base64"
	"encoding/binary"
	"math"
)

const (
	SampleRate = 16000
	MimeType   = "audio/pcm;rate=16000"
)

// Chunk is one transport-safe encoded audio payload.
type Chunk struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

// PCM16FromFloat32 converts normalized float samples to 16-bit little-endian
// PCM. Samples are clamped to [-1, 1]; negative values scale by 32768,
// non-negative by 32767, truncated toward zero.
func PCM16FromFloat32(samples []float32) []byte {
	out := make([]byte, 2*len(samples))
	for i, s := range samples {
		if s < -1 {
			s = -1
		} else if s > 1 {
			s = 1
		}
		var v int16
		if s < 0 {
			v = int16(s * 32768)
		} else {
			v = int16(s * 32767)
		}
		binary.LittleEndian.PutUint16(out[2*i:], uint16(v))
	}
	return out
}

// Float32FromPCM16 is the inverse scale, used to verify round trips.
func Float32FromPCM16(pcm []byte) []float32 {
	out := make([]float32, len(pcm)/2)
	for i := range out {
		v := int16(binary.LittleEndian.Uint16(pcm[2*i:]))
		if v < 0 {
			out[i] = float32(v) / 32768
		} else {
			out[i] = float32(v) / 32767
		}
	}
	return out
}

// EncodeChunk wraps a PCM payload in the outbound media chunk shape.
func EncodeChunk(pcm []byte) Chunk {
	return Chunk{
		MimeType: MimeType,
		Data:     base64.StdEncoding.EncodeToString(pcm),
	}
}

// EncodeFrame converts one float block straight to a media chunk.
func EncodeFrame(samples []float32) Chunk {
	return EncodeChunk(PCM16FromFloat32(samples))
}

// RMS returns the root-mean-square energy of normalized float samples.
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// RMSPCM16 returns the RMS energy of a 16-bit little-endian PCM payload on
// the same normalized scale as RMS.
func RMSPCM16(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		v := float64(int16(binary.LittleEndian.Uint16(pcm[2*i:]))) / 32768
		sum += v * v
	}
	return math.Sqrt(sum / float64(n))
}

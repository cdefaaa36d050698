package audio

import (
	"fmt"
	"math"
)

// MeanSquare returns the mean squared amplitude of samples, the energy
// measure used by the speech detector. Returns 0 for an empty slice.
func MeanSquare(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return sum / float64(len(samples))
}

// Float32ToPCM16 converts [-1, 1] float samples to 16-bit signed PCM,
// clamping out-of-range values.
func Float32ToPCM16(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		v := float64(s) * 32767
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		out[i] = int16(math.Round(v))
	}
	return out
}

// PCM16ToFloat32 converts 16-bit signed PCM samples to [-1, 1] floats.
func PCM16ToFloat32(samples []int16) []float32 {
	out := make([]float32, len(samples))
	for i, s := range samples {
		out[i] = float32(s) / 32768.0
	}
	return out
}

// PCM16BytesToFloat32 decodes little-endian 16-bit PCM bytes to floats.
// Used by the streaming endpoint, which receives raw PCM frames.
func PCM16BytesToFloat32(data []byte) ([]float32, error) {
	if len(data)%2 != 0 {
		return nil, fmt.Errorf("pcm data length must be even, got %d bytes", len(data))
	}
	out := make([]float32, len(data)/2)
	for i := range out {
		v := int16(data[i*2]) | int16(data[i*2+1])<<8
		out[i] = float32(v) / 32768.0
	}
	return out, nil
}

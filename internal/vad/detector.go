package vad

import (
	"github.com/streamvox/asr-gateway/internal/audio"
)

// Detector classifies a fixed-size sub-chunk of audio as speech or silence.
// Implementations may keep internal state; Reset clears it when a speech
// segment finalizes or the stream resets.
type Detector interface {
	Detect(chunk []float32) bool
	Reset()
}

// EnergyDetector classifies a chunk as speech when its mean squared
// amplitude exceeds the threshold. Stateless.
type EnergyDetector struct {
	Threshold float64
}

// NewEnergyDetector creates an energy detector with the given threshold.
func NewEnergyDetector(threshold float64) *EnergyDetector {
	return &EnergyDetector{Threshold: threshold}
}

func (d *EnergyDetector) Detect(chunk []float32) bool {
	return audio.MeanSquare(chunk) > d.Threshold
}

func (d *EnergyDetector) Reset() {}

// ForcedDetector classifies every chunk as speech. It exists as an explicit
// configuration toggle for pipelines that want segmentation driven purely by
// buffer cadence; with it enabled the silence finalize path never fires.
type ForcedDetector struct{}

func (ForcedDetector) Detect(chunk []float32) bool { return true }

func (ForcedDetector) Reset() {}

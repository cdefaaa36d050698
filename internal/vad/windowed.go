package vad

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/streamvox/asr-gateway/internal/audio"
	"github.com/streamvox/asr-gateway/internal/observability"
	"github.com/streamvox/asr-gateway/internal/resilience"
)

// tailSeconds is the trailing slice of the window whose final timeline
// segment decides the speech verdict for the current sub-chunk.
const tailSeconds = 0.5

// WindowedConfig configures a WindowedDetector.
type WindowedConfig struct {
	SampleRate      int
	WindowSeconds   float64 // audio accumulated before one oracle call, default 3s
	Threshold       float64 // oracle confidence above which the tail counts as speech
	EnergyThreshold float64 // fallback energy detector threshold
	CallTimeout     time.Duration
	Breaker         *resilience.CircuitBreaker // optional
	Logger          zerolog.Logger
}

// WindowedDetector accumulates audio into a bounded window and asks an
// external oracle whether the trailing part of the window contains speech.
// Any failure to reach the oracle degrades to energy detection for that
// call only.
type WindowedDetector struct {
	cfg        WindowedConfig
	oracle     Oracle
	energy     *EnergyDetector
	window     []float32
	windowSize int // samples
}

// NewWindowedDetector creates a VAD-backed detector over the given oracle.
func NewWindowedDetector(oracle Oracle, cfg WindowedConfig) *WindowedDetector {
	if cfg.WindowSeconds <= 0 {
		cfg.WindowSeconds = 3.0
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 10 * time.Second
	}
	return &WindowedDetector{
		cfg:        cfg,
		oracle:     oracle,
		energy:     NewEnergyDetector(cfg.EnergyThreshold),
		windowSize: int(cfg.WindowSeconds * float64(cfg.SampleRate)),
	}
}

// Detect accumulates chunk into the window and, once the window is full,
// classifies the trailing audio via the oracle. While the window is still
// filling it reports silence.
func (d *WindowedDetector) Detect(chunk []float32) bool {
	d.window = append(d.window, chunk...)

	if len(d.window) < d.windowSize {
		return false
	}

	// Retain only the most recent window worth of audio.
	if len(d.window) > d.windowSize {
		trimmed := make([]float32, d.windowSize)
		copy(trimmed, d.window[len(d.window)-d.windowSize:])
		d.window = trimmed
	}

	speech, err := d.classify(d.window)
	if err != nil {
		d.cfg.Logger.Warn().Err(err).Msg("VAD oracle call failed, falling back to energy detection")
		observability.RecordVADFallback()
		return d.energy.Detect(chunk)
	}
	return speech
}

func (d *WindowedDetector) classify(window []float32) (bool, error) {
	wav, err := audio.EncodeWAV(window, d.cfg.SampleRate)
	if err != nil {
		return false, fmt.Errorf("failed to encode VAD window: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.CallTimeout)
	defer cancel()

	var segments []TimelineSegment
	call := func() error {
		var err error
		start := time.Now()
		segments, err = d.oracle.DetectSegments(ctx, wav)
		observability.RecordVADRequest(time.Since(start), err == nil)
		return err
	}
	if d.cfg.Breaker != nil {
		err = d.cfg.Breaker.Call(call)
	} else {
		err = call()
	}
	if err != nil {
		return false, err
	}

	// The verdict comes from the final segment that reaches into the
	// trailing tailSeconds of the window.
	windowDur := float64(len(window)) / float64(d.cfg.SampleRate)
	for _, seg := range segments {
		if seg.End > windowDur-tailSeconds {
			return seg.Confidence() > d.cfg.Threshold, nil
		}
	}
	return false, nil
}

// Reset clears the accumulation window. Called when a speech segment
// finalizes and on stream reset.
func (d *WindowedDetector) Reset() {
	d.window = nil
}

// Pending returns the number of samples currently accumulated.
func (d *WindowedDetector) Pending() int {
	return len(d.window)
}

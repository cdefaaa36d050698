package vad

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/streamvox/asr-gateway/internal/resilience"
)

const testSampleRate = 16000

func loudChunk(n int) []float32 {
	chunk := make([]float32, n)
	for i := range chunk {
		chunk[i] = 0.5
	}
	return chunk
}

func testConfig() WindowedConfig {
	return WindowedConfig{
		SampleRate:      testSampleRate,
		WindowSeconds:   1.0,
		Threshold:       0.5,
		EnergyThreshold: 0.01,
		Logger:          zerolog.Nop(),
	}
}

func TestWindowedDetector_SilenceWhileFilling(t *testing.T) {
	calls := 0
	oracle := OracleFunc(func(ctx context.Context, wav []byte) ([]TimelineSegment, error) {
		calls++
		return nil, nil
	})
	d := NewWindowedDetector(oracle, testConfig())

	// Three 4000-sample chunks leave the 16000-sample window under-filled.
	for i := 0; i < 3; i++ {
		if d.Detect(loudChunk(4000)) {
			t.Errorf("Expected silence while window is filling (chunk %d)", i)
		}
	}
	if calls != 0 {
		t.Errorf("Expected no oracle calls before the window fills, got %d", calls)
	}
	if d.Pending() != 12000 {
		t.Errorf("Expected 12000 pending samples, got %d", d.Pending())
	}
}

func TestWindowedDetector_TrailingSegmentVerdict(t *testing.T) {
	tests := []struct {
		name     string
		segments []TimelineSegment
		want     bool
	}{
		{
			"trailing segment above threshold",
			[]TimelineSegment{{Start: 0.6, End: 0.95, Score: 0.9, HasScore: true}},
			true,
		},
		{
			"trailing segment below threshold",
			[]TimelineSegment{{Start: 0.6, End: 0.95, Score: 0.3, HasScore: true}},
			false,
		},
		{
			"trailing segment without score defaults to speech",
			[]TimelineSegment{{Start: 0.6, End: 0.95}},
			true,
		},
		{
			"segment ends before the tail",
			[]TimelineSegment{{Start: 0.0, End: 0.4, Score: 0.9, HasScore: true}},
			false,
		},
		{
			"no segments at all",
			nil,
			false,
		},
		{
			"first reaching segment decides",
			[]TimelineSegment{
				{Start: 0.1, End: 0.6, Score: 0.9, HasScore: true},
				{Start: 0.7, End: 0.95, Score: 0.1, HasScore: true},
			},
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oracle := OracleFunc(func(ctx context.Context, wav []byte) ([]TimelineSegment, error) {
				return tt.segments, nil
			})
			d := NewWindowedDetector(oracle, testConfig())

			// Fill the 1s window in one call so the verdict comes from
			// the oracle, not the fill guard.
			if got := d.Detect(loudChunk(testSampleRate)); got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestWindowedDetector_TrimsToMostRecentWindow(t *testing.T) {
	var gotWAVLen int
	oracle := OracleFunc(func(ctx context.Context, wav []byte) ([]TimelineSegment, error) {
		gotWAVLen = len(wav)
		return nil, nil
	})
	d := NewWindowedDetector(oracle, testConfig())

	d.Detect(loudChunk(testSampleRate + 8000))

	if d.Pending() != testSampleRate {
		t.Errorf("Expected window trimmed to %d samples, got %d", testSampleRate, d.Pending())
	}
	// 44-byte header plus 2 bytes per sample.
	wantWAV := 44 + 2*testSampleRate
	if gotWAVLen != wantWAV {
		t.Errorf("Expected %d-byte WAV submitted, got %d", wantWAV, gotWAVLen)
	}
}

func TestWindowedDetector_FallsBackToEnergyOnError(t *testing.T) {
	oracle := OracleFunc(func(ctx context.Context, wav []byte) ([]TimelineSegment, error) {
		return nil, errors.New("oracle unavailable")
	})
	d := NewWindowedDetector(oracle, testConfig())

	// Loud chunk: the energy fallback should report speech.
	if !d.Detect(loudChunk(testSampleRate)) {
		t.Error("Expected energy fallback to report speech for a loud chunk")
	}

	// Silent chunk: the fallback should report silence even though the
	// window still holds loud audio.
	if d.Detect(make([]float32, 4000)) {
		t.Error("Expected energy fallback to report silence for a quiet chunk")
	}
}

func TestWindowedDetector_BreakerShortCircuits(t *testing.T) {
	calls := 0
	oracle := OracleFunc(func(ctx context.Context, wav []byte) ([]TimelineSegment, error) {
		calls++
		return nil, errors.New("oracle unavailable")
	})
	cfg := testConfig()
	cfg.Breaker = resilience.NewCircuitBreaker("vad", 2, time.Minute)
	d := NewWindowedDetector(oracle, cfg)

	for i := 0; i < 5; i++ {
		d.Detect(loudChunk(testSampleRate))
	}
	if calls != 2 {
		t.Errorf("Expected the breaker to stop calls after 2 failures, got %d", calls)
	}
	if cfg.Breaker.State() != resilience.StateOpen {
		t.Errorf("Expected open breaker, got %s", cfg.Breaker.State())
	}
}

func TestWindowedDetector_Reset(t *testing.T) {
	oracle := OracleFunc(func(ctx context.Context, wav []byte) ([]TimelineSegment, error) {
		return nil, nil
	})
	d := NewWindowedDetector(oracle, testConfig())

	d.Detect(loudChunk(4000))
	d.Reset()
	if d.Pending() != 0 {
		t.Errorf("Expected empty window after reset, got %d samples", d.Pending())
	}
}

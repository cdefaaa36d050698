package vad

import (
	"context"
	"errors"
	"sync"
)

// ErrNoCredential is returned when the oracle credential is absent. Callers
// treat it as non-fatal and degrade to energy-based detection.
var ErrNoCredential = errors.New("vad oracle credential is not set")

// TimelineSegment is one speech interval reported by the oracle.
type TimelineSegment struct {
	Start    float64 // seconds from the beginning of the submitted audio
	End      float64 // seconds
	Score    float64 // speech confidence, valid only when HasScore
	HasScore bool
}

// Confidence returns the segment score, defaulting to 1.0 when the oracle
// reported none.
func (s TimelineSegment) Confidence() float64 {
	if !s.HasScore {
		return 1.0
	}
	return s.Score
}

// Oracle is an external voice-activity model: given a WAV-encoded buffer it
// returns the timeline of detected speech segments in time order.
type Oracle interface {
	DetectSegments(ctx context.Context, wav []byte) ([]TimelineSegment, error)
}

// OracleFunc adapts a function to the Oracle interface.
type OracleFunc func(ctx context.Context, wav []byte) ([]TimelineSegment, error)

func (f OracleFunc) DetectSegments(ctx context.Context, wav []byte) ([]TimelineSegment, error) {
	return f(ctx, wav)
}

var (
	oracleMu    sync.Mutex
	oracleCache = map[string]Oracle{}
)

// OracleForDevice returns a process-wide oracle for the given compute
// device, constructing it on first use. The cache is guarded by its own
// lock so concurrent sessions share one oracle per device instead of racing
// on a mutable singleton.
func OracleForDevice(device, apiKey string) (Oracle, error) {
	oracleMu.Lock()
	defer oracleMu.Unlock()

	if o, ok := oracleCache[device]; ok {
		return o, nil
	}
	o, err := NewDeepgramOracle(apiKey)
	if err != nil {
		return nil, err
	}
	oracleCache[device] = o
	return o, nil
}

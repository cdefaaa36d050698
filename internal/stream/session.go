// Package stream implements live speech segmentation and incremental
// transcription. A session buffers producer audio, classifies it as
// speech or silence, and emits interim results while a speaker is still
// talking and a final result once they pause.
package stream

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/streamvox/asr-gateway/internal/asr"
	"github.com/streamvox/asr-gateway/internal/audio"
	"github.com/streamvox/asr-gateway/internal/observability"
	"github.com/streamvox/asr-gateway/internal/resilience"
	"github.com/streamvox/asr-gateway/internal/vad"
)

var errNoRecognizer = errors.New("stream: a recognizer is required")

const (
	// pollInterval bounds how long the worker blocks when no append
	// notification arrives.
	pollInterval = 10 * time.Millisecond

	// joinTimeout bounds the wait for the worker to exit on Stop.
	joinTimeout = time.Second
)

// Options configures a streaming session. Zero values fall back to the
// defaults documented per field.
type Options struct {
	SampleRate          int     // Hz, default 16000
	ChunkSize           int     // samples per classified sub-chunk, default 4000
	BufferSeconds       int     // ingest buffer cap, default 30
	EnergyThreshold     float64 // default 0.01
	MinSilenceDuration  float64 // seconds of silence that closes a segment, default 0.8
	StabilizationFrames int     // speech sub-chunks between interim results, default 5
	UseVAD              bool    // prefer the oracle-backed detector when an oracle is supplied
	VADThreshold        float64 // default 0.5
	VADWindowSeconds    float64 // default 3.0
	ForceSpeech         bool    // classify everything as speech, disabling silence finalization

	Oracle     vad.Oracle                 // optional; required for UseVAD to take effect
	Recognizer asr.Recognizer             // required
	Callback   func(Result)               // optional push notification, called in emission order
	Breaker    *resilience.CircuitBreaker // optional, guards oracle calls
	Logger     zerolog.Logger
}

func (o *Options) applyDefaults() {
	if o.SampleRate <= 0 {
		o.SampleRate = 16000
	}
	if o.ChunkSize <= 0 {
		o.ChunkSize = 4000
	}
	if o.BufferSeconds <= 0 {
		o.BufferSeconds = 30
	}
	if o.EnergyThreshold <= 0 {
		o.EnergyThreshold = 0.01
	}
	if o.MinSilenceDuration <= 0 {
		o.MinSilenceDuration = 0.8
	}
	if o.StabilizationFrames <= 0 {
		o.StabilizationFrames = 5
	}
	if o.VADThreshold <= 0 {
		o.VADThreshold = 0.5
	}
	if o.VADWindowSeconds <= 0 {
		o.VADWindowSeconds = 3.0
	}
}

// Session is one live audio stream. Producers call Append from any
// goroutine; a single worker drains the buffer and drives segmentation.
type Session struct {
	id   string
	opts Options
	log  zerolog.Logger

	buffer *audio.Buffer
	sink   *resultSink

	machineMu sync.Mutex
	machine   *machine

	notify chan struct{}
	quit   chan struct{}
	done   chan struct{}

	stopOnce sync.Once
}

// New creates a session and starts its worker. When UseVAD is requested
// without an oracle the session degrades to energy detection with a
// warning rather than failing.
func New(opts Options) (*Session, error) {
	opts.applyDefaults()
	if opts.Recognizer == nil {
		return nil, errNoRecognizer
	}

	id := observability.NewSessionID()
	log := opts.Logger.With().Str("session_id", id).Logger()

	var detector vad.Detector
	switch {
	case opts.ForceSpeech:
		log.Warn().Msg("Forced speech mode enabled, silence finalization will never trigger")
		detector = vad.ForcedDetector{}
	case opts.UseVAD && opts.Oracle != nil:
		detector = vad.NewWindowedDetector(opts.Oracle, vad.WindowedConfig{
			SampleRate:      opts.SampleRate,
			WindowSeconds:   opts.VADWindowSeconds,
			Threshold:       opts.VADThreshold,
			EnergyThreshold: opts.EnergyThreshold,
			Breaker:         opts.Breaker,
			Logger:          log,
		})
	case opts.UseVAD:
		log.Warn().Msg("VAD requested but no oracle is available, using energy detection")
		detector = vad.NewEnergyDetector(opts.EnergyThreshold)
	default:
		detector = vad.NewEnergyDetector(opts.EnergyThreshold)
	}

	sink := newResultSink(opts.Callback)
	minSilenceSamples := int(opts.MinSilenceDuration * float64(opts.SampleRate))

	s := &Session{
		id:      id,
		opts:    opts,
		log:     log,
		buffer:  audio.NewBuffer(opts.BufferSeconds * opts.SampleRate),
		sink:    sink,
		machine: newMachine(detector, opts.Recognizer, sink, log, opts.ChunkSize, opts.SampleRate, minSilenceSamples, opts.StabilizationFrames),
		notify:  make(chan struct{}, 1),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}

	observability.RecordSessionStart()
	log.Info().
		Int("sample_rate", opts.SampleRate).
		Int("chunk_size", opts.ChunkSize).
		Bool("use_vad", opts.UseVAD && opts.Oracle != nil).
		Msg("Streaming session started")

	go s.worker()
	return s, nil
}

// ID returns the session identifier used in logs.
func (s *Session) ID() string {
	return s.id
}

// Append buffers a chunk of mono samples for processing. Safe to call
// from any goroutine. Appends after Stop are accepted but no longer
// processed.
func (s *Session) Append(chunk []float32) {
	evicted := s.buffer.Append(chunk)
	if evicted > 0 {
		s.log.Warn().Int("chunks", evicted).Msg("Ingest buffer full, dropped oldest audio")
	}
	observability.RecordAudioIngested(len(chunk), evicted)

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// worker drains buffered audio and feeds the state machine. It wakes on
// append notifications and otherwise re-polls on a short timeout.
func (s *Session) worker() {
	defer close(s.done)
	timer := time.NewTimer(pollInterval)
	defer timer.Stop()

	for {
		select {
		case <-s.quit:
			return
		case <-s.notify:
		case <-timer.C:
		}

		if block := s.buffer.DrainAll(); block != nil {
			s.machineMu.Lock()
			s.machine.feed(block)
			s.machineMu.Unlock()
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(pollInterval)
	}
}

// FinalResults returns a copy of all finalized transcriptions so far.
func (s *Session) FinalResults() []Result {
	return s.sink.finalResults()
}

// InterimResults returns a copy of interim transcriptions for the
// current segment.
func (s *Session) InterimResults() []Result {
	return s.sink.interimResults()
}

// Reset drops buffered audio, the in-progress run, and interim results.
// Final results are kept. Idempotent.
func (s *Session) Reset() {
	s.machineMu.Lock()
	s.machine.reset()
	s.machineMu.Unlock()

	s.buffer.Clear()
	s.sink.clearInterim()
	s.log.Info().Msg("Session reset")
}

// Stop shuts the worker down and waits briefly for it to exit. A worker
// stuck in a recognition call past the timeout is abandoned with a
// warning. Idempotent.
func (s *Session) Stop() {
	s.stopOnce.Do(func() {
		close(s.quit)
		select {
		case <-s.done:
		case <-time.After(joinTimeout):
			s.log.Warn().Msg("Worker did not stop within timeout")
		}
		observability.RecordSessionEnd()
		s.log.Info().
			Int("final_results", len(s.sink.finalResults())).
			Msg("Streaming session stopped")
	})
}

package stream

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/streamvox/asr-gateway/internal/asr"
	"github.com/streamvox/asr-gateway/internal/observability"
	"github.com/streamvox/asr-gateway/internal/vad"
)

// machine is the segmentation state machine. It is synchronous and not
// safe for concurrent use; the session serializes access to it from the
// worker goroutine.
//
// Two states: idle (no active run) and speaking (an open speech run).
// Speech chunks extend the run and periodically trigger interim
// recognition; silence chunks extend the run too, and once the trailing
// silence is long enough the run is finalized.
type machine struct {
	chunkSize           int
	sampleRate          int
	minSilenceSamples   int
	stabilizationFrames int

	detector   vad.Detector
	recognizer asr.Recognizer
	sink       *resultSink
	log        zerolog.Logger

	speaking   bool
	run        []float32
	runChunks  int // sub-chunks appended to the run, speech and silence
	silenceRun int // trailing silence, samples
}

func newMachine(detector vad.Detector, recognizer asr.Recognizer, sink *resultSink, log zerolog.Logger, chunkSize, sampleRate, minSilenceSamples, stabilizationFrames int) *machine {
	return &machine{
		chunkSize:           chunkSize,
		sampleRate:          sampleRate,
		minSilenceSamples:   minSilenceSamples,
		stabilizationFrames: stabilizationFrames,
		detector:            detector,
		recognizer:          recognizer,
		sink:                sink,
		log:                 log,
	}
}

// feed slices a drained audio block into fixed-size sub-chunks, with a
// possibly shorter final piece, and advances the state machine over each.
func (m *machine) feed(block []float32) {
	for offset := 0; offset < len(block); offset += m.chunkSize {
		end := offset + m.chunkSize
		if end > len(block) {
			end = len(block)
		}
		m.step(block[offset:end])
	}
}

func (m *machine) step(chunk []float32) {
	if m.detector.Detect(chunk) {
		m.onSpeech(chunk)
		return
	}
	m.onSilence(chunk)
}

func (m *machine) onSpeech(chunk []float32) {
	m.run = append(m.run, chunk...)
	m.runChunks++
	m.silenceRun = 0

	if !m.speaking {
		m.speaking = true
		m.log.Debug().Msg("Speech segment started")
	}

	if m.runChunks%m.stabilizationFrames == 0 {
		m.emit(false)
	}
}

func (m *machine) onSilence(chunk []float32) {
	if !m.speaking {
		return
	}

	// Silence belongs to the segment; the trailing context helps the
	// recognizer close the last word. It counts toward the run's
	// sub-chunk total like any other piece.
	m.run = append(m.run, chunk...)
	m.runChunks++
	m.silenceRun += len(chunk)

	if m.silenceRun >= m.minSilenceSamples {
		m.finalize()
	}
}

func (m *machine) finalize() {
	m.emit(true)

	m.speaking = false
	m.run = nil
	m.runChunks = 0
	m.silenceRun = 0
	m.detector.Reset()
}

// emit transcribes the accumulated run and records the result. A failed
// recognition is logged and counted; no result is emitted for it, and the
// caller's state transition proceeds regardless.
func (m *machine) emit(final bool) {
	if len(m.run) == 0 {
		return
	}

	start := time.Now()
	text, err := m.recognizer.Recognize(context.Background(), m.run)
	observability.RecordRecognition(time.Since(start), err == nil)
	if err != nil {
		m.log.Error().Err(err).Bool("final", final).Msg("Recognition failed, skipping result")
		return
	}

	now := time.Now()
	duration := float64(len(m.run)) / float64(m.sampleRate)
	result := Result{
		Text:      text,
		StartTime: FormatClock(now.Add(-time.Duration(duration * float64(time.Second)))),
		EndTime:   FormatClock(now),
		Duration:  FormatDuration(duration),
		IsFinal:   final,
	}

	m.sink.emit(result)
	observability.RecordResult(final)
	if final {
		observability.RecordSegmentDuration(duration)
		m.log.Info().
			Str("duration", result.Duration).
			Int("text_length", len(text)).
			Msg("Speech segment finalized")
	}
}

// reset drops any in-progress run without emitting.
func (m *machine) reset() {
	m.speaking = false
	m.run = nil
	m.runChunks = 0
	m.silenceRun = 0
	m.detector.Reset()
}

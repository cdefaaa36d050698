package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Session metrics
	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "asr_gateway_active_sessions",
		Help: "Number of active streaming sessions",
	})

	totalSessions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "asr_gateway_sessions_total",
		Help: "Total number of streaming sessions started",
	})

	audioSamplesIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "asr_gateway_audio_samples_total",
		Help: "Total audio samples appended to stream buffers",
	})

	bufferEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "asr_gateway_buffer_evicted_chunks_total",
		Help: "Audio chunks evicted from full stream buffers",
	})

	// Recognition metrics
	resultsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "asr_gateway_results_total",
		Help: "Transcription results emitted",
	}, []string{"kind"}) // kind: "interim" or "final"

	recognitionLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "asr_gateway_recognition_seconds",
		Help:    "Latency of one recognition call",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0},
	})

	recognitionErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "asr_gateway_recognition_errors_total",
		Help: "Recognition calls that returned an error",
	})

	segmentDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "asr_gateway_segment_duration_seconds",
		Help:    "Audio duration of finalized speech segments",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30},
	})

	// VAD metrics
	vadRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "asr_gateway_vad_requests_total",
		Help: "VAD oracle requests",
	}, []string{"status"})

	vadLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "asr_gateway_vad_latency_seconds",
		Help:    "VAD oracle request latency",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0},
	})

	vadFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "asr_gateway_vad_fallbacks_total",
		Help: "Detector calls that fell back to energy detection",
	})
)

// RecordSessionStart increments active/total session gauges.
func RecordSessionStart() {
	activeSessions.Inc()
	totalSessions.Inc()
}

// RecordSessionEnd decrements the active session gauge.
func RecordSessionEnd() {
	activeSessions.Dec()
}

// RecordAudioIngested counts samples appended to a stream buffer and chunks
// evicted to keep the buffer cap.
func RecordAudioIngested(samples, evictedChunks int) {
	audioSamplesIngested.Add(float64(samples))
	if evictedChunks > 0 {
		bufferEvictions.Add(float64(evictedChunks))
	}
}

// RecordResult counts an emitted interim or final result.
func RecordResult(final bool) {
	if final {
		resultsEmitted.WithLabelValues("final").Inc()
	} else {
		resultsEmitted.WithLabelValues("interim").Inc()
	}
}

// RecordRecognition records one recognition call.
func RecordRecognition(elapsed time.Duration, success bool) {
	recognitionLatency.Observe(elapsed.Seconds())
	if !success {
		recognitionErrors.Inc()
	}
}

// RecordSegmentDuration records the audio duration of a finalized segment.
func RecordSegmentDuration(seconds float64) {
	segmentDuration.Observe(seconds)
}

// RecordVADRequest records one oracle round trip.
func RecordVADRequest(elapsed time.Duration, success bool) {
	vadLatency.Observe(elapsed.Seconds())
	status := "success"
	if !success {
		status = "error"
	}
	vadRequests.WithLabelValues(status).Inc()
}

// RecordVADFallback counts a degraded-mode energy classification.
func RecordVADFallback() {
	vadFallbacks.Inc()
}

package server

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/streamvox/asr-gateway/internal/audio"
	"github.com/streamvox/asr-gateway/internal/segmenter"
	"github.com/streamvox/asr-gateway/internal/vad"
)

// maxSegmentBody caps uploads at roughly one hour of 16kHz mono PCM.
const maxSegmentBody = 128 << 20

// SegmentResponse is the JSON reply of the offline segmentation
// endpoint.
type SegmentResponse struct {
	Chunks []SegmentChunk `json:"chunks"`
}

// SegmentChunk is one chunk boundary in seconds.
type SegmentChunk struct {
	Start    float64 `json:"start"`
	End      float64 `json:"end"`
	Duration float64 `json:"duration"`
}

// SegmentHandler serves POST requests carrying a mono 16-bit WAV body
// and returns VAD-aligned chunk boundaries.
type SegmentHandler struct {
	oracle vad.Oracle
	opts   segmenter.Options
	log    zerolog.Logger
}

// NewSegmentHandler creates the offline segmentation endpoint. A nil
// oracle leaves the endpoint responding 503; segmentation cannot degrade
// to energy detection the way the live path does.
func NewSegmentHandler(oracle vad.Oracle, opts segmenter.Options, log zerolog.Logger) *SegmentHandler {
	return &SegmentHandler{oracle: oracle, opts: opts, log: log}
}

func (h *SegmentHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.oracle == nil {
		http.Error(w, "voice activity detection is not configured", http.StatusServiceUnavailable)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxSegmentBody))
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	if dur, derr := audio.WAVDuration(body); derr == nil {
		h.log.Debug().Float64("duration_s", dur).Int("bytes", len(body)).Msg("Segmentation request")
	}

	samples, sampleRate, err := audio.DecodeWAV(body)
	if err != nil {
		http.Error(w, "invalid WAV payload: "+err.Error(), http.StatusBadRequest)
		return
	}

	chunks, err := segmenter.Segment(r.Context(), h.oracle, samples, sampleRate, h.opts)
	if err != nil {
		h.log.Error().Err(err).Msg("Offline segmentation failed")
		http.Error(w, "segmentation failed: "+err.Error(), http.StatusUnprocessableEntity)
		return
	}

	resp := SegmentResponse{Chunks: make([]SegmentChunk, 0, len(chunks))}
	for _, chunk := range chunks {
		resp.Chunks = append(resp.Chunks, SegmentChunk{
			Start:    chunk.Start,
			End:      chunk.End,
			Duration: chunk.End - chunk.Start,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.log.Warn().Err(err).Msg("Failed to encode segmentation response")
	}
}

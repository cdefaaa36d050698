// Package segmenter partitions a complete recording into bounded-duration
// chunks along voice-activity boundaries. It is the offline counterpart
// of the live stream path: batch jobs split long audio here before
// handing each chunk to a recognizer.
package segmenter

import (
	"context"
	"fmt"

	"github.com/streamvox/asr-gateway/internal/audio"
	"github.com/streamvox/asr-gateway/internal/vad"
)

// Options bound the produced chunks. Zero values fall back to defaults.
type Options struct {
	MaxDuration       float64 // seconds, default 22
	MinDuration       float64 // seconds, default 15
	NewChunkThreshold float64 // gap that may open a new chunk, seconds, default 0.2
}

func (o *Options) applyDefaults() {
	if o.MaxDuration <= 0 {
		o.MaxDuration = 22.0
	}
	if o.MinDuration <= 0 {
		o.MinDuration = 15.0
	}
	if o.NewChunkThreshold <= 0 {
		o.NewChunkThreshold = 0.2
	}
}

// Chunk is one output slice of the recording with its boundaries in
// seconds from the start of the input.
type Chunk struct {
	Samples []float32
	Start   float64
	End     float64
}

// Segment splits samples into chunks along the speech timeline reported
// by the oracle. Adjacent speech segments merge into one chunk until the
// chunk exceeds MinDuration and a gap wider than NewChunkThreshold
// appears, or until extending the chunk would push it past MaxDuration.
func Segment(ctx context.Context, oracle vad.Oracle, samples []float32, sampleRate int, opts Options) ([]Chunk, error) {
	opts.applyDefaults()
	if oracle == nil {
		return nil, fmt.Errorf("segmenter: an oracle is required")
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("segmenter: invalid sample rate %d", sampleRate)
	}
	if len(samples) < sampleRate {
		return nil, fmt.Errorf("segmenter: audio shorter than one second")
	}

	wav, err := audio.EncodeWAV(samples, sampleRate)
	if err != nil {
		return nil, fmt.Errorf("segmenter: failed to encode audio: %w", err)
	}

	timeline, err := oracle.DetectSegments(ctx, wav)
	if err != nil {
		return nil, fmt.Errorf("segmenter: voice activity detection failed: %w", err)
	}

	totalDur := float64(len(samples)) / float64(sampleRate)

	var chunks []Chunk
	currStart, currEnd, currDur := 0.0, 0.0, 0.0

	cut := func() {
		if currEnd <= currStart {
			return
		}
		lo := int(currStart * float64(sampleRate))
		hi := int(currEnd * float64(sampleRate))
		if hi > len(samples) {
			hi = len(samples)
		}
		if hi <= lo {
			return
		}
		chunks = append(chunks, Chunk{
			Samples: samples[lo:hi],
			Start:   currStart,
			End:     currEnd,
		})
	}

	for _, seg := range timeline {
		start := seg.Start
		if start < 0 {
			start = 0
		}
		end := seg.End
		if end > totalDur {
			end = totalDur
		}

		if (currDur > opts.MinDuration && start-currEnd > opts.NewChunkThreshold) ||
			currDur+(end-currEnd) > opts.MaxDuration {
			cut()
			currStart = start
		}

		currEnd = end
		currDur = currEnd - currStart
	}

	if currDur != 0 {
		cut()
	}

	return chunks, nil
}

package segmenter

import (
	"context"
	"errors"
	"testing"

	"github.com/streamvox/asr-gateway/internal/vad"
)

const testSampleRate = 16000

func timelineOracle(segments []vad.TimelineSegment) vad.Oracle {
	return vad.OracleFunc(func(ctx context.Context, wav []byte) ([]vad.TimelineSegment, error) {
		return segments, nil
	})
}

func TestSegment_InputValidation(t *testing.T) {
	oracle := timelineOracle(nil)
	long := make([]float32, 2*testSampleRate)

	if _, err := Segment(context.Background(), nil, long, testSampleRate, Options{}); err == nil {
		t.Error("Expected error for nil oracle")
	}
	if _, err := Segment(context.Background(), oracle, long, 0, Options{}); err == nil {
		t.Error("Expected error for zero sample rate")
	}
	if _, err := Segment(context.Background(), oracle, make([]float32, testSampleRate-1), testSampleRate, Options{}); err == nil {
		t.Error("Expected error for sub-second audio")
	}
}

func TestSegment_OracleError(t *testing.T) {
	boom := errors.New("oracle down")
	oracle := vad.OracleFunc(func(ctx context.Context, wav []byte) ([]vad.TimelineSegment, error) {
		return nil, boom
	})
	if _, err := Segment(context.Background(), oracle, make([]float32, 2*testSampleRate), testSampleRate, Options{}); !errors.Is(err, boom) {
		t.Errorf("Expected oracle error surfaced, got %v", err)
	}
}

func TestSegment_SmallGapMerges(t *testing.T) {
	// Two speech segments separated by a 0.1s gap, below the 0.2s
	// threshold: they merge into one chunk.
	oracle := timelineOracle([]vad.TimelineSegment{
		{Start: 0.0, End: 16.0},
		{Start: 16.1, End: 18.0},
	})
	samples := make([]float32, 20*testSampleRate)

	chunks, err := Segment(context.Background(), oracle, samples, testSampleRate, Options{})
	if err != nil {
		t.Fatalf("Segment failed: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("Expected 1 merged chunk, got %d", len(chunks))
	}
	if chunks[0].Start != 0.0 || chunks[0].End != 18.0 {
		t.Errorf("Expected chunk [0, 18], got [%v, %v]", chunks[0].Start, chunks[0].End)
	}
	if got := len(chunks[0].Samples); got != 18*testSampleRate {
		t.Errorf("Expected %d samples, got %d", 18*testSampleRate, got)
	}
}

func TestSegment_LargeGapSplitsAfterMinDuration(t *testing.T) {
	// The first chunk passes min_duration (15s) before a 1s gap, so the
	// gap opens a second chunk.
	oracle := timelineOracle([]vad.TimelineSegment{
		{Start: 0.0, End: 16.0},
		{Start: 17.0, End: 19.0},
	})
	samples := make([]float32, 20*testSampleRate)

	chunks, err := Segment(context.Background(), oracle, samples, testSampleRate, Options{})
	if err != nil {
		t.Fatalf("Segment failed: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("Expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0].Start != 0.0 || chunks[0].End != 16.0 {
		t.Errorf("Expected first chunk [0, 16], got [%v, %v]", chunks[0].Start, chunks[0].End)
	}
	if chunks[1].Start != 17.0 || chunks[1].End != 19.0 {
		t.Errorf("Expected second chunk [17, 19], got [%v, %v]", chunks[1].Start, chunks[1].End)
	}
}

func TestSegment_GapBeforeMinDurationMerges(t *testing.T) {
	// A wide gap does not split while the accumulated chunk is still
	// under min_duration.
	oracle := timelineOracle([]vad.TimelineSegment{
		{Start: 0.0, End: 5.0},
		{Start: 7.0, End: 10.0},
	})
	samples := make([]float32, 12*testSampleRate)

	chunks, err := Segment(context.Background(), oracle, samples, testSampleRate, Options{})
	if err != nil {
		t.Fatalf("Segment failed: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("Expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].End != 10.0 {
		t.Errorf("Expected chunk to end at 10, got %v", chunks[0].End)
	}
}

func TestSegment_MaxDurationSplits(t *testing.T) {
	// Continuous speech segments that together exceed max_duration split
	// even without a silence gap.
	oracle := timelineOracle([]vad.TimelineSegment{
		{Start: 0.0, End: 12.0},
		{Start: 12.05, End: 25.0},
	})
	samples := make([]float32, 30*testSampleRate)

	chunks, err := Segment(context.Background(), oracle, samples, testSampleRate, Options{})
	if err != nil {
		t.Fatalf("Segment failed: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("Expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0].End != 12.0 {
		t.Errorf("Expected first chunk to end at 12, got %v", chunks[0].End)
	}
	if chunks[1].Start != 12.05 || chunks[1].End != 25.0 {
		t.Errorf("Expected second chunk [12.05, 25], got [%v, %v]", chunks[1].Start, chunks[1].End)
	}
}

func TestSegment_ClampsToAudioBounds(t *testing.T) {
	// Oracle boundaries outside the audio are clamped.
	oracle := timelineOracle([]vad.TimelineSegment{
		{Start: -0.5, End: 30.0},
	})
	samples := make([]float32, 10*testSampleRate)

	chunks, err := Segment(context.Background(), oracle, samples, testSampleRate, Options{})
	if err != nil {
		t.Fatalf("Segment failed: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("Expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Start != 0.0 || chunks[0].End != 10.0 {
		t.Errorf("Expected chunk clamped to [0, 10], got [%v, %v]", chunks[0].Start, chunks[0].End)
	}
	if got := len(chunks[0].Samples); got != 10*testSampleRate {
		t.Errorf("Expected %d samples, got %d", 10*testSampleRate, got)
	}
}

func TestSegment_EmptyTimeline(t *testing.T) {
	oracle := timelineOracle(nil)
	chunks, err := Segment(context.Background(), oracle, make([]float32, 2*testSampleRate), testSampleRate, Options{})
	if err != nil {
		t.Fatalf("Segment failed: %v", err)
	}
	if len(chunks) != 0 {
		t.Errorf("Expected no chunks for a silent recording, got %d", len(chunks))
	}
}

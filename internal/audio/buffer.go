package audio

import (
	"sync"
)

// Buffer is a thread-safe FIFO of audio chunks with a total-sample cap.
// The producer appends, the processing worker drains; both go through a
// single mutex so neither side ever observes a torn buffer state.
type Buffer struct {
	mu         sync.Mutex
	chunks     [][]float32
	total      int // samples currently buffered
	maxSamples int
	evicted    uint64
}

// NewBuffer creates a buffer that holds at most maxSamples samples.
func NewBuffer(maxSamples int) *Buffer {
	return &Buffer{maxSamples: maxSamples}
}

// Append copies chunk into the buffer, normalizing amplitude only when the
// peak absolute value exceeds 1.0 (divide by peak). When the running total
// exceeds the cap, whole chunks are evicted from the front until the total
// fits again; eviction never splits a chunk, so a single chunk larger than
// the cap is itself evicted. Returns the number of chunks evicted.
func (b *Buffer) Append(chunk []float32) int {
	if len(chunk) == 0 {
		return 0
	}

	cp := make([]float32, len(chunk))
	copy(cp, chunk)

	if peak := peakAbs(cp); peak > 1.0 {
		for i := range cp {
			cp[i] /= peak
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.chunks = append(b.chunks, cp)
	b.total += len(cp)

	evicted := 0
	for b.total > b.maxSamples {
		b.total -= len(b.chunks[0])
		b.chunks = b.chunks[1:]
		evicted++
	}
	b.evicted += uint64(evicted)
	return evicted
}

// DrainAll atomically removes and returns the ordered concatenation of all
// buffered chunks, leaving the buffer empty. Returns nil when empty.
func (b *Buffer) DrainAll() []float32 {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.total == 0 {
		return nil
	}

	out := make([]float32, 0, b.total)
	for _, c := range b.chunks {
		out = append(out, c...)
	}
	b.chunks = nil
	b.total = 0
	return out
}

// Len returns the number of buffered samples.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.total
}

// Clear discards all buffered audio.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.chunks = nil
	b.total = 0
}

// Evicted returns the number of chunks dropped so far to hold the cap.
func (b *Buffer) Evicted() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.evicted
}

func peakAbs(samples []float32) float32 {
	var peak float32
	for _, s := range samples {
		if s < 0 {
			s = -s
		}
		if s > peak {
			peak = s
		}
	}
	return peak
}

package stream

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func newTestSession(t *testing.T, rec *fakeRecognizer, cb func(Result)) *Session {
	t.Helper()
	s, err := New(Options{
		SampleRate:          testSampleRate,
		ChunkSize:           testChunkSize,
		MinSilenceDuration:  0.8,
		StabilizationFrames: testStabFrames,
		Recognizer:          rec,
		Callback:            cb,
		Logger:              zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return s
}

func TestNew_RequiresRecognizer(t *testing.T) {
	if _, err := New(Options{Logger: zerolog.Nop()}); err == nil {
		t.Fatal("Expected error when no recognizer is supplied")
	}
}

func TestNew_DegradesWithoutOracle(t *testing.T) {
	s, err := New(Options{
		UseVAD:     true,
		Recognizer: &fakeRecognizer{text: "x"},
		Logger:     zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("Expected degradation to energy detection, got error: %v", err)
	}
	s.Stop()
}

func TestSession_EndToEnd(t *testing.T) {
	rec := &fakeRecognizer{text: "hello there"}

	var mu sync.Mutex
	var pushed []Result
	s := newTestSession(t, rec, func(r Result) {
		mu.Lock()
		pushed = append(pushed, r)
		mu.Unlock()
	})
	defer s.Stop()

	// Speech, then enough silence to finalize.
	for i := 0; i < 3; i++ {
		s.Append(speechChunk())
	}
	for i := 0; i < silenceChunksToFinalize(); i++ {
		s.Append(silenceChunk())
	}

	ok := waitFor(t, 2*time.Second, func() bool {
		return len(s.FinalResults()) == 1
	})
	if !ok {
		t.Fatalf("Expected 1 final result, got %d", len(s.FinalResults()))
	}

	finals := s.FinalResults()
	if finals[0].Text != "hello there" {
		t.Errorf("Expected 'hello there', got %q", finals[0].Text)
	}

	mu.Lock()
	lastPushed := pushed[len(pushed)-1]
	mu.Unlock()
	if !lastPushed.IsFinal {
		t.Error("Expected last pushed result to be final")
	}
}

func TestSession_ConcurrentAppends(t *testing.T) {
	rec := &fakeRecognizer{text: "x"}
	s := newTestSession(t, rec, nil)
	defer s.Stop()

	var wg sync.WaitGroup
	for p := 0; p < 4; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				s.Append(make([]float32, 400))
			}
		}()
	}
	wg.Wait()

	// All appended audio is silence, so nothing should be recognized, and
	// nothing should crash or deadlock. Give the worker a moment to drain.
	waitFor(t, 500*time.Millisecond, func() bool {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		return rec.calls == 0
	})
	if got := len(s.FinalResults()); got != 0 {
		t.Errorf("Expected no final results for silent input, got %d", got)
	}
}

func TestSession_ResetIdempotent(t *testing.T) {
	rec := &fakeRecognizer{text: "x"}
	s := newTestSession(t, rec, nil)
	defer s.Stop()

	for i := 0; i < 3; i++ {
		s.Append(speechChunk())
	}
	for i := 0; i < silenceChunksToFinalize(); i++ {
		s.Append(silenceChunk())
	}
	waitFor(t, 2*time.Second, func() bool { return len(s.FinalResults()) == 1 })

	// Open a new run and interrupt it with a reset.
	for i := 0; i < testStabFrames; i++ {
		s.Append(speechChunk())
	}
	waitFor(t, time.Second, func() bool { return len(s.InterimResults()) == 1 })

	s.Reset()
	s.Reset()

	if got := len(s.InterimResults()); got != 0 {
		t.Errorf("Expected interim results cleared by reset, got %d", got)
	}
	if got := len(s.FinalResults()); got != 1 {
		t.Errorf("Expected final results preserved across reset, got %d", got)
	}
}

func TestSession_StopJoinsWorker(t *testing.T) {
	rec := &fakeRecognizer{text: "x"}
	s := newTestSession(t, rec, nil)

	start := time.Now()
	s.Stop()
	s.Stop()
	if elapsed := time.Since(start); elapsed > joinTimeout {
		t.Errorf("Expected prompt stop, took %v", elapsed)
	}

	select {
	case <-s.done:
	default:
		t.Error("Expected worker goroutine to have exited")
	}

	// Appends after stop are accepted but never processed.
	before := rec.callCount()
	s.Append(speechChunk())
	time.Sleep(50 * time.Millisecond)
	if rec.callCount() != before {
		t.Error("Expected no recognition after stop")
	}
}

func (r *fakeRecognizer) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

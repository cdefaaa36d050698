package stream

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// Result is one transcription emitted by a streaming session. Interim
// results cover a still-open speech segment; final results cover a
// segment closed by sustained silence.
type Result struct {
	Text      string `json:"text"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Duration  string `json:"duration"`
	IsFinal   bool   `json:"is_final"`
}

// FormatDuration renders a duration in seconds as HH:MM:SS.mmm.
func FormatDuration(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	totalMillis := int(math.Round(seconds * 1000))
	h := totalMillis / 3600000
	m := (totalMillis % 3600000) / 60000
	s := (totalMillis % 60000) / 1000
	ms := totalMillis % 1000
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms)
}

// FormatClock renders a wall-clock instant as HH:MM:SS.mmm local time.
func FormatClock(t time.Time) string {
	return t.Format("15:04:05.000")
}

// resultSink collects emitted results and invokes the session callback
// synchronously in emission order. Both lists are append-only; only an
// explicit session reset clears interims. Accessors copy under the lock
// because results are pulled from goroutines other than the worker.
type resultSink struct {
	mu       sync.Mutex
	interim  []Result
	finals   []Result
	callback func(Result)
}

func newResultSink(callback func(Result)) *resultSink {
	return &resultSink{callback: callback}
}

func (s *resultSink) emit(r Result) {
	s.mu.Lock()
	if r.IsFinal {
		s.finals = append(s.finals, r)
	} else {
		s.interim = append(s.interim, r)
	}
	cb := s.callback
	s.mu.Unlock()

	if cb != nil {
		cb(r)
	}
}

func (s *resultSink) finalResults() []Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Result, len(s.finals))
	copy(out, s.finals)
	return out
}

func (s *resultSink) interimResults() []Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Result, len(s.interim))
	copy(out, s.interim)
	return out
}

func (s *resultSink) clearInterim() {
	s.mu.Lock()
	s.interim = nil
	s.mu.Unlock()
}

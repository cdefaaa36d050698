// Package asr bridges accumulated audio segments to speech recognition
// backends. The local bridge drives an in-process model through its
// feature-extraction, encoder and decoder capabilities; remote backends
// implement the same Recognizer interface over an API.
package asr

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Recognizer converts one audio segment to text. Calls are synchronous and
// blocking; the streaming session relies on that for backpressure.
type Recognizer interface {
	Recognize(ctx context.Context, samples []float32) (string, error)
}

// Options configures backend construction.
type Options struct {
	APIKey     string
	Model      string
	Language   string
	SampleRate int
}

// Factory builds a Recognizer for a named backend.
type Factory func(opts Options) (Recognizer, error)

var (
	registryMu sync.RWMutex
	backends   = map[string]Factory{}
)

// Register makes a backend available under name. Backends register
// themselves from init; later registrations with the same name panic.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := backends[name]; dup {
		panic(fmt.Sprintf("asr: backend %q registered twice", name))
	}
	backends[name] = f
}

// Open constructs the named backend.
func Open(name string, opts Options) (Recognizer, error) {
	registryMu.RLock()
	f, ok := backends[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("asr: unknown backend %q (available: %v)", name, Backends())
	}
	return f(opts)
}

// Backends lists registered backend names in sorted order.
func Backends() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

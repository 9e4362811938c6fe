// Package mock provides an in-memory implementation of the [audio.Source]
// interface for use in unit tests.
//
// The mock is safe for concurrent use. It records start/stop call counts so
// that tests can assert on lifecycle behaviour, and it exposes Emit to feed
// synthetic frames into the queue as if the platform callback had fired.
//
// Typical usage:
//
//	q := audio.NewFrameQueue(8)
//	src := mock.NewSource(q)
//	src.Start()
//	src.Emit(sine(0.5, 440, 16000))
package mock

import (
	"sync"
	"time"

	"github.com/MrWong99/echoform/pkg/audio"
)

// Compile-time assertion that Source satisfies audio.Source.
var _ audio.Source = (*Source)(nil)

// Source is a mock implementation of [audio.Source]. Set the exported error
// fields before use; inspect the CallCount fields after.
type Source struct {
	mu sync.Mutex

	queue   *audio.FrameQueue
	errs    chan error
	started bool
	samples int64

	// SampleRate stamped onto emitted frames. Defaults to 16000.
	SampleRate int

	// StartError is returned by [Source.Start]. When set, Start fails and
	// the source stays stopped.
	StartError error

	// CallCountStart records how many times Start was called.
	CallCountStart int

	// CallCountStop records how many times Stop was called.
	CallCountStop int
}

// NewSource creates a mock source that pushes emitted frames into queue.
func NewSource(queue *audio.FrameQueue) *Source {
	return &Source{
		queue:      queue,
		errs:       make(chan error, 4),
		SampleRate: 16000,
	}
}

// Start records the call and returns StartError if set.
func (s *Source) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountStart++
	if s.StartError != nil {
		return s.StartError
	}
	s.started = true
	return nil
}

// Stop records the call.
func (s *Source) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountStop++
	s.started = false
	return nil
}

// Errors returns the mock's failure channel. Use FailStream to publish.
func (s *Source) Errors() <-chan error { return s.errs }

// Started reports whether the source is currently running.
func (s *Source) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// Emit pushes one frame of the given samples into the queue, mimicking a
// platform callback invocation. Frames are timestamped from the running
// sample count like the real capture source.
func (s *Source) Emit(samples []float32) {
	s.mu.Lock()
	pos := s.samples
	s.samples += int64(len(samples))
	rate := s.SampleRate
	s.mu.Unlock()

	s.queue.Push(audio.Frame{
		Samples:    samples,
		SampleRate: rate,
		Channels:   1,
		Timestamp:  time.Duration(pos) * time.Second / time.Duration(rate),
	})
}

// FailStream publishes err on the Errors channel, mimicking a mid-stream
// device failure that survived the reopen attempt.
func (s *Source) FailStream(err error) {
	select {
	case s.errs <- err:
	default:
	}
}

// Package mock provides a scripted implementation of [recognize.Recognizer]
// for use in unit tests.
package mock

import (
	"sync"

	"github.com/MrWong99/echoform/pkg/audio"
	"github.com/MrWong99/echoform/pkg/recognize"
)

// Compile-time assertion that Recognizer satisfies recognize.Recognizer.
var _ recognize.Recognizer = (*Recognizer)(nil)

// Recognizer is a mock implementation of [recognize.Recognizer]. Queue
// results with Script; set AcceptError to simulate engine failure. Inspect
// the CallCount fields after use.
type Recognizer struct {
	mu sync.Mutex

	scripted []recognize.Result

	// AcceptError is returned by every Accept and Flush call while set.
	// Use recognize.ErrUnavailable (wrapped or bare) to simulate an engine
	// outage.
	AcceptError error

	// CallCountAccept records how many times Accept was called.
	CallCountAccept int

	// CallCountFlush records how many times Flush was called.
	CallCountFlush int

	// CallCountClose records how many times Close was called.
	CallCountClose int
}

// New creates an empty mock recognizer. With no scripted results, Accept
// returns [recognize.NoResult] for every frame.
func New() *Recognizer {
	return &Recognizer{}
}

// Script appends results to be returned by subsequent Accept calls, one per
// call, in order.
func (r *Recognizer) Script(results ...recognize.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scripted = append(r.scripted, results...)
}

// Accept returns the next scripted result, or NoResult when the script is
// exhausted.
func (r *Recognizer) Accept(_ audio.Frame) (recognize.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.CallCountAccept++
	if r.AcceptError != nil {
		return recognize.Result{}, r.AcceptError
	}
	if len(r.scripted) == 0 {
		return recognize.Result{}, nil
	}
	res := r.scripted[0]
	r.scripted = r.scripted[1:]
	return res, nil
}

// Flush behaves like Accept without consuming a frame.
func (r *Recognizer) Flush() (recognize.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.CallCountFlush++
	if r.AcceptError != nil {
		return recognize.Result{}, r.AcceptError
	}
	if len(r.scripted) == 0 {
		return recognize.Result{}, nil
	}
	res := r.scripted[0]
	r.scripted = r.scripted[1:]
	return res, nil
}

// Close records the call.
func (r *Recognizer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.CallCountClose++
	return nil
}

// Package mock provides a recording implementation of [command.Sink] for use
// in unit tests.
package mock

import (
	"sync"

	"github.com/MrWong99/echoform/pkg/command"
)

// Compile-time assertion that Sink satisfies command.Sink.
var _ command.Sink = (*Sink)(nil)

// Event is one recorded sink call.
type Event struct {
	// Name is "turn_started", "turn_text" or "turn_ended".
	Name string

	// Text is set for turn_text events.
	Text string

	// Reason is set for turn_ended events.
	Reason command.EndReason
}

// Sink records every call for later assertion. Safe for concurrent use.
type Sink struct {
	mu     sync.Mutex
	events []Event
}

// New creates an empty recording sink.
func New() *Sink {
	return &Sink{}
}

// TurnStarted records the call.
func (s *Sink) TurnStarted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, Event{Name: "turn_started"})
}

// TurnText records the call.
func (s *Sink) TurnText(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, Event{Name: "turn_text", Text: text})
}

// TurnEnded records the call.
func (s *Sink) TurnEnded(reason command.EndReason) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, Event{Name: "turn_ended", Reason: reason})
}

// Events returns a copy of the recorded events in call order.
func (s *Sink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// Count returns how many events with the given name were recorded.
func (s *Sink) Count(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.events {
		if e.Name == name {
			n++
		}
	}
	return n
}

// Package conversation implements the turn-taking state machine: it watches
// final transcripts for the wake word, opens a turn, forwards transcripts to
// the command pipeline, and closes the turn on inactivity.
//
// Timer discipline: the inactivity timeout is a single-slot cancellable
// timer. Arming a new one stops the previous instance and bumps a generation
// counter; a stale timer that fires anyway sees the counter mismatch and does
// nothing. This guarantees at most one pending timeout per turn and exactly
// one turn-ended event.
package conversation

import (
	"log/slog"
	"sync"
	"time"

	"github.com/MrWong99/echoform/pkg/command"
)

// State identifies where the machine is in the turn lifecycle.
type State int

const (
	// StateIdle means the machine is stopped and ignores transcripts.
	StateIdle State = iota

	// StateAwaitingWake means the machine is listening for the wake word.
	StateAwaitingWake

	// StateActive means a turn is open and the inactivity timer is armed.
	StateActive
)

// String returns the state name for logging.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingWake:
		return "awaiting_wake"
	case StateActive:
		return "active"
	default:
		return "unknown"
	}
}

// DefaultTurnTimeout is the inactivity window that closes an open turn.
const DefaultTurnTimeout = 30 * time.Second

// Option is a functional option for configuring a Machine.
type Option func(*Machine)

// WithTurnTimeout overrides the inactivity timeout. Default: 30 s.
func WithTurnTimeout(d time.Duration) Option {
	return func(m *Machine) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// WithTurnStartedHook registers fn to run when a turn opens, after the sink's
// TurnStarted. Used to nudge the visual feedback.
func WithTurnStartedHook(fn func()) Option {
	return func(m *Machine) { m.onTurnStarted = fn }
}

// Machine is the conversation state machine. Safe for concurrent use; sink
// calls happen under the machine's mutex and are therefore serialized and
// ordered.
type Machine struct {
	wake          *WakeDetector
	sink          command.Sink
	timeout       time.Duration
	onTurnStarted func()

	mu    sync.Mutex
	state State
	timer *time.Timer
	gen   uint64 // bumped on every arm/cancel; stale timers check it
	turns uint64
}

// New creates a Machine in the Idle state.
func New(wake *WakeDetector, sink command.Sink, opts ...Option) *Machine {
	m := &Machine{
		wake:    wake,
		sink:    sink,
		timeout: DefaultTurnTimeout,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Start moves Idle → AwaitingWake. Starting an already-started machine is a
// no-op.
func (m *Machine) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateIdle {
		return
	}
	m.state = StateAwaitingWake
	slog.Info("conversation started", "state", m.state.String())
}

// Stop returns the machine to Idle from any state. An open turn is closed
// with a stopped reason. Safe to call more than once.
func (m *Machine) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateIdle {
		return
	}
	if m.state == StateActive {
		m.endTurnLocked(command.EndStopped)
	}
	m.state = StateIdle
	slog.Info("conversation stopped")
}

// HandleTranscript feeds one final transcript through the machine.
//
// AwaitingWake: a wake-word match opens a turn (turn_started, timer armed).
// Active: the text is forwarded as turn_text and the timer is re-armed,
// replacing the previous instance. A repeated wake word while Active behaves
// like any other transcript — it resets the timer, it does not open a second
// turn. Idle: ignored.
func (m *Machine) HandleTranscript(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case StateAwaitingWake:
		if !m.wake.Match(text) {
			return
		}
		m.state = StateActive
		m.turns++
		m.armLocked()
		slog.Info("wake word matched, turn opened", "text", text)
		m.sink.TurnStarted()
		if m.onTurnStarted != nil {
			m.onTurnStarted()
		}

	case StateActive:
		m.armLocked()
		m.sink.TurnText(text)

	case StateIdle:
	}
}

// EndTurn closes the open turn on behalf of the command pipeline. A no-op
// outside Active.
func (m *Machine) EndTurn() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateActive {
		return
	}
	m.endTurnLocked(command.EndStopped)
	m.state = StateAwaitingWake
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Turns returns how many turns have been opened since construction.
func (m *Machine) Turns() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.turns
}

// armLocked replaces the pending inactivity timer with a fresh one. Caller
// holds m.mu.
func (m *Machine) armLocked() {
	m.gen++
	gen := m.gen
	if m.timer != nil {
		m.timer.Stop()
	}
	m.timer = time.AfterFunc(m.timeout, func() { m.expire(gen) })
}

// expire fires when an inactivity timer elapses. A stale instance — one
// superseded by a re-arm or a cancel — sees a generation mismatch and
// returns without side effects.
func (m *Machine) expire(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen || m.state != StateActive {
		return
	}
	m.timer = nil
	m.state = StateAwaitingWake
	slog.Info("turn timed out")
	m.sink.TurnEnded(command.EndTimeout)
}

// endTurnLocked cancels the timer and emits turn_ended. Caller holds m.mu
// and adjusts state afterwards.
func (m *Machine) endTurnLocked(reason command.EndReason) {
	m.gen++ // invalidate any in-flight timer callback
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.sink.TurnEnded(reason)
}

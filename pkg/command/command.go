// Package command defines the downstream consumer of conversation turns.
//
// The conversation state machine emits turn lifecycle events into a [Sink];
// what happens with them — command parsing, an LLM, a home-automation bridge —
// is outside this module. The shipped [LogSink] just records the turns in the
// structured log, which is enough for a standalone visualizer deployment.
package command

import "log/slog"

// EndReason explains why a turn ended.
type EndReason string

const (
	// EndTimeout means the inactivity timer expired with no further speech.
	EndTimeout EndReason = "timeout"

	// EndStopped means the pipeline was shut down mid-turn.
	EndStopped EndReason = "stopped"
)

// Sink receives turn lifecycle events from the conversation state machine.
//
// Calls are serialized and ordered per turn: one TurnStarted, zero or more
// TurnText, exactly one TurnEnded. Implementations must return quickly; slow
// consumers should hand off internally.
type Sink interface {
	// TurnStarted signals that the wake word was matched and the assistant
	// is now listening for a command.
	TurnStarted()

	// TurnText delivers a final transcript captured during an active turn.
	TurnText(text string)

	// TurnEnded signals that the turn is over.
	TurnEnded(reason EndReason)
}

// Compile-time assertion that LogSink satisfies Sink.
var _ Sink = (*LogSink)(nil)

// LogSink is a Sink that writes turn events to the default structured logger.
type LogSink struct{}

// TurnStarted logs the start of a turn.
func (LogSink) TurnStarted() {
	slog.Info("turn started")
}

// TurnText logs a transcript received during a turn.
func (LogSink) TurnText(text string) {
	slog.Info("turn transcript", "text", text)
}

// TurnEnded logs the end of a turn.
func (LogSink) TurnEnded(reason EndReason) {
	slog.Info("turn ended", "reason", string(reason))
}

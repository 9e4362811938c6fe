// Package recognize defines the speech-to-text abstraction of the Echoform
// pipeline. A [Recognizer] consumes audio frames one at a time and yields a
// [Result] per frame — usually [NoResult], occasionally a [Final] utterance
// once enough buffered speech has been transcribed.
//
// This package lives under pkg/ because external code (cloud engines,
// alternative local engines) is expected to implement [Recognizer]; the
// shipped implementation is the whisper subpackage, and tests use mock.
package recognize

import (
	"errors"

	"github.com/MrWong99/echoform/pkg/audio"
)

// ErrUnavailable is returned by [Recognizer.Accept] when the engine cannot
// service requests right now (model not loaded, backend gone). Callers treat
// it as a health signal, not a per-frame failure: audio analysis continues
// while recognition is down.
var ErrUnavailable = errors.New("recognize: engine unavailable")

// Kind classifies a [Result].
type Kind int

const (
	// NoResult means the frame was consumed but produced no transcript.
	// The common case: most frames just extend the internal speech buffer.
	NoResult Kind = iota

	// Partial is an interim transcript that may still be revised.
	Partial

	// Final is an authoritative transcript for a completed utterance.
	Final
)

// String returns the kind name for logging.
func (k Kind) String() string {
	switch k {
	case NoResult:
		return "none"
	case Partial:
		return "partial"
	case Final:
		return "final"
	default:
		return "unknown"
	}
}

// Result is the outcome of feeding one frame to a [Recognizer].
type Result struct {
	// Kind classifies the result. Text is empty unless Kind is Partial or
	// Final.
	Kind Kind

	// Text is the transcribed utterance.
	Text string
}

// Recognizer is a speech-to-text engine fed frame by frame.
//
// Accept must not block for longer than an inference call; implementations
// buffer internally and decide when to transcribe. Implementations need not
// be safe for concurrent use — the pipeline feeds a recognizer from a single
// goroutine.
type Recognizer interface {
	// Accept consumes one frame. It returns a [Final] result when a
	// completed utterance has been transcribed, [NoResult] otherwise, and
	// an error wrapping [ErrUnavailable] when the engine is down.
	Accept(f audio.Frame) (Result, error)

	// Flush forces transcription of any buffered speech, returning the
	// result as if a silence gap had closed the utterance.
	Flush() (Result, error)

	// Close releases engine resources. The recognizer is unusable after.
	Close() error
}

// Package audio defines the capture-side types of the Echoform pipeline:
// the [Frame] transport unit, the bounded drop-oldest [FrameQueue], and the
// [Source] abstraction over a platform audio input stream.
//
// The one concrete Source shipped here is [PortAudioSource]. The interface is
// intentionally narrow so that tests (and future platform adapters) can
// substitute their own producers; see the mock subpackage.
//
// This package lives under pkg/ because external code (alternative capture
// backends) is expected to implement [Source].
package audio

import "errors"

// ErrDeviceInit is returned by [Source.Start] when the input device cannot be
// opened at all. This is fatal for the capture feature: the caller decides
// whether to run without audio or abort startup.
var ErrDeviceInit = errors.New("audio: input device initialisation failed")

// ErrDeviceIO is emitted on [Source.Errors] when a mid-stream I/O failure
// persists after the source's single automatic reopen attempt. The process
// keeps running; downstream stages degrade to whatever data they still have.
var ErrDeviceIO = errors.New("audio: input stream I/O failure")

// Config holds the capture parameters for opening an input stream.
type Config struct {
	// SampleRate in Hz. Default: 16000.
	SampleRate int

	// Channels is the number of input channels. Default: 1 (mono).
	Channels int

	// ChunkSize is the number of samples per callback invocation.
	// Default: 4096.
	ChunkSize int

	// DeviceID selects the input device. -1 means the platform default.
	DeviceID int
}

// withDefaults returns cfg with zero values replaced by capture defaults.
func (c Config) withDefaults() Config {
	if c.SampleRate <= 0 {
		c.SampleRate = 16000
	}
	if c.Channels <= 0 {
		c.Channels = 1
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = 4096
	}
	return c
}

// Device describes an available audio input device.
type Device struct {
	// ID is the platform-specific device index.
	ID int

	// Name is the human-readable device name.
	Name string

	// Default reports whether this is the platform default input device.
	Default bool
}

// Source is a platform audio input stream that produces [Frame] values into
// a [FrameQueue]. The platform invokes the capture callback at its own
// cadence; the callback wraps samples into a Frame, pushes it, and returns
// immediately — it never blocks and never performs I/O.
//
// Implementations must be safe for concurrent use.
type Source interface {
	// Start opens exactly one input stream and begins producing frames.
	// Returns an error wrapping [ErrDeviceInit] if the device cannot be
	// opened. Calling Start on an already-started source is a no-op.
	Start() error

	// Stop closes the input stream and stops production. Safe to call more
	// than once; subsequent calls are no-ops and return nil.
	Stop() error

	// Errors returns a channel carrying asynchronous stream failures
	// (wrapping [ErrDeviceIO]). The channel is buffered; failures beyond the
	// buffer are dropped rather than blocking the stream.
	Errors() <-chan error
}

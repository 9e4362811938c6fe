package audio

import "time"

// Frame is a single chunk of captured microphone audio flowing through the
// pipeline. Frames are the atomic unit of transport — produced by a [Source],
// buffered by a [FrameQueue], and consumed exactly once by the analysis stage.
//
// A Frame is immutable after construction. Ownership moves with the frame:
// the producer must not retain or mutate Samples after pushing the frame.
type Frame struct {
	// Samples holds normalized PCM samples in [-1, 1]. For multi-channel
	// audio the samples are interleaved.
	Samples []float32

	// SampleRate in Hz (e.g., 16000 for STT-optimised capture).
	SampleRate int

	// Channels: 1 for mono, 2 for stereo.
	Channels int

	// Timestamp marks when this frame was captured, relative to stream start.
	// Derived from the running sample count, so it is monotonic even when the
	// wall clock is not.
	Timestamp time.Duration
}

// Duration returns the playback length of the frame.
func (f Frame) Duration() time.Duration {
	if f.SampleRate <= 0 || f.Channels <= 0 {
		return 0
	}
	n := len(f.Samples) / f.Channels
	return time.Duration(n) * time.Second / time.Duration(f.SampleRate)
}

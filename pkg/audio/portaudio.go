package audio

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"
)

// Compile-time assertion that PortAudioSource satisfies Source.
var _ Source = (*PortAudioSource)(nil)

// PortAudioSource captures microphone audio through PortAudio and pushes
// frames into a [FrameQueue]. The PortAudio callback runs on a real-time
// thread: it converts the int16 buffer, stamps the frame with a monotonic
// sample-count timestamp, and pushes — nothing else. All blocking work
// (device open/close, reopen on failure) happens outside the callback.
type PortAudioSource struct {
	cfg   Config
	queue *FrameQueue

	mu       sync.Mutex
	stream   *portaudio.Stream
	started  bool
	reopened bool // one automatic reopen per stream lifetime
	samples  int64

	errs chan error
}

// NewPortAudioSource creates a source that will push captured frames into
// queue. PortAudio itself is initialised lazily in Start.
func NewPortAudioSource(cfg Config, queue *FrameQueue) *PortAudioSource {
	return &PortAudioSource{
		cfg:   cfg.withDefaults(),
		queue: queue,
		errs:  make(chan error, 4),
	}
}

// ListDevices enumerates the available audio input devices. It initialises
// and terminates PortAudio around the call, so it can be used before Start.
func ListDevices() ([]Device, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("audio: initialise portaudio: %w", err)
	}
	defer portaudio.Terminate()

	infos, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("audio: list devices: %w", err)
	}
	def, err := portaudio.DefaultInputDevice()
	if err != nil {
		def = nil
	}

	var devices []Device
	for i, info := range infos {
		if info.MaxInputChannels <= 0 {
			continue
		}
		devices = append(devices, Device{
			ID:      i,
			Name:    info.Name,
			Default: def != nil && info.Name == def.Name,
		})
	}
	return devices, nil
}

// Start initialises PortAudio, opens the configured input device, and starts
// the stream. A failure here wraps [ErrDeviceInit] and leaves the source
// stopped. Start on a running source is a no-op.
func (s *PortAudioSource) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("%w: initialise portaudio: %v", ErrDeviceInit, err)
	}
	if err := s.openStreamLocked(); err != nil {
		portaudio.Terminate()
		return err
	}

	s.started = true
	slog.Info("audio capture started",
		"sample_rate", s.cfg.SampleRate,
		"channels", s.cfg.Channels,
		"chunk_size", s.cfg.ChunkSize,
		"device_id", s.cfg.DeviceID,
	)
	return nil
}

// openStreamLocked opens and starts the PortAudio stream. Caller holds s.mu.
func (s *PortAudioSource) openStreamLocked() error {
	device, err := s.inputDevice()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeviceInit, err)
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: s.cfg.Channels,
			Latency:  device.DefaultHighInputLatency,
		},
		SampleRate:      float64(s.cfg.SampleRate),
		FramesPerBuffer: s.cfg.ChunkSize,
	}

	stream, err := portaudio.OpenStream(params, s.callback)
	if err != nil {
		return fmt.Errorf("%w: open stream on %q: %v", ErrDeviceInit, device.Name, err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("%w: start stream on %q: %v", ErrDeviceInit, device.Name, err)
	}

	s.stream = stream
	return nil
}

// inputDevice resolves the configured DeviceID to a PortAudio device.
func (s *PortAudioSource) inputDevice() (*portaudio.DeviceInfo, error) {
	if s.cfg.DeviceID < 0 {
		device, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("default input device: %w", err)
		}
		return device, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	if s.cfg.DeviceID >= len(devices) {
		return nil, fmt.Errorf("device id %d out of range (%d devices)", s.cfg.DeviceID, len(devices))
	}
	device := devices[s.cfg.DeviceID]
	if device.MaxInputChannels <= 0 {
		return nil, fmt.Errorf("device %q has no input channels", device.Name)
	}
	return device, nil
}

// callback is invoked by PortAudio with each captured chunk. It must return
// before the next hardware buffer arrives, so it only converts, stamps, and
// pushes. Push never blocks (drop-oldest).
func (s *PortAudioSource) callback(in []int16) {
	samples := Int16ToFloat32(in)

	// Timestamp from the running sample count, not the wall clock.
	n := int64(len(in)) / int64(s.cfg.Channels)
	pos := s.samples
	s.samples += n
	ts := time.Duration(pos) * time.Second / time.Duration(s.cfg.SampleRate)

	s.queue.Push(Frame{
		Samples:    samples,
		SampleRate: s.cfg.SampleRate,
		Channels:   s.cfg.Channels,
		Timestamp:  ts,
	})
}

// Recover attempts the single automatic reopen after a mid-stream failure.
// The first call tears down the dead stream and opens a fresh one; if that
// fails, or a second failure occurs on the same source, the error is
// surfaced on [PortAudioSource.Errors] wrapping [ErrDeviceIO] and the source
// stays stopped.
func (s *PortAudioSource) Recover(cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	if s.stream != nil {
		s.stream.Close()
		s.stream = nil
	}

	if s.reopened {
		s.started = false
		s.emit(fmt.Errorf("%w: reopen already attempted: %v", ErrDeviceIO, cause))
		return
	}
	s.reopened = true

	slog.Warn("audio stream failure, attempting reopen", "error", cause)
	if err := s.openStreamLocked(); err != nil {
		s.started = false
		s.emit(fmt.Errorf("%w: reopen failed: %v", ErrDeviceIO, err))
		return
	}
	slog.Info("audio stream reopened")
}

// emit delivers err on the Errors channel without blocking.
func (s *PortAudioSource) emit(err error) {
	select {
	case s.errs <- err:
	default:
	}
}

// Errors returns the asynchronous failure channel.
func (s *PortAudioSource) Errors() <-chan error { return s.errs }

// Stop stops and closes the stream and terminates PortAudio. Safe to call
// more than once.
func (s *PortAudioSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.started = false

	var err error
	if s.stream != nil {
		if e := s.stream.Stop(); e != nil {
			err = fmt.Errorf("audio: stop stream: %w", e)
		}
		if e := s.stream.Close(); e != nil && err == nil {
			err = fmt.Errorf("audio: close stream: %w", e)
		}
		s.stream = nil
	}
	if e := portaudio.Terminate(); e != nil && err == nil {
		err = fmt.Errorf("audio: terminate portaudio: %w", e)
	}

	slog.Info("audio capture stopped")
	return err
}

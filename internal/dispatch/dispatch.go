// Package dispatch runs the analysis/recognition consumer loop: it pops
// frames from the capture queue with a short poll timeout, always feeds the
// voice-activity analyzer, and forwards frames to the recognizer while one
// is configured and healthy. Final transcripts go to the conversation state
// machine.
//
// Recognition availability is an explicit mode, not control flow: the loop
// keeps running in Degraded mode when the engine goes away, so the visual
// feedback stays live even without recognition.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/MrWong99/echoform/internal/analyzer"
	"github.com/MrWong99/echoform/internal/conversation"
	"github.com/MrWong99/echoform/internal/observe"
	"github.com/MrWong99/echoform/internal/stats"
	"github.com/MrWong99/echoform/pkg/audio"
	"github.com/MrWong99/echoform/pkg/recognize"
)

// Mode describes recognition availability.
type Mode int32

const (
	// ModeUnavailable means no recognizer is configured. Permanent for the
	// dispatcher's lifetime.
	ModeUnavailable Mode = iota

	// ModeAvailable means the recognizer is accepting frames.
	ModeAvailable

	// ModeDegraded means the recognizer reported itself unavailable; the
	// dispatcher keeps analyzing audio and retries the engine per frame.
	ModeDegraded
)

// String returns the mode name for logging.
func (m Mode) String() string {
	switch m {
	case ModeUnavailable:
		return "unavailable"
	case ModeAvailable:
		return "available"
	case ModeDegraded:
		return "degraded"
	default:
		return "unknown"
	}
}

// DefaultPollTimeout bounds each queue pop so the loop observes cancellation
// promptly.
const DefaultPollTimeout = 100 * time.Millisecond

// Option is a functional option for configuring a Dispatcher.
type Option func(*Dispatcher)

// WithPollTimeout overrides the queue poll timeout. Default: 100 ms.
func WithPollTimeout(d time.Duration) Option {
	return func(p *Dispatcher) {
		if d > 0 {
			p.pollTimeout = d
		}
	}
}

// WithMetrics records recognition latency and transcript counts on the given
// instruments in addition to the pipeline stats.
func WithMetrics(m *observe.Metrics) Option {
	return func(p *Dispatcher) { p.metrics = m }
}

// Dispatcher is the pipeline consumer loop. Construct with New, drive with
// Run.
type Dispatcher struct {
	queue    *audio.FrameQueue
	analyzer *analyzer.Analyzer
	rec      recognize.Recognizer // nil when recognition is disabled
	machine  *conversation.Machine
	stats    *stats.PipelineStats
	metrics  *observe.Metrics

	pollTimeout time.Duration
	mode        atomic.Int32
}

// New creates a Dispatcher. rec may be nil, in which case the dispatcher
// runs as an analysis-only pass-through in Unavailable mode.
func New(queue *audio.FrameQueue, an *analyzer.Analyzer, rec recognize.Recognizer, machine *conversation.Machine, ps *stats.PipelineStats, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		queue:       queue,
		analyzer:    an,
		rec:         rec,
		machine:     machine,
		stats:       ps,
		pollTimeout: DefaultPollTimeout,
	}
	for _, o := range opts {
		o(d)
	}
	if rec != nil {
		d.mode.Store(int32(ModeAvailable))
	}
	return d
}

// Mode returns the current recognition availability.
func (d *Dispatcher) Mode() Mode {
	return Mode(d.mode.Load())
}

// Run consumes frames until ctx is cancelled. On exit it flushes any speech
// still buffered in the recognizer so a trailing utterance is not lost.
// Always returns nil; recognition failures degrade, they do not abort.
func (d *Dispatcher) Run(ctx context.Context) error {
	slog.Info("dispatch loop started", "mode", d.Mode().String(), "poll_timeout", d.pollTimeout)

	for {
		select {
		case <-ctx.Done():
			d.flush()
			slog.Info("dispatch loop stopped")
			return nil
		default:
		}

		frame, ok := d.queue.Pop(d.pollTimeout)
		if !ok {
			continue
		}
		d.handleFrame(frame)
	}
}

// handleFrame feeds one frame through analysis and, mode permitting,
// recognition.
func (d *Dispatcher) handleFrame(frame audio.Frame) {
	d.analyzer.Process(frame)
	d.stats.IncrFramesProcessed()
	v, _ := d.analyzer.Level()
	d.stats.ObserveVolume(v)

	if d.rec == nil {
		return
	}

	start := time.Now()
	res, err := d.rec.Accept(frame)
	if err != nil {
		d.observeError(err)
		return
	}
	d.setMode(ModeAvailable)
	if res.Kind == recognize.Final {
		elapsed := time.Since(start)
		d.stats.RecordRecognition(elapsed)
		if d.metrics != nil {
			d.metrics.RecognitionDuration.Record(context.Background(), elapsed.Seconds())
		}
	}
	d.deliver(res)
}

// flush forces out any buffered speech at shutdown.
func (d *Dispatcher) flush() {
	if d.rec == nil || d.Mode() != ModeAvailable {
		return
	}
	res, err := d.rec.Flush()
	if err != nil {
		d.observeError(err)
		return
	}
	d.deliver(res)
}

// deliver routes a recognition result to the state machine.
func (d *Dispatcher) deliver(res recognize.Result) {
	switch res.Kind {
	case recognize.Final:
		d.stats.IncrTranscripts()
		if d.metrics != nil {
			d.metrics.Transcripts.Add(context.Background(), 1)
		}
		slog.Debug("final transcript", "text", res.Text)
		d.machine.HandleTranscript(res.Text)
	case recognize.Partial:
		slog.Debug("partial transcript", "text", res.Text)
	case recognize.NoResult:
	}
}

// observeError classifies a recognizer error. ErrUnavailable flips the mode
// to Degraded; anything else is logged and the mode stays put.
func (d *Dispatcher) observeError(err error) {
	if errors.Is(err, recognize.ErrUnavailable) {
		d.setMode(ModeDegraded)
		return
	}
	slog.Error("recognizer error", "error", err)
}

// setMode transitions the availability mode, logging only actual changes.
// Unavailable is terminal: a dispatcher built without a recognizer never
// reports anything else.
func (d *Dispatcher) setMode(m Mode) {
	if d.rec == nil {
		return
	}
	old := Mode(d.mode.Swap(int32(m)))
	if old == m {
		return
	}
	switch m {
	case ModeDegraded:
		slog.Warn("recognizer unavailable, running analysis-only", "previous", old.String())
	case ModeAvailable:
		slog.Info("recognizer recovered", "previous", old.String())
	}
}

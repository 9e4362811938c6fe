// Package app wires all Echoform subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run executes the pipeline loops, and Shutdown tears everything
// down in order — capture first, so production stops before the consumers.
//
// For testing, inject mock implementations via functional options
// (WithSource, WithRecognizer, etc.). When an option is not provided, New
// creates real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/echoform/internal/analyzer"
	"github.com/MrWong99/echoform/internal/config"
	"github.com/MrWong99/echoform/internal/conversation"
	"github.com/MrWong99/echoform/internal/dispatch"
	"github.com/MrWong99/echoform/internal/health"
	"github.com/MrWong99/echoform/internal/observe"
	"github.com/MrWong99/echoform/internal/server"
	"github.com/MrWong99/echoform/internal/stats"
	"github.com/MrWong99/echoform/internal/visual"
	"github.com/MrWong99/echoform/pkg/audio"
	"github.com/MrWong99/echoform/pkg/command"
	"github.com/MrWong99/echoform/pkg/recognize"
	"github.com/MrWong99/echoform/pkg/recognize/whisper"
)

// joinTimeout bounds how long Run waits for the worker loops after
// cancellation before abandoning them.
const joinTimeout = 10 * time.Second

// starveInterval is how often the capture watchdog checks that frames are
// still arriving. One silent interval triggers the source's reopen path.
const starveInterval = 5 * time.Second

// recoverable is implemented by capture sources that support a mid-stream
// reopen, like [audio.PortAudioSource].
type recoverable interface {
	Recover(cause error)
}

// App owns all subsystem lifetimes and orchestrates the Echoform pipeline.
type App struct {
	cfg *config.Config

	source     audio.Source
	queue      *audio.FrameQueue
	analyzer   *analyzer.Analyzer
	rec        recognize.Recognizer
	machine    *conversation.Machine
	dispatcher *dispatch.Dispatcher
	engine     *visual.Engine
	stats      *stats.PipelineStats
	httpSrv    *server.Server

	sink      command.Sink
	renderers []visual.Renderer

	captureUp bool
	captureMu sync.Mutex

	// closers are called in order during Shutdown.
	closers []func() error

	startOnce sync.Once
	stopOnce  sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithSource injects a capture source instead of opening a PortAudio stream.
func WithSource(s audio.Source) Option {
	return func(a *App) { a.source = s }
}

// WithRecognizer injects a recognizer instead of loading one from config.
func WithRecognizer(r recognize.Recognizer) Option {
	return func(a *App) { a.rec = r }
}

// WithSink injects a command sink instead of the default logging sink.
func WithSink(s command.Sink) Option {
	return func(a *App) { a.sink = s }
}

// WithRenderers attaches renderers to the visual engine.
func WithRenderers(rs ...visual.Renderer) Option {
	return func(a *App) { a.renderers = rs }
}

// New creates an App by wiring all subsystems together. Use Option functions
// to inject test doubles for any subsystem.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg}
	for _, o := range opts {
		o(a)
	}

	a.stats = stats.New(100)
	a.queue = audio.NewFrameQueue(cfg.Audio.FrameQueueCapacity)
	a.analyzer = analyzer.New(analyzer.Config{
		EnergyThreshold: cfg.Analysis.EnergyThreshold,
		SilenceTimeout:  secondsOrZero(cfg.Analysis.SilenceTimeoutSeconds),
		WindowSize:      cfg.Analysis.WindowSize,
	})

	if a.source == nil {
		a.source = audio.NewPortAudioSource(audio.Config{
			SampleRate: cfg.Audio.SampleRate,
			Channels:   cfg.Audio.Channels,
			ChunkSize:  cfg.Audio.ChunkSize,
			DeviceID:   deviceID(cfg.Audio.DeviceID),
		}, a.queue)
		logDevices()
	}

	if a.rec == nil && cfg.Recognizer.Name != "" {
		rec, err := newRecognizer(cfg.Recognizer)
		if err != nil {
			return nil, err
		}
		a.rec = rec
	}
	if a.rec != nil {
		a.closers = append(a.closers, a.rec.Close)
	}

	if a.sink == nil {
		a.sink = command.LogSink{}
	}
	metrics := observe.DefaultMetrics()
	sink := &instrumentedSink{next: a.sink, metrics: metrics, stats: a.stats}

	a.machine = conversation.New(
		conversation.NewWakeDetector(cfg.Conversation.WakeWord, cfg.Conversation.WakeWordPhonetic),
		sink,
		conversation.WithTurnTimeout(secondsOrZero(cfg.Conversation.TurnTimeoutSeconds)),
		conversation.WithTurnStartedHook(func() {
			a.analyzer.InjectPulse(analyzer.TurnPulseIntensity)
		}),
	)

	a.dispatcher = dispatch.New(a.queue, a.analyzer, a.rec, a.machine, a.stats,
		dispatch.WithMetrics(metrics))

	a.engine = visual.New(visual.Config{
		TickRate:       cfg.Visual.TickRateHz,
		AnimationSpeed: cfg.Visual.AnimationSpeed,
		BaseRadius:     cfg.Visual.BaseRadius,
		NumPoints:      cfg.Visual.NumBlobPoints,
	}, a.analyzer, func() bool {
		return a.machine.State() == conversation.StateActive
	}, a.stats, a.renderers...)

	if cfg.Server.ListenAddr != "" {
		a.httpSrv = server.New(
			server.Config{ListenAddr: cfg.Server.ListenAddr},
			a.engine,
			a.stats,
			health.New(a.healthCheckers()...),
		)
	}

	if err := a.registerMetrics(otel.GetMeterProvider()); err != nil {
		return nil, fmt.Errorf("app: register metrics: %w", err)
	}

	return a, nil
}

// registerMetrics wires the observable queue and pipeline instruments and
// queues their unregistration for Shutdown.
func (a *App) registerMetrics(mp metric.MeterProvider) error {
	qreg, err := observe.RegisterQueueMetrics(mp, a.queue)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, qreg.Unregister)

	preg, err := observe.RegisterPipelineMetrics(mp, a.stats)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, preg.Unregister)
	return nil
}

// healthCheckers builds the readiness checks: the capture stream must be up,
// and a configured recognizer must not be degraded.
func (a *App) healthCheckers() []health.Checker {
	checkers := []health.Checker{{
		Name: "capture",
		Check: func(context.Context) error {
			a.captureMu.Lock()
			defer a.captureMu.Unlock()
			if !a.captureUp {
				return errors.New("capture stream is down")
			}
			return nil
		},
	}}
	if a.rec != nil {
		checkers = append(checkers, health.Checker{
			Name: "recognizer",
			Check: func(context.Context) error {
				if a.dispatcher.Mode() == dispatch.ModeDegraded {
					return recognize.ErrUnavailable
				}
				return nil
			},
		})
	}
	return checkers
}

// Run starts the capture stream and all worker loops, then blocks until ctx
// is cancelled. Calling Run more than once returns an error from the
// subsequent calls.
func (a *App) Run(ctx context.Context) error {
	started := false
	a.startOnce.Do(func() { started = true })
	if !started {
		return errors.New("app: already running")
	}

	if err := a.source.Start(); err != nil {
		return fmt.Errorf("app: start capture: %w", err)
	}
	a.setCaptureUp(true)
	a.machine.Start()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.dispatcher.Run(gctx) })
	g.Go(func() error { return a.engine.Run(gctx) })
	g.Go(func() error { return a.watchCapture(gctx) })
	if a.httpSrv != nil {
		g.Go(func() error { return a.httpSrv.Run(gctx) })
	}

	slog.Info("echoform running",
		"recognizer", a.cfg.Recognizer.Name,
		"wake_word", a.cfg.Conversation.WakeWord,
		"listen_addr", a.cfg.Server.ListenAddr,
	)

	// Bounded join: if a worker refuses to exit after cancellation, log and
	// abandon it rather than hanging shutdown forever.
	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	select {
	case err := <-done:
		// A worker failed before cancellation (e.g. the HTTP listener).
		return filterCanceled(err)
	case <-ctx.Done():
	}

	select {
	case err := <-done:
		return filterCanceled(err)
	case <-time.After(joinTimeout):
		slog.Error("worker join timed out, abandoning loops", "timeout", joinTimeout)
		return errors.New("app: worker join timed out")
	}
}

// filterCanceled drops the expected cancellation error from a worker join.
func filterCanceled(err error) error {
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// watchCapture drains the source's failure channel and runs the starvation
// watchdog: when no frames arrive for a full interval while the stream is
// nominally up, the source's single automatic reopen is triggered.
func (a *App) watchCapture(ctx context.Context) error {
	ticker := time.NewTicker(starveInterval)
	defer ticker.Stop()

	lastPushed, _ := a.queue.Stats()
	for {
		select {
		case <-ctx.Done():
			return nil

		case err := <-a.source.Errors():
			// The source only reports failures that survived its reopen
			// attempt; the stream is gone for good.
			slog.Error("capture stream failed", "error", err)
			a.setCaptureUp(false)

		case <-ticker.C:
			if !a.captureOK() {
				continue
			}
			pushed, _ := a.queue.Stats()
			if pushed == lastPushed {
				if r, ok := a.source.(recoverable); ok {
					slog.Warn("no frames captured in interval, reopening stream", "interval", starveInterval)
					r.Recover(errors.New("capture starvation"))
				}
			}
			lastPushed = pushed
		}
	}
}

func (a *App) setCaptureUp(up bool) {
	a.captureMu.Lock()
	defer a.captureMu.Unlock()
	a.captureUp = up
}

func (a *App) captureOK() bool {
	a.captureMu.Lock()
	defer a.captureMu.Unlock()
	return a.captureUp
}

// Shutdown tears everything down: the capture stream first (stopping new
// production), then the conversation machine (closing any open turn), then
// the remaining closers in order. It respects the context deadline: if ctx
// expires, remaining closers are skipped and the context error is returned.
// Safe to call more than once.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		if err := a.source.Stop(); err != nil {
			slog.Warn("capture stop error", "error", err)
		}
		a.setCaptureUp(false)
		a.machine.Stop()

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "error", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}

// newRecognizer constructs the configured speech-to-text engine.
func newRecognizer(cfg config.RecognizerConfig) (recognize.Recognizer, error) {
	switch cfg.Name {
	case "whisper-native":
		var opts []whisper.Option
		if cfg.Language != "" {
			opts = append(opts, whisper.WithLanguage(cfg.Language))
		}
		if cfg.SilenceThresholdMs > 0 {
			opts = append(opts, whisper.WithSilenceThresholdMs(cfg.SilenceThresholdMs))
		}
		if cfg.MaxBufferDurationMs > 0 {
			opts = append(opts, whisper.WithMaxBufferDurationMs(cfg.MaxBufferDurationMs))
		}
		return whisper.New(cfg.ModelPath, opts...)
	default:
		return nil, fmt.Errorf("app: unknown recognizer %q", cfg.Name)
	}
}

// logDevices enumerates input devices at startup. Failures are logged, not
// fatal: the default device may still open fine.
func logDevices() {
	devices, err := audio.ListDevices()
	if err != nil {
		slog.Warn("could not enumerate audio devices", "error", err)
		return
	}
	for _, d := range devices {
		slog.Info("audio input device", "id", d.ID, "name", d.Name, "default", d.Default)
	}
}

// deviceID unwraps the optional config value; nil means platform default.
func deviceID(id *int) int {
	if id == nil {
		return -1
	}
	return *id
}

// secondsOrZero converts a fractional seconds config value to a Duration,
// with zero meaning "use the component default".
func secondsOrZero(s float64) time.Duration {
	if s <= 0 {
		return 0
	}
	return time.Duration(s * float64(time.Second))
}

// Compile-time assertion that instrumentedSink satisfies command.Sink.
var _ command.Sink = (*instrumentedSink)(nil)

// instrumentedSink wraps the user-facing command sink with stats and metric
// recording so turn accounting happens regardless of the sink in use.
type instrumentedSink struct {
	next    command.Sink
	metrics *observe.Metrics
	stats   *stats.PipelineStats
}

func (s *instrumentedSink) TurnStarted() {
	s.stats.IncrTurnsStarted()
	s.metrics.RecordTurn(context.Background(), "started")
	s.next.TurnStarted()
}

func (s *instrumentedSink) TurnText(text string) {
	s.next.TurnText(text)
}

func (s *instrumentedSink) TurnEnded(reason command.EndReason) {
	s.stats.IncrTurnsEnded()
	s.metrics.RecordTurn(context.Background(), "ended")
	s.next.TurnEnded(reason)
}

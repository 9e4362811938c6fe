// Package visual runs the feedback tick loop: a fixed-rate animation that
// turns the analyzer's voice-activity state into an organic blob shape and
// publishes it as an immutable snapshot for renderers.
//
// The loop is isolated from the data pipeline. Renderers are best-effort:
// a renderer error or panic is logged and counted, and the next tick
// proceeds regardless.
package visual

import (
	"context"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"github.com/MrWong99/echoform/internal/analyzer"
	"github.com/MrWong99/echoform/internal/stats"
)

const (
	// noiseStep advances the organic-noise field every tick.
	noiseStep = 0.02

	// pointNoiseSpacing offsets each blob point into the noise field.
	pointNoiseSpacing = 0.5

	// radiusSmoothing is the exponential low-pass step for radius changes.
	radiusSmoothing = 0.1
)

// Config holds the animation tuning parameters.
type Config struct {
	// TickRate in Hz. Default: 60.
	TickRate int

	// AnimationSpeed is the phase advance per tick in radians. Default: 0.1.
	AnimationSpeed float64

	// BaseRadius is the resting blob radius in renderer units. Default: 100.
	BaseRadius float64

	// NumPoints is the number of blob polygon points. Default: 16.
	NumPoints int
}

func (c Config) withDefaults() Config {
	if c.TickRate <= 0 {
		c.TickRate = 60
	}
	if c.AnimationSpeed <= 0 {
		c.AnimationSpeed = 0.1
	}
	if c.BaseRadius <= 0 {
		c.BaseRadius = 100
	}
	if c.NumPoints <= 0 {
		c.NumPoints = 16
	}
	return c
}

// BlobPoint is one vertex of the blob polygon.
type BlobPoint struct {
	// Angle of the point around the blob center, in [0, 2π).
	Angle float64 `json:"angle"`

	// BaseDistance is the unmodified radius for this point.
	BaseDistance float64 `json:"base_distance"`

	// CurrentDistance is the radius after noise and pulse modulation.
	CurrentDistance float64 `json:"current_distance"`
}

// Snapshot is one immutable animation frame. Published snapshots are never
// mutated; readers may hold them as long as they like.
type Snapshot struct {
	Tick        uint64                  `json:"tick"`
	Phase       float64                 `json:"phase"`
	Radius      float64                 `json:"current_radius"`
	BlobPoints  []BlobPoint             `json:"blob_points"`
	Volume      float64                 `json:"volume"`
	PeakVolume  float64                 `json:"peak_volume"`
	IsSpeaking  bool                    `json:"is_speaking"`
	IsListening bool                    `json:"is_listening"`
	Pulses      []analyzer.PulseSummary `json:"active_pulses"`
}

// Renderer consumes published snapshots. Implementations must tolerate being
// called at the full tick rate; a slow or failing renderer only hurts itself.
type Renderer interface {
	Render(s *Snapshot) error
}

// Engine drives the animation. Construct with New, drive with Run; read the
// latest frame any time with Snapshot.
type Engine struct {
	cfg       Config
	analyzer  *analyzer.Analyzer
	listening func() bool
	stats     *stats.PipelineStats
	renderers []Renderer

	// animation state, owned by the Run goroutine
	tick        uint64
	phase       float64
	noiseOffset float64
	radius      float64

	current atomic.Pointer[Snapshot]
}

// New creates an Engine. listening reports whether a conversation turn is
// open; it is polled once per tick and must not block.
func New(cfg Config, an *analyzer.Analyzer, listening func() bool, ps *stats.PipelineStats, renderers ...Renderer) *Engine {
	e := &Engine{
		cfg:       cfg.withDefaults(),
		analyzer:  an,
		listening: listening,
		stats:     ps,
		renderers: renderers,
	}
	e.radius = e.cfg.BaseRadius
	e.current.Store(e.buildSnapshot(0, 0, false, false, nil))
	return e
}

// Snapshot returns the most recently published animation frame.
func (e *Engine) Snapshot() *Snapshot {
	return e.current.Load()
}

// Run ticks the animation until ctx is cancelled. Always returns nil.
func (e *Engine) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(e.cfg.TickRate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.Info("visual engine started",
		"tick_rate_hz", e.cfg.TickRate,
		"base_radius", e.cfg.BaseRadius,
		"blob_points", e.cfg.NumPoints,
	)

	for {
		select {
		case <-ctx.Done():
			slog.Info("visual engine stopped")
			return nil
		case <-ticker.C:
			start := time.Now()
			s := e.step()
			e.render(s)
			e.stats.RecordTick(time.Since(start))
		}
	}
}

// step advances the animation by one tick and publishes the new snapshot.
func (e *Engine) step() *Snapshot {
	volume, peak := e.analyzer.Level()
	speaking := e.analyzer.Speaking()
	listening := e.listening != nil && e.listening()
	pulses := e.analyzer.ActivePulses()

	e.tick++
	e.phase += e.cfg.AnimationSpeed
	if e.phase > 2*math.Pi {
		e.phase -= 2 * math.Pi
	}
	e.noiseOffset += noiseStep

	target := e.cfg.BaseRadius
	if speaking || listening {
		target *= 1.0 + 0.2*math.Sin(e.phase*2)
		if volume > 0 {
			target *= 1.0 + 0.5*volume
		}
	}
	e.radius += (target - e.radius) * radiusSmoothing

	s := e.buildSnapshot(volume, peak, speaking, listening, pulses)
	e.current.Store(s)
	return s
}

// buildSnapshot computes the blob geometry for the current animation state.
func (e *Engine) buildSnapshot(volume, peak float64, speaking, listening bool, pulses []analyzer.PulseSummary) *Snapshot {
	boost := e.analyzer.PulseBoost()

	points := make([]BlobPoint, e.cfg.NumPoints)
	for i := range points {
		angle := 2 * math.Pi * float64(i) / float64(e.cfg.NumPoints)
		n := noise(float64(i)*pointNoiseSpacing+e.noiseOffset, e.phase*0.5)
		modifier := 1.0 + 0.3*n + boost
		points[i] = BlobPoint{
			Angle:           angle,
			BaseDistance:    e.cfg.BaseRadius,
			CurrentDistance: e.radius * modifier,
		}
	}

	return &Snapshot{
		Tick:        e.tick,
		Phase:       e.phase,
		Radius:      e.radius,
		BlobPoints:  points,
		Volume:      volume,
		PeakVolume:  peak,
		IsSpeaking:  speaking,
		IsListening: listening,
		Pulses:      pulses,
	}
}

// render hands the snapshot to every renderer, containing failures.
func (e *Engine) render(s *Snapshot) {
	for _, r := range e.renderers {
		e.renderOne(r, s)
	}
}

func (e *Engine) renderOne(r Renderer, s *Snapshot) {
	defer func() {
		if p := recover(); p != nil {
			e.stats.IncrRenderErrors()
			slog.Error("renderer panicked", "panic", p)
		}
	}()
	if err := r.Render(s); err != nil {
		e.stats.IncrRenderErrors()
		slog.Error("render failed", "error", err)
	}
}

// noise is a cheap deterministic organic-noise function in [-1, 1].
func noise(x, y float64) float64 {
	return (math.Sin(x*2.3)*math.Cos(y*1.7) + math.Sin(x*1.1)*math.Cos(y*2.9)) * 0.5
}

// Package analyzer derives voice-activity state from captured audio frames:
// a scaled instantaneous volume, a decaying peak, a speaking flag with
// hangover, and short-lived syllable pulses that drive the visual feedback.
//
// One Analyzer is shared between the dispatch loop (writer) and the visual
// tick loop (reader). All state sits behind a single mutex held only for
// short, non-blocking sections.
package analyzer

import (
	"math"
	"sync"
	"time"

	"github.com/MrWong99/echoform/pkg/audio"
)

const (
	// volumeGain maps raw RMS into a [0,1]-ish range before the clamp.
	volumeGain = 10.0

	// peakDecay is the per-frame exponential forgetting factor for the
	// peak-volume tracker.
	peakDecay = 0.95

	// syllableThreshold is the minimum volume a local maximum must exceed
	// to count as a syllable pulse.
	syllableThreshold = 0.3

	// pulseDecayRate is the exponent factor in the pulse contribution
	// e^(-age·pulseDecayRate).
	pulseDecayRate = 3.0

	// pulseDuration is how long a pulse contributes to the blob shape.
	pulseDuration = 300 * time.Millisecond

	// pulseMaxAge is when a pulse is pruned from the list entirely.
	pulseMaxAge = 1 * time.Second
)

// TurnPulseIntensity is the synthetic pulse injected via [Analyzer.InjectPulse]
// when a conversation turn opens, so the blob reacts to the wake word even
// before the next syllable peak.
const TurnPulseIntensity = 0.7

// DefaultWindowSize is the number of recent volume samples retained for
// syllable detection and level history.
const DefaultWindowSize = 60

// Config holds the analyzer tuning parameters.
type Config struct {
	// EnergyThreshold is the volume above which a frame counts as speech.
	// Default: 0.02.
	EnergyThreshold float64

	// SilenceTimeout is the hangover: how long the speaking flag stays on
	// after the last above-threshold frame. Default: 3s.
	SilenceTimeout time.Duration

	// WindowSize is the volume-history ring length. Default: 60.
	WindowSize int
}

func (c Config) withDefaults() Config {
	if c.EnergyThreshold <= 0 {
		c.EnergyThreshold = 0.02
	}
	if c.SilenceTimeout <= 0 {
		c.SilenceTimeout = 3 * time.Second
	}
	if c.WindowSize <= 0 {
		c.WindowSize = DefaultWindowSize
	}
	return c
}

// Pulse is one detected syllable peak.
type Pulse struct {
	// Born is when the pulse was detected.
	Born time.Time

	// Intensity is the volume of the local maximum that produced it.
	Intensity float64
}

// PulseSummary is the snapshot form of an active pulse.
type PulseSummary struct {
	// Age in seconds at snapshot time.
	Age float64 `json:"age"`

	// Intensity of the originating syllable peak.
	Intensity float64 `json:"intensity"`
}

// Option is a functional option for configuring an Analyzer.
type Option func(*Analyzer)

// WithClock overrides the time source. For tests.
func WithClock(now func() time.Time) Option {
	return func(a *Analyzer) { a.now = now }
}

// Analyzer tracks voice activity across frames. Safe for concurrent use.
type Analyzer struct {
	cfg Config
	now func() time.Time

	mu        sync.Mutex
	volume    float64
	peak      float64
	speaking  bool
	lastVoice time.Time
	history   []float64 // bounded ring, newest last
	pulses    []Pulse   // time-ordered, oldest first
}

// New creates an Analyzer with the given tuning.
func New(cfg Config, opts ...Option) *Analyzer {
	a := &Analyzer{
		cfg: cfg.withDefaults(),
		now: time.Now,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Process consumes one frame: updates volume, peak, the speaking flag, the
// history ring, and runs syllable detection on the newest history triple.
func (a *Analyzer) Process(f audio.Frame) {
	v := math.Min(rms(f.Samples)*volumeGain, 1.0)
	now := a.now()

	a.mu.Lock()
	defer a.mu.Unlock()

	a.volume = v
	if v > a.peak {
		a.peak = v
	} else {
		a.peak *= peakDecay
	}

	if v > a.cfg.EnergyThreshold {
		a.lastVoice = now
		a.speaking = true
	} else if a.speaking && now.Sub(a.lastVoice) > a.cfg.SilenceTimeout {
		a.speaking = false
	}

	a.history = append(a.history, v)
	if len(a.history) > a.cfg.WindowSize {
		a.history = a.history[1:]
	}
	a.detectSyllableLocked(now)
	a.pruneLocked(now)
}

// detectSyllableLocked checks whether the middle of the newest history triple
// is a strict local maximum above the syllable threshold. Each sample is the
// middle of exactly one triple, so a peak fires at most once.
func (a *Analyzer) detectSyllableLocked(now time.Time) {
	n := len(a.history)
	if n < 3 {
		return
	}
	prev, mid, next := a.history[n-3], a.history[n-2], a.history[n-1]
	if mid > prev && mid > next && mid > syllableThreshold {
		a.pulses = append(a.pulses, Pulse{Born: now, Intensity: mid})
	}
}

// pruneLocked drops pulses older than pulseMaxAge from the front of the
// time-ordered list.
func (a *Analyzer) pruneLocked(now time.Time) {
	i := 0
	for i < len(a.pulses) && now.Sub(a.pulses[i].Born) >= pulseMaxAge {
		i++
	}
	if i > 0 {
		a.pulses = a.pulses[i:]
	}
}

// InjectPulse records a synthetic pulse, used when conversation state changes
// should nudge the visual even without a volume peak.
func (a *Analyzer) InjectPulse(intensity float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pulses = append(a.pulses, Pulse{Born: a.now(), Intensity: intensity})
}

// Level returns the current volume and decayed peak.
func (a *Analyzer) Level() (volume, peak float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.volume, a.peak
}

// Speaking reports whether voice activity (including hangover) is present.
func (a *Analyzer) Speaking() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.speaking
}

// PulseBoost returns the summed contribution of pulses still inside their
// active window: Σ intensity·e^(−age·3) over pulses with age < 300 ms.
// Pulses past the hard max age are pruned first.
func (a *Analyzer) PulseBoost() float64 {
	now := a.now()

	a.mu.Lock()
	defer a.mu.Unlock()
	a.pruneLocked(now)

	var sum float64
	for _, p := range a.pulses {
		age := now.Sub(p.Born)
		if age >= pulseDuration {
			continue
		}
		sum += p.Intensity * math.Exp(-age.Seconds()*pulseDecayRate)
	}
	return sum
}

// ActivePulses returns snapshot summaries of pulses inside their active
// window, oldest first.
func (a *Analyzer) ActivePulses() []PulseSummary {
	now := a.now()

	a.mu.Lock()
	defer a.mu.Unlock()
	a.pruneLocked(now)

	var out []PulseSummary
	for _, p := range a.pulses {
		age := now.Sub(p.Born)
		if age >= pulseDuration {
			continue
		}
		out = append(out, PulseSummary{Age: age.Seconds(), Intensity: p.Intensity})
	}
	return out
}

// rms computes the root-mean-square amplitude of the samples.
func rms(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

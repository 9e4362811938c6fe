// Package stats collects pipeline counters and latency samples for the
// /statusz endpoint. It maintains bounded ring buffers of recent latency
// observations from which percentiles are computed on demand.
package stats

import (
	"math"
	"sort"
	"sync"
	"time"
)

// PipelineStats collects counters and latency samples across the capture,
// recognition, and visual stages.
//
// Thread-safe for concurrent use.
type PipelineStats struct {
	mu sync.Mutex

	recognition latencyBuffer
	tick        latencyBuffer

	framesProcessed int64
	transcripts     int64
	turnsStarted    int64
	turnsEnded      int64
	renderErrors    int64

	peakVolume float64
	started    time.Time
}

// New creates a PipelineStats with the given window size (maximum number of
// latency samples retained per stage).
func New(windowSize int) *PipelineStats {
	if windowSize <= 0 {
		windowSize = 100
	}
	return &PipelineStats{
		recognition: newLatencyBuffer(windowSize),
		tick:        newLatencyBuffer(windowSize),
		started:     time.Now(),
	}
}

// RecordRecognition records one recognizer inference latency sample.
func (ps *PipelineStats) RecordRecognition(d time.Duration) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.recognition.add(d)
}

// RecordTick records one visual tick duration sample.
func (ps *PipelineStats) RecordTick(d time.Duration) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.tick.add(d)
}

// IncrFramesProcessed increments the processed-frame counter.
func (ps *PipelineStats) IncrFramesProcessed() {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.framesProcessed++
}

// IncrTranscripts increments the final-transcript counter.
func (ps *PipelineStats) IncrTranscripts() {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.transcripts++
}

// IncrTurnsStarted increments the turns-started counter.
func (ps *PipelineStats) IncrTurnsStarted() {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.turnsStarted++
}

// IncrTurnsEnded increments the turns-ended counter.
func (ps *PipelineStats) IncrTurnsEnded() {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.turnsEnded++
}

// IncrRenderErrors increments the render-error counter.
func (ps *PipelineStats) IncrRenderErrors() {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.renderErrors++
}

// ObserveVolume updates the peak-volume high-water mark.
func (ps *PipelineStats) ObserveVolume(v float64) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if v > ps.peakVolume {
		ps.peakVolume = v
	}
}

// LatencyPercentiles holds p50 and p95 values for a latency stage.
type LatencyPercentiles struct {
	P50 time.Duration `json:"p50"`
	P95 time.Duration `json:"p95"`
}

// Snapshot captures a point-in-time view of all pipeline statistics.
type Snapshot struct {
	Recognition     LatencyPercentiles `json:"recognition_latency"`
	Tick            LatencyPercentiles `json:"tick_latency"`
	FramesProcessed int64              `json:"frames_processed"`
	Transcripts     int64              `json:"transcripts"`
	TurnsStarted    int64              `json:"turns_started"`
	TurnsEnded      int64              `json:"turns_ended"`
	RenderErrors    int64              `json:"render_errors"`
	PeakVolume      float64            `json:"peak_volume"`
	UptimeSeconds   float64            `json:"uptime_seconds"`
}

// Snapshot returns a point-in-time view of all pipeline statistics.
func (ps *PipelineStats) Snapshot() Snapshot {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	return Snapshot{
		Recognition:     ps.recognition.percentiles(),
		Tick:            ps.tick.percentiles(),
		FramesProcessed: ps.framesProcessed,
		Transcripts:     ps.transcripts,
		TurnsStarted:    ps.turnsStarted,
		TurnsEnded:      ps.turnsEnded,
		RenderErrors:    ps.renderErrors,
		PeakVolume:      ps.peakVolume,
		UptimeSeconds:   time.Since(ps.started).Seconds(),
	}
}

// latencyBuffer is a bounded ring buffer of duration samples.
type latencyBuffer struct {
	data []time.Duration
	size int
	pos  int
	full bool
}

func newLatencyBuffer(size int) latencyBuffer {
	return latencyBuffer{
		data: make([]time.Duration, size),
		size: size,
	}
}

func (lb *latencyBuffer) add(d time.Duration) {
	lb.data[lb.pos] = d
	lb.pos++
	if lb.pos >= lb.size {
		lb.pos = 0
		lb.full = true
	}
}

func (lb *latencyBuffer) percentiles() LatencyPercentiles {
	n := lb.pos
	if lb.full {
		n = lb.size
	}
	if n == 0 {
		return LatencyPercentiles{}
	}

	sorted := make([]time.Duration, n)
	if lb.full {
		copy(sorted, lb.data)
	} else {
		copy(sorted, lb.data[:n])
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	return LatencyPercentiles{
		P50: percentile(sorted, 0.50),
		P95: percentile(sorted, 0.95),
	}
}

// percentile returns the value at the given percentile (0.0-1.0) from a
// sorted slice of durations using nearest-rank.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
